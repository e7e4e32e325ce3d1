// Package scheduler implements the Transcoder Scheduler (C5): a
// process-wide bounded FIFO admission queue over ffmpeg subprocesses.
// Grounded on the teacher's internal/api/http/streaming_manager.go
// StreamJobManager (admission bookkeeping, terminal-callback-driven
// capacity release) and streaming_ffmpeg.go's FFmpegProcess (the subprocess
// wrapper adapted in ffmpeg.go).
package scheduler

import (
	"log/slog"
	"sync"
)

// Handle is a running transcoder subprocess, the scheduler's view of
// *Process (see ffmpeg.go) kept narrow so tests can supply fakes.
type Handle interface {
	Done() <-chan struct{}
	Err() error
}

// Job is one session's admission request. OnAdmit fires synchronously right
// after the job is popped off the queue, once the scheduler's lock has been
// released and before BuildCmd runs — it must be cheap (a state transition),
// never block. BuildCmd starts the
// subprocess and returns a Handle; OnTerminal fires exactly once, with the
// subprocess's terminal error (nil on a clean exit).
type Job struct {
	SessionID  string
	OnAdmit    func()
	BuildCmd   func() (Handle, error)
	OnTerminal func(error)
}

// MaxConcurrentFunc is queried fresh on every admission decision so the
// Tuning Policy's live recomputation (§4.2) takes effect without restarting
// the scheduler.
type MaxConcurrentFunc func() int

// Scheduler is the single process-wide Transcoder Scheduler.
type Scheduler struct {
	logger        *slog.Logger
	maxConcurrent MaxConcurrentFunc

	mu          sync.Mutex
	activeCount int
	queue       []Job
}

func New(maxConcurrent MaxConcurrentFunc, logger *slog.Logger) *Scheduler {
	return &Scheduler{maxConcurrent: maxConcurrent, logger: logger}
}

// Submit enqueues a job and immediately attempts admission.
func (s *Scheduler) Submit(job Job) {
	s.mu.Lock()
	s.queue = append(s.queue, job)
	s.mu.Unlock()
	s.tryAdmit()
}

// ActiveCount reports currently running transcoder subprocesses.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeCount
}

// QueueDepth reports sessions waiting for admission.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// tryAdmit pops as many queued jobs as capacity allows, strictly FIFO.
func (s *Scheduler) tryAdmit() {
	for {
		job, ok := s.popNext()
		if !ok {
			return
		}
		s.runJob(job)
	}
}

func (s *Scheduler) popNext() (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	max := s.maxConcurrent()
	if max < 1 {
		max = 1
	}
	if s.activeCount >= max || len(s.queue) == 0 {
		return Job{}, false
	}
	job := s.queue[0]
	s.queue = s.queue[1:]
	s.activeCount++
	return job, true
}

func (s *Scheduler) runJob(job Job) {
	if job.OnAdmit != nil {
		job.OnAdmit()
	}

	handle, err := job.BuildCmd()
	if err != nil {
		s.logger.Error("transcoder failed to start", slog.String("sessionId", job.SessionID), slog.String("error", err.Error()))
		s.releaseAndTerminate(job, err)
		return
	}

	go func() {
		<-handle.Done()
		s.releaseAndTerminate(job, handle.Err())
	}()
}

func (s *Scheduler) releaseAndTerminate(job Job, terminalErr error) {
	s.mu.Lock()
	s.activeCount--
	s.mu.Unlock()

	if job.OnTerminal != nil {
		job.OnTerminal(terminalErr)
	}
	s.tryAdmit()
}
