// Package app holds top-level wiring that does not belong to any single
// component: environment configuration (config.go) and the session
// orchestrator below, which drives a session through Resolving, Queued,
// Transcoding and Ready by calling into the Source Adapter, Transcoder
// Scheduler and Output Supervisor packages. Grounded on the teacher's
// internal/usecase package (one use case per lifecycle action), collapsed
// here into a single orchestrator since the new domain has one lifecycle
// instead of a dozen independent torrent use cases.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"streamgate/internal/domain"
	"streamgate/internal/metrics"
	"streamgate/internal/registry"
	"streamgate/internal/resourceprobe"
	"streamgate/internal/scheduler"
	"streamgate/internal/source"
	"streamgate/internal/supervisor"
	"streamgate/internal/tuning"
)

// MediaProber is the subset of ffprobe.Prober the orchestrator needs,
// narrowed so tests can supply a fake.
type MediaProber interface {
	Probe(ctx context.Context, filePath string) (domain.MediaInfo, error)
	ProbeReader(ctx context.Context, reader io.Reader) (domain.MediaInfo, error)
}

// TuningOverrides carries the environment's MAX_CONCURRENT_FFMPEG and
// FFMPEG_THREADS; zero means "let the Tuning Policy compute it" (§4.2).
type TuningOverrides struct {
	MaxConcurrent int
	Threads       int
}

// Orchestrator drives a session from creation through transcoding,
// delegating to the Source Adapter (C4), Transcoder Scheduler (C5) and
// Output Supervisor (C6) at each stage. It is the only piece of the system
// that knows the full lifecycle; every other package only knows its own
// stage.
type Orchestrator struct {
	registry  *registry.Registry
	sched     *scheduler.Scheduler
	probe     *resourceprobe.Probe
	torrent   source.Adapter
	url       source.Adapter
	prober    MediaProber
	tuningCfg tuning.Config
	overrides TuningOverrides

	ffmpegPath      string
	keepSegments    int
	maxStorageBytes int64
	logger          *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewOrchestrator(
	reg *registry.Registry,
	sched *scheduler.Scheduler,
	probe *resourceprobe.Probe,
	torrentAdapter, urlAdapter source.Adapter,
	prober MediaProber,
	tuningCfg tuning.Config,
	overrides TuningOverrides,
	ffmpegPath string,
	maxStorageBytes int64,
	keepSegments int,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:        reg,
		sched:           sched,
		probe:           probe,
		torrent:         torrentAdapter,
		url:             urlAdapter,
		prober:          prober,
		tuningCfg:       tuningCfg,
		overrides:       overrides,
		ffmpegPath:      ffmpegPath,
		maxStorageBytes: maxStorageBytes,
		keepSegments:    keepSegments,
		logger:          logger,
		cancels:         make(map[string]context.CancelFunc),
	}
}

// MaxConcurrent implements scheduler.MaxConcurrentFunc: queried fresh on
// every admission decision so a live Tuning Policy recomputation takes
// effect without restarting the scheduler.
func (o *Orchestrator) MaxConcurrent() int {
	if o.overrides.MaxConcurrent > 0 {
		return o.overrides.MaxConcurrent
	}
	snap := o.probe.Snapshot()
	params := tuning.Derive(snap.MemoryMB, snap.CPUCount, len(o.registry.ListActive()), o.tuningCfg)
	return params.MaxConcurrent
}

func (o *Orchestrator) threadsPerTranscoder() int {
	if o.overrides.Threads > 0 {
		return o.overrides.Threads
	}
	snap := o.probe.Snapshot()
	return tuning.Derive(snap.MemoryMB, snap.CPUCount, len(o.registry.ListActive()), o.tuningCfg).ThreadsPerTranscoder
}

func (o *Orchestrator) segmentDuration() int {
	snap := o.probe.Snapshot()
	return tuning.Derive(snap.MemoryMB, snap.CPUCount, len(o.registry.ListActive()), o.tuningCfg).SegmentDurationSecs
}

// StartSession creates a new session and kicks off resolution in the
// background; it returns as soon as the record exists in state Resolving.
func (o *Orchestrator) StartSession(parent context.Context, kind domain.SourceKind, sourceRef string) (domain.Session, error) {
	sess, err := o.registry.Create(kind)
	if err != nil {
		return domain.Session{}, err
	}

	ctx, cancel := context.WithCancel(parent)
	o.mu.Lock()
	o.cancels[sess.ID] = cancel
	o.mu.Unlock()

	sess, err = o.registry.Transition(sess.ID, domain.Resolving, nil)
	if err != nil {
		cancel()
		return domain.Session{}, err
	}

	go o.resolveAndRun(ctx, sess.ID, kind, sourceRef)

	return sess, nil
}

func (o *Orchestrator) resolveAndRun(ctx context.Context, id string, kind domain.SourceKind, sourceRef string) {
	sess, err := o.registry.Get(id)
	if err != nil {
		return
	}

	adapter := o.url
	if kind == domain.SourceTorrent {
		adapter = o.torrent
	}

	result, err := adapter.Resolve(ctx, sourceRef, sess.Folder)
	if err != nil {
		o.fail(id, err)
		return
	}

	mediaInfo, err := o.probeMedia(ctx, kind, sess.Folder, result)
	if err != nil {
		o.fail(id, err)
		return
	}

	copyMux := result.ContainerExt == ".mp4" || mediaInfo.HasH264Video()
	segDur := o.segmentDuration()
	threads := o.threadsPerTranscoder()

	sess, err = o.registry.Transition(id, domain.Queued, func(s *domain.Session) {
		sf := result.File
		s.SourceFile = &sf
		s.SubtitlesDetected = result.SubtitlesDetected
		s.SubtitlesExtracted = result.SubtitlesExtracted
		s.MediaInfo = &mediaInfo
		s.SegmentDurationSeconds = segDur
	})
	if err != nil {
		o.logger.Error("queue transition failed", slog.String("id", id), slog.String("error", err.Error()))
		return
	}

	o.submitTranscode(ctx, id, kind, sess.Folder, result, copyMux, segDur, threads)
}

// probeMedia probes the selected file: the torrent variant has no file on
// disk, so it probes a read-ahead window of the live byte-stream; the URL
// variant probes the staged file directly.
func (o *Orchestrator) probeMedia(ctx context.Context, kind domain.SourceKind, folder string, result source.ResolveResult) (domain.MediaInfo, error) {
	if kind == domain.SourceTorrent {
		probeLen := result.File.LengthBytes
		const probeWindow = 32 << 20
		if probeLen > probeWindow {
			probeLen = probeWindow
		}
		if probeLen <= 0 {
			return domain.MediaInfo{}, fmt.Errorf("source file is empty")
		}
		r, err := result.File.OpenRange(0, probeLen-1)
		if err != nil {
			return domain.MediaInfo{}, err
		}
		defer r.Close()
		return o.prober.ProbeReader(ctx, r)
	}

	path := filepath.Join(folder, result.File.Name)
	return o.prober.Probe(ctx, path)
}

func (o *Orchestrator) submitTranscode(ctx context.Context, id string, kind domain.SourceKind, folder string, result source.ResolveResult, copyMux bool, segDur, threads int) {
	job := scheduler.Job{
		SessionID: id,
		OnAdmit: func() {
			if _, err := o.registry.Transition(id, domain.Transcoding, nil); err != nil {
				o.logger.Error("transcoding transition failed", slog.String("id", id), slog.String("error", err.Error()))
				return
			}
			sv := supervisor.New(id, o.registry, o.maxStorageBytes, o.keepSegments, o.logger)
			go sv.Run(ctx)
		},
		BuildCmd: func() (scheduler.Handle, error) {
			return o.startFFmpeg(ctx, kind, folder, result, copyMux, segDur, threads)
		},
		OnTerminal: func(err error) {
			if err != nil {
				o.registry.Fail(id, domain.NewSessionError(domain.ErrTranscoderError, err.Error()))
				metrics.TranscoderFailuresTotal.Inc()
			}
		},
	}
	o.sched.Submit(job)
}

func (o *Orchestrator) startFFmpeg(ctx context.Context, kind domain.SourceKind, folder string, result source.ResolveResult, copyMux bool, segDur, threads int) (scheduler.Handle, error) {
	var stdin io.ReadCloser
	input := filepath.Join(folder, result.File.Name)
	usePipe := kind == domain.SourceTorrent
	if usePipe {
		r, err := result.File.OpenRange(0, result.File.LengthBytes-1)
		if err != nil {
			return nil, err
		}
		stdin = r
		input = "pipe:0"
	}

	args := scheduler.BuildArgs(scheduler.ArgsConfig{
		FFmpegPath:      o.ffmpegPath,
		Input:           input,
		SegmentDuration: segDur,
		Threads:         threads,
		CopyMux:         copyMux,
		UsePipe:         usePipe,
	})

	proc := scheduler.NewProcess(ctx, o.ffmpegPath, args, folder, stdin)
	if err := proc.Start(); err != nil {
		return nil, err
	}

	mode := "baseline"
	if copyMux {
		mode = "copy"
	}
	metrics.TranscoderStartsTotal.WithLabelValues(mode).Inc()

	return proc, nil
}

func (o *Orchestrator) fail(id string, err error) {
	if sessErr, ok := err.(*domain.SessionError); ok {
		o.registry.Fail(id, sessErr)
		return
	}
	o.registry.Fail(id, domain.NewSessionError(domain.ErrStorageError, err.Error()))
}

// CloseSession cancels the session's context (stopping its supervisor and
// any in-flight ffmpeg subprocess via ctx cancellation) and tears it down
// in the registry.
func (o *Orchestrator) CloseSession(id string) (domain.Session, error) {
	o.mu.Lock()
	cancel, ok := o.cancels[id]
	if ok {
		delete(o.cancels, id)
	}
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return o.registry.Close(id, true)
}

// RunIdleReaper closes sessions untouched for longer than idleTimeout,
// polling every minute. Sessions actively Transcoding or Queued are never
// considered idle, even without a recent client request.
func (o *Orchestrator) RunIdleReaper(ctx context.Context, idleTimeout time.Duration) {
	if idleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idleTimeout)
			for _, id := range o.registry.ListIdleSince(cutoff) {
				o.logger.Info("closing idle session", slog.String("id", id))
				if _, err := o.CloseSession(id); err != nil {
					o.logger.Warn("idle session close failed", slog.String("id", id), slog.String("error", err.Error()))
				}
			}
		}
	}
}
