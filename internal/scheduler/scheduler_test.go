package scheduler

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeHandle struct {
	done chan struct{}
	err  error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{done: make(chan struct{})}
}

func (f *fakeHandle) Done() <-chan struct{} { return f.done }
func (f *fakeHandle) Err() error            { return f.err }
func (f *fakeHandle) finish(err error) {
	f.err = err
	close(f.done)
}

func fixedMax(n int) MaxConcurrentFunc {
	return func() int { return n }
}

func TestAdmitsUpToMaxConcurrent(t *testing.T) {
	s := New(fixedMax(2), discardLogger())

	var mu sync.Mutex
	admitted := map[string]bool{}
	handles := map[string]*fakeHandle{}

	for _, id := range []string{"a", "b", "c"} {
		id := id
		s.Submit(Job{
			SessionID: id,
			OnAdmit: func() {
				mu.Lock()
				admitted[id] = true
				mu.Unlock()
			},
			BuildCmd: func() (Handle, error) {
				h := newFakeHandle()
				mu.Lock()
				handles[id] = h
				mu.Unlock()
				return h, nil
			},
		})
	}

	mu.Lock()
	if len(admitted) != 2 {
		t.Fatalf("admitted = %v, want exactly 2 of 3 jobs admitted", admitted)
	}
	if admitted["c"] {
		t.Fatal("third job admitted despite max_concurrent=2")
	}
	mu.Unlock()

	if s.ActiveCount() != 2 {
		t.Fatalf("ActiveCount = %d, want 2", s.ActiveCount())
	}
	if s.QueueDepth() != 1 {
		t.Fatalf("QueueDepth = %d, want 1", s.QueueDepth())
	}
}

func TestCompletionAdmitsNextInFIFOOrder(t *testing.T) {
	s := New(fixedMax(1), discardLogger())

	var mu sync.Mutex
	order := []string{}
	handles := map[string]*fakeHandle{}

	submit := func(id string) {
		s.Submit(Job{
			SessionID: id,
			OnAdmit: func() {
				mu.Lock()
				order = append(order, id)
				mu.Unlock()
			},
			BuildCmd: func() (Handle, error) {
				h := newFakeHandle()
				mu.Lock()
				handles[id] = h
				mu.Unlock()
				return h, nil
			},
		})
	}

	submit("first")
	submit("second")
	submit("third")

	mu.Lock()
	if len(order) != 1 || order[0] != "first" {
		t.Fatalf("order = %v, want [first]", order)
	}
	h := handles["first"]
	mu.Unlock()

	h.finish(nil)
	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	if order[1] != "second" {
		t.Fatalf("order = %v, want [first second ...]", order)
	}
	h2 := handles["second"]
	mu.Unlock()

	h2.finish(nil)
	waitUntil(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	})

	mu.Lock()
	if order[2] != "third" {
		t.Fatalf("order = %v, want [first second third]", order)
	}
	mu.Unlock()
}

func TestBuildCmdFailureReleasesCapacityWithoutRetry(t *testing.T) {
	s := New(fixedMax(1), discardLogger())

	var mu sync.Mutex
	var terminalErr error
	terminated := make(chan struct{})

	s.Submit(Job{
		SessionID: "broken",
		BuildCmd: func() (Handle, error) {
			return nil, errors.New("ffmpeg binary not found")
		},
		OnTerminal: func(err error) {
			mu.Lock()
			terminalErr = err
			mu.Unlock()
			close(terminated)
		},
	})

	select {
	case <-terminated:
	case <-time.After(time.Second):
		t.Fatal("OnTerminal never called")
	}

	mu.Lock()
	defer mu.Unlock()
	if terminalErr == nil {
		t.Fatal("expected terminal error to be propagated")
	}
	if s.ActiveCount() != 0 {
		t.Fatalf("ActiveCount = %d, want 0 after failed start", s.ActiveCount())
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}
