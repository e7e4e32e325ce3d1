package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"streamgate/internal/domain"
	"streamgate/internal/registry"
	"streamgate/internal/resourceprobe"
	"streamgate/internal/scheduler"
	"streamgate/internal/source"
	"streamgate/internal/tuning"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAdapter is a source.Adapter test double returning a canned result or
// error without touching a real torrent client or subprocess.
type fakeAdapter struct {
	result source.ResolveResult
	err    error
}

func (f *fakeAdapter) Resolve(ctx context.Context, src, folder string) (source.ResolveResult, error) {
	return f.result, f.err
}

// fakeProber is an app.MediaProber test double.
type fakeProber struct {
	info domain.MediaInfo
	err  error
}

func (f *fakeProber) Probe(ctx context.Context, filePath string) (domain.MediaInfo, error) {
	return f.info, f.err
}

func (f *fakeProber) ProbeReader(ctx context.Context, reader io.Reader) (domain.MediaInfo, error) {
	_, _ = io.Copy(io.Discard, reader)
	return f.info, f.err
}

func newTestOrchestrator(t *testing.T, torrentAdapter, urlAdapter source.Adapter, prober MediaProber, ffmpegPath string) (*Orchestrator, *registry.Registry, *scheduler.Scheduler) {
	t.Helper()
	logger := testLogger()
	reg := registry.New(t.TempDir(), logger)
	probe := resourceprobe.New(time.Hour, logger)
	sched := scheduler.New(func() int { return 4 }, logger)

	orch := NewOrchestrator(
		reg, sched, probe,
		torrentAdapter, urlAdapter, prober,
		tuning.Config{},
		TuningOverrides{MaxConcurrent: 4, Threads: 1},
		ffmpegPath,
		1<<30, 5,
		logger,
	)
	return orch, reg, sched
}

func TestMaxConcurrentUsesOverrideBeforeProbe(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t, &fakeAdapter{}, &fakeAdapter{}, &fakeProber{}, "true")
	if got := orch.MaxConcurrent(); got != 4 {
		t.Errorf("MaxConcurrent() = %d, want 4 (override)", got)
	}
}

func TestMaxConcurrentDerivesFromProbeWithoutOverride(t *testing.T) {
	logger := testLogger()
	reg := registry.New(t.TempDir(), logger)
	probe := resourceprobe.New(time.Hour, logger)
	sched := scheduler.New(func() int { return 1 }, logger)

	orch := NewOrchestrator(
		reg, sched, probe,
		&fakeAdapter{}, &fakeAdapter{}, &fakeProber{},
		tuning.Config{}, TuningOverrides{}, // no override
		"true", 1<<30, 5, logger,
	)

	if got := orch.MaxConcurrent(); got < 1 {
		t.Errorf("MaxConcurrent() = %d, want >= 1", got)
	}
}

func TestStartSessionAdapterFailureMarksSessionFailed(t *testing.T) {
	adapterErr := domain.NewSessionError(domain.ErrTorrentError, "boom")
	orch, reg, _ := newTestOrchestrator(t, &fakeAdapter{err: adapterErr}, &fakeAdapter{}, &fakeProber{}, "true")

	sess, err := orch.StartSession(context.Background(), domain.SourceTorrent, "magnet:?xt=urn:btih:deadbeef")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	sess = waitForState(t, reg, sess.ID, domain.Failed, time.Second)
	if sess.Error == nil {
		t.Fatal("expected session.Error to be set after adapter failure")
	}
	if sess.Error.Kind != domain.ErrTorrentError {
		t.Errorf("session error kind = %v, want %v", sess.Error.Kind, domain.ErrTorrentError)
	}
}

func TestStartSessionReachesTranscodingOnSuccess(t *testing.T) {
	result := source.ResolveResult{
		File: domain.SourceFile{
			Name:        "movie.mp4",
			LengthBytes: 100,
			OpenRange: func(start, end int64) (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader("data")), nil
			},
		},
		ContainerExt: ".mp4",
	}
	prober := &fakeProber{info: domain.MediaInfo{Duration: 120}}
	orch, reg, _ := newTestOrchestrator(t, &fakeAdapter{result: result}, &fakeAdapter{result: result}, prober, "true")

	sess, err := orch.StartSession(context.Background(), domain.SourceURL, "https://example.com/video")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	sess = waitForAnyState(t, reg, sess.ID, []domain.State{domain.Transcoding, domain.Ready}, 2*time.Second)
	if sess.SourceFile == nil || sess.SourceFile.Name != "movie.mp4" {
		t.Errorf("session.SourceFile = %+v, want movie.mp4", sess.SourceFile)
	}
	if sess.MediaInfo == nil || sess.MediaInfo.Duration != 120 {
		t.Errorf("session.MediaInfo = %+v, want Duration=120", sess.MediaInfo)
	}
}

func TestCloseSessionCancelsAndRemoves(t *testing.T) {
	orch, reg, _ := newTestOrchestrator(t, &fakeAdapter{err: errors.New("never resolves")}, &fakeAdapter{}, &fakeProber{}, "true")

	sess, err := orch.StartSession(context.Background(), domain.SourceTorrent, "magnet:?xt=urn:btih:deadbeef")
	if err != nil {
		t.Fatalf("StartSession() error = %v", err)
	}

	if _, err := orch.CloseSession(sess.ID); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}

	if _, err := reg.Get(sess.ID); err == nil {
		t.Error("expected session to be gone from registry after CloseSession")
	}
}

func waitForState(t *testing.T, reg *registry.Registry, id string, want domain.State, timeout time.Duration) domain.Session {
	return waitForAnyState(t, reg, id, []domain.State{want}, timeout)
}

func waitForAnyState(t *testing.T, reg *registry.Registry, id string, want []domain.State, timeout time.Duration) domain.Session {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		sess, err := reg.Get(id)
		if err != nil {
			t.Fatalf("registry.Get(%q) error = %v", id, err)
		}
		for _, w := range want {
			if sess.State == w {
				return sess
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("session %q did not reach state %v within %v, last state %v", id, want, timeout, sess.State)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
