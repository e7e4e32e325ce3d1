package supervisor

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"streamgate/internal/domain"
	"streamgate/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRegistry is a minimal in-memory stand-in satisfying RegistryPort.
type fakeRegistry struct {
	mu   sync.Mutex
	sess domain.Session
}

func newFakeRegistry(sess domain.Session) *fakeRegistry {
	return &fakeRegistry{sess: sess}
}

func (f *fakeRegistry) Get(id string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess, nil
}

func (f *fakeRegistry) Update(id string, mutate registry.Mutator) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutate(&f.sess)
	return f.sess, nil
}

func (f *fakeRegistry) Transition(id string, to domain.State, mutate registry.Mutator) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sess.State = to
	if mutate != nil {
		mutate(&f.sess)
	}
	return f.sess, nil
}

func TestPollReadinessWaitsForPlaylistAndSegment(t *testing.T) {
	dir := t.TempDir()
	sess := domain.Session{ID: "abc", Folder: dir, State: domain.Transcoding}
	reg := newFakeRegistry(sess)
	s := New("abc", reg, 0, 0, discardLogger())

	ready, err := s.pollReadiness()
	if err != nil {
		t.Fatalf("pollReadiness error: %v", err)
	}
	if ready {
		t.Fatal("expected not ready with no playlist")
	}

	writeFile(t, filepath.Join(dir, "playlist.m3u8"), makeBytes(200))
	ready, err = s.pollReadiness()
	if err != nil {
		t.Fatalf("pollReadiness error: %v", err)
	}
	if ready {
		t.Fatal("expected not ready with no segments")
	}

	writeFile(t, filepath.Join(dir, "segment_000.ts"), []byte("data"))
	ready, err = s.pollReadiness()
	if err != nil {
		t.Fatalf("pollReadiness error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready once playlist >100 bytes and a segment exist")
	}
	if reg.sess.State != domain.Ready {
		t.Fatalf("session state = %v, want Ready", reg.sess.State)
	}
	if reg.sess.TotalSegmentsObserved != 1 {
		t.Fatalf("TotalSegmentsObserved = %d, want 1", reg.sess.TotalSegmentsObserved)
	}
}

func TestPollReadinessRejectsTinyPlaylist(t *testing.T) {
	dir := t.TempDir()
	sess := domain.Session{ID: "abc", Folder: dir, State: domain.Transcoding}
	reg := newFakeRegistry(sess)
	s := New("abc", reg, 0, 0, discardLogger())

	writeFile(t, filepath.Join(dir, "playlist.m3u8"), []byte("#EXTM3U"))
	writeFile(t, filepath.Join(dir, "segment_000.ts"), []byte("data"))

	ready, err := s.pollReadiness()
	if err != nil {
		t.Fatalf("pollReadiness error: %v", err)
	}
	if ready {
		t.Fatal("expected not ready: playlist <= 100 bytes")
	}
}

func TestPollReadinessIsIdempotentOnceReady(t *testing.T) {
	dir := t.TempDir()
	sess := domain.Session{ID: "abc", Folder: dir, State: domain.Ready, TotalSegmentsObserved: 1}
	reg := newFakeRegistry(sess)
	s := New("abc", reg, 0, 0, discardLogger())

	writeFile(t, filepath.Join(dir, "segment_000.ts"), []byte("data"))
	writeFile(t, filepath.Join(dir, "segment_001.ts"), []byte("data"))

	ready, err := s.pollReadiness()
	if err != nil {
		t.Fatalf("pollReadiness error: %v", err)
	}
	if !ready {
		t.Fatal("expected ready to remain true")
	}
	if reg.sess.State != domain.Ready {
		t.Fatalf("state regressed from Ready to %v", reg.sess.State)
	}
	if reg.sess.TotalSegmentsObserved != 2 {
		t.Fatalf("TotalSegmentsObserved = %d, want 2 (monotonic refresh)", reg.sess.TotalSegmentsObserved)
	}
}

func makeBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'x'
	}
	return b
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
