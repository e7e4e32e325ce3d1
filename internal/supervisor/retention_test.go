package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"streamgate/internal/domain"
)

func writeAged(t *testing.T, dir, name string, size int, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	writeFile(t, path, makeBytes(size))
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestRetentionNoopUnderBudget(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "playlist.m3u8", 200, 0)
	writeAged(t, dir, "segment_000.ts", 1000, time.Minute)

	reg := newFakeRegistry(domain.Session{ID: "s", Folder: dir})
	s := New("s", reg, 10_000_000, 5, discardLogger())

	if err := s.RunRetentionPass(); err != nil {
		t.Fatalf("RunRetentionPass error: %v", err)
	}
	assertExists(t, dir, "playlist.m3u8", true)
	assertExists(t, dir, "segment_000.ts", true)
}

func TestRetentionEvictsOldestUnprotectedSegmentsFirst(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "playlist.m3u8", 200, 0)
	// 5 segments, 1MB each, oldest first.
	for i := 0; i < 5; i++ {
		writeAged(t, dir, segName(i), 1_000_000, time.Duration(5-i)*time.Minute)
	}

	reg := newFakeRegistry(domain.Session{ID: "s", Folder: dir})
	s := New("s", reg, 3_000_200, 2, discardLogger())

	if err := s.RunRetentionPass(); err != nil {
		t.Fatalf("RunRetentionPass error: %v", err)
	}

	assertExists(t, dir, "playlist.m3u8", true)
	// Newest 2 segments (3, 4) are protected; budget allows one more (total <=3).
	assertExists(t, dir, segName(4), true)
	assertExists(t, dir, segName(3), true)
	assertExists(t, dir, segName(0), false)
}

func TestRetentionNeverDeletesPlaylist(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "playlist.m3u8", 50_000_000, time.Hour)

	reg := newFakeRegistry(domain.Session{ID: "s", Folder: dir})
	s := New("s", reg, 1000, 5, discardLogger())

	if err := s.RunRetentionPass(); err != nil {
		t.Fatalf("RunRetentionPass error: %v", err)
	}
	assertExists(t, dir, "playlist.m3u8", true)
}

func TestRetentionEvictsOthersAfterUnprotectedSegments(t *testing.T) {
	dir := t.TempDir()
	writeAged(t, dir, "playlist.m3u8", 200, 0)
	writeAged(t, dir, "subtitle_eng.srt", 2_000_000, time.Hour)
	writeAged(t, dir, segName(0), 2_000_000, time.Minute*30)

	reg := newFakeRegistry(domain.Session{ID: "s", Folder: dir})
	s := New("s", reg, 2_000_500, 5, discardLogger())

	if err := s.RunRetentionPass(); err != nil {
		t.Fatalf("RunRetentionPass error: %v", err)
	}
	// keepSegments=5 protects the only segment; deletion falls through to others.
	assertExists(t, dir, segName(0), true)
	assertExists(t, dir, "subtitle_eng.srt", false)
}

func segName(i int) string {
	return fmt.Sprintf("segment_%03d.ts", i)
}

func assertExists(t *testing.T, dir, name string, want bool) {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, name))
	exists := err == nil
	if exists != want {
		t.Fatalf("%s exists=%v, want %v", name, exists, want)
	}
}
