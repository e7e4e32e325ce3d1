package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"streamgate/internal/domain"
)

func TestURLAdapterSelectsFirstVideoAndDetectsSubtitles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "irrelevant")
	writeFile(t, filepath.Join(dir, "Movie.English.srt"), "1\n00:00:00,000 --> 00:00:01,000\nhi\n")
	writeFile(t, filepath.Join(dir, "Movie.mkv"), "fake video bytes")

	a := NewURLAdapter("/bin/true") // exits 0 without touching dir; folder is pre-populated by the test
	res, err := a.Resolve(context.Background(), "http://example.invalid/video", dir)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.File.Name != "Movie.mkv" {
		t.Errorf("selected file = %q, want Movie.mkv", res.File.Name)
	}
	if res.ContainerExt != ".mkv" {
		t.Errorf("ContainerExt = %q, want .mkv", res.ContainerExt)
	}
	if len(res.SubtitlesDetected) != 1 || res.SubtitlesDetected[0].Language != "eng" {
		t.Fatalf("SubtitlesDetected = %+v, want one eng subtitle", res.SubtitlesDetected)
	}
}

func TestURLAdapterNoPlayableFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "readme.txt"), "no video here")

	a := NewURLAdapter("/bin/true")
	_, err := a.Resolve(context.Background(), "http://example.invalid/video", dir)
	sessErr, ok := err.(*domain.SessionError)
	if !ok {
		t.Fatalf("err = %v, want *domain.SessionError", err)
	}
	if sessErr.Kind != domain.ErrNoPlayableFile {
		t.Errorf("Kind = %s, want NoPlayableFile", sessErr.Kind)
	}
}

func TestURLAdapterMissingBinary(t *testing.T) {
	a := NewURLAdapter("/nonexistent/path/to/yt-dlp")
	_, err := a.Resolve(context.Background(), "http://example.invalid/video", t.TempDir())
	sessErr, ok := err.(*domain.SessionError)
	if !ok {
		t.Fatalf("err = %v, want *domain.SessionError", err)
	}
	if sessErr.Kind != domain.ErrExternalToolMissing {
		t.Errorf("Kind = %s, want ExternalToolMissing", sessErr.Kind)
	}
}

func TestFileRangeReaderBoundsToRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	writeFile(t, path, "0123456789")

	r, err := newFileRangeReader(path, 2, 5)
	if err != nil {
		t.Fatalf("newFileRangeReader: %v", err)
	}
	defer r.Close()

	buf := make([]byte, 100)
	n, err := r.Read(buf)
	if err != nil && n == 0 {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "2345" {
		t.Errorf("got %q, want \"2345\"", buf[:n])
	}

	n2, err := r.Read(buf)
	if n2 != 0 || err == nil {
		t.Errorf("expected EOF after range exhausted, got n=%d err=%v", n2, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}
