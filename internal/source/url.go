package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"streamgate/internal/domain"
)

// URLAdapter resolves a plain URL by handing it to a downloader subprocess
// (yt-dlp by convention) that stages the complete file into the session
// folder. Unlike the torrent variant, the file is fully materialized on
// disk before it becomes playable.
type URLAdapter struct {
	binary string
}

func NewURLAdapter(binary string) *URLAdapter {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "yt-dlp"
	}
	return &URLAdapter{binary: bin}
}

func (a *URLAdapter) Resolve(ctx context.Context, url string, folder string) (ResolveResult, error) {
	outputTemplate := filepath.Join(folder, "%(title)s.%(ext)s")
	cmd := exec.CommandContext(ctx, a.binary, "-f", "best", "-o", outputTemplate, url)

	if err := cmd.Run(); err != nil {
		if _, lookErr := exec.LookPath(a.binary); lookErr != nil {
			return ResolveResult{}, domain.NewSessionError(domain.ErrExternalToolMissing, fmt.Sprintf("%s not found: %v", a.binary, lookErr))
		}
		return ResolveResult{}, domain.NewSessionError(domain.ErrExternalToolFailed, fmt.Sprintf("%s exited with error: %v", a.binary, err))
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		return ResolveResult{}, domain.NewSessionError(domain.ErrStorageError, "reading download folder: "+err.Error())
	}

	var selected string
	var detected []domain.DetectedSubtitle
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		switch {
		case selected == "" && isVideoExt(ext):
			selected = e.Name()
		case isSubtitleExt(ext):
			info, statErr := e.Info()
			var size int64
			if statErr == nil {
				size = info.Size()
			}
			detected = append(detected, domain.DetectedSubtitle{
				Name:     e.Name(),
				Ext:      ext,
				Size:     size,
				Language: detectLanguage(e.Name()),
			})
		}
	}

	if selected == "" {
		return ResolveResult{}, domain.NewSessionError(domain.ErrNoPlayableFile, "downloader produced no playable file")
	}

	path := filepath.Join(folder, selected)
	stat, err := os.Stat(path)
	if err != nil {
		return ResolveResult{}, domain.NewSessionError(domain.ErrStorageError, "stat downloaded file: "+err.Error())
	}

	sourceFile := domain.SourceFile{
		Name:        selected,
		LengthBytes: stat.Size(),
		OpenRange: func(start, end int64) (io.ReadCloser, error) {
			return newFileRangeReader(path, start, end)
		},
	}

	return ResolveResult{
		File:               sourceFile,
		SubtitlesDetected:  detected,
		SubtitlesExtracted: nil,
		ContainerExt:       strings.ToLower(filepath.Ext(selected)),
	}, nil
}

// fileRangeReader bounds reads of a staged on-disk file to [start, end].
type fileRangeReader struct {
	f         *os.File
	remaining int64
}

func newFileRangeReader(path string, start, end int64) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	return &fileRangeReader{f: f, remaining: end - start + 1}, nil
}

func (r *fileRangeReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > r.remaining {
		p = p[:r.remaining]
	}
	n, err := r.f.Read(p)
	r.remaining -= int64(n)
	return n, err
}

func (r *fileRangeReader) Close() error {
	return r.f.Close()
}
