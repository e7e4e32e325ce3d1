package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/anacrolix/torrent"

	"streamgate/internal/domain"
)

// addMagnetTimeout bounds how long we wait for the anacrolix client to
// accept a magnet link; AddMagnet can block on an internal client mutex
// when the client is already busy resolving another torrent's metadata.
// Grounded on the teacher's anacrolix/engine.go Open().
const addMagnetTimeout = 10 * time.Second

// metadataWaitTimeout bounds how long we wait for torrent metadata before
// giving up on a zero-peer magnet link.
const metadataWaitTimeout = 5 * time.Minute

// TorrentAdapter resolves a magnet URI directly against a live anacrolix
// client: the selected file is never staged to disk, its bytes are read
// straight off the torrent's piece store as they arrive.
type TorrentAdapter struct {
	client *torrent.Client
	logger *slog.Logger
}

func NewTorrentAdapter(client *torrent.Client, logger *slog.Logger) *TorrentAdapter {
	return &TorrentAdapter{client: client, logger: logger}
}

func (a *TorrentAdapter) Resolve(ctx context.Context, magnet string, folder string) (ResolveResult, error) {
	t, err := a.addMagnet(ctx, magnet)
	if err != nil {
		return ResolveResult{}, domain.NewSessionError(domain.ErrTorrentError, err.Error())
	}

	select {
	case <-t.GotInfo():
	case <-time.After(metadataWaitTimeout):
		t.Drop()
		return ResolveResult{}, domain.NewSessionError(domain.ErrTorrentError, "timed out waiting for torrent metadata")
	case <-ctx.Done():
		t.Drop()
		return ResolveResult{}, ctx.Err()
	}

	files := t.Files()
	videoIdx := -1
	for i, f := range files {
		if isVideoExt(filepath.Ext(f.Path())) {
			videoIdx = i
			break
		}
	}
	if videoIdx < 0 {
		return ResolveResult{}, domain.NewSessionError(domain.ErrNoPlayableFile, "no mp4/mkv/webm/mov/avi/flv file found in torrent")
	}
	selected := files[videoIdx]
	ext := strings.ToLower(filepath.Ext(selected.Path()))

	detected, extracted := a.handleSubtitles(files, folder)

	sourceFile := domain.SourceFile{
		Name:        filepath.Base(selected.Path()),
		LengthBytes: selected.Length(),
		OpenRange: func(start, end int64) (io.ReadCloser, error) {
			return newTorrentRangeReader(selected, start, end)
		},
	}

	return ResolveResult{
		File:               sourceFile,
		SubtitlesDetected:  detected,
		SubtitlesExtracted: extracted,
		ContainerExt:       ext,
	}, nil
}

func (a *TorrentAdapter) addMagnet(ctx context.Context, magnet string) (*torrent.Torrent, error) {
	if a.client == nil {
		return nil, errors.New("torrent client not configured")
	}
	type result struct {
		t   *torrent.Torrent
		err error
	}
	ch := make(chan result, 1)
	go func() {
		t, err := a.client.AddMagnet(magnet)
		ch <- result{t, err}
	}()

	select {
	case res := <-ch:
		return res.t, res.err
	case <-time.After(addMagnetTimeout):
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, errors.New("torrent client busy, try again later")
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.t != nil {
				res.t.Drop()
			}
		}()
		return nil, ctx.Err()
	}
}

// handleSubtitles scans all torrent files for subtitle side-files, infers
// their language, and extracts each concurrently to folder. Extraction
// failures are logged, never fatal — per the component spec, a subtitle
// that fails to extract just doesn't show up in subtitles_extracted.
func (a *TorrentAdapter) handleSubtitles(files []*torrent.File, folder string) ([]domain.DetectedSubtitle, []domain.ExtractedSubtitle) {
	var detected []domain.DetectedSubtitle
	type job struct {
		file *torrent.File
		lang string
		ext  string
	}
	var jobs []job

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Path()))
		if !isSubtitleExt(ext) {
			continue
		}
		name := filepath.Base(f.Path())
		lang := detectLanguage(name)
		detected = append(detected, domain.DetectedSubtitle{
			Name:     name,
			Ext:      ext,
			Size:     f.Length(),
			Language: lang,
		})
		jobs = append(jobs, job{file: f, lang: lang, ext: ext})
	}

	if len(jobs) == 0 {
		return detected, nil
	}

	var mu sync.Mutex
	var extracted []domain.ExtractedSubtitle
	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			ex, err := a.extractSubtitle(j.file, folder, j.lang, j.ext)
			if err != nil {
				a.logger.Warn("subtitle extraction failed",
					slog.String("file", j.file.Path()), slog.String("error", err.Error()))
				return
			}
			mu.Lock()
			extracted = append(extracted, ex)
			mu.Unlock()
		}(j)
	}
	wg.Wait()
	return detected, extracted
}

func (a *TorrentAdapter) extractSubtitle(f *torrent.File, folder, lang, ext string) (domain.ExtractedSubtitle, error) {
	destName := fmt.Sprintf("subtitle_%s%s", lang, ext)
	destPath := filepath.Join(folder, destName)

	reader := f.NewReader()
	defer reader.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return domain.ExtractedSubtitle{}, err
	}
	defer out.Close()

	n, err := io.Copy(out, reader)
	if err != nil {
		return domain.ExtractedSubtitle{}, err
	}

	return domain.ExtractedSubtitle{
		Name:     destName,
		Path:     destPath,
		Language: lang,
		Ext:      ext,
		Size:     n,
	}, nil
}

// torrentRangeReader adapts a torrent.Reader (io.ReadSeekCloser over the
// whole file) into an io.ReadCloser bounded to [start, end] inclusive, the
// shape the byte-range HTTP handler expects.
type torrentRangeReader struct {
	r        *torrent.Reader
	remaining int64
}

func newTorrentRangeReader(f *torrent.File, start, end int64) (io.ReadCloser, error) {
	r := f.NewReader()
	r.SetReadahead(readaheadBytes)
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		r.Close()
		return nil, err
	}
	return &torrentRangeReader{r: r, remaining: end - start + 1}, nil
}

// readaheadBytes tells anacrolix how far ahead of the read cursor to
// prioritize piece downloads; sized for sustained HLS segment production
// rather than the library's small interactive-seek default.
const readaheadBytes = 8 << 20

func (t *torrentRangeReader) Read(p []byte) (int, error) {
	if t.remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > t.remaining {
		p = p[:t.remaining]
	}
	n, err := t.r.Read(p)
	t.remaining -= int64(n)
	return n, err
}

func (t *torrentRangeReader) Close() error {
	return t.r.Close()
}
