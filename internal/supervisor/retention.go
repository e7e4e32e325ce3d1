package supervisor

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"streamgate/internal/metrics"
)

type fileEntry struct {
	name    string
	path    string
	size    int64
	modTime int64
}

// RunRetentionPass implements §4.6's rolling-window retention protocol for
// this session's folder. It is safe to call concurrently with the
// transcoder subprocess writing new segments: only unprotected, already-
// written files are ever considered for deletion.
func (s *Supervisor) RunRetentionPass() error {
	sess, err := s.registry.Get(s.sessionID)
	if err != nil {
		return err
	}

	metrics.RetentionPassesTotal.Inc()

	entries, err := os.ReadDir(sess.Folder)
	if err != nil {
		return err
	}

	var segments, others []fileEntry
	var total int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		fe := fileEntry{
			name:    e.Name(),
			path:    filepath.Join(sess.Folder, e.Name()),
			size:    info.Size(),
			modTime: info.ModTime().UnixNano(),
		}
		total += fe.size
		if segmentFilePattern.MatchString(e.Name()) {
			segments = append(segments, fe)
		} else {
			others = append(others, fe)
		}
	}

	metrics.SessionFolderSizeBytes.Set(float64(total))

	if total <= s.maxStorageBytes {
		return nil
	}

	sort.Slice(segments, func(i, j int) bool { return segments[i].modTime < segments[j].modTime })

	protectedFrom := len(segments) - s.keepSegments
	if protectedFrom < 0 {
		protectedFrom = 0
	}
	evictable := append([]fileEntry{}, segments[:protectedFrom]...)

	sort.Slice(others, func(i, j int) bool { return others[i].modTime < others[j].modTime })
	for _, o := range others {
		if o.name == "playlist.m3u8" {
			continue
		}
		evictable = append(evictable, o)
	}

	for _, victim := range evictable {
		if total <= s.maxStorageBytes {
			break
		}
		if err := os.Remove(victim.path); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Warn("retention delete failed", slog.String("sessionId", s.sessionID), slog.String("file", victim.name), slog.String("error", err.Error()))
			}
			continue
		}
		total -= victim.size
		metrics.RetentionDeletionsTotal.Inc()
	}

	return nil
}
