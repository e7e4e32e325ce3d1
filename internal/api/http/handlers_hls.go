package apihttp

import (
	"net/http"
	"path/filepath"
	"strings"
)

// handleHLS serves the playlist and segment files straight out of a
// session's folder: GET /hls/:id/playlist.m3u8 or /hls/:id/segment_NNN.ts.
// Files are produced and evicted by the Transcoder Scheduler and Output
// Supervisor respectively; this handler is a pure reader, per §5's
// writer/deleter/reader split.
func (s *Server) handleHLS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/hls/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	id, name := parts[0], parts[1]

	sess, err := s.registry.Get(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	s.registry.Touch(id)

	// Reject any path component that could escape the session folder.
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		writeError(w, http.StatusForbidden, "invalid segment name")
		return
	}

	path := filepath.Join(sess.Folder, name)
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".m3u8":
		w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	case ".ts":
		w.Header().Set("Content-Type", "video/mp2t")
	default:
		w.Header().Set("Content-Type", fallbackContentType(ext))
	}
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	http.ServeFile(w, r, path)
}
