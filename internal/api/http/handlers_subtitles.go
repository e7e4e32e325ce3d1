package apihttp

import (
	"net/http"
	"path/filepath"
	"strings"

	"streamgate/internal/metrics"
)

type subtitleListResponse struct {
	Available          []subtitleAvailableEntry `json:"available"`
	Extracted          []subtitleExtractedEntry `json:"extracted"`
	LanguagesSupported []string                 `json:"languageSupported"`
}

type subtitleAvailableEntry struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Size     int64  `json:"size"`
}

type subtitleExtractedEntry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language,omitempty"`
	Size     int64  `json:"size"`
}

// handleSubtitlesList serves GET /subtitles-list/:id: the subtitle side-files
// the Source Adapter detected, plus whichever of them the Source Adapter has
// already copied into the session folder (§4.4).
func (s *Server) handleSubtitlesList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := pathID(r.URL.Path, "/subtitles-list/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.registry.Touch(id)

	resp := subtitleListResponse{
		Available: make([]subtitleAvailableEntry, 0, len(sess.SubtitlesDetected)),
		Extracted: make([]subtitleExtractedEntry, 0, len(sess.SubtitlesExtracted)),
	}
	langs := make(map[string]bool)
	for _, d := range sess.SubtitlesDetected {
		resp.Available = append(resp.Available, subtitleAvailableEntry{Name: d.Name, Language: d.Language, Size: d.Size})
		if d.Language != "" {
			langs[d.Language] = true
		}
	}
	for _, e := range sess.SubtitlesExtracted {
		resp.Extracted = append(resp.Extracted, subtitleExtractedEntry{
			Name: e.Name, URL: "/subtitles/" + id + "/" + e.Name, Language: e.Language, Size: e.Size,
		})
		if e.Language != "" {
			langs[e.Language] = true
		}
	}
	for lang := range langs {
		resp.LanguagesSupported = append(resp.LanguagesSupported, lang)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleSubtitleFile serves GET /subtitles/:id/:filename, reading the
// extracted subtitle straight out of the session folder.
func (s *Server) handleSubtitleFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/subtitles/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		http.NotFound(w, r)
		return
	}
	id, name := parts[0], parts[1]

	sess, err := s.registry.Get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.registry.Touch(id)

	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		metrics.SubtitleExtractionsTotal.WithLabelValues("failed").Inc()
		writeError(w, http.StatusForbidden, "invalid subtitle filename")
		return
	}

	found := false
	for _, e := range sess.SubtitlesExtracted {
		if e.Name == name {
			found = true
			break
		}
	}
	if !found {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	http.ServeFile(w, r, filepath.Join(sess.Folder, name))
}
