package apihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"streamgate/internal/domain"
	"streamgate/internal/metrics"
)

type createStreamRequest struct {
	Magnet string `json:"magnet"`
}

type createStreamYTRequest struct {
	URL string `json:"url"`
}

type createStreamResponse struct {
	StreamID  string `json:"stream_id"`
	HLSURL    string `json:"hls_url"`
	MP4URL    string `json:"mp4_url"`
	StatusURL string `json:"status_url"`
}

func (s *Server) handleStreamCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body createStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	magnet := strings.TrimSpace(body.Magnet)
	if magnet == "" {
		writeError(w, http.StatusBadRequest, "magnet is required")
		return
	}
	s.createSession(w, r, domain.SourceTorrent, magnet)
}

func (s *Server) handleStreamYTCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var body createStreamYTRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	url := strings.TrimSpace(body.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	s.createSession(w, r, domain.SourceURL, url)
}

// createSession starts the session in the background (it returns as soon as
// the record exists in Resolving) and hands the client a set of URLs to
// poll; the HTTP request itself never waits on resolution or transcoding.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request, kind domain.SourceKind, source string) {
	// Detached from the request context: the session must outlive this
	// single HTTP request, cancelled only on explicit teardown or process
	// shutdown.
	sess, err := s.orchestrator.StartSession(context.Background(), kind, source)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	metrics.ActiveSessions.Inc()

	writeJSON(w, http.StatusOK, createStreamResponse{
		StreamID:  sess.ID,
		HLSURL:    fmt.Sprintf("/hls/%s/playlist.m3u8", sess.ID),
		MP4URL:    fmt.Sprintf("/stream/%s", sess.ID),
		StatusURL: fmt.Sprintf("/status/%s", sess.ID),
	})
}

type statusSeekControl struct {
	CurrentPosition       float64 `json:"currentPosition"`
	CurrentSegment        int     `json:"currentSegment"`
	TotalSegments         int     `json:"totalSegments"`
	SegmentDuration       int     `json:"segmentDuration"`
	SupportRangeRequests  bool    `json:"supportRangeRequests"`
	CanSeek               bool    `json:"canSeek"`
}

type statusMediaInfo struct {
	Duration          float64 `json:"duration"`
	DurationFormatted string  `json:"durationFormatted"`
}

type statusResponse struct {
	Ready              bool                          `json:"ready"`
	Folder             string                        `json:"folder"`
	File               string                        `json:"file,omitempty"`
	Error              string                        `json:"error,omitempty"`
	CreatedAt          time.Time                     `json:"createdAt"`
	ElapsedSeconds     float64                       `json:"elapsedSeconds"`
	TorrentName        string                        `json:"torrentName,omitempty"`
	TorrentHash        string                        `json:"torrentHash,omitempty"`
	NumPeers           int                           `json:"numPeers,omitempty"`
	Progress           float64                       `json:"progress"`
	DownloadSpeed      int64                         `json:"downloadSpeed"`
	Ratio              float64                       `json:"ratio"`
	HLSReadyAt         *time.Time                    `json:"hlsReadyAt,omitempty"`
	MediaInfo          *statusMediaInfo              `json:"mediaInfo,omitempty"`
	AvailableSubtitles []domain.DetectedSubtitle     `json:"availableSubtitles"`
	ExtractedSubtitles []domain.ExtractedSubtitle    `json:"extractedSubtitles"`
	SeekControl        statusSeekControl             `json:"seekControl"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := pathID(r.URL.Path, "/status/")
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

	resp := statusResponse{
		Ready:              sess.State == domain.Ready,
		Folder:             sess.Folder,
		CreatedAt:          sess.CreatedAt,
		ElapsedSeconds:     time.Since(sess.CreatedAt).Seconds(),
		TorrentName:        sess.TorrentName,
		TorrentHash:        sess.TorrentHash,
		NumPeers:           sess.NumPeers,
		Progress:           roundTo(sess.Progress, 2),
		DownloadSpeed:      sess.DownloadSpeed,
		Ratio:              sess.Ratio,
		AvailableSubtitles: sess.SubtitlesDetected,
		ExtractedSubtitles: sess.SubtitlesExtracted,
		SeekControl: statusSeekControl{
			CurrentPosition:      sess.PlaybackPositionSeconds,
			CurrentSegment:       sess.CurrentSegment,
			TotalSegments:        sess.TotalSegmentsObserved,
			SegmentDuration:      sess.SegmentDurationSeconds,
			SupportRangeRequests: true,
			CanSeek:              sess.TotalSegmentsObserved > 0,
		},
	}
	if sess.SourceFile != nil {
		resp.File = sess.SourceFile.Name
	}
	if sess.Error != nil {
		resp.Error = sess.Error.Error()
	}
	if !sess.PlaylistReadyAt.IsZero() {
		t := sess.PlaylistReadyAt
		resp.HLSReadyAt = &t
	}
	if sess.MediaInfo != nil {
		resp.MediaInfo = &statusMediaInfo{
			Duration:          sess.MediaInfo.Duration,
			DurationFormatted: sess.MediaInfo.DurationFormatted(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func roundTo(v float64, decimals int) float64 {
	scale := 1.0
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	return float64(int64(v*scale+0.5)) / scale
}

// handleStreamByID serves either a byte-range read of the source file
// (GET) or the explicit teardown hook (DELETE) on the same route, per §6.
func (s *Server) handleStreamByID(w http.ResponseWriter, r *http.Request) {
	id := pathID(r.URL.Path, "/stream/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.handleStreamRange(w, r, id)
	case http.MethodDelete:
		s.handleStreamDelete(w, r, id)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStreamDelete(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := s.orchestrator.CloseSession(id); err != nil {
		writeSessionError(w, err)
		return
	}
	metrics.ActiveSessions.Dec()
	writeJSON(w, http.StatusOK, map[string]bool{"closed": true})
}
