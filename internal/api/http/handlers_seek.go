package apihttp

import (
	"encoding/json"
	"net/http"

	"streamgate/internal/domain"
	"streamgate/internal/metrics"
	"streamgate/internal/supervisor"
)

type seekRequestBody struct {
	Time    *float64 `json:"time"`
	Segment *int     `json:"segment"`
}

type seekResponse struct {
	Success                   bool    `json:"success"`
	CurrentSegment            int     `json:"currentSegment"`
	PlaybackPosition          float64 `json:"playbackPosition"`
	PlaybackPositionFormatted string  `json:"playbackPositionFormatted"`
	Message                   string  `json:"message,omitempty"`
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := pathID(r.URL.Path, "/seek/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	var body seekRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := supervisor.ApplySeek(s.registry, id, supervisor.SeekRequest{Time: body.Time, Segment: body.Segment})
	if err != nil {
		if sessErr, ok := err.(*domain.SessionError); ok && sessErr.Kind == domain.ErrOutOfRange {
			metrics.SeekRequestsTotal.WithLabelValues("out_of_range").Inc()
		} else {
			metrics.SeekRequestsTotal.WithLabelValues("bad_request").Inc()
		}
		writeSessionError(w, err)
		return
	}
	s.registry.Touch(id)
	metrics.SeekRequestsTotal.WithLabelValues("ok").Inc()

	writeJSON(w, http.StatusOK, seekResponse{
		Success:                   result.Success,
		CurrentSegment:            result.CurrentSegment,
		PlaybackPosition:          result.PlaybackPosition,
		PlaybackPositionFormatted: result.PlaybackPositionFormatted,
		Message:                   "seek applied",
	})
}

type seekInfoSegment struct {
	Index     int  `json:"index"`
	Available bool `json:"available"`
}

type seekInfoResponse struct {
	CurrentSegment   int               `json:"currentSegment"`
	PlaybackPosition float64           `json:"playbackPosition"`
	SegmentDuration  int               `json:"segmentDuration"`
	TotalSegments    int               `json:"totalSegments"`
	Window           []seekInfoSegment `json:"window"`
}

func (s *Server) handleSeekInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := pathID(r.URL.Path, "/seek-info/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	info, err := supervisor.BuildSeekInfo(s.registry, id)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	s.registry.Touch(id)

	window := make([]seekInfoSegment, 0, len(info.Window))
	for _, seg := range info.Window {
		window = append(window, seekInfoSegment{Index: seg.Index, Available: seg.Available})
	}

	writeJSON(w, http.StatusOK, seekInfoResponse{
		CurrentSegment:   info.CurrentSegment,
		PlaybackPosition: info.PlaybackPosition,
		SegmentDuration:  info.SegmentDuration,
		TotalSegments:    info.TotalSegments,
		Window:           window,
	})
}
