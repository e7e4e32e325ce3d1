package apihttp

import (
	"net/http"
	"os/exec"
	"time"
)

type healthResponse struct {
	Status        string   `json:"status"`
	UptimeSeconds float64  `json:"uptime"`
	FFmpeg        bool     `json:"ffmpeg"`
	FFprobe       bool     `json:"ffprobe"`
	ActiveStreams int      `json:"activeStreams"`
	Features      []string `json:"features"`
}

// handleHealth serves GET /health: a liveness probe plus the external-tool
// availability check the Source Adapter and Transcoder Scheduler depend on.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ffmpegOK := lookPathOK(s.ffmpegPath)
	ffprobeOK := lookPathOK(s.ffprobePath)

	status := "ok"
	if !ffmpegOK || !ffprobeOK {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:        status,
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		FFmpeg:        ffmpegOK,
		FFprobe:       ffprobeOK,
		ActiveStreams: len(s.registry.ListActive()),
		Features:      []string{"torrent", "url", "hls", "byte-range", "seek", "subtitles"},
	})
}

func lookPathOK(binary string) bool {
	if binary == "" {
		return false
	}
	_, err := exec.LookPath(binary)
	return err == nil
}

type resourcesResponse struct {
	MemoryMB          int64 `json:"memoryMB"`
	CPUCount          int   `json:"cpuCount"`
	MaxConcurrent     int   `json:"maxConcurrent"`
	ActiveTranscoders int   `json:"activeTranscoders"`
	QueueDepth        int   `json:"queueDepth"`
	ActiveSessions    int   `json:"activeSessions"`
}

// handleResources serves GET /resources: the Resource Probe snapshot and the
// Tuning Policy / Transcoder Scheduler derived from it (§4.1, §4.2, §4.5).
func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	snap := s.probe.Snapshot()
	writeJSON(w, http.StatusOK, resourcesResponse{
		MemoryMB:          snap.MemoryMB,
		CPUCount:          snap.CPUCount,
		MaxConcurrent:     s.orchestrator.MaxConcurrent(),
		ActiveTranscoders: s.sched.ActiveCount(),
		QueueDepth:        s.sched.QueueDepth(),
		ActiveSessions:    len(s.registry.ListActive()),
	})
}
