package apihttp

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"streamgate/internal/app"
	"streamgate/internal/domain"
	"streamgate/internal/registry"
	"streamgate/internal/resourceprobe"
	"streamgate/internal/scheduler"
)

type Server struct {
	orchestrator *app.Orchestrator
	registry     *registry.Registry
	sched        *scheduler.Scheduler
	probe        *resourceprobe.Probe

	startedAt      time.Time
	ffmpegPath     string
	ffprobePath    string
	corsOrigins    []string
	rateLimitRPS   float64
	rateLimitBurst int

	logger  *slog.Logger
	handler http.Handler
	wsHub   *wsHub
}

type ServerOption func(*Server)

func WithOrchestrator(o *app.Orchestrator) ServerOption {
	return func(s *Server) { s.orchestrator = o }
}

func WithRegistry(r *registry.Registry) ServerOption {
	return func(s *Server) { s.registry = r }
}

func WithScheduler(sch *scheduler.Scheduler) ServerOption {
	return func(s *Server) { s.sched = sch }
}

func WithResourceProbe(p *resourceprobe.Probe) ServerOption {
	return func(s *Server) { s.probe = p }
}

func WithExternalTools(ffmpegPath, ffprobePath string) ServerOption {
	return func(s *Server) { s.ffmpegPath = ffmpegPath; s.ffprobePath = ffprobePath }
}

func WithCORS(origins []string) ServerOption {
	return func(s *Server) { s.corsOrigins = origins }
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) { s.rateLimitRPS = rps; s.rateLimitBurst = burst }
}

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		startedAt:      time.Now(),
		rateLimitRPS:   5,
		rateLimitBurst: 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/stream", s.handleStreamCreate)
	mux.HandleFunc("/stream-yt", s.handleStreamYTCreate)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/hls/", s.handleHLS)
	mux.HandleFunc("/stream/", s.handleStreamByID)
	mux.HandleFunc("/seek-info/", s.handleSeekInfo)
	mux.HandleFunc("/seek/", s.handleSeek)
	mux.HandleFunc("/subtitles-list/", s.handleSubtitlesList)
	mux.HandleFunc("/subtitles/", s.handleSubtitleFile)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/resources", s.handleResources)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws/status", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "streamgate",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return !isNoisyPath(r.URL.Path)
		}),
	)
	handler := metricsMiddleware(corsMiddleware(s.corsOrigins, traced))
	handler = rateLimitMiddleware(s.rateLimitRPS, s.rateLimitBurst, handler)
	s.handler = recoveryMiddleware(s.logger, handler)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

// BroadcastState notifies /ws/status subscribers of a session's transition.
// Nothing in the gateway calls it: the orchestrator and registry do not
// report their transitions here, so /ws/status clients receive only pings.
func (s *Server) BroadcastState(id string, state domain.State) {
	if s.wsHub != nil {
		s.wsHub.BroadcastState(StateUpdate{ID: id, State: string(state)})
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{hub: s.wsHub, conn: conn, send: make(chan []byte, 256)}
	s.wsHub.register <- client
	go client.writePump()
	go client.readPump()
}

// pathID extracts the next path segment after prefix, e.g.
// pathID("/status/abc123", "/status/") == "abc123".
func pathID(path, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
}
