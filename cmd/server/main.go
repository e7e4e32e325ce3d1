package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/storage"
	"github.com/prometheus/client_golang/prometheus"

	apihttp "streamgate/internal/api/http"
	"streamgate/internal/app"
	"streamgate/internal/metrics"
	"streamgate/internal/registry"
	"streamgate/internal/resourceprobe"
	"streamgate/internal/scheduler"
	"streamgate/internal/services/torrent/engine/ffprobe"
	"streamgate/internal/source"
	memstorage "streamgate/internal/storage/memory"
	"streamgate/internal/telemetry"
	"streamgate/internal/tuning"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "streamgate")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "streamgate"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("dataDir", cfg.DataDir),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("data dir create failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	probe := resourceprobe.New(time.Duration(cfg.ResourceWatchInterval)*time.Millisecond, logger)
	go probe.Run(rootCtx)

	reg := registry.New(cfg.DataDir, logger)

	tuningCfg := tuning.Config{
		MinSegmentSeconds:   cfg.MinSegmentSeconds,
		MaxSegmentSeconds:   cfg.MaxSegmentSeconds,
		TargetStreamsPerSeg: cfg.TargetStreamsPerSeg,
	}

	// The torrent client's piece store is the memory.Provider (LRU with a
	// disk spill once the budget derived from the Tuning Policy's
	// per_ffmpeg_mb formula is exceeded), wired into anacrolix's storage
	// layer via storage.NewResourcePieces per the teacher's
	// storage.NewFileByInfoHash wiring in anacrolix/engine.go — swapped for
	// a resource.Provider-backed implementation since this gateway never
	// needs torrent data to survive a restart.
	snap := probe.Snapshot()
	pieceBudget := tuning.Derive(snap.MemoryMB, snap.CPUCount, 0, tuningCfg).PerFFmpegMB * 4 * 1024 * 1024
	spillDir := filepath.Join(cfg.DataDir, ".piece-spill")
	provider := memstorage.NewProvider(
		memstorage.WithMaxBytes(pieceBudget),
		memstorage.WithSpillDir(spillDir),
	)

	torrentCfg := torrent.NewDefaultClientConfig()
	torrentCfg.DataDir = cfg.DataDir
	torrentCfg.DefaultStorage = storage.NewResourcePieces(provider)
	torrentCfg.Seed = false
	torrentCfg.NoDHT = false

	torrentClient, err := torrent.NewClient(torrentCfg)
	if err != nil {
		logger.Error("torrent client init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer torrentClient.Close()

	torrentAdapter := source.NewTorrentAdapter(torrentClient, logger)
	urlAdapter := source.NewURLAdapter(cfg.YTDLPPath)
	prober := ffprobe.New(cfg.FFProbePath)

	// The scheduler's MaxConcurrentFunc is the orchestrator's own
	// MaxConcurrent method, but the orchestrator needs the scheduler to
	// construct; close over a reference set immediately after.
	var orchestrator *app.Orchestrator
	sched := scheduler.New(func() int {
		if orchestrator == nil {
			return 1
		}
		return orchestrator.MaxConcurrent()
	}, logger)

	orchestrator = app.NewOrchestrator(
		reg, sched, probe,
		torrentAdapter, urlAdapter, prober,
		tuningCfg,
		app.TuningOverrides{MaxConcurrent: cfg.MaxConcurrentFFMPEG, Threads: cfg.FFMPEGThreads},
		cfg.FFMPEGPath,
		cfg.MaxStreamStorageBytes,
		cfg.KeepSegments,
		logger,
	)

	server := apihttp.NewServer(
		apihttp.WithOrchestrator(orchestrator),
		apihttp.WithRegistry(reg),
		apihttp.WithScheduler(sched),
		apihttp.WithResourceProbe(probe),
		apihttp.WithExternalTools(cfg.FFMPEGPath, cfg.FFProbePath),
		apihttp.WithCORS(cfg.CORSAllowedOrigins),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithLogger(logger),
	)

	go orchestrator.RunIdleReaper(rootCtx, time.Duration(cfg.IdleTimeoutSeconds)*time.Second)
	go reportResourceMetrics(rootCtx, probe, sched, reg)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	server.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}

	for _, id := range reg.ListActive() {
		if _, err := orchestrator.CloseSession(id); err != nil {
			logger.Warn("session close on shutdown failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}

	logger.Info("server stopped")
}

// reportResourceMetrics periodically mirrors the Resource Probe, Tuning
// Policy and Transcoder Scheduler's live state into the Prometheus gauges,
// matching the teacher's updateEngineMetrics ticker loop.
func reportResourceMetrics(ctx context.Context, probe *resourceprobe.Probe, sched *scheduler.Scheduler, reg *registry.Registry) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := probe.Snapshot()
			metrics.ResourceMemoryMB.Set(float64(snap.MemoryMB))
			metrics.ResourceCPUCount.Set(float64(snap.CPUCount))
			metrics.SchedulerActiveCount.Set(float64(sched.ActiveCount()))
			metrics.SchedulerQueueDepth.Set(float64(sched.QueueDepth()))
			metrics.ActiveSessions.Set(float64(len(reg.ListActive())))
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
