package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "streamgate",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "active_sessions",
		Help:      "Number of sessions not yet Closed.",
	})

	SessionsByState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "sessions_by_state",
		Help:      "Number of sessions currently in each lifecycle state.",
	}, []string{"state"})

	TorrentPeersConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "torrent_peers_connected",
		Help:      "Total number of peers connected across all torrent sessions.",
	})

	TorrentDownloadSpeedBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "torrent_download_speed_bytes",
		Help:      "Current aggregate torrent download speed in bytes per second.",
	})

	// Resource Probe (C1) / Tuning Policy (C2).

	ResourceMemoryMB = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "resource_memory_mb",
		Help:      "Last-probed available memory in megabytes.",
	})

	ResourceCPUCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "resource_cpu_count",
		Help:      "Last-probed usable CPU count.",
	})

	TuningMaxConcurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "tuning_max_concurrent",
		Help:      "Currently derived max_concurrent transcoder limit.",
	})

	TuningSegmentDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "tuning_segment_duration_seconds",
		Help:      "Currently derived segment duration for newly admitted sessions.",
	})

	// Transcoder Scheduler (C5).

	SchedulerActiveCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "scheduler_active_count",
		Help:      "Currently running transcoder subprocesses.",
	})

	SchedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "scheduler_queue_depth",
		Help:      "Sessions waiting for transcoder admission.",
	})

	TranscoderStartsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "transcoder_starts_total",
		Help:      "Total transcoder subprocesses started, by mode (copy, baseline).",
	}, []string{"mode"})

	TranscoderFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "transcoder_failures_total",
		Help:      "Total transcoder subprocesses that exited with a terminal error.",
	})

	TranscoderDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamgate",
		Name:      "transcoder_duration_seconds",
		Help:      "Wall-clock duration of a transcoder subprocess, start to terminal exit.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Output Supervisor (C6).

	ReadinessLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "streamgate",
		Name:      "readiness_latency_seconds",
		Help:      "Time from Transcoding admission to Ready (playlist + first segment observed).",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
	})

	RetentionPassesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "retention_passes_total",
		Help:      "Total rolling-window retention passes run.",
	})

	RetentionDeletionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "retention_deletions_total",
		Help:      "Total files deleted by the rolling-window retention protocol.",
	})

	RetentionErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "retention_errors_total",
		Help:      "Total retention pass failures (directory listing or delete errors).",
	})

	SessionFolderSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "session_folder_size_bytes_last",
		Help:      "Size in bytes of the most recently swept session folder.",
	})

	SeekRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "seek_requests_total",
		Help:      "Total seek requests by outcome (ok, bad_request, out_of_range).",
	}, []string{"outcome"})

	ByteRangeRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "byte_range_requests_total",
		Help:      "Total /stream/:id requests by outcome (full, partial, not_satisfiable).",
	}, []string{"outcome"})

	SubtitleExtractionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "subtitle_extractions_total",
		Help:      "Subtitle requests by outcome; only outcome=failed is recorded, for /subtitles/:id/:filename requests rejected for an invalid filename. Extraction by the Source Adapter is not counted.",
	}, []string{"outcome"})

	WSClientsConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "ws_clients_connected",
		Help:      "Currently connected /ws/status websocket clients.",
	})

	// Torrent piece store (internal/storage/memory), the torrent client's
	// resource.Provider-backed piece cache.

	PieceStoreBytesInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "streamgate",
		Name:      "piece_store_bytes_in_use",
		Help:      "Bytes currently held in the in-memory piece cache (pre-spill).",
	})

	PieceStoreEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "piece_store_evictions_total",
		Help:      "Total pieces evicted from the in-memory piece cache under memory pressure.",
	})

	PieceStoreSpillsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "streamgate",
		Name:      "piece_store_spills_total",
		Help:      "Total evicted pieces written to the disk spill directory rather than dropped.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ActiveSessions,
		SessionsByState,
		TorrentPeersConnected,
		TorrentDownloadSpeedBytes,
		ResourceMemoryMB,
		ResourceCPUCount,
		TuningMaxConcurrent,
		TuningSegmentDurationSeconds,
		SchedulerActiveCount,
		SchedulerQueueDepth,
		TranscoderStartsTotal,
		TranscoderFailuresTotal,
		TranscoderDuration,
		ReadinessLatency,
		RetentionPassesTotal,
		RetentionDeletionsTotal,
		RetentionErrorsTotal,
		SessionFolderSizeBytes,
		SeekRequestsTotal,
		ByteRangeRequestsTotal,
		SubtitleExtractionsTotal,
		WSClientsConnected,
		PieceStoreBytesInUse,
		PieceStoreEvictionsTotal,
		PieceStoreSpillsTotal,
	)
}
