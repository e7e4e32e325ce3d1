package app

import (
	"os"
	"strconv"
	"strings"
)

// Config holds every environment-derived setting for the gateway. It follows
// the load-once, env-with-fallback pattern used throughout the service: no
// config file, no reload, read at startup and passed by value to whichever
// component needs it.
type Config struct {
	HTTPAddr    string
	LogLevel    string
	LogFormat   string
	DataDir     string
	OpenAPIPath string
	FFMPEGPath  string
	FFProbePath string
	YTDLPPath   string

	MinSegmentSeconds      int
	MaxSegmentSeconds      int
	TargetStreamsPerSeg    int
	MaxStreamStorageBytes  int64
	KeepSegments           int
	MaxConcurrentFFMPEG    int // 0 = auto, derived from C1/C2
	FFMPEGThreads          int // 0 = auto
	SegmentMonitorInterval int // milliseconds
	ResourceWatchInterval  int // milliseconds

	IdleTimeoutSeconds int
	RateLimitRPS       float64
	RateLimitBurst     int
	CORSAllowedOrigins []string // empty = allow all (dev mode)
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:    ":" + getEnv("PORT", "3000"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getEnv("LOG_FORMAT", "text")),
		DataDir:     getEnv("TORRENT_DATA_DIR", "data"),
		OpenAPIPath: getEnv("OPENAPI_PATH", ""),
		FFMPEGPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath: getEnv("FFPROBE_PATH", "ffprobe"),
		YTDLPPath:   getEnv("YTDLP_PATH", "yt-dlp"),

		MinSegmentSeconds:      int(getEnvInt64("MIN_SEGMENT_SECONDS", 4)),
		MaxSegmentSeconds:      int(getEnvInt64("MAX_SEGMENT_SECONDS", 10)),
		TargetStreamsPerSeg:    int(getEnvInt64("TARGET_STREAMS_PER_SEGMENT", 10)),
		MaxStreamStorageBytes:  getEnvInt64("MAX_STREAM_STORAGE_BYTES", 2_000_000_000),
		KeepSegments:           int(getEnvInt64("KEEP_SEGMENTS", 5)),
		MaxConcurrentFFMPEG:    int(getEnvInt64("MAX_CONCURRENT_FFMPEG", 0)),
		FFMPEGThreads:          int(getEnvInt64("FFMPEG_THREADS", 0)),
		SegmentMonitorInterval: int(getEnvInt64("SEGMENT_MONITOR_INTERVAL_MS", 5000)),
		ResourceWatchInterval:  int(getEnvInt64("RESOURCE_WATCH_INTERVAL_MS", 15000)),

		IdleTimeoutSeconds: int(getEnvInt64("IDLE_TIMEOUT_SECONDS", 1800)),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 20)),
		CORSAllowedOrigins: parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
