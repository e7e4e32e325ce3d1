// Package tuning implements the Tuning Policy (C2): a pure function turning
// a resourceprobe.Snapshot and the live session count into the scheduler's
// knobs. Grounded on the teacher's small-pure-function-plus-table style seen
// in internal/services/torrent/engine/anacrolix/engine_phase.go's
// deriveTransferPhase.
package tuning

import "math"

// Params are the derived knobs consumed by the Transcoder Scheduler (C5) and
// the ffmpeg argument builder.
type Params struct {
	PerFFmpegMB          int64
	MaxConcurrent        int
	ThreadsPerTranscoder int
	SegmentDurationSecs  int
}

// Defaults for the segment-duration formula, overridable via Config.
const (
	DefaultMinSegmentSeconds   = 4
	DefaultMaxSegmentSeconds   = 10
	DefaultTargetStreamsPerSeg = 10
)

// Config carries the segment-duration formula's configurable bounds; zero
// values fall back to the package defaults.
type Config struct {
	MinSegmentSeconds   int
	MaxSegmentSeconds   int
	TargetStreamsPerSeg int
}

func (c Config) withDefaults() Config {
	if c.MinSegmentSeconds <= 0 {
		c.MinSegmentSeconds = DefaultMinSegmentSeconds
	}
	if c.MaxSegmentSeconds <= 0 {
		c.MaxSegmentSeconds = DefaultMaxSegmentSeconds
	}
	if c.TargetStreamsPerSeg <= 0 {
		c.TargetStreamsPerSeg = DefaultTargetStreamsPerSeg
	}
	return c
}

// Derive computes Params from detected resources and the number of
// currently active sessions, per the formulas:
//
//	per_ffmpeg_mb          = 256 if memory_mb<700 else 512 if memory_mb<1500 else 800
//	max_concurrent         = max(1, min(floor(memory_mb/(per_ffmpeg_mb*1.2)), floor(cpu_count/2)))
//	threads_per_transcoder = 1 if memory_mb<1024 else max(1, floor(cpu_count/2))
//	segment_duration       = clamp(MIN_SEG, MAX_SEG, ceil(active_sessions/TARGET_PER_SEG)*MIN_SEG)
func Derive(memoryMB int64, cpuCount int, activeSessions int, cfg Config) Params {
	cfg = cfg.withDefaults()

	perFFmpegMB := perFFmpegMB(memoryMB)

	maxByMemory := int(float64(memoryMB) / (float64(perFFmpegMB) * 1.2))
	maxByCPU := cpuCount / 2
	maxConcurrent := maxByMemory
	if maxByCPU < maxConcurrent {
		maxConcurrent = maxByCPU
	}
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	threads := 1
	if memoryMB >= 1024 {
		threads = cpuCount / 2
		if threads < 1 {
			threads = 1
		}
	}

	segDuration := segmentDuration(activeSessions, cfg)

	return Params{
		PerFFmpegMB:          perFFmpegMB,
		MaxConcurrent:        maxConcurrent,
		ThreadsPerTranscoder: threads,
		SegmentDurationSecs:  segDuration,
	}
}

func perFFmpegMB(memoryMB int64) int64 {
	switch {
	case memoryMB < 700:
		return 256
	case memoryMB < 1500:
		return 512
	default:
		return 800
	}
}

func segmentDuration(activeSessions int, cfg Config) int {
	if activeSessions < 0 {
		activeSessions = 0
	}
	ratio := math.Ceil(float64(activeSessions) / float64(cfg.TargetStreamsPerSeg))
	d := int(ratio) * cfg.MinSegmentSeconds
	if d < cfg.MinSegmentSeconds {
		d = cfg.MinSegmentSeconds
	}
	if d > cfg.MaxSegmentSeconds {
		d = cfg.MaxSegmentSeconds
	}
	return d
}
