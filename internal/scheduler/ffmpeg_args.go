package scheduler

import "strconv"

// ArgsConfig is everything the two transcode modes need to build their
// ffmpeg argument list. Input is a file path, or "pipe:0" when the torrent
// variant streams bytes in over stdin.
type ArgsConfig struct {
	FFmpegPath      string
	Input           string
	SegmentDuration int
	Threads         int
	CopyMux         bool // true when source container is MP4 or video codec contains h264
	UsePipe         bool
}

// BuildArgs returns the ffmpeg argument list (excluding the binary itself)
// for either Copy-mux or Baseline-encode, per §4.5. Both modes emit
// playlist + segments into the process's working directory (session.folder,
// set via Process.cmd.Dir), using segment_%03d.ts and start_number=0.
func BuildArgs(cfg ArgsConfig) []string {
	segDur := cfg.SegmentDuration
	if segDur <= 0 {
		segDur = 4
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = 1
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
	}
	if cfg.UsePipe {
		args = append(args, "-analyzeduration", "5000000", "-probesize", "5000000")
	}
	args = append(args, "-i", cfg.Input)

	if cfg.CopyMux {
		args = append(args,
			"-c:v", "copy",
			"-c:a", "copy",
			"-bsf:v", "h264_mp4toannexb",
		)
	} else {
		args = append(args,
			"-fflags", "+nobuffer",
			"-c:v", "libx264",
			"-profile:v", "baseline",
			"-level", "3.0",
			"-preset", "veryfast",
			"-c:a", "aac",
		)
	}

	args = append(args,
		"-threads", strconv.Itoa(threads),
		"-f", "hls",
		"-hls_time", strconv.Itoa(segDur),
		"-hls_list_size", "0",
		"-start_number", "0",
		"-hls_segment_filename", "segment_%03d.ts",
		"playlist.m3u8",
	)
	return args
}
