package scheduler

import "testing"

func contains(args []string, s string) bool {
	for _, a := range args {
		if a == s {
			return true
		}
	}
	return false
}

func TestBuildArgsCopyMux(t *testing.T) {
	args := BuildArgs(ArgsConfig{Input: "video.mp4", SegmentDuration: 6, Threads: 2, CopyMux: true})

	if !contains(args, "copy") {
		t.Fatalf("args = %v, want -c:v copy", args)
	}
	if !contains(args, "h264_mp4toannexb") {
		t.Fatalf("args = %v, want h264_mp4toannexb bitstream filter", args)
	}
	if contains(args, "libx264") {
		t.Fatalf("args = %v, should not encode in copy-mux mode", args)
	}
	if !contains(args, "6") {
		t.Fatalf("args = %v, want hls_time 6", args)
	}
}

func TestBuildArgsBaselineEncode(t *testing.T) {
	args := BuildArgs(ArgsConfig{Input: "pipe:0", UsePipe: true, CopyMux: false})

	if !contains(args, "libx264") {
		t.Fatalf("args = %v, want libx264 encode", args)
	}
	if !contains(args, "baseline") {
		t.Fatalf("args = %v, want baseline profile", args)
	}
	if !contains(args, "3.0") {
		t.Fatalf("args = %v, want level 3.0", args)
	}
	if !contains(args, "5000000") {
		t.Fatalf("args = %v, want analyzeduration/probesize set for pipe input", args)
	}
}

func TestBuildArgsDefaultsSegmentDurationAndThreads(t *testing.T) {
	args := BuildArgs(ArgsConfig{Input: "video.mp4"})

	if !contains(args, "4") {
		t.Fatalf("args = %v, want default hls_time 4", args)
	}
	if !contains(args, "1") {
		t.Fatalf("args = %v, want default threads 1", args)
	}
}

func TestBuildArgsAlwaysEmitsHLSOutput(t *testing.T) {
	args := BuildArgs(ArgsConfig{Input: "video.mp4", CopyMux: true})

	for _, want := range []string{"-f", "hls", "-hls_list_size", "0", "-start_number", "0", "segment_%03d.ts", "playlist.m3u8"} {
		if !contains(args, want) {
			t.Fatalf("args = %v, missing %q", args, want)
		}
	}
}
