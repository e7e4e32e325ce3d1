package tuning

import "testing"

func TestPerFFmpegMBThresholds(t *testing.T) {
	cases := []struct {
		memoryMB int64
		want     int64
	}{
		{699, 256},
		{700, 512},
		{1499, 512},
		{1500, 800},
		{4000, 800},
	}
	for _, c := range cases {
		if got := perFFmpegMB(c.memoryMB); got != c.want {
			t.Errorf("perFFmpegMB(%d) = %d, want %d", c.memoryMB, got, c.want)
		}
	}
}

func TestDeriveMaxConcurrentBoundedByBothMemoryAndCPU(t *testing.T) {
	// memory_mb=512 -> per_ffmpeg_mb=256 -> maxByMemory = floor(512/(256*1.2)) = 1
	// cpu_count=8 -> maxByCPU = 4
	p := Derive(512, 8, 0, Config{})
	if p.MaxConcurrent != 1 {
		t.Errorf("MaxConcurrent = %d, want 1 (memory-bound)", p.MaxConcurrent)
	}

	// memory_mb=8000 -> per_ffmpeg_mb=800 -> maxByMemory = floor(8000/960) = 8
	// cpu_count=4 -> maxByCPU = 2
	p2 := Derive(8000, 4, 0, Config{})
	if p2.MaxConcurrent != 2 {
		t.Errorf("MaxConcurrent = %d, want 2 (cpu-bound)", p2.MaxConcurrent)
	}
}

func TestDeriveMaxConcurrentNeverBelowOne(t *testing.T) {
	p := Derive(1, 1, 0, Config{})
	if p.MaxConcurrent != 1 {
		t.Errorf("MaxConcurrent = %d, want floor to 1", p.MaxConcurrent)
	}
}

func TestDeriveThreadsPerTranscoder(t *testing.T) {
	if p := Derive(1023, 16, 0, Config{}); p.ThreadsPerTranscoder != 1 {
		t.Errorf("ThreadsPerTranscoder = %d, want 1 below 1024MB", p.ThreadsPerTranscoder)
	}
	if p := Derive(1024, 16, 0, Config{}); p.ThreadsPerTranscoder != 8 {
		t.Errorf("ThreadsPerTranscoder = %d, want 8 (floor(16/2))", p.ThreadsPerTranscoder)
	}
	if p := Derive(2048, 1, 0, Config{}); p.ThreadsPerTranscoder != 1 {
		t.Errorf("ThreadsPerTranscoder = %d, want floor to 1", p.ThreadsPerTranscoder)
	}
}

func TestSegmentDurationClamping(t *testing.T) {
	cfg := Config{MinSegmentSeconds: 4, MaxSegmentSeconds: 10, TargetStreamsPerSeg: 10}
	cases := []struct {
		active int
		want   int
	}{
		{0, 4},
		{1, 4},
		{10, 4},
		{11, 8},
		{20, 8},
		{21, 12}, // raw would be 12, clamped to MaxSegmentSeconds
	}
	for _, c := range cases {
		got := segmentDuration(c.active, cfg)
		want := c.want
		if want > cfg.MaxSegmentSeconds {
			want = cfg.MaxSegmentSeconds
		}
		if got != want {
			t.Errorf("segmentDuration(%d) = %d, want %d", c.active, got, want)
		}
	}
}

func TestSegmentDurationUsesDefaultsWhenZero(t *testing.T) {
	p := Derive(2048, 8, 0, Config{})
	if p.SegmentDurationSecs != DefaultMinSegmentSeconds {
		t.Errorf("SegmentDurationSecs = %d, want default min %d", p.SegmentDurationSecs, DefaultMinSegmentSeconds)
	}
}
