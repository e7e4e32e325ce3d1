package apihttp

import (
	"errors"
	"testing"
)

func TestParseByteRange(t *testing.T) {
	const size = int64(1000)

	tests := []struct {
		name      string
		value     string
		wantStart int64
		wantEnd   int64
		wantErr   error
	}{
		{name: "full range", value: "bytes=0-999", wantStart: 0, wantEnd: 999},
		{name: "mid range", value: "bytes=100-199", wantStart: 100, wantEnd: 199},
		{name: "open-ended", value: "bytes=500-", wantStart: 500, wantEnd: 999},
		{name: "suffix", value: "bytes=-100", wantStart: 900, wantEnd: 999},
		{name: "suffix larger than size", value: "bytes=-5000", wantStart: 0, wantEnd: 999},
		{name: "start beyond size", value: "bytes=1000-1001", wantErr: errRangeNotSatisfiable},
		{name: "end beyond size, start within", value: "bytes=500-2000", wantErr: errRangeNotSatisfiable},
		{name: "end equal to size", value: "bytes=0-1000", wantErr: errRangeNotSatisfiable},
		{name: "start greater than end", value: "bytes=200-100", wantErr: errRangeNotSatisfiable},
		{name: "malformed unit", value: "items=0-10", wantErr: errInvalidRange},
		{name: "multiple ranges not supported", value: "bytes=0-10,20-30", wantErr: errInvalidRange},
		{name: "empty spec", value: "bytes=", wantErr: errInvalidRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseByteRange(tc.value, size)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("parseByteRange(%q) error = %v, want %v", tc.value, err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseByteRange(%q) unexpected error = %v", tc.value, err)
			}
			if start != tc.wantStart || end != tc.wantEnd {
				t.Errorf("parseByteRange(%q) = (%d, %d), want (%d, %d)", tc.value, start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}
