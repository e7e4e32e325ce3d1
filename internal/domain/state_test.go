package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Pending, Resolving, true},
		{Pending, Queued, false},
		{Resolving, Queued, true},
		{Resolving, Failed, true},
		{Resolving, Ready, false},
		{Queued, Transcoding, true},
		{Queued, Failed, true},
		{Queued, Ready, false},
		{Transcoding, Ready, true},
		{Transcoding, Failed, true},
		{Transcoding, Queued, false},
		{Ready, Ready, true},
		{Ready, Transcoding, false},
		{Pending, Closed, true},
		{Resolving, Closed, true},
		{Queued, Closed, true},
		{Transcoding, Closed, true},
		{Ready, Closed, true},
		{Failed, Closed, true},
		{Closed, Closed, false},
		{Failed, Ready, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
