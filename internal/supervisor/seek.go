package supervisor

import (
	"fmt"
	"os"
	"path/filepath"

	"streamgate/internal/domain"
)

// SeekRequest is the decoded body of POST /seek/:id: exactly one of Time or
// Segment is set (§4.6). The handler is responsible for the JSON decode;
// this package only validates/applies the position.
type SeekRequest struct {
	Time    *float64
	Segment *int
}

// SeekResult mirrors the HTTP response shape for POST /seek/:id.
type SeekResult struct {
	Success                   bool
	CurrentSegment            int
	PlaybackPosition          float64
	PlaybackPositionFormatted string
}

// ApplySeek validates req against the session's known segment range and, if
// valid, updates its advisory cursor. Returns a *domain.SessionError of kind
// BadRequest or OutOfRange on rejection.
func ApplySeek(registry RegistryPort, sessionID string, req SeekRequest) (SeekResult, error) {
	sess, err := registry.Get(sessionID)
	if err != nil {
		return SeekResult{}, err
	}

	segDur := sess.SegmentDurationSeconds
	if segDur <= 0 {
		segDur = 4
	}

	var targetSegment int
	switch {
	case req.Time != nil:
		if *req.Time < 0 {
			return SeekResult{}, domain.NewSessionError(domain.ErrBadRequest, "time must be >= 0")
		}
		targetSegment = int(*req.Time) / segDur
	case req.Segment != nil:
		targetSegment = *req.Segment
	default:
		return SeekResult{}, domain.NewSessionError(domain.ErrBadRequest, "time or segment is required")
	}

	if sess.TotalSegmentsObserved > 0 && (targetSegment < 0 || targetSegment >= sess.TotalSegmentsObserved) {
		return SeekResult{}, domain.NewSessionError(domain.ErrOutOfRange,
			fmt.Sprintf("invalid segment %d, valid range: 0-%d", targetSegment, sess.TotalSegmentsObserved-1))
	}
	if sess.TotalSegmentsObserved == 0 && targetSegment < 0 {
		return SeekResult{}, domain.NewSessionError(domain.ErrOutOfRange, fmt.Sprintf("invalid segment %d", targetSegment))
	}

	position := float64(targetSegment * segDur)
	if _, err := registry.Update(sessionID, func(sv *domain.Session) {
		sv.CurrentSegment = targetSegment
		sv.PlaybackPositionSeconds = position
	}); err != nil {
		return SeekResult{}, err
	}

	return SeekResult{
		Success:                   true,
		CurrentSegment:            targetSegment,
		PlaybackPosition:          position,
		PlaybackPositionFormatted: domain.FormatSeconds(position),
	}, nil
}

// SegmentDescriptor is one entry of the seek-info window.
type SegmentDescriptor struct {
	Index     int
	Available bool
}

// SeekInfo is the response shape for GET /seek-info/:id.
type SeekInfo struct {
	CurrentSegment   int
	PlaybackPosition float64
	SegmentDuration  int
	TotalSegments    int
	Window           []SegmentDescriptor
}

const seekInfoWindowSize = 20

// BuildSeekInfo returns the current cursor plus a window of up to 20
// segment descriptors centred on current_segment, each annotated with file
// existence (§4.6).
func BuildSeekInfo(registry RegistryPort, sessionID string) (SeekInfo, error) {
	sess, err := registry.Get(sessionID)
	if err != nil {
		return SeekInfo{}, err
	}

	segDur := sess.SegmentDurationSeconds
	if segDur <= 0 {
		segDur = 4
	}

	half := seekInfoWindowSize / 2
	start := sess.CurrentSegment - half
	if start < 0 {
		start = 0
	}
	end := start + seekInfoWindowSize
	if sess.TotalSegmentsObserved > 0 && end > sess.TotalSegmentsObserved {
		end = sess.TotalSegmentsObserved
		start = end - seekInfoWindowSize
		if start < 0 {
			start = 0
		}
	}

	window := make([]SegmentDescriptor, 0, end-start)
	for i := start; i < end; i++ {
		segPath := filepath.Join(sess.Folder, fmt.Sprintf("segment_%03d.ts", i))
		_, statErr := os.Stat(segPath)
		window = append(window, SegmentDescriptor{Index: i, Available: statErr == nil})
	}

	return SeekInfo{
		CurrentSegment:   sess.CurrentSegment,
		PlaybackPosition: sess.PlaybackPositionSeconds,
		SegmentDuration:  segDur,
		TotalSegments:    sess.TotalSegmentsObserved,
		Window:           window,
	}, nil
}
