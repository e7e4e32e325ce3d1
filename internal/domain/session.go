package domain

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// SourceKind distinguishes the two Source Adapter variants.
type SourceKind string

const (
	SourceTorrent SourceKind = "torrent"
	SourceURL     SourceKind = "url"
)

// SourceFile is the unified view of the selected playable file regardless of
// which Source Adapter variant resolved it.
type SourceFile struct {
	Name        string
	LengthBytes int64
	// OpenRange returns a reader over [start, end] (end inclusive) of the
	// underlying file. For the torrent variant this reads directly off the
	// live torrent byte-stream; for the URL variant it reads the staged file.
	OpenRange func(start, end int64) (io.ReadCloser, error)
}

// DetectedSubtitle is a subtitle side-file found in the source before
// extraction.
type DetectedSubtitle struct {
	Name     string
	Ext      string
	Size     int64
	Language string
}

// ExtractedSubtitle is a subtitle written into the session folder.
type ExtractedSubtitle struct {
	Name     string
	Path     string
	Language string
	Ext      string
	Size     int64
}

// MediaTrack is one stream (video/audio/subtitle) reported by the prober.
// Width/Height/FPS apply to video tracks, Channels to audio tracks; zero
// values on the others.
type MediaTrack struct {
	Index    int
	Type     string
	Codec    string
	Language string
	Title    string
	Default  bool
	Width    int
	Height   int
	FPS      float64
	Channels int
}

// MediaInfo is the result of probing the selected file. DirectPlaybackCompatible
// reports whether the source can be served byte-range as-is (H.264 video +
// AAC audio, no HLS transcode needed) versus requiring the Transcoder
// Scheduler.
type MediaInfo struct {
	Duration                 float64
	StartTime                float64
	Tracks                   []MediaTrack
	DirectPlaybackCompatible bool
}

// DurationFormatted renders Duration as HH:MM:SS for the /status HTTP
// response.
func (m MediaInfo) DurationFormatted() string {
	return FormatSeconds(m.Duration)
}

// FormatSeconds renders a duration in seconds as HH:MM:SS (hours included
// even when zero), shared by MediaInfo.DurationFormatted and the seek
// handler's playbackPositionFormatted field.
func FormatSeconds(seconds float64) string {
	total := int64(seconds)
	if total < 0 {
		total = 0
	}
	h := total / 3600
	mnt := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, mnt, s)
}

// VideoTrack returns the first video track, if any.
func (m MediaInfo) VideoTrack() (MediaTrack, bool) {
	for _, t := range m.Tracks {
		if t.Type == "video" {
			return t, true
		}
	}
	return MediaTrack{}, false
}

// HasH264Video reports whether any video track's codec contains "h264",
// the Transcoder Scheduler's copy-mux eligibility signal.
func (m MediaInfo) HasH264Video() bool {
	for _, t := range m.Tracks {
		if t.Type == "video" && strings.Contains(strings.ToLower(t.Codec), "h264") {
			return true
		}
	}
	return false
}

// Session is one client-requested stream, from creation to teardown. All
// mutation goes through the registry's per-record lock; nothing outside
// internal/registry should hold a pointer to a Session across an await
// point without re-reading it.
type Session struct {
	ID         string
	SourceKind SourceKind
	State      State
	CreatedAt  time.Time
	Folder     string

	SourceFile *SourceFile

	SubtitlesDetected  []DetectedSubtitle
	SubtitlesExtracted []ExtractedSubtitle

	MediaInfo *MediaInfo

	SegmentDurationSeconds int
	TotalSegmentsObserved  int

	CurrentSegment           int
	PlaybackPositionSeconds  float64

	Error *SessionError

	PlaylistReadyAt time.Time
	LastAccessAt    time.Time

	TorrentName string
	TorrentHash string
	NumPeers    int
	Progress    float64 // 0-100
	DownloadSpeed int64 // bytes/sec
	Ratio       float64
}
