package source

import (
	"context"

	"streamgate/internal/domain"
)

// Adapter resolves a client-requested source (a magnet URI or a remote URL)
// into a domain.SourceFile plus any subtitles found alongside it. Resolve
// blocks until the source is playable or it fails; callers run it in its
// own goroutine and report progress through the registry.
type Adapter interface {
	Resolve(ctx context.Context, source string, folder string) (ResolveResult, error)
}

// ResolveResult is everything the registry needs to move a session from
// Resolving into Queued.
type ResolveResult struct {
	File               domain.SourceFile
	SubtitlesDetected  []domain.DetectedSubtitle
	SubtitlesExtracted []domain.ExtractedSubtitle
	ContainerExt       string // lowercase extension of the selected file, e.g. ".mp4"
}
