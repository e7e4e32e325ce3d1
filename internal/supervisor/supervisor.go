// Package supervisor implements the Output Supervisor (C6): per-session
// readiness polling and rolling-window retention over a transcoding
// session's folder, plus the advisory seek cursor. Grounded on the
// teacher's internal/api/http/streaming_fsm.go readiness poll (ticker-driven,
// playlist-exists + size check) and hls_cache.go's retention/eviction
// machinery (adapted from an LRU byte-budget cache to a deterministic
// newest-K-segments-protected window, §4.6).
package supervisor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"streamgate/internal/domain"
	"streamgate/internal/metrics"
	"streamgate/internal/registry"
)

// readinessPollInterval is fixed per §4.6; SEGMENT_MONITOR_INTERVAL_MS is
// loaded into the config but does not change it, and no component reads it.
const readinessPollInterval = 1 * time.Second

const minPlaylistBytes = 100

var segmentFilePattern = regexp.MustCompile(`^segment_\d+\.ts$`)

// RegistryPort is the subset of *registry.Registry the supervisor needs;
// narrowed to an interface so tests can supply a fake.
type RegistryPort interface {
	Get(id string) (domain.Session, error)
	Update(id string, mutate registry.Mutator) (domain.Session, error)
	Transition(id string, to domain.State, mutate registry.Mutator) (domain.Session, error)
}

// Supervisor runs the readiness poll and retention sweep for one session.
// One instance is created per session and stopped when the session closes.
type Supervisor struct {
	sessionID string
	registry  RegistryPort
	logger    *slog.Logger

	maxStorageBytes int64
	keepSegments    int
}

func New(sessionID string, registry RegistryPort, maxStorageBytes int64, keepSegments int, logger *slog.Logger) *Supervisor {
	if keepSegments <= 0 {
		keepSegments = 5
	}
	if maxStorageBytes <= 0 {
		maxStorageBytes = 2_000_000_000
	}
	return &Supervisor{
		sessionID:       sessionID,
		registry:        registry,
		logger:          logger,
		maxStorageBytes: maxStorageBytes,
		keepSegments:    keepSegments,
	}
}

// Run blocks until ctx is cancelled, driving both the readiness poll (1s; it
// keeps running after Ready to refresh total_segments_observed) and the
// retention sweep (15s), each for the session's full lifetime. Intended to be launched in its own goroutine per session.
func (s *Supervisor) Run(ctx context.Context) {
	readinessTicker := time.NewTicker(readinessPollInterval)
	defer readinessTicker.Stop()
	retentionTicker := time.NewTicker(15 * time.Second)
	defer retentionTicker.Stop()

	readinessObservedAt := time.Time{}
	admittedAt := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-readinessTicker.C:
			ready, err := s.pollReadiness()
			if err != nil {
				s.logger.Debug("readiness poll error, will retry", slog.String("sessionId", s.sessionID), slog.String("error", err.Error()))
				continue
			}
			if ready && readinessObservedAt.IsZero() {
				readinessObservedAt = time.Now()
				metrics.ReadinessLatency.Observe(readinessObservedAt.Sub(admittedAt).Seconds())
			}
		case <-retentionTicker.C:
			if err := s.RunRetentionPass(); err != nil {
				s.logger.Warn("retention pass failed", slog.String("sessionId", s.sessionID), slog.String("error", err.Error()))
				metrics.RetentionErrorsTotal.Inc()
			}
		}
	}
}

// pollReadiness implements §4.6 step 1-2. Transitions are idempotent: a
// session already in Ready is left alone (CanTransition(Ready, Ready) is a
// no-op edge). total_segments_observed keeps refreshing monotonically for
// the session's full Transcoding/Ready lifetime, per the data model's
// "monotonic non-decreasing" invariant — not just at the moment of
// readiness.
func (s *Supervisor) pollReadiness() (bool, error) {
	sess, err := s.registry.Get(s.sessionID)
	if err != nil {
		return false, err
	}
	if sess.State != domain.Transcoding && sess.State != domain.Ready {
		return sess.State == domain.Ready, nil
	}

	segments, err := listSegments(sess.Folder)
	if err != nil {
		return sess.State == domain.Ready, nil
	}
	if len(segments) > sess.TotalSegmentsObserved {
		if _, err := s.registry.Update(s.sessionID, func(sv *domain.Session) {
			if len(segments) > sv.TotalSegmentsObserved {
				sv.TotalSegmentsObserved = len(segments)
			}
		}); err != nil {
			return sess.State == domain.Ready, err
		}
	}

	if sess.State == domain.Ready {
		return true, nil
	}

	playlistPath := filepath.Join(sess.Folder, "playlist.m3u8")
	info, err := os.Stat(playlistPath)
	if err != nil {
		return false, nil
	}
	if info.Size() <= minPlaylistBytes || len(segments) == 0 {
		return false, nil
	}

	now := time.Now()
	if _, err := s.registry.Transition(s.sessionID, domain.Ready, func(sv *domain.Session) {
		sv.PlaylistReadyAt = now
	}); err != nil {
		return false, err
	}
	s.logger.Info("session ready", slog.String("sessionId", s.sessionID), slog.Int("segments", len(segments)))
	return true, nil
}

func listSegments(folder string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.IsDir() && segmentFilePattern.MatchString(e.Name()) {
			out = append(out, e)
		}
	}
	return out, nil
}
