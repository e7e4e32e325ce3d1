// Package registry implements the Session Registry: the concurrent mapping
// from session id to session record, with creation, lookup, mutation and
// teardown under per-record locks. Grounded on the teacher's
// internal/domain/session_mode.go CanTransition adjacency map and
// internal/services/torrent/engine/anacrolix/engine.go's transition(id, to)
// method, generalized to the spec's own state set (domain.State) and to an
// in-memory-only registry (no repository persistence: the spec's Non-goal of
// "persistence across process restarts" leaves nothing for a backing store
// to do).
package registry

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"streamgate/internal/domain"
)

var ErrNotFound = domain.NewSessionError(domain.ErrNotFound, "unknown session id")

// record pairs a session with its own mutation lock so that concurrent
// readers never block on a writer for a different session and a writer for
// one session never blocks readers of another.
type record struct {
	mu      sync.Mutex
	session domain.Session
}

// Registry is the process-wide Session Registry (C3).
type Registry struct {
	dataDir string
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*record
}

func New(dataDir string, logger *slog.Logger) *Registry {
	return &Registry{
		dataDir:  dataDir,
		logger:   logger,
		sessions: make(map[string]*record),
	}
}

// Create allocates an id, creates the session folder, and inserts a new
// record in state Pending.
func (r *Registry) Create(kind domain.SourceKind) (domain.Session, error) {
	id, err := newID()
	if err != nil {
		return domain.Session{}, domain.NewSessionError(domain.ErrStorageError, "id generation failed: "+err.Error())
	}
	folder := filepath.Join(r.dataDir, id)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return domain.Session{}, domain.NewSessionError(domain.ErrStorageError, "create session folder: "+err.Error())
	}

	now := time.Now()
	sess := domain.Session{
		ID:           id,
		SourceKind:   kind,
		State:        domain.Pending,
		CreatedAt:    now,
		Folder:       folder,
		LastAccessAt: now,
	}

	r.mu.Lock()
	r.sessions[id] = &record{session: sess}
	r.mu.Unlock()

	r.logger.Info("session created", slog.String("id", id), slog.String("sourceKind", string(kind)))
	return sess, nil
}

func (r *Registry) lookup(id string) (*record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sessions[id]
	return rec, ok
}

// Get returns a point-in-time copy of the session record.
func (r *Registry) Get(id string) (domain.Session, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.session, nil
}

// Mutator mutates a session in place; the Registry applies it under the
// record's lock, so mutators never need their own synchronization.
type Mutator func(*domain.Session)

// Update applies mutate under the session's per-record lock and returns the
// resulting snapshot. It does not itself enforce state-machine legality —
// callers that change State must call Transition instead, which does.
func (r *Registry) Update(id string, mutate Mutator) (domain.Session, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	mutate(&rec.session)
	return rec.session, nil
}

// Transition moves a session to a new state, refusing and logging any edge
// not present in domain.CanTransition. Ready->Ready is a legal no-op.
func (r *Registry) Transition(id string, to domain.State, mutate Mutator) (domain.Session, error) {
	rec, ok := r.lookup(id)
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	from := rec.session.State
	if !domain.CanTransition(from, to) {
		r.logger.Error("illegal session state transition refused",
			slog.String("id", id), slog.String("from", string(from)), slog.String("to", string(to)))
		return rec.session, fmt.Errorf("illegal transition %s->%s for session %s", from, to, id)
	}
	rec.session.State = to
	if mutate != nil {
		mutate(&rec.session)
	}
	r.logger.Debug("session state transition", slog.String("id", id), slog.String("from", string(from)), slog.String("to", string(to)))
	return rec.session, nil
}

// Fail transitions a session into Failed and records the error. It tolerates
// being called from any pre-Failed state; a session that failed twice keeps
// its first error.
func (r *Registry) Fail(id string, sessErr *domain.SessionError) {
	rec, ok := r.lookup(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.session.State == domain.Failed || rec.session.State == domain.Closed {
		return
	}
	if !domain.CanTransition(rec.session.State, domain.Failed) {
		r.logger.Error("session failed from a state with no Failed edge",
			slog.String("id", id), slog.String("from", string(rec.session.State)))
		return
	}
	rec.session.State = domain.Failed
	rec.session.Error = sessErr
	r.logger.Warn("session failed", slog.String("id", id), slog.String("kind", string(sessErr.Kind)), slog.String("message", sessErr.Message))
}

// Touch updates LastAccessAt, used by the idle reaper.
func (r *Registry) Touch(id string) {
	rec, ok := r.lookup(id)
	if !ok {
		return
	}
	rec.mu.Lock()
	rec.session.LastAccessAt = time.Now()
	rec.mu.Unlock()
}

// Close tears a session down: removes it from the registry and, if
// deleteFolder is true, recursively deletes its folder. The caller is
// responsible for stopping the session's timers/subprocess before calling
// Close; the registry itself holds no references to those.
func (r *Registry) Close(id string, deleteFolder bool) (domain.Session, error) {
	r.mu.Lock()
	rec, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return domain.Session{}, ErrNotFound
	}

	rec.mu.Lock()
	rec.session.State = domain.Closed
	sess := rec.session
	rec.mu.Unlock()

	if deleteFolder {
		if err := os.RemoveAll(sess.Folder); err != nil {
			r.logger.Warn("session folder cleanup failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	r.logger.Info("session closed", slog.String("id", id))
	return sess, nil
}

// ListActive returns ids of every session not yet Closed.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// ListIdleSince returns ids of active sessions whose LastAccessAt is older
// than cutoff, for the idle reaper.
func (r *Registry) ListIdleSince(cutoff time.Time) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, rec := range r.sessions {
		rec.mu.Lock()
		idle := rec.session.LastAccessAt.Before(cutoff) && rec.session.State != domain.Transcoding && rec.session.State != domain.Queued
		rec.mu.Unlock()
		if idle {
			ids = append(ids, id)
		}
	}
	return ids
}

func newID() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
