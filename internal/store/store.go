// Package store provides storage backends for VoicePipe.
//
// The conversation store maps call identifiers to ordered turn history and is
// deliberately in-memory only: conversations do not survive a restart. The
// voicemail repo (see voicemail.go) is the one durable piece.
package store

import (
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/VoicePipe/internal/models"
)

// Capacity constants for the conversation store.
const (
	// MaxSessions is the session count that triggers eviction.
	MaxSessions = 100
	// RetainSessions is how many sessions survive an eviction sweep.
	RetainSessions = 50
)

// ConversationStore holds every live call session. Safe for concurrent use:
// one mutex guards lookup+create+append and the capacity sweep so a sweep for
// one call can never expose a half-evicted view to another.
type ConversationStore struct {
	mu       sync.Mutex
	sessions map[string]*models.CallSession
	order    []string // session ids in insertion order, oldest first
	now      func() time.Time
}

// StoreOption configures a ConversationStore.
type StoreOption func(*ConversationStore)

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *ConversationStore) { s.now = now }
}

// NewConversationStore creates an empty conversation store.
func NewConversationStore(opts ...StoreOption) *ConversationStore {
	s := &ConversationStore{
		sessions: make(map[string]*models.CallSession),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the session for id, creating it in StateAwaitingGreeting
// if unknown. The returned value is a snapshot; mutate through store methods.
func (s *ConversationStore) GetOrCreate(id, callerAddress string) models.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(id, callerAddress)
}

// Get returns a snapshot of the session for id, if present.
func (s *ConversationStore) Get(id string) (models.CallSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.CallSession{}, false
	}
	return snapshot(sess), true
}

// AppendTurn appends one utterance to the session for id, creating the
// session first if unknown, and returns a snapshot of the updated session.
func (s *ConversationStore) AppendTurn(id string, speaker models.Speaker, text string) models.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(id, "")
	sess := s.sessions[id]
	sess.Turns = append(sess.Turns, models.Turn{Speaker: speaker, Text: text, Time: s.now()})
	slog.Debug("ConversationStore.AppendTurn: turn appended", "session", id, "speaker", speaker, "turns", len(sess.Turns))
	return snapshot(sess)
}

// SetState moves the session for id to state. Unknown ids are a no-op.
func (s *ConversationStore) SetState(id string, state models.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	slog.Debug("ConversationStore.SetState: transition", "session", id, "from", sess.State, "to", state)
	sess.State = state
}

// Reset discards any session under id and creates a fresh one. Used when an
// event arrives for an id whose session already ended.
func (s *ConversationStore) Reset(id, callerAddress string) models.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; ok {
		delete(s.sessions, id)
		s.removeFromOrderLocked(id)
	}
	return s.getOrCreateLocked(id, callerAddress)
}

// RecentTurns returns a sequence over the last n turns of the session (fewer
// if history is shorter, empty for unknown ids). The sequence reflects store
// state at call time; later appends are not visible through it.
func (s *ConversationStore) RecentTurns(id string, n int) iter.Seq[models.Turn] {
	s.mu.Lock()
	var turns []models.Turn
	if sess, ok := s.sessions[id]; ok {
		start := len(sess.Turns) - n
		if start < 0 {
			start = 0
		}
		turns = append(turns, sess.Turns[start:]...)
	}
	s.mu.Unlock()

	return func(yield func(models.Turn) bool) {
		for _, t := range turns {
			if !yield(t) {
				return
			}
		}
	}
}

// EvictIfOverCapacity scans the session count and, when it exceeds
// MaxSessions, deletes the oldest sessions by original insertion order until
// RetainSessions remain. Recency of access is deliberately ignored: a long
// silent call is not protected from eviction by later short calls.
func (s *ConversationStore) EvictIfOverCapacity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) <= MaxSessions {
		return
	}
	evicted := 0
	for len(s.sessions) > RetainSessions && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
		evicted++
	}
	slog.Info("ConversationStore.EvictIfOverCapacity: evicted oldest sessions", "evicted", evicted, "remaining", len(s.sessions))
}

// Len reports the number of live sessions.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *ConversationStore) getOrCreateLocked(id, callerAddress string) models.CallSession {
	if sess, ok := s.sessions[id]; ok {
		return snapshot(sess)
	}
	sess := &models.CallSession{
		ID:            id,
		CallerAddress: callerAddress,
		State:         models.StateAwaitingGreeting,
		CreatedAt:     s.now(),
	}
	s.sessions[id] = sess
	s.order = append(s.order, id)
	slog.Debug("ConversationStore: created session", "session", id, "caller", callerAddress)
	return snapshot(sess)
}

func (s *ConversationStore) removeFromOrderLocked(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// snapshot copies a session so callers never observe later mutation.
func snapshot(sess *models.CallSession) models.CallSession {
	cp := *sess
	cp.Turns = append([]models.Turn(nil), sess.Turns...)
	return cp
}
