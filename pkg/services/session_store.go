package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound is returned for unknown or purged session ids.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionBusy is returned when an action is already running on the session.
	ErrSessionBusy = errors.New("session is busy")
)

// ForecastSession holds the single cached forecast model of one user session.
// Actions on a session run one at a time; see Begin.
type ForecastSession struct {
	ID        string
	CreatedAt time.Time

	action sync.Mutex

	mu       sync.RWMutex
	model    *ForecastModel
	lastUsed time.Time
}

// Begin marks the start of an action. It fails with ErrSessionBusy instead of
// waiting when another action holds the session. Call release when done.
func (s *ForecastSession) Begin() (release func(), err error) {
	if !s.action.TryLock() {
		return nil, ErrSessionBusy
	}
	return s.action.Unlock, nil
}

// Model returns the cached model, or nil.
func (s *ForecastSession) Model() *ForecastModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Install replaces the cached model.
func (s *ForecastSession) Install(model *ForecastModel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
}

// Clear drops the cached model.
func (s *ForecastSession) Clear() { s.Install(nil) }

func (s *ForecastSession) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *ForecastSession) idleSince() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUsed
}

// SessionStore keeps sessions in memory and forgets the ones left idle.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*ForecastSession
	idle     time.Duration
	now      func() time.Time
	logger   *zap.Logger
	metrics  *PipelineMetrics
}

// NewSessionStore creates a store. idle <= 0 disables purging.
func NewSessionStore(idle time.Duration, logger *zap.Logger, metrics *PipelineMetrics) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		sessions: make(map[string]*ForecastSession),
		idle:     idle,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}
}

// Create opens a new session with an empty model slot.
func (st *SessionStore) Create() *ForecastSession {
	now := st.now()
	s := &ForecastSession{ID: uuid.NewString(), CreatedAt: now, lastUsed: now}

	st.mu.Lock()
	st.sessions[s.ID] = s
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.SetActiveSessions(n)
	st.logger.Debug("session created", zap.String("session_id", s.ID))
	return s
}

// Get returns the session and marks it as used.
func (st *SessionStore) Get(id string) (*ForecastSession, error) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(st.now())
	return s, nil
}

// Delete closes a session. It reports whether the session existed.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	n := len(st.sessions)
	st.mu.Unlock()

	st.metrics.SetActiveSessions(n)
	return ok
}

// Len is the number of open sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// PurgeIdle removes sessions unused for longer than the idle timeout and
// returns how many were removed.
func (st *SessionStore) PurgeIdle() int {
	if st.idle <= 0 {
		return 0
	}
	deadline := st.now().Add(-st.idle)

	st.mu.Lock()
	removed := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(deadline) {
			delete(st.sessions, id)
			removed++
		}
	}
	n := len(st.sessions)
	st.mu.Unlock()

	if removed > 0 {
		st.metrics.SetActiveSessions(n)
		st.logger.Info("idle sessions purged", zap.Int("removed", removed), zap.Int("remaining", n))
	}
	return removed
}

// RunJanitor purges idle sessions every interval until ctx is done.
func (st *SessionStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st.PurgeIdle()
		}
	}
}
