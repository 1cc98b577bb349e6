package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/MJE43/math-marauders-go/internal/config"
	"github.com/MJE43/math-marauders-go/internal/run"
)

// DefaultMaxSessions caps live runs held in memory
const DefaultMaxSessions = 1024

// session is one live run. The engine is not goroutine-safe; every access goes
// through mu.
type session struct {
	id        uuid.UUID
	mu        sync.Mutex
	engine    *run.Engine
	persisted bool
	touched   time.Time
}

// sessionRegistry holds live runs by id. When full, the least recently used run
// is dropped.
type sessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	max      int
	now      func() time.Time
}

func newSessionRegistry(max int) *sessionRegistry {
	if max <= 0 {
		max = DefaultMaxSessions
	}
	return &sessionRegistry{
		sessions: make(map[uuid.UUID]*session),
		max:      max,
		now:      time.Now,
	}
}

func (r *sessionRegistry) create(t config.Tuning, opts ...run.Option) *session {
	s := &session{
		id:      uuid.New(),
		engine:  run.New(t, opts...),
		touched: r.now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		oldest := lo.MinBy(lo.Values(r.sessions), func(a, b *session) bool {
			return a.lastTouched().Before(b.lastTouched())
		})
		delete(r.sessions, oldest.id)
	}
	r.sessions[s.id] = s
	return s
}

func (r *sessionRegistry) get(id uuid.UUID) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *sessionRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// lock acquires the session and marks it used
func (s *session) lock(now time.Time) {
	s.mu.Lock()
	s.touched = now
}

func (s *session) unlock() { s.mu.Unlock() }

// lastTouched may be called without holding the session lock
func (s *session) lastTouched() time.Time {
	if s.mu.TryLock() {
		defer s.mu.Unlock()
		return s.touched
	}
	// Busy sessions count as fresh.
	return time.Now()
}
