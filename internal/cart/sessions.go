package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type session struct {
	cart     *Cart
	lastSeen time.Time
}

// Sessions holds one cart per shopper session in process memory. Carts idle for longer
// than the TTL are discarded; nothing survives a restart.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessions(ttl time.Duration, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the cart of an existing session, or false when the id is unknown or expired.
func (s *Sessions) Get(id string) (*Cart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(sess) {
		delete(s.sessions, id)
		return nil, false
	}
	sess.lastSeen = s.now()
	return sess.cart, true
}

// GetOrCreate returns the session's cart, starting a new session with a fresh id when
// id is empty, unknown or expired. The returned id is the one to use from now on.
func (s *Sessions) GetOrCreate(id string) (string, *Cart) {
	if c, ok := s.Get(id); ok {
		return id, c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	newID := uuid.NewString()
	c := New()
	s.sessions[newID] = &session{cart: c, lastSeen: s.now()}
	return newID, c
}

// Drop ends a session.
func (s *Sessions) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and reports how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Debug("expired cart sessions removed", zap.Int("count", n))
			}
		}
	}
}

func (s *Sessions) expired(sess *session) bool {
	return s.ttl > 0 && s.now().Sub(sess.lastSeen) > s.ttl
}
