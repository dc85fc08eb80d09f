package coach

import (
	"sync"
	"sync/atomic"
)

// SessionContext identifies the form instance a submission was made from.
// Generation increases every time a submission changes the stored profile;
// it guards against replaying an old form and carries no business state.
type SessionContext struct {
	UserID     string
	Generation uint64
}

type userSession struct {
	busy sync.Mutex
	gen  atomic.Uint64
}

// Sessions tracks the current form generation per user and admits one
// submission per user at a time.
type Sessions struct {
	mu    sync.Mutex
	users map[string]*userSession
}

// NewSessions returns an empty registry. Every user starts at generation 0.
func NewSessions() *Sessions {
	return &Sessions{users: make(map[string]*userSession)}
}

func (s *Sessions) get(userID string) *userSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.users[userID]
	if !ok {
		us = &userSession{}
		s.users[userID] = us
	}
	return us
}

// Current returns the live form context for userID.
func (s *Sessions) Current(userID string) SessionContext {
	return SessionContext{UserID: userID, Generation: s.get(userID).gen.Load()}
}

// turn is an admitted submission. It must be released.
type turn struct {
	us *userSession
}

// acquire admits a submission made from sc, or fails with ErrStaleForm or
// ErrSubmissionInProgress.
func (s *Sessions) acquire(sc SessionContext) (*turn, error) {
	us := s.get(sc.UserID)
	if !us.busy.TryLock() {
		return nil, ErrSubmissionInProgress
	}
	if us.gen.Load() != sc.Generation {
		us.busy.Unlock()
		return nil, ErrStaleForm
	}
	return &turn{us: us}, nil
}

// advance moves the user to the next form generation and returns it.
func (t *turn) advance() uint64 { return t.us.gen.Add(1) }

func (t *turn) generation() uint64 { return t.us.gen.Load() }

func (t *turn) release() { t.us.busy.Unlock() }
