package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLockTimeout is returned when the per-call lock could not be taken in time
	ErrLockTimeout = errors.New("session lock timeout")

	// ErrLockLost is returned when the call's lock expired before the
	// transition committed. Nothing is written.
	ErrLockLost = errors.New("session lock lost")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("session store closed")
)

// Session is the conversational state of one phone call.
type Session struct {
	CallID     string            `json:"call_id"`
	Phone      string            `json:"phone"`
	Flow       string            `json:"flow"`
	Step       string            `json:"step"`
	CustomerID uint              `json:"customer_id,omitempty"`
	Fields     map[string]string `json:"fields"`
	Attempts   map[string]int    `json:"attempts"`
	Locked     bool              `json:"locked,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	LastActive time.Time         `json:"last_active"`

	ended bool
}

// New creates a session positioned at the flow's initial step.
func New(callID, flow, initialStep string, now time.Time) *Session {
	return &Session{
		CallID:     callID,
		Flow:       flow,
		Step:       initialStep,
		Fields:     make(map[string]string),
		Attempts:   make(map[string]int),
		CreatedAt:  now,
		LastActive: now,
	}
}

// Restart switches the session to another flow, dropping collected state.
// A locked session stays locked.
func (s *Session) Restart(flow, initialStep string) {
	s.Flow = flow
	s.Step = initialStep
	s.CustomerID = 0
	s.Fields = make(map[string]string)
	s.Attempts = make(map[string]int)
}

// End marks the session for removal once the current transition commits.
func (s *Session) End() {
	s.ended = true
}

// Ended reports whether End was called during this transition.
func (s *Session) Ended() bool {
	return s.ended
}

// Expired reports whether the session has been idle longer than ttl.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActive) > ttl
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		c.Fields[k] = v
	}
	c.Attempts = make(map[string]int, len(s.Attempts))
	for k, v := range s.Attempts {
		c.Attempts[k] = v
	}
	return &c
}

// TransitionFunc mutates a working copy of the session. Returning an error
// discards every change made by the call.
type TransitionFunc func(s *Session) error

// Store keeps per-call sessions. All mutation goes through Transition, which
// holds the call's lock for the duration of fn.
type Store interface {
	// GetOrCreate returns a snapshot of the call's session, creating it at
	// the flow's initial step when absent or expired.
	GetOrCreate(ctx context.Context, callID, flow, initialStep string) (*Session, error)

	// Transition runs fn under the call's lock against a working copy of the
	// session (created if needed) and commits it when fn returns nil. A
	// session that was End()ed is removed instead of committed.
	Transition(ctx context.Context, callID, flow, initialStep string, fn TransitionFunc) error

	// Delete removes the call's session.
	Delete(ctx context.Context, callID string) error

	// Sweep evicts sessions idle longer than the store's TTL.
	Sweep(ctx context.Context) (int, error)

	// Count returns the number of live sessions.
	Count(ctx context.Context) (int, error)

	Close() error
}
