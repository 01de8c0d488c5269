package session

import (
	"context"
	"sync"
	"time"
)

const memoryLockPoll = 2 * time.Millisecond

// MemoryStore keeps sessions in process memory with one lock per call.
type MemoryStore struct {
	mu       sync.Mutex
	entries  map[string]*entry
	ttl      time.Duration
	lockWait time.Duration
	now      func() time.Time
	closed   bool
}

type entry struct {
	mu      sync.Mutex
	sess    *Session
	removed bool
}

// NewMemoryStore creates an in-memory store expiring sessions idle longer than ttl.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]*entry),
		ttl:      ttl,
		lockWait: defaultLockWait,
		now:      time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.now = now
	return m
}

// WithLockWait bounds how long a transition waits for the call's lock.
func (m *MemoryStore) WithLockWait(d time.Duration) *MemoryStore {
	if d > 0 {
		m.lockWait = d
	}
	return m
}

// lock returns the call's entry with its mutex held, creating it if needed.
// It gives up with ErrLockTimeout after lockWait, or when ctx is done.
func (m *MemoryStore) lock(ctx context.Context, callID, flow, initialStep string) (*entry, error) {
	deadline := time.NewTimer(m.lockWait)
	defer deadline.Stop()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		e, exists := m.entries[callID]
		if !exists {
			e = &entry{sess: New(callID, flow, initialStep, m.now())}
			m.entries[callID] = e
		}
		m.mu.Unlock()

		for !e.mu.TryLock() {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-deadline.C:
				return nil, ErrLockTimeout
			case <-time.After(memoryLockPoll):
			}
		}
		if e.removed {
			// swept or deleted while we waited, start over with a fresh entry
			e.mu.Unlock()
			continue
		}
		if e.sess.Expired(m.now(), m.ttl) {
			e.sess = New(callID, flow, initialStep, m.now())
		}
		return e, nil
	}
}

func (m *MemoryStore) remove(callID string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.entries[callID] == e {
		delete(m.entries, callID)
	}
	e.removed = true
}

// GetOrCreate implements Store.
func (m *MemoryStore) GetOrCreate(ctx context.Context, callID, flow, initialStep string) (*Session, error) {
	e, err := m.lock(ctx, callID, flow, initialStep)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()

	return e.sess.Clone(), nil
}

// Transition implements Store.
func (m *MemoryStore) Transition(ctx context.Context, callID, flow, initialStep string, fn TransitionFunc) error {
	e, err := m.lock(ctx, callID, flow, initialStep)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := e.sess.Clone()
	if err := fn(work); err != nil {
		return err
	}

	if work.Ended() {
		m.remove(callID, e)
		return nil
	}

	work.LastActive = m.now()
	e.sess = work
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, callID string) error {
	m.mu.Lock()
	e, exists := m.entries[callID]
	m.mu.Unlock()
	if !exists {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	m.remove(callID, e)
	return nil
}

// Sweep implements Store. Entries locked by an in-flight transition are
// active by definition and skipped.
func (m *MemoryStore) Sweep(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for callID, e := range m.entries {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.Expired(now, m.ttl) {
			delete(m.entries, callID)
			e.removed = true
			removed++
		}
		e.mu.Unlock()
	}

	return removed, nil
}

// Count implements Store.
func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.entries = make(map[string]*entry)
	return nil
}
