package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	return NewMemoryStore(ttl).WithClock(clock.Now), clock
}

func TestGetOrCreate(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()

	sess, err := store.GetOrCreate(ctx, "call-1", "receipt", "contact_name")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Step != "contact_name" || sess.Flow != "receipt" || len(sess.Fields) != 0 || len(sess.Attempts) != 0 {
		t.Fatalf("unexpected fresh session: %+v", sess)
	}

	err = store.Transition(ctx, "call-1", "receipt", "contact_name", func(s *Session) error {
		s.Fields["contact_name"] = "Dani"
		s.Step = "amount"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	sess, _ = store.GetOrCreate(ctx, "call-1", "receipt", "contact_name")
	if sess.Step != "amount" || sess.Fields["contact_name"] != "Dani" {
		t.Fatalf("transition not committed: %+v", sess)
	}

	// snapshots are copies
	sess.Fields["contact_name"] = "changed"
	again, _ := store.GetOrCreate(ctx, "call-1", "receipt", "contact_name")
	if again.Fields["contact_name"] != "Dani" {
		t.Fatal("snapshot aliases stored session")
	}

	if n, _ := store.Count(ctx); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestTransitionErrorDiscardsChanges(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transition(ctx, "call-1", "login", "password", func(s *Session) error {
		s.Attempts["password"] = 3
		s.Fields["x"] = "y"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	sess, _ := store.GetOrCreate(ctx, "call-1", "login", "password")
	if sess.Attempts["password"] != 0 || len(sess.Fields) != 0 {
		t.Fatalf("failed transition leaked state: %+v", sess)
	}
}

func TestEndRemovesSession(t *testing.T) {
	store, _ := newTestStore(time.Minute)
	ctx := context.Background()

	_ = store.Transition(ctx, "call-1", "login", "password", func(s *Session) error {
		s.Fields["a"] = "b"
		return nil
	})
	_ = store.Transition(ctx, "call-1", "login", "password", func(s *Session) error {
		s.End()
		return nil
	})

	if n, _ := store.Count(ctx); n != 0 {
		t.Fatalf("Count = %d after End, want 0", n)
	}

	sess, _ := store.GetOrCreate(ctx, "call-1", "login", "password")
	if len(sess.Fields) != 0 {
		t.Fatal("ended session came back")
	}
}

func TestExpiry(t *testing.T) {
	store, clock := newTestStore(30 * time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("call-%d", i)
		_ = store.Transition(ctx, id, "receipt", "contact_name", func(s *Session) error {
			s.Step = "amount"
			return nil
		})
	}

	clock.Advance(20 * time.Minute)
	_ = store.Transition(ctx, "call-0", "receipt", "contact_name", func(s *Session) error { return nil })

	clock.Advance(15 * time.Minute)
	removed, err := store.Sweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}

	sess, _ := store.GetOrCreate(ctx, "call-0", "receipt", "contact_name")
	if sess.Step != "amount" {
		t.Fatal("recently active session was swept")
	}

	// lazy expiry on access
	clock.Advance(31 * time.Minute)
	sess, _ = store.GetOrCreate(ctx, "call-0", "receipt", "contact_name")
	if sess.Step != "contact_name" {
		t.Fatalf("expired session reused: %+v", sess)
	}
}

func TestTransitionSerializesSameCall(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Transition(ctx, "call-1", "login", "password", func(s *Session) error {
				n := s.Attempts["password"]
				time.Sleep(time.Microsecond)
				s.Attempts["password"] = n + 1
				return nil
			})
		}()
	}
	wg.Wait()

	sess, _ := store.GetOrCreate(ctx, "call-1", "login", "password")
	if sess.Attempts["password"] != workers {
		t.Fatalf("lost updates: counter = %d, want %d", sess.Attempts["password"], workers)
	}
}

func TestDifferentCallsDoNotBlock(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.Transition(ctx, "slow", "login", "password", func(s *Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	done := make(chan struct{})
	go func() {
		_ = store.Transition(ctx, "fast", "login", "password", func(s *Session) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("transition on another call blocked")
	}

	if removed, _ := store.Sweep(ctx); removed != 0 {
		t.Fatalf("sweep removed %d live sessions", removed)
	}
	close(release)
}

func TestLockWaitBounded(t *testing.T) {
	store := NewMemoryStore(time.Minute).WithLockWait(50 * time.Millisecond)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	go func() {
		_ = store.Transition(ctx, "call-1", "login", "password", func(s *Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := store.Transition(ctx, "call-1", "login", "password", func(s *Session) error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.GetOrCreate(cctx, "call-1", "login", "password"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestClose(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	_ = store.Close()

	if _, err := store.GetOrCreate(context.Background(), "c", "login", "password"); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}
