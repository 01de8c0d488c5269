package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newRedisTestStore needs a disposable redis, e.g. REDIS_TEST_ADDR=localhost:6379
func newRedisTestStore(t *testing.T, opts ...RedisOption) *RedisStore {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	opts = append([]RedisOption{WithLockWait(500 * time.Millisecond)}, opts...)
	store := NewRedisStore(client, time.Minute, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisTransition(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()
	callID := "test-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.Delete(ctx, callID) })

	err := store.Transition(ctx, callID, "receipt", "contact_name", func(s *Session) error {
		s.Fields["contact_name"] = "Noa"
		s.Step = "amount"
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	err = store.Transition(ctx, callID, "receipt", "contact_name", func(s *Session) error {
		s.Step = "description"
		return errors.New("rejected")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	sess, err := store.GetOrCreate(ctx, callID, "receipt", "contact_name")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Step != "amount" || sess.Fields["contact_name"] != "Noa" {
		t.Fatalf("session = %+v", sess)
	}

	_ = store.Transition(ctx, callID, "receipt", "contact_name", func(s *Session) error {
		s.End()
		return nil
	})
	n, err := store.client.Exists(ctx, store.key(callID)).Result()
	if err != nil || n != 0 {
		t.Fatalf("ended session still stored: %d, %v", n, err)
	}
}

func TestRedisLockTimeout(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()
	callID := "lock-" + time.Now().Format("150405.000000")

	lock, err := store.acquire(ctx, callID)
	if err != nil {
		t.Fatal(err)
	}
	defer store.release(lock)

	err = store.Transition(ctx, callID, "login", "password", func(s *Session) error { return nil })
	if !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("err = %v, want ErrLockTimeout", err)
	}
}

func TestRedisLockRenewedDuringSlowTransition(t *testing.T) {
	store := newRedisTestStore(t, WithLockTTL(300*time.Millisecond))
	ctx := context.Background()
	callID := "slow-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.Delete(ctx, callID) })

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- store.Transition(ctx, callID, "receipt", "contact_name", func(s *Session) error {
			close(started)
			time.Sleep(time.Second)
			s.Step = "amount"
			return nil
		})
	}()

	<-started
	time.Sleep(600 * time.Millisecond)
	if ok, err := store.client.SetNX(ctx, store.lockKey(callID), "intruder", time.Second).Result(); err != nil || ok {
		t.Fatalf("lock taken while holder is alive: ok=%v err=%v", ok, err)
	}

	if err := <-errc; err != nil {
		t.Fatalf("slow transition: %v", err)
	}
	sess, err := store.GetOrCreate(ctx, callID, "receipt", "contact_name")
	if err != nil {
		t.Fatal(err)
	}
	if sess.Step != "amount" {
		t.Fatalf("step = %q, want amount", sess.Step)
	}
}

func TestRedisCommitRefusedAfterLockLost(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()
	callID := "lost-" + time.Now().Format("150405.000000")
	t.Cleanup(func() { _ = store.Delete(ctx, callID) })

	err := store.Transition(ctx, callID, "login", "password", func(s *Session) error {
		// another holder takes over the lock mid-transition
		if err := store.client.Set(ctx, store.lockKey(callID), "other", time.Second).Err(); err != nil {
			t.Fatal(err)
		}
		s.Step = "done"
		return nil
	})
	if !errors.Is(err, ErrLockLost) {
		t.Fatalf("err = %v, want ErrLockLost", err)
	}

	n, err := store.client.Exists(ctx, store.key(callID)).Result()
	if err != nil || n != 0 {
		t.Fatalf("session written without the lock: %d, %v", n, err)
	}
	if v, _ := store.client.Get(ctx, store.lockKey(callID)).Result(); v != "other" {
		t.Fatalf("other holder's lock released: %q", v)
	}
	_ = store.client.Del(ctx, store.lockKey(callID)).Err()
}
