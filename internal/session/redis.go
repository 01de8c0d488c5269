package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "ivr:session:"
	lockKeyPrefix    = "ivr:lock:"

	defaultRedisTTL = 30 * time.Minute
	defaultLockTTL  = 10 * time.Second
	defaultLockWait = 3 * time.Second
	lockRetryDelay  = 20 * time.Millisecond
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the lock's expiry out while we still hold it.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// commitScript writes (or deletes, when ARGV[2] is empty) the session only
// while KEYS[1] still holds our token.
var commitScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == "" then
	redis.call("DEL", KEYS[2])
else
	redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
end
return 1
`)

// RedisStore keeps sessions in Redis so several backend instances can share
// calls. Idle expiry is the key TTL, refreshed on every write.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	lockTTL  time.Duration
	lockWait time.Duration
	now      func() time.Time
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithLockWait bounds how long a transition waits for the call's lock.
func WithLockWait(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

// WithLockTTL sets how long a held lock survives a crashed holder. Live
// holders renew it every third of d.
func WithLockTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.lockTTL = d
		}
	}
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, ttl time.Duration, opts ...RedisOption) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	s := &RedisStore{
		client:   client,
		ttl:      ttl,
		lockTTL:  defaultLockTTL,
		lockWait: defaultLockWait,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session and lock keys share a hash tag so the commit script stays in one slot.
func (s *RedisStore) key(callID string) string {
	return sessionKeyPrefix + "{" + callID + "}"
}

func (s *RedisStore) lockKey(callID string) string {
	return lockKeyPrefix + "{" + callID + "}"
}

// redisLock is a held call lock. It is renewed in the background until
// release is called.
type redisLock struct {
	key   string
	token string
	stop  chan struct{}
	done  chan struct{}
}

// acquire takes the call's lock and starts renewing it.
func (s *RedisStore) acquire(ctx context.Context, callID string) (*redisLock, error) {
	token := uuid.NewString()
	key := s.lockKey(callID)

	wctx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	for {
		ok, err := s.client.SetNX(wctx, key, token, s.lockTTL).Result()
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("acquire lock %s: %w", callID, err)
		}
		if ok {
			l := &redisLock{key: key, token: token, stop: make(chan struct{}), done: make(chan struct{})}
			go s.keepAlive(l)
			return l, nil
		}

		select {
		case <-wctx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, ErrLockTimeout
		case <-time.After(lockRetryDelay):
		}
	}
}

// keepAlive extends the lock every third of its TTL so a slow transition
// keeps exclusive access.
func (s *RedisStore) keepAlive(l *redisLock) {
	defer close(l.done)

	ticker := time.NewTicker(s.lockTTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.lockTTL/3)
			held, err := extendScript.Run(ctx, s.client, []string{l.key}, l.token, s.lockTTL.Milliseconds()).Int()
			cancel()
			if err == nil && held == 0 {
				log.Printf("⚠️  Session lock %s lost before release", l.key)
				return
			}
		}
	}
}

// release stops renewal and deletes the lock if it is still ours.
func (s *RedisStore) release(l *redisLock) {
	close(l.stop)
	<-l.done

	// fresh context, the caller's may be done
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, s.client, []string{l.key}, l.token).Err()
}

func (s *RedisStore) load(ctx context.Context, callID, flow, initialStep string) (*Session, error) {
	val, err := s.client.Get(ctx, s.key(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return New(callID, flow, initialStep, s.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", callID, err)
	}

	var sess Session
	if err := json.Unmarshal(val, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", callID, err)
	}
	if sess.Fields == nil {
		sess.Fields = make(map[string]string)
	}
	if sess.Attempts == nil {
		sess.Attempts = make(map[string]int)
	}
	if sess.Expired(s.now(), s.ttl) {
		return New(callID, flow, initialStep, s.now()), nil
	}
	return &sess, nil
}

// commit stores sess, or deletes it once ended, provided l is still held.
func (s *RedisStore) commit(ctx context.Context, l *redisLock, sess *Session) error {
	var val []byte
	if !sess.Ended() {
		var err error
		if val, err = json.Marshal(sess); err != nil {
			return fmt.Errorf("encode session %s: %w", sess.CallID, err)
		}
	}

	keys := []string{l.key, s.key(sess.CallID)}
	held, err := commitScript.Run(ctx, s.client, keys, l.token, string(val), s.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("save session %s: %w", sess.CallID, err)
	}
	if held == 0 {
		return ErrLockLost
	}
	return nil
}

// GetOrCreate implements Store.
func (s *RedisStore) GetOrCreate(ctx context.Context, callID, flow, initialStep string) (*Session, error) {
	var snapshot *Session
	err := s.Transition(ctx, callID, flow, initialStep, func(sess *Session) error {
		snapshot = sess.Clone()
		return nil
	})
	return snapshot, err
}

// Transition implements Store.
func (s *RedisStore) Transition(ctx context.Context, callID, flow, initialStep string, fn TransitionFunc) error {
	lock, err := s.acquire(ctx, callID)
	if err != nil {
		return err
	}
	defer s.release(lock)

	sess, err := s.load(ctx, callID, flow, initialStep)
	if err != nil {
		return err
	}

	if err := fn(sess); err != nil {
		return err
	}

	sess.LastActive = s.now()
	return s.commit(ctx, lock, sess)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	return s.client.Del(ctx, s.key(callID)).Err()
}

// Sweep implements Store. Redis expires idle keys on its own.
func (s *RedisStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count := 0
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
