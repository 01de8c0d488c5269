package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Ananth-NQI/pbx-ivr-backend/internal/metrics"
	"github.com/Ananth-NQI/pbx-ivr-backend/internal/session"
)

// SessionSweepJob evicts idle call sessions on a fixed interval
type SessionSweepJob struct {
	store    session.Store
	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	stop      chan struct{}
	done      chan struct{}
}

// DefaultSweepInterval is used when the configured interval is not positive
const DefaultSweepInterval = 5 * time.Minute

// NewSessionSweepJob creates a new sweep job
func NewSessionSweepJob(store session.Store, interval time.Duration) *SessionSweepJob {
	if interval <= 0 {
		log.Printf("⚠️  Invalid session sweep interval %v, using %v", interval, DefaultSweepInterval)
		interval = DefaultSweepInterval
	}
	return &SessionSweepJob{
		store:    store,
		interval: interval,
	}
}

// Start begins sweeping in the background
func (j *SessionSweepJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isRunning {
		log.Println("Session sweep job already running")
		return
	}

	j.isRunning = true
	j.stop = make(chan struct{})
	j.done = make(chan struct{})

	go j.run(j.stop, j.done)
	log.Printf("🧹 Session sweep job started (every %v)", j.interval)
}

// Stop halts the job and waits for an in-flight sweep to finish
func (j *SessionSweepJob) Stop() {
	j.mu.Lock()
	if !j.isRunning {
		j.mu.Unlock()
		return
	}
	j.isRunning = false
	close(j.stop)
	done := j.done
	j.mu.Unlock()

	<-done
	log.Println("Session sweep job stopped")
}

func (j *SessionSweepJob) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			j.RunOnce(context.Background())
		}
	}
}

// RunOnce sweeps expired sessions and refreshes the session gauge
func (j *SessionSweepJob) RunOnce(ctx context.Context) int {
	removed, err := j.store.Sweep(ctx)
	if err != nil {
		log.Printf("Error sweeping sessions: %v", err)
		return 0
	}
	if removed > 0 {
		metrics.SessionsSwept.Add(float64(removed))
		log.Printf("🧹 Swept %d idle sessions", removed)
	}

	if count, err := j.store.Count(ctx); err == nil {
		metrics.ActiveSessions.Set(float64(count))
	}
	return removed
}
