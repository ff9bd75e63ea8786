// Package recorder provides non-blocking market tick recording. A bounded
// channel and a single worker goroutine decouple the hot path from durable
// writes, with per-market sampling to avoid over-recording.
package recorder

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"depthwatch/internal/logger"
	"depthwatch/internal/models"
)

// TickWriter persists accepted ticks.
type TickWriter interface {
	AppendTick(tick models.Tick) error
}

// Stats is a point-in-time copy of the recorder counters.
type Stats struct {
	Queued          int64
	Recorded        int64
	SkippedSampling int64
	Dropped         int64
	Errors          int64
}

// Recorder accepts ticks on the hot path and writes them asynchronously.
// Record may be called concurrently from many producers; a single worker
// consumes the queue.
type Recorder struct {
	store    TickWriter
	sampling time.Duration

	queue    chan models.Tick
	shutdown chan struct{}
	done     chan struct{}

	mu           sync.Mutex
	lastRecorded map[string]time.Time
	started      bool

	queued          atomic.Int64
	recorded        atomic.Int64
	skippedSampling atomic.Int64
	dropped         atomic.Int64
	errors          atomic.Int64

	now func() time.Time
}

// New creates a recorder writing to store, with the given per-market
// sampling interval and queue capacity.
func New(store TickWriter, sampling time.Duration, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Recorder{
		store:        store,
		sampling:     sampling,
		queue:        make(chan models.Tick, queueSize),
		shutdown:     make(chan struct{}),
		done:         make(chan struct{}),
		lastRecorded: make(map[string]time.Time),
		now:          time.Now,
	}
}

// Start launches the background worker.
func (r *Recorder) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		logger.Warn("Recorder worker is already running")
		return
	}
	r.started = true
	r.mu.Unlock()

	go r.workerLoop()
	logger.Info("Recorder started (sampling: %v)", r.sampling)
}

// Record queues a tick for recording. Non-blocking and synchronous: a tick
// within the sampling interval of the market's last accepted tick is
// rejected, and a full queue rejects without consuming the sampling slot.
// Ticks offered after shutdown has begun are rejected. Returns true if the
// tick was queued.
func (r *Recorder) Record(tick models.Tick) bool {
	// Once shutdown has begun the drain may already have passed; a tick
	// enqueued now would be accepted but never written.
	select {
	case <-r.shutdown:
		r.dropped.Add(1)
		return false
	default:
	}

	if tick.Timestamp.IsZero() {
		tick.Timestamp = r.now()
	}

	r.mu.Lock()
	last, seen := r.lastRecorded[tick.MarketID]
	if seen && r.now().Sub(last) < r.sampling {
		r.mu.Unlock()
		r.skippedSampling.Add(1)
		return false
	}

	select {
	case r.queue <- tick:
		r.lastRecorded[tick.MarketID] = r.now()
		r.mu.Unlock()
		r.queued.Add(1)
		return true
	default:
		r.mu.Unlock()
		r.dropped.Add(1)
		return false
	}
}

// Stop signals shutdown and blocks until the worker has drained all queued
// ticks and exited, or the timeout elapses.
func (r *Recorder) Stop(timeout time.Duration) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	logger.Info("Stopping recorder...")
	close(r.shutdown)

	select {
	case <-r.done:
		s := r.Stats()
		logger.Info("Recorder stopped. Stats: queued=%d recorded=%d skipped=%d dropped=%d errors=%d",
			s.Queued, s.Recorded, s.SkippedSampling, s.Dropped, s.Errors)
		return nil
	case <-time.After(timeout):
		logger.Warn("Recorder worker did not stop cleanly")
		return errors.New("recorder worker did not stop within timeout")
	}
}

// Stats returns a copy of the counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Queued:          r.queued.Load(),
		Recorded:        r.recorded.Load(),
		SkippedSampling: r.skippedSampling.Load(),
		Dropped:         r.dropped.Load(),
		Errors:          r.errors.Load(),
	}
}

func (r *Recorder) workerLoop() {
	defer close(r.done)
	logger.Debug("Recorder worker started")

	for {
		select {
		case tick := <-r.queue:
			r.writeTick(tick)
		case <-r.shutdown:
			r.drain()
			logger.Debug("Recorder worker stopped")
			return
		}
	}
}

// drain writes all remaining queued ticks; no data loss for accepted ticks.
func (r *Recorder) drain() {
	for {
		select {
		case tick := <-r.queue:
			r.writeTick(tick)
		default:
			return
		}
	}
}

func (r *Recorder) writeTick(tick models.Tick) {
	if err := r.store.AppendTick(tick); err != nil {
		logger.Error("Error writing tick for %s: %v", tick.MarketID, err)
		r.errors.Add(1)
		return
	}
	r.recorded.Add(1)
}
