// Package scanner implements the poll-driven depth scanner: a single-goroutine
// loop that fetches order books for a watch list, evaluates depth signals,
// deduplicates, and dispatches notifications.
package scanner

import (
	"context"
	"fmt"
	"time"

	"depthwatch/internal/dedupe"
	"depthwatch/internal/depth"
	"depthwatch/internal/logger"
	"depthwatch/internal/market"
	"depthwatch/internal/models"
	"depthwatch/internal/notify"
	"depthwatch/internal/recorder"
	"depthwatch/internal/storage"
)

// State describes the runner lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateRunning      State = "running"
	StateBackoff      State = "backoff"
	StateStopped      State = "stopped"
)

// Config holds runner behavior settings.
type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxRetries        int
	ThresholdsPath    string
	BookDepth         int
	Duration          time.Duration // 0 = run until cancelled
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:      30 * time.Second,
		HeartbeatInterval: 60 * time.Second,
		BackoffBase:       2 * time.Second,
		BackoffCap:        300 * time.Second,
		MaxRetries:        5,
		ThresholdsPath:    "./data/thresholds.json",
		BookDepth:         10,
	}
}

// Runner drives the scan loop. It owns no goroutines of its own; Run blocks
// until the context is cancelled, the configured duration elapses, or the
// retry budget is exhausted.
type Runner struct {
	client   market.Client
	policy   dedupe.Policy
	notifier notify.Notifier
	recorder *recorder.Recorder
	store    *storage.Store
	config   Config

	state         State
	stats         *models.RunnerStats
	lastHeartbeat time.Time

	now func() time.Time
}

// New creates a runner. The recorder and store may be nil, in which case tick
// recording and event persistence are skipped.
func New(client market.Client, policy dedupe.Policy, notifier notify.Notifier, rec *recorder.Recorder, store *storage.Store, config Config) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = 30 * time.Second
	}
	if config.BackoffBase <= 0 {
		config.BackoffBase = 2 * time.Second
	}
	if config.BackoffCap <= 0 {
		config.BackoffCap = 300 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 5
	}
	if config.BookDepth <= 0 {
		config.BookDepth = 10
	}
	return &Runner{
		client:   client,
		policy:   policy,
		notifier: notifier,
		recorder: rec,
		store:    store,
		config:   config,
		state:    StateIdle,
		stats:    &models.RunnerStats{},
		now:      time.Now,
	}
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// Stats returns a snapshot of the run counters.
func (r *Runner) Stats() models.StatsSnapshot {
	return r.stats.Snapshot()
}

// backoffDelay computes the delay before retry attempt n (zero-based),
// doubling from the base and saturating at the cap.
func (r *Runner) backoffDelay(retry int) time.Duration {
	delay := r.config.BackoffBase
	for i := 0; i < retry; i++ {
		delay *= 2
		if delay >= r.config.BackoffCap {
			return r.config.BackoffCap
		}
	}
	if delay > r.config.BackoffCap {
		return r.config.BackoffCap
	}
	return delay
}

// Run executes the scan loop until ctx is cancelled, the configured duration
// elapses, or MaxRetries consecutive initialization-class failures occur.
// Every backoff re-enters through Initializing, so the health check runs
// again before scanning resumes. The final summary is logged on every exit
// path.
func (r *Runner) Run(ctx context.Context) error {
	var deadline time.Time
	if r.config.Duration > 0 {
		deadline = r.now().Add(r.config.Duration)
	}

	defer r.logSummary()

	initialized := false
	consecutiveFailures := 0
	for {
		if err := ctx.Err(); err != nil {
			r.state = StateStopped
			return nil
		}
		if !deadline.IsZero() && !r.now().Before(deadline) {
			logger.Info("Configured duration elapsed, stopping")
			r.state = StateStopped
			return nil
		}

		var cycleErr error
		if !initialized {
			r.state = StateInitializing
			if !r.client.HealthCheck(ctx) {
				cycleErr = fmt.Errorf("CLOB API health check failed")
			} else {
				initialized = true
				r.lastHeartbeat = r.now()
				r.state = StateRunning
				logger.Info("Scanner started (poll interval: %v, thresholds: %s)",
					r.config.PollInterval, r.config.ThresholdsPath)
			}
		}
		if cycleErr == nil {
			cycleErr = r.runCycle(ctx)
		}

		if cycleErr != nil {
			if ctx.Err() != nil {
				r.state = StateStopped
				return nil
			}
			consecutiveFailures++
			r.stats.AddError()
			logger.Error("Scan cycle failed (attempt %d/%d): %v",
				consecutiveFailures, r.config.MaxRetries, cycleErr)

			if consecutiveFailures >= r.config.MaxRetries {
				r.state = StateStopped
				return fmt.Errorf("giving up after %d consecutive cycle failures: %w",
					consecutiveFailures, cycleErr)
			}

			r.state = StateBackoff
			delay := r.backoffDelay(consecutiveFailures - 1)
			logger.Info("Backing off %v before retry", delay)
			if !r.sleep(ctx, delay) {
				r.state = StateStopped
				return nil
			}
			// Re-enter through Initializing so the health check runs again.
			initialized = false
			continue
		}
		consecutiveFailures = 0

		r.maybeHeartbeat()

		if !r.sleep(ctx, r.config.PollInterval) {
			r.state = StateStopped
			return nil
		}
	}
}

// runCycle performs one full scan pass: reload thresholds, scan every watched
// market, then sweep stale dedupe entries.
func (r *Runner) runCycle(ctx context.Context) error {
	startTime := r.now()

	// Thresholds are re-read each cycle so edits take effect without a restart.
	thresholds, err := depth.LoadThresholds(r.config.ThresholdsPath)
	if err != nil {
		return fmt.Errorf("failed to load thresholds: %w", err)
	}

	if len(thresholds.WatchList) == 0 {
		logger.Debug("Watch list is empty, nothing to scan")
		r.policy.Sweep()
		return nil
	}

	for _, marketID := range thresholds.WatchList {
		if err := ctx.Err(); err != nil {
			return nil
		}
		r.scanMarket(ctx, marketID, thresholds)
	}

	r.policy.Sweep()

	logger.Debug("Scan cycle completed in %v (%d markets)",
		r.now().Sub(startTime), len(thresholds.WatchList))
	return nil
}

// scanMarket fetches one order book and runs signal evaluation over it.
// Per-market failures are soft: a fetch error or absent book is logged and
// counted, and the rest of the watch list still gets scanned this cycle.
func (r *Runner) scanMarket(ctx context.Context, marketID string, thresholds depth.Thresholds) {
	book, err := r.client.FetchOrderBook(ctx, marketID, r.config.BookDepth)
	if err != nil {
		r.stats.AddError()
		logger.Warn("Failed to fetch order book for market %s: %v", marketID, err)
		return
	}
	if book == nil {
		logger.Debug("No order book for market %s, skipping", marketID)
		return
	}
	r.stats.AddScanned()

	metrics := depth.Analyze(book)
	r.recordTick(marketID, book, metrics)

	signals := depth.DetectSignals(metrics, thresholds)
	for _, signal := range signals {
		if !signal.Triggered {
			continue
		}
		r.stats.AddDetected()

		key := dedupe.SignalKey(marketID, signal.Kind)
		if !r.policy.ShouldFire(key) {
			r.stats.AddDeduplicated()
			logger.Debug("Suppressed duplicate %s signal for market %s", signal.Kind, marketID)
			continue
		}

		logger.Info("Signal detected: %s for market %s: %s", signal.Kind, marketID, signal.Reason)
		if r.notifier != nil && r.notifier.DispatchSignal(marketID, signal) {
			r.stats.AddSent()
		}
		r.policy.MarkFired(key)

		r.appendEvent(marketID, signal, metrics)
	}
}

// recordTick offers a tick to the recorder; the recorder itself decides
// whether the sampling interval admits it.
func (r *Runner) recordTick(marketID string, book *models.OrderBook, metrics models.DepthMetrics) {
	if r.recorder == nil {
		return
	}
	tick := models.Tick{
		MarketID:     marketID,
		DepthSummary: &metrics,
		Timestamp:    r.now(),
	}
	if ask, ok := depth.BestAsk(book.Asks); ok {
		tick.YesPrice = ask
		tick.NoPrice = 1 - ask
	} else if bid, ok := depth.BestBid(book.Bids); ok {
		tick.YesPrice = bid
		tick.NoPrice = 1 - bid
	}
	r.recorder.Record(tick)
}

func (r *Runner) appendEvent(marketID string, signal models.Signal, metrics models.DepthMetrics) {
	if r.store == nil {
		return
	}
	event := storage.DepthEvent{
		Timestamp:  r.now(),
		MarketID:   marketID,
		Metrics:    metrics,
		SignalType: signal.Kind,
		Reason:     signal.Reason,
		Mode:       "scan",
	}
	if err := r.store.AppendEvent(event); err != nil {
		logger.Warn("Failed to persist depth event for %s: %v", marketID, err)
	}
}

// maybeHeartbeat logs a liveness line when the heartbeat interval has passed.
func (r *Runner) maybeHeartbeat() {
	if r.config.HeartbeatInterval <= 0 {
		return
	}
	now := r.now()
	if now.Sub(r.lastHeartbeat) < r.config.HeartbeatInterval {
		return
	}
	snap := r.stats.Snapshot()
	logger.Info("Heartbeat: %d scanned, %d signals, %d sent, %d deduplicated, %d errors",
		snap.MarketsScanned, snap.SignalsDetected, snap.AlertsSent,
		snap.AlertsDeduplicated, snap.Errors)
	r.lastHeartbeat = now
}

// logSummary emits the final run summary. It is logged unconditionally, even
// for a run that scanned nothing.
func (r *Runner) logSummary() {
	snap := r.stats.Snapshot()
	logger.Info("Scan summary: %d markets scanned, %d signals detected, %d alerts sent, %d deduplicated, %d errors",
		snap.MarketsScanned, snap.SignalsDetected, snap.AlertsSent,
		snap.AlertsDeduplicated, snap.Errors)
}

// sleep waits for d or until ctx is cancelled; it reports false on cancel.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
