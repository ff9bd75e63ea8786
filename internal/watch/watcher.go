// Package watch implements the stream-driven price alert watcher. It
// subscribes to the market feed for every market with a pending alert and
// evaluates alerts against each book update as it arrives.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"depthwatch/internal/alerts"
	"depthwatch/internal/dedupe"
	"depthwatch/internal/logger"
	"depthwatch/internal/market"
	"depthwatch/internal/models"
)

// TriggerFunc is invoked for each alert that fires. Panics in the callback
// are recovered so one bad handler cannot take down the feed loop.
type TriggerFunc func(alert models.PriceAlert)

// Watcher evaluates price alerts against live book updates. Refires are
// gated by a cooldown policy keyed by alert identity.
type Watcher struct {
	client market.Client
	store  *alerts.Store
	policy dedupe.Policy
	onFire TriggerFunc

	mu     sync.Mutex
	active map[string]models.PriceAlert

	sub *market.Subscription
	now func() time.Time
}

// New creates a watcher. The policy is typically a dedupe.Tracker with the
// cooldown window; a zero window lets alerts refire on every qualifying
// update.
func New(client market.Client, store *alerts.Store, policy dedupe.Policy, onFire TriggerFunc) *Watcher {
	return &Watcher{
		client: client,
		store:  store,
		policy: policy,
		onFire: onFire,
		active: make(map[string]models.PriceAlert),
		now:    time.Now,
	}
}

// Start loads the persisted alerts and opens the market subscription. It
// returns an error when no alerts exist or the subscription cannot be
// established.
func (w *Watcher) Start(ctx context.Context) error {
	loaded, err := w.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	if len(loaded) == 0 {
		return fmt.Errorf("no price alerts configured")
	}

	w.mu.Lock()
	w.active = loaded
	marketIDs := lo.Uniq(lo.Map(lo.Values(loaded), func(a models.PriceAlert, _ int) string {
		return a.MarketID
	}))
	w.mu.Unlock()

	sub, err := w.client.Subscribe(ctx, marketIDs, w.handleUpdate, w.handleError)
	if err != nil {
		return fmt.Errorf("failed to subscribe to market feed: %w", err)
	}
	w.sub = sub

	logger.Info("Watching %d alert(s) across %d market(s)", len(loaded), len(marketIDs))
	return nil
}

// Stop closes the subscription. Safe to call when Start failed.
func (w *Watcher) Stop() {
	if w.sub != nil {
		w.sub.Close()
	}
}

// handleUpdate evaluates every alert on the updated market. The current
// price resolves to the YES best ask when present, otherwise the YES best
// bid; an update carrying neither is ignored.
func (w *Watcher) handleUpdate(update models.BookUpdate) {
	price, ok := resolvePrice(update)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for id, alert := range w.active {
		if alert.MarketID != update.MarketID {
			continue
		}
		if !crossed(alert, price) {
			continue
		}

		if !w.policy.ShouldFire(id) {
			continue
		}
		w.policy.MarkFired(id)

		now := w.now()
		alert.Triggered = true
		alert.TriggeredAt = &now
		alert.CurrentPrice = price
		alert.Message = fmt.Sprintf("Price %.4f crossed %s %.4f",
			price, alert.Direction, alert.TargetPrice)
		w.active[id] = alert

		logger.Info("Alert triggered: market %s price %.4f %s target %.4f",
			alert.MarketID, price, alert.Direction, alert.TargetPrice)

		if err := w.store.Save(w.active); err != nil {
			logger.Warn("Failed to persist triggered alert %s: %v", id, err)
		}

		w.fire(alert)
	}
}

func (w *Watcher) handleError(err error) {
	logger.Error("Market feed error: %v", err)
}

// fire invokes the trigger callback, containing any panic it raises.
func (w *Watcher) fire(alert models.PriceAlert) {
	if w.onFire == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Alert callback panicked for %s: %v", alert.ID, r)
		}
	}()
	w.onFire(alert)
}

// crossed reports whether the price satisfies the alert condition. The
// comparison is strict; a price exactly at the target does not fire.
func crossed(alert models.PriceAlert, price float64) bool {
	switch alert.Direction {
	case models.DirectionAbove:
		return price > alert.TargetPrice
	case models.DirectionBelow:
		return price < alert.TargetPrice
	default:
		return false
	}
}

func resolvePrice(update models.BookUpdate) (float64, bool) {
	if update.YesBestAsk != nil {
		return *update.YesBestAsk, true
	}
	if update.YesBestBid != nil {
		return *update.YesBestBid, true
	}
	return 0, false
}
