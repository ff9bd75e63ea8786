package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthwatch/internal/dedupe"
	"depthwatch/internal/depth"
	"depthwatch/internal/market"
	"depthwatch/internal/models"
)

type fakeClient struct {
	books        map[string]*models.OrderBook
	errs         map[string]error
	fetches      int
	healthChecks int
	healthyAfter int // health checks fail until this many have been made
}

func (f *fakeClient) FetchOrderBook(ctx context.Context, marketID string, bookDepth int) (*models.OrderBook, error) {
	f.fetches++
	if err := f.errs[marketID]; err != nil {
		return nil, err
	}
	return f.books[marketID], nil
}

func (f *fakeClient) HealthCheck(ctx context.Context) bool {
	f.healthChecks++
	return f.healthChecks > f.healthyAfter
}

func (f *fakeClient) Subscribe(ctx context.Context, marketIDs []string, onUpdate func(models.BookUpdate), onError func(error)) (*market.Subscription, error) {
	return nil, errors.New("not implemented")
}

type fakeNotifier struct {
	signals []models.Signal
	markets []string
}

func (f *fakeNotifier) DispatchSignal(marketID string, signal models.Signal) bool {
	f.markets = append(f.markets, marketID)
	f.signals = append(f.signals, signal)
	return true
}

func (f *fakeNotifier) DispatchAlert(alert models.PriceAlert) bool { return true }

func thinBook(marketID string) *models.OrderBook {
	return &models.OrderBook{
		MarketID: marketID,
		Bids:     []models.Level{{Price: 0.48, Size: 50}},
		Asks:     []models.Level{{Price: 0.52, Size: 50}},
	}
}

func deepBook(marketID string) *models.OrderBook {
	return &models.OrderBook{
		MarketID: marketID,
		Bids:     []models.Level{{Price: 0.48, Size: 5000}},
		Asks:     []models.Level{{Price: 0.52, Size: 5000}},
	}
}

func writeWatchList(t *testing.T, markets ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.json")
	cfg := depth.DefaultThresholds()
	cfg.WatchList = markets
	require.NoError(t, depth.SaveThresholds(cfg, path))
	return path
}

func newTestRunner(client market.Client, notifier *fakeNotifier, thresholdsPath string) *Runner {
	return New(client, dedupe.NewTracker(5*time.Minute), notifier, nil, nil, Config{
		PollInterval:   time.Millisecond,
		BackoffBase:    time.Millisecond,
		BackoffCap:     8 * time.Millisecond,
		MaxRetries:     3,
		ThresholdsPath: thresholdsPath,
	})
}

func TestBackoffDelay_DoublesAndSaturates(t *testing.T) {
	r := New(&fakeClient{}, dedupe.NewTracker(0), nil, nil, nil, Config{
		BackoffBase: 2 * time.Second,
		BackoffCap:  300 * time.Second,
	})

	assert.Equal(t, 2*time.Second, r.backoffDelay(0))
	assert.Equal(t, 4*time.Second, r.backoffDelay(1))
	assert.Equal(t, 8*time.Second, r.backoffDelay(2))
	assert.Equal(t, 256*time.Second, r.backoffDelay(7))
	assert.Equal(t, 300*time.Second, r.backoffDelay(8))
	assert.Equal(t, 300*time.Second, r.backoffDelay(20))
}

func TestRunCycle_DetectsAndDispatches(t *testing.T) {
	client := &fakeClient{books: map[string]*models.OrderBook{
		"m-thin": thinBook("m-thin"),
		"m-deep": deepBook("m-deep"),
	}}
	notifier := &fakeNotifier{}
	r := newTestRunner(client, notifier, writeWatchList(t, "m-thin", "m-deep"))

	require.NoError(t, r.runCycle(context.Background()))

	require.Len(t, notifier.signals, 1)
	assert.Equal(t, models.SignalThinDepth, notifier.signals[0].Kind)
	assert.Equal(t, []string{"m-thin"}, notifier.markets)

	snap := r.Stats()
	assert.Equal(t, int64(2), snap.MarketsScanned)
	assert.Equal(t, int64(1), snap.SignalsDetected)
	assert.Equal(t, int64(1), snap.AlertsSent)
	assert.Equal(t, int64(0), snap.AlertsDeduplicated)
}

func TestRunCycle_SecondFireIsDeduplicated(t *testing.T) {
	client := &fakeClient{books: map[string]*models.OrderBook{"m-thin": thinBook("m-thin")}}
	notifier := &fakeNotifier{}
	r := newTestRunner(client, notifier, writeWatchList(t, "m-thin"))

	require.NoError(t, r.runCycle(context.Background()))
	require.NoError(t, r.runCycle(context.Background()))

	assert.Len(t, notifier.signals, 1)
	snap := r.Stats()
	assert.Equal(t, int64(2), snap.SignalsDetected)
	assert.Equal(t, int64(1), snap.AlertsDeduplicated)
}

func TestRunCycle_AbsentBookIsSoftSkipped(t *testing.T) {
	client := &fakeClient{books: map[string]*models.OrderBook{"m-deep": deepBook("m-deep")}}
	notifier := &fakeNotifier{}
	r := newTestRunner(client, notifier, writeWatchList(t, "m-gone", "m-deep"))

	require.NoError(t, r.runCycle(context.Background()))

	snap := r.Stats()
	assert.Equal(t, int64(1), snap.MarketsScanned)
	assert.Equal(t, 2, client.fetches)
}

// A transient fetch failure is counted and logged; markets later in the
// watch list are still scanned the same cycle.
func TestRunCycle_FetchErrorIsSoftAndScanContinues(t *testing.T) {
	client := &fakeClient{
		books: map[string]*models.OrderBook{"m-thin": thinBook("m-thin")},
		errs:  map[string]error{"m-bad": errors.New("connection refused")},
	}
	notifier := &fakeNotifier{}
	r := newTestRunner(client, notifier, writeWatchList(t, "m-bad", "m-thin"))

	require.NoError(t, r.runCycle(context.Background()))

	assert.Equal(t, 2, client.fetches)
	assert.Len(t, notifier.signals, 1)
	snap := r.Stats()
	assert.Equal(t, int64(1), snap.Errors)
	assert.Equal(t, int64(1), snap.MarketsScanned)
}

// Flaky fetches never exhaust the retry budget: the runner keeps polling.
func TestRun_FetchErrorsDoNotStopTheRunner(t *testing.T) {
	client := &fakeClient{errs: map[string]error{"m1": errors.New("connection refused")}}
	r := New(client, dedupe.NewTracker(0), &fakeNotifier{}, nil, nil, Config{
		PollInterval:   time.Millisecond,
		BackoffBase:    time.Millisecond,
		BackoffCap:     time.Millisecond,
		MaxRetries:     2,
		ThresholdsPath: writeWatchList(t, "m1"),
		Duration:       20 * time.Millisecond,
	})

	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StateStopped, r.State())
	assert.Greater(t, r.Stats().Errors, int64(2))
}

func TestRunCycle_EmptyWatchListIsANoop(t *testing.T) {
	client := &fakeClient{}
	r := newTestRunner(client, &fakeNotifier{}, writeWatchList(t))

	require.NoError(t, r.runCycle(context.Background()))
	assert.Equal(t, 0, client.fetches)
}

// An initialization-class failure (unreadable thresholds file) goes through
// the backoff path and fail-stops once the retry budget is spent.
func TestRun_StopsAfterMaxRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	r := newTestRunner(&fakeClient{}, &fakeNotifier{}, path)

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, int64(3), r.Stats().Errors)
}

// A failed health check is a backoff-retried failure, not a warn-and-start.
func TestRun_HealthCheckFailureFailStops(t *testing.T) {
	client := &fakeClient{healthyAfter: 100}
	r := newTestRunner(client, &fakeNotifier{}, writeWatchList(t, "m1"))

	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check")
	assert.Equal(t, StateStopped, r.State())
	assert.Equal(t, 3, client.healthChecks)
	assert.Equal(t, 0, client.fetches)
}

// Backoff re-enters through Initializing: the health check runs again and a
// recovered API lets scanning resume.
func TestRun_RecoversAfterHealthCheckFailures(t *testing.T) {
	client := &fakeClient{
		books:        map[string]*models.OrderBook{"m-deep": deepBook("m-deep")},
		healthyAfter: 2,
	}
	r := New(client, dedupe.NewTracker(0), &fakeNotifier{}, nil, nil, Config{
		PollInterval:   time.Millisecond,
		BackoffBase:    time.Millisecond,
		BackoffCap:     time.Millisecond,
		MaxRetries:     5,
		ThresholdsPath: writeWatchList(t, "m-deep"),
		Duration:       30 * time.Millisecond,
	})

	assert.NoError(t, r.Run(context.Background()))
	assert.GreaterOrEqual(t, client.healthChecks, 3)
	assert.Greater(t, r.Stats().MarketsScanned, int64(0))
	assert.Equal(t, int64(2), r.Stats().Errors)
}

func TestRun_CancelledContextStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newTestRunner(&fakeClient{}, &fakeNotifier{}, writeWatchList(t, "m1"))
	assert.NoError(t, r.Run(ctx))
	assert.Equal(t, StateStopped, r.State())
}

func TestRun_DurationElapses(t *testing.T) {
	client := &fakeClient{books: map[string]*models.OrderBook{"m-deep": deepBook("m-deep")}}
	r := New(client, dedupe.NewTracker(0), &fakeNotifier{}, nil, nil, Config{
		PollInterval:   time.Millisecond,
		BackoffBase:    time.Millisecond,
		BackoffCap:     time.Millisecond,
		MaxRetries:     3,
		ThresholdsPath: writeWatchList(t, "m-deep"),
		Duration:       20 * time.Millisecond,
	})

	assert.NoError(t, r.Run(context.Background()))
	assert.Equal(t, StateStopped, r.State())
	assert.Greater(t, r.Stats().MarketsScanned, int64(0))
}
