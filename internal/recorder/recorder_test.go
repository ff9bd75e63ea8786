package recorder

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"depthwatch/internal/models"
)

type memWriter struct {
	mu    sync.Mutex
	ticks []models.Tick
	fail  bool
}

func (w *memWriter) AppendTick(tick models.Tick) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return errors.New("disk full")
	}
	w.ticks = append(w.ticks, tick)
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.ticks)
}

func tick(marketID string, ts time.Time) models.Tick {
	return models.Tick{MarketID: marketID, YesPrice: 0.5, NoPrice: 0.5, Timestamp: ts}
}

func TestRecord_SamplingRejectsRapidTicks(t *testing.T) {
	now := time.Now()
	w := &memWriter{}
	r := New(w, time.Minute, 10)
	r.now = func() time.Time { return now }
	r.Start()
	defer r.Stop(time.Second)

	assert.True(t, r.Record(tick("m1", now)))

	now = now.Add(10 * time.Second)
	assert.False(t, r.Record(tick("m1", now)))

	now = now.Add(60 * time.Second)
	assert.True(t, r.Record(tick("m1", now)))

	s := r.Stats()
	assert.Equal(t, int64(2), s.Queued)
	assert.Equal(t, int64(1), s.SkippedSampling)
}

func TestRecord_MarketsSampleIndependently(t *testing.T) {
	now := time.Now()
	w := &memWriter{}
	r := New(w, time.Minute, 10)
	r.now = func() time.Time { return now }
	r.Start()
	defer r.Stop(time.Second)

	assert.True(t, r.Record(tick("m1", now)))
	assert.True(t, r.Record(tick("m2", now)))
	assert.False(t, r.Record(tick("m1", now)))
}

func TestRecord_FullQueueDropsWithoutConsumingSlot(t *testing.T) {
	now := time.Now()
	w := &memWriter{}
	r := New(w, time.Minute, 1)
	r.now = func() time.Time { return now }
	// Worker not started, so the queue fills.

	assert.True(t, r.Record(tick("m1", now)))
	assert.False(t, r.Record(tick("m2", now)))

	s := r.Stats()
	assert.Equal(t, int64(1), s.Dropped)
	assert.Equal(t, int64(0), s.SkippedSampling)

	// m2 was dropped for queue pressure, not sampling: once the queue has
	// room it is accepted immediately.
	r.Start()
	defer r.Stop(time.Second)
	require.Eventually(t, func() bool {
		return r.Record(tick("m2", now))
	}, time.Second, 5*time.Millisecond)
}

func TestStop_DrainsQueuedTicks(t *testing.T) {
	now := time.Now()
	w := &memWriter{}
	r := New(w, 0, 100)
	r.now = func() time.Time { return now }

	for i := 0; i < 20; i++ {
		now = now.Add(time.Second)
		require.True(t, r.Record(tick("m1", now)))
	}

	r.Start()
	require.NoError(t, r.Stop(2*time.Second))

	assert.Equal(t, 20, w.count())
	assert.Equal(t, int64(20), r.Stats().Recorded)
}

func TestWriteFailure_CountsErrorAndKeepsRunning(t *testing.T) {
	w := &memWriter{fail: true}
	r := New(w, 0, 10)
	r.Start()

	now := time.Now()
	require.True(t, r.Record(tick("m1", now)))
	require.True(t, r.Record(tick("m1", now.Add(time.Second))))

	require.NoError(t, r.Stop(2*time.Second))
	s := r.Stats()
	assert.Equal(t, int64(2), s.Errors)
	assert.Equal(t, int64(0), s.Recorded)
}

func TestStop_BeforeStartIsANoop(t *testing.T) {
	r := New(&memWriter{}, 0, 10)
	assert.NoError(t, r.Stop(time.Second))
}

// Ticks offered once shutdown has begun are rejected, never silently lost.
func TestRecord_AfterStopIsRejected(t *testing.T) {
	w := &memWriter{}
	r := New(w, 0, 10)
	r.Start()
	require.NoError(t, r.Stop(time.Second))

	assert.False(t, r.Record(tick("m1", time.Now())))
	assert.Equal(t, int64(1), r.Stats().Dropped)
	assert.Equal(t, 0, w.count())
}

func TestRecord_ZeroTimestampGetsCurrentTime(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	w := &memWriter{}
	r := New(w, 0, 10)
	r.now = func() time.Time { return now }
	r.Start()

	require.True(t, r.Record(models.Tick{MarketID: "m1"}))
	require.NoError(t, r.Stop(2*time.Second))

	require.Equal(t, 1, w.count())
	assert.Equal(t, now, w.ticks[0].Timestamp)
}
