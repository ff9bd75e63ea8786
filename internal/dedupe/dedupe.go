// Package dedupe suppresses repeated alerts within a time window. The
// scanner's suppression is keyed by (market, signal kind) hashes; the
// watcher applies the same windowing keyed by alert identity.
package dedupe

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"depthwatch/internal/models"
)

// Policy answers whether a logical alert may fire now.
type Policy interface {
	// ShouldFire reports whether no firing for key was marked within the
	// window. elapsed == window fires; elapsed < window suppresses.
	ShouldFire(key string) bool
	// MarkFired records a firing for key at the current time.
	MarkFired(key string)
	// Sweep deletes entries older than twice the window. Pure housekeeping;
	// it affects memory, not correctness.
	Sweep()
}

// SignalKey derives the stable dedupe identity for a (market, signal kind)
// pair: the first 128 bits of sha256, hex-encoded. Identical inputs always
// produce the identical key.
func SignalKey(marketID string, kind models.SignalKind) string {
	sum := sha256.Sum256([]byte(marketID + "|" + string(kind)))
	return hex.EncodeToString(sum[:])[:32]
}

// Tracker is the map-backed implementation of Policy. Safe for concurrent
// use; reads and writes interleave within a single scan or update cycle.
type Tracker struct {
	window time.Duration

	mu        sync.Mutex
	lastFired map[string]time.Time

	now func() time.Time
}

// NewTracker creates a tracker with the given suppression window.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{
		window:    window,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}
}

func (t *Tracker) ShouldFire(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[key]
	if !ok {
		return true
	}
	return t.now().Sub(last) >= t.window
}

func (t *Tracker) MarkFired(key string) {
	t.mu.Lock()
	t.lastFired[key] = t.now()
	t.mu.Unlock()
}

func (t *Tracker) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-2 * t.window)
	for key, last := range t.lastFired {
		if last.Before(cutoff) {
			delete(t.lastFired, key)
		}
	}
}

// Len returns the number of tracked entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lastFired)
}
