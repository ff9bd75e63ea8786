// Package notify delivers signal and alert notifications. Dispatch methods
// report success as a bool and never return an error: delivery failure is a
// transient condition the caller counts, not one it handles.
package notify

import (
	"depthwatch/internal/logger"
	"depthwatch/internal/models"
)

// Notifier is the outbound delivery surface.
type Notifier interface {
	// DispatchSignal delivers a depth signal. Returns true when delivered,
	// false when delivery is disabled or failed.
	DispatchSignal(marketID string, signal models.Signal) bool
	// DispatchAlert delivers a triggered price alert.
	DispatchAlert(alert models.PriceAlert) bool
}

// LogNotifier logs payloads instead of delivering them. Used when outbound
// delivery is disabled; always reports false.
type LogNotifier struct{}

func (LogNotifier) DispatchSignal(marketID string, signal models.Signal) bool {
	logger.Info("Signal (delivery disabled): %s for market %s: %s",
		signal.Kind, marketID, signal.Reason)
	return false
}

func (LogNotifier) DispatchAlert(alert models.PriceAlert) bool {
	logger.Info("Price alert (delivery disabled): %s %s", alert.MarketID, alert.Message)
	return false
}
