package storage

import (
	"fmt"
	"time"

	"depthwatch/internal/models"
)

// DepthEvent is one row of the append-only event log.
type DepthEvent struct {
	Timestamp  time.Time
	MarketID   string
	Metrics    models.DepthMetrics
	SignalType models.SignalKind
	Reason     string
	Mode       string
}

// AppendEvent records a triggered depth signal. The event log is
// append-only; nothing in this package updates or deletes events.
func (s *Store) AppendEvent(ev DepthEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO depth_events
			(timestamp, market_id, total_yes_depth, total_no_depth,
			 top_gap_yes, top_gap_no, imbalance, signal_type, threshold_hit, mode)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ev.Timestamp.UnixNano(), ev.MarketID,
		ev.Metrics.TotalYesDepth, ev.Metrics.TotalNoDepth,
		ev.Metrics.TopGapYes, ev.Metrics.TopGapNo, ev.Metrics.Imbalance,
		string(ev.SignalType), ev.Reason, ev.Mode,
	)
	if err != nil {
		return fmt.Errorf("failed to insert depth event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events, newest first.
func (s *Store) RecentEvents(limit int) ([]DepthEvent, error) {
	rows, err := s.db.Query(`
		SELECT timestamp, market_id, total_yes_depth, total_no_depth,
		       top_gap_yes, top_gap_no, imbalance, signal_type, threshold_hit, mode
		FROM depth_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query depth events: %w", err)
	}
	defer rows.Close()

	var events []DepthEvent
	for rows.Next() {
		var ev DepthEvent
		var tsNano int64
		var kind string
		err := rows.Scan(
			&tsNano, &ev.MarketID,
			&ev.Metrics.TotalYesDepth, &ev.Metrics.TotalNoDepth,
			&ev.Metrics.TopGapYes, &ev.Metrics.TopGapNo, &ev.Metrics.Imbalance,
			&kind, &ev.Reason, &ev.Mode,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan depth event: %w", err)
		}
		ev.Timestamp = time.Unix(0, tsNano)
		ev.SignalType = models.SignalKind(kind)
		events = append(events, ev)
	}
	return events, rows.Err()
}
