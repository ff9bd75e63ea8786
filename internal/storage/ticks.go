package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"depthwatch/internal/models"
)

// AppendTick records one market tick in the history store.
func (s *Store) AppendTick(tick models.Tick) error {
	var depthJSON sql.NullString
	if tick.DepthSummary != nil {
		data, err := json.Marshal(tick.DepthSummary)
		if err != nil {
			return fmt.Errorf("failed to marshal depth summary: %w", err)
		}
		depthJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO ticks (market_id, timestamp, yes_price, no_price, volume, depth_json)
		VALUES (?,?,?,?,?,?)`,
		tick.MarketID, tick.Timestamp.UnixNano(),
		tick.YesPrice, tick.NoPrice, tick.Volume, depthJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tick: %w", err)
	}
	return nil
}

// Ticks returns ticks for a market at or after since, oldest first, up to
// limit rows (0 = no limit).
func (s *Store) Ticks(marketID string, since time.Time, limit int) ([]models.Tick, error) {
	query := `
		SELECT market_id, timestamp, yes_price, no_price, volume, depth_json
		FROM ticks WHERE market_id = ? AND timestamp >= ?
		ORDER BY timestamp ASC`
	args := []interface{}{marketID, since.UnixNano()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ticks: %w", err)
	}
	defer rows.Close()

	var ticks []models.Tick
	for rows.Next() {
		var t models.Tick
		var tsNano int64
		var depthJSON sql.NullString
		if err := rows.Scan(&t.MarketID, &tsNano, &t.YesPrice, &t.NoPrice, &t.Volume, &depthJSON); err != nil {
			return nil, fmt.Errorf("failed to scan tick: %w", err)
		}
		t.Timestamp = time.Unix(0, tsNano)
		if depthJSON.Valid {
			var m models.DepthMetrics
			if err := json.Unmarshal([]byte(depthJSON.String), &m); err != nil {
				return nil, fmt.Errorf("failed to unmarshal depth summary: %w", err)
			}
			t.DepthSummary = &m
		}
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

// TickCount returns the number of stored ticks for a market.
func (s *Store) TickCount(marketID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM ticks WHERE market_id = ?`, marketID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ticks: %w", err)
	}
	return count, nil
}

// MarketIDs returns the distinct market IDs present in the history store.
func (s *Store) MarketIDs() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT market_id FROM ticks ORDER BY market_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query market ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan market id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PruneOld deletes ticks older than before and returns the number removed.
func (s *Store) PruneOld(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM ticks WHERE timestamp < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune ticks: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
