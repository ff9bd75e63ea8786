// Package alerts manages the price-alert configuration file. The JSON file
// keyed by generated alert IDs is the source of truth; in-memory copies are
// snapshots, not caches with independent lifetime.
package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"depthwatch/internal/logger"
	"depthwatch/internal/models"
)

// Store reads and writes the alert file. Safe for concurrent use.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store backed by the file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads all alerts from the file. A missing file yields an empty set.
// A corrupt file is backed up alongside the original (".backup" suffix) and
// an empty set is returned rather than an error.
func (s *Store) Load() (map[string]models.PriceAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (map[string]models.PriceAlert, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return make(map[string]models.PriceAlert), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read alerts file: %w", err)
	}

	alerts := make(map[string]models.PriceAlert)
	if err := json.Unmarshal(data, &alerts); err != nil {
		backupPath := s.path + ".backup"
		if writeErr := os.WriteFile(backupPath, data, 0o644); writeErr != nil {
			logger.Error("Failed to back up corrupt alerts file: %v", writeErr)
		} else {
			logger.Warn("Alerts file is corrupt; backed up to %s and starting empty", backupPath)
		}
		return make(map[string]models.PriceAlert), nil
	}
	return alerts, nil
}

// Save writes all alerts to the file, creating parent directories as
// needed.
func (s *Store) Save(alerts map[string]models.PriceAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(alerts)
}

func (s *Store) saveLocked(alerts map[string]models.PriceAlert) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create alerts directory: %w", err)
	}
	data, err := json.MarshalIndent(alerts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write alerts file: %w", err)
	}
	return nil
}

// Add validates and persists a new alert, returning its generated ID.
func (s *Store) Add(marketID string, direction models.AlertDirection, targetPrice float64) (string, error) {
	alert := models.PriceAlert{
		ID:          uuid.NewString(),
		MarketID:    marketID,
		Direction:   direction,
		TargetPrice: targetPrice,
		Message:     fmt.Sprintf("Alert: Price %s %.4f", direction, targetPrice),
		CreatedAt:   time.Now(),
	}
	if err := alert.Validate(); err != nil {
		return "", fmt.Errorf("invalid alert: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.loadLocked()
	if err != nil {
		return "", err
	}
	alerts[alert.ID] = alert
	if err := s.saveLocked(alerts); err != nil {
		return "", err
	}

	logger.Info("Created price alert %s for market %s: %s %.4f",
		alert.ID, marketID, direction, targetPrice)
	return alert.ID, nil
}

// Remove deletes an alert by ID. Removing an unknown ID is an error.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alerts, err := s.loadLocked()
	if err != nil {
		return err
	}
	if _, ok := alerts[id]; !ok {
		return fmt.Errorf("alert not found: %s", id)
	}
	delete(alerts, id)
	return s.saveLocked(alerts)
}

// List returns all alerts ordered by creation time.
func (s *Store) List() ([]models.PriceAlert, error) {
	alerts, err := s.Load()
	if err != nil {
		return nil, err
	}
	list := make([]models.PriceAlert, 0, len(alerts))
	for _, a := range alerts {
		list = append(list, a)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list, nil
}
