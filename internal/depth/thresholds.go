package depth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Thresholds holds the depth signal limits and the watch list. Loaded fresh
// each scan cycle so edits take effect without a restart.
type Thresholds struct {
	MinDepth       float64  `json:"min_depth"`
	MaxGap         float64  `json:"max_gap"`
	ImbalanceRatio float64  `json:"imbalance_ratio"`
	WatchList      []string `json:"watch_list"`
}

// DefaultThresholds returns the documented defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDepth:       500.0,
		MaxGap:         0.10,
		ImbalanceRatio: 300.0,
		WatchList:      []string{},
	}
}

// thresholdsOverlay mirrors Thresholds with optional fields so a partial
// file merges onto the defaults instead of zeroing them. Unknown keys are
// ignored by the JSON decoder.
type thresholdsOverlay struct {
	MinDepth       *float64  `json:"min_depth"`
	MaxGap         *float64  `json:"max_gap"`
	ImbalanceRatio *float64  `json:"imbalance_ratio"`
	WatchList      *[]string `json:"watch_list"`
}

// LoadThresholds reads the threshold config file. A missing file is
// materialized with defaults; missing keys fall back to defaults; a
// malformed file is a parse error surfaced to the caller.
func LoadThresholds(path string) (Thresholds, error) {
	cfg := DefaultThresholds()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if err := SaveThresholds(cfg, path); err != nil {
			return Thresholds{}, fmt.Errorf("failed to write default thresholds: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return Thresholds{}, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	var overlay thresholdsOverlay
	if err := json.Unmarshal(data, &overlay); err != nil {
		return Thresholds{}, fmt.Errorf("failed to parse thresholds file: %w", err)
	}

	if overlay.MinDepth != nil {
		cfg.MinDepth = *overlay.MinDepth
	}
	if overlay.MaxGap != nil {
		cfg.MaxGap = *overlay.MaxGap
	}
	if overlay.ImbalanceRatio != nil {
		cfg.ImbalanceRatio = *overlay.ImbalanceRatio
	}
	if overlay.WatchList != nil {
		cfg.WatchList = *overlay.WatchList
	}

	return cfg, nil
}

// SaveThresholds writes the threshold config file, creating parent
// directories as needed.
func SaveThresholds(cfg Thresholds, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal thresholds: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write thresholds file: %w", err)
	}
	return nil
}
