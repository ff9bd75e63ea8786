package depth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadThresholds_MissingFileMaterializesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")

	cfg, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), cfg)

	// The defaults were written back so the next load reads the same file.
	_, statErr := os.Stat(path)
	assert.NoError(t, statErr)
}

func TestLoadThresholds_PartialFileMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"min_depth": 1200, "watch_list": ["m1", "m2"]}`), 0o644))

	cfg, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, cfg.MinDepth)
	assert.Equal(t, []string{"m1", "m2"}, cfg.WatchList)
	assert.Equal(t, 0.10, cfg.MaxGap)
	assert.Equal(t, 300.0, cfg.ImbalanceRatio)
}

func TestLoadThresholds_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadThresholds(path)
	assert.Error(t, err)
}

func TestSaveThresholds_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "dir", "thresholds.json")
	cfg := Thresholds{MinDepth: 42, MaxGap: 0.5, ImbalanceRatio: 7, WatchList: []string{"m1"}}

	require.NoError(t, SaveThresholds(cfg, path))

	loaded, err := LoadThresholds(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
