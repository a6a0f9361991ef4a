// SPDX-License-Identifier: MIT

package scoring_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointerlabs/clnp/internal/scoring"
)

func TestLoadEmptyPathKeepsDefaults(t *testing.T) {
	cfg, err := scoring.Load("")
	require.NoError(t, err)
	if diff := cmp.Diff(scoring.Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPartialOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	data := `weights:
  transferFn: 5.0
thresholds:
  biological: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := scoring.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5.0, cfg.Weights.TransferFn)
	assert.Equal(t, 0.7, cfg.Thresholds.Biological)
	// Untouched fields keep compiled defaults.
	assert.Equal(t, 2.5, cfg.Weights.Tremor)
	assert.Equal(t, 0.35, cfg.Thresholds.Uncertain)
	assert.Equal(t, 0.60, cfg.Thresholds.EmbedVerified)
}

func TestLoadRejectsInvertedThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	data := `thresholds:
  biological: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := scoring.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must exceed")
}

func TestLoadRejectsNegativeWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoring.yaml")
	data := `weights:
  minJerk: -1
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	_, err := scoring.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative weight")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := scoring.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	raw, err := scoring.Default().Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "scoring.yaml")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	cfg, err := scoring.Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(scoring.Default(), cfg); diff != "" {
		t.Fatalf("round-trip mismatch (-want +got):\n%s", diff)
	}
}
