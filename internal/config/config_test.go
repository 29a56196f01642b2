package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsocial/scoring-service/internal/domain"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  addr: ":9090"
database:
  url: "postgres://db/scoring?sslmode=disable"
scoring:
  duplicate_threshold: 0.2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://db/scoring?sslmode=disable", cfg.Database.URL)

	// Overridden value sticks, untouched values default
	assert.Equal(t, 0.2, cfg.Scoring.DuplicateThreshold)
	assert.Equal(t, 0.5, cfg.Scoring.Awards[domain.CategoryPost])
	assert.Equal(t, 2, cfg.Scoring.DailyLimits[domain.CategoryPost])
	assert.Equal(t, 4, cfg.Worker.Count)
	assert.Equal(t, 5*time.Minute, cfg.Worker.Visibility)
	assert.Equal(t, 60*time.Second, cfg.Quality.Budget)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/scoring")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("ANALYSIS_INTERVAL_SECONDS", "3600")

	cfg := LoadFromEnv()

	assert.Equal(t, "postgres://env-host/scoring", cfg.Database.URL)
	assert.Equal(t, 8, cfg.Worker.Count)
	assert.Equal(t, time.Hour, cfg.Analysis.Interval)
}

func TestMaxMonthlyTotal(t *testing.T) {
	var s ScoringConfig
	s.applyDefaults()
	assert.InDelta(t, 110.0, s.MaxMonthlyTotal(), 1e-9)
}
