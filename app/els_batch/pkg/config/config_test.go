package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("files:\n  workbook_path: data/els.xlsx\n"))
	require.NoError(t, err)

	assert.Equal(t, "data/els.xlsx", cfg.Files.WorkbookPath)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 3, cfg.Fetch.Attempts)
	assert.Equal(t, DefaultUserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, 10, cfg.Pacing.Every)
	assert.Equal(t, 5*time.Second, cfg.Pacing.Pause)
	assert.Equal(t, PolicyAbort, cfg.FetchFailurePolicy)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "new-ticker-alert", cfg.Kafka.Topics.NewTicker)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("ELS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("ELS_DB_PASSWORD", "secret")

	raw := `
db:
  driver: sqlite
  path: els.db
pacing:
  every: 20
  pause: 1s
fetch_failure_policy: degrade
`
	cfg, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "secret", cfg.DB.Password)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 20, cfg.Pacing.Every)
	assert.Equal(t, time.Second, cfg.Pacing.Pause)
	assert.Equal(t, PolicyDegrade, cfg.FetchFailurePolicy)
}

func TestParse_InvalidPolicy(t *testing.T) {
	_, err := Parse([]byte("fetch_failure_policy: retry-forever\n"))
	assert.Error(t, err)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadConfig_Sample(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Files.FilingIndexCacheTTL)
	assert.Equal(t, "30 6 * * *", cfg.Schedule.Parse)
	assert.Equal(t, PolicyAbort, cfg.FetchFailurePolicy)
}
