package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
scanner:
  enabled: true
  user_ids: ["u1", "u2"]
source:
  base_url: "http://backend.local"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.Scanner.Interval)
	assert.Equal(t, "Local", cfg.Scanner.Timezone)
	assert.Equal(t, []string{"u1", "u2"}, cfg.Scanner.UserIDs)
	assert.Equal(t, 30, cfg.Source.TimeoutSeconds)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "booking.alerts", cfg.Broker.Queue)
	assert.Equal(t, 3600, cfg.Push.TTL)
}

func TestLoad_ExplicitValuesAndTokenOverride(t *testing.T) {
	t.Setenv("BACKEND_TOKEN", "from-env")
	path := writeConfig(t, `
scanner:
  interval_seconds: 15
  timezone: "Asia/Kolkata"
  schedule_upcoming: true
source:
  token: "from-file"
worker_pool:
  size: 3
penalty:
  rates:
    car: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Scanner.Interval)
	assert.Equal(t, "Asia/Kolkata", cfg.Scanner.Timezone)
	assert.True(t, cfg.Scanner.ScheduleUpcoming)
	assert.Equal(t, "from-env", cfg.Source.Token)
	assert.Equal(t, 3, cfg.WorkerPool.Size)
	assert.Equal(t, 30.0, cfg.Penalty.Rates["car"])
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
