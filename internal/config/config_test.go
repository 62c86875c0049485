package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKimmel/supportbot/internal/ratelimit"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Observability.LogLevel)
	assert.Equal(t, "/metrics", cfg.Observability.PrometheusPath)
	assert.Equal(t, "X-API-Key", cfg.Auth.Header)
	assert.Equal(t, ratelimit.Policy{MaxRequests: 20, Window: time.Minute, BlockDuration: 5 * time.Minute}, cfg.Limits.Policy())
	assert.Zero(t, cfg.Limits.SweepInterval())
	assert.Equal(t, 30*time.Minute, cfg.Limits.Idle())
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBody())
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL())
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SUPPORTBOT_TEST_SECRET", "abc")
	t.Setenv("SUPPORTBOT_TEST_DB", "postgres://bot@db/bot")

	cfg, err := Parse([]byte(`
server:
  addr: ":9090"
auth:
  keys:
    - id: ops
      secret: ${SUPPORTBOT_TEST_SECRET}
limits:
  default:
    max_requests: 5
    window_ms: 1000
    block_duration_ms: 2000
  sweep_interval_ms: 60000
bot:
  admins: ["42"]
database:
  url: ${SUPPORTBOT_TEST_DB}
`))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	require.Len(t, cfg.Auth.Keys, 1)
	assert.Equal(t, "abc", cfg.Auth.Keys[0].Secret)
	assert.Equal(t, "postgres://bot@db/bot", cfg.Database.URL)
	assert.Equal(t, []string{"42"}, cfg.Bot.Admins)
	assert.Equal(t, ratelimit.Policy{MaxRequests: 5, Window: time.Second, BlockDuration: 2 * time.Second}, cfg.Limits.Policy())
	assert.Equal(t, time.Minute, cfg.Limits.SweepInterval())
}

func TestParse_RejectsInvalidLimits(t *testing.T) {
	_, err := Parse([]byte("limits:\n  default:\n    max_requests: -1\n"))
	assert.ErrorIs(t, err, ratelimit.ErrInvalidPolicy)

	_, err = Parse([]byte("limits:\n  idle_ms: -5\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("server: [nope"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("observability:\n  log_level: debug\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFiles_MissingIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	assert.NoError(t, LoadEnvFiles())
}
