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
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// UTC keeps the tests independent of the host tzdata.
const minimalConfig = `bot:
  token: "123:abc"
provider:
  base_url: "https://api.example.com/v1"
scheduler:
  timezone: UTC
`

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Bot.Token)
	assert.Equal(t, 30, cfg.Bot.UpdateTimeout)
	assert.Equal(t, 4096, cfg.Bot.MaxMessageBytes)
	assert.Equal(t, 3, cfg.Provider.MaxToolRounds)
	assert.Equal(t, 30*time.Second, cfg.Provider.Timeout)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "data/finance.db", cfg.Storage.SQLite.Path)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 10, cfg.RateLimit.Requests)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5, cfg.Breaker.Threshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Cooldown)
	assert.Equal(t, 40, cfg.Session.MaxTurns)
	assert.Equal(t, 50, cfg.Session.Oversize)
	assert.Equal(t, 8, cfg.Scheduler.BillReminderHour)
	assert.Equal(t, time.Minute, cfg.Scheduler.ReminderPoll)
	assert.Equal(t, "es", cfg.I18n.DefaultLanguage)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:zzz")
	t.Setenv("PROVIDER_MODEL", "llama-3.1-70b")
	t.Setenv("STORAGE_TYPE", "memory")

	cfg, err := LoadConfig(writeConfig(t, `provider:
  base_url: "https://api.example.com/v1"
  model: gpt-4o-mini
scheduler:
  timezone: UTC
`))
	require.NoError(t, err)

	assert.Equal(t, "999:zzz", cfg.Bot.Token, "the token can live in the environment alone")
	assert.Equal(t, "llama-3.1-70b", cfg.Provider.Model, "environment beats the file")
	assert.Equal(t, "memory", cfg.Storage.Type)
}

func TestLoadConfigRedisHostPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Storage.Redis.Addr)
}

func TestLoadConfigRedisDefaultPort(t *testing.T) {
	t.Setenv("REDIS_HOST", "redis.internal")

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6379", cfg.Storage.Redis.Addr)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	// Empty bound variables count as unset, shielding the table from
	// whatever the host environment carries.
	t.Setenv("BOT_TOKEN", "")
	t.Setenv("PROVIDER_BASE_URL", "")
	t.Setenv("STORAGE_TYPE", "")

	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing token",
			yaml: `provider:
  base_url: "https://api.example.com/v1"
scheduler:
  timezone: UTC
`,
			want: "bot token",
		},
		{
			name: "missing base url",
			yaml: `bot:
  token: "123:abc"
scheduler:
  timezone: UTC
`,
			want: "base_url",
		},
		{
			name: "unknown storage",
			yaml: `bot:
  token: "123:abc"
provider:
  base_url: "https://api.example.com/v1"
storage:
  type: postgres
scheduler:
  timezone: UTC
`,
			want: "storage type",
		},
		{
			name: "bad timezone",
			yaml: `bot:
  token: "123:abc"
provider:
  base_url: "https://api.example.com/v1"
scheduler:
  timezone: Mars/Olympus
`,
			want: "timezone",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
