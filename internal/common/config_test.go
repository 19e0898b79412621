package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())
	assert.Equal(t, LLMProviderGemini, config.LLM.DefaultProvider)
	assert.Equal(t, "substitute_mock", config.Pipeline.Fallbacks["trend_signals"])
	assert.Equal(t, 60, config.Video.MaxPolls)
}

func TestLoadFromFiles_LaterFilesOverride(t *testing.T) {
	base := writeConfig(t, "base.toml", `
[server]
port = 9000

[video]
max_polls = 10

[pipeline.weights]
virality = 2.0
feasibility = 1.0
trend_alignment = 1.0
`)
	override := writeConfig(t, "override.toml", `
[server]
port = 9100
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, 10, config.Video.MaxPolls)
	assert.Equal(t, 2.0, config.Pipeline.Weights.Virality)
	assert.Equal(t, "localhost", config.Server.Host)
}

func TestLoadFromFiles_EnvOverridesFiles(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[gemini]
api_key = "from-file"
`)
	t.Setenv("TRENDREEL_GEMINI_API_KEY", "from-env")
	t.Setenv("TRENDREEL_SERVER_PORT", "9200")
	t.Setenv("TRENDREEL_REDIS_ADDR", "redis:6379")

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", config.Gemini.APIKey)
	assert.Equal(t, 9200, config.Server.Port)
	assert.Equal(t, "redis:6379", config.Redis.Addr)
	assert.True(t, config.Redis.Enabled)
}

func TestLoadFromFiles_Errors(t *testing.T) {
	_, err := LoadFromFiles(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "bad.toml", "[server\nport ="))
	assert.Error(t, err)

	_, err = LoadFromFiles(writeConfig(t, "weights.toml", `
[pipeline.weights]
virality = -1.0
`))
	assert.ErrorContains(t, err, "negative")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "unknown provider", mutate: func(c *Config) { c.LLM.DefaultProvider = "openai" }, wantErr: "default_provider"},
		{name: "unknown scorer", mutate: func(c *Config) { c.Pipeline.Scorer = "random" }, wantErr: "scorer"},
		{name: "zero weights", mutate: func(c *Config) { c.Pipeline.Weights = WeightsConfig{} }, wantErr: "all be zero"},
		{name: "unknown fallback", mutate: func(c *Config) { c.Pipeline.Fallbacks["render"] = "placeholder" }, wantErr: "unknown policy"},
		{name: "no polls", mutate: func(c *Config) { c.Video.MaxPolls = 0 }, wantErr: "max_polls"},
		{name: "bad duration", mutate: func(c *Config) { c.Scheduler.Cooldown = "soon" }, wantErr: "scheduler.cooldown"},
		{name: "bad tick", mutate: func(c *Config) { c.Scheduler.Enabled = true; c.Scheduler.Tick = "* * * * *" }, wantErr: "scheduler.tick"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			assert.ErrorContains(t, config.Validate(), tt.wantErr)
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("*/15 * * * *"))
	assert.NoError(t, ValidateSchedule("0 9 * * 1-5"))
	assert.Error(t, ValidateSchedule("* * * * *"))
	assert.Error(t, ValidateSchedule("*/2 * * * *"))
	assert.Error(t, ValidateSchedule("not a cron"))
}

func TestResolveAPIKey(t *testing.T) {
	t.Setenv("TRENDREEL_GEMINI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	key, err := ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)

	t.Setenv("GEMINI_API_KEY", "from-env")
	key, err = ResolveAPIKey("gemini_api_key", "from-config")
	require.NoError(t, err)
	assert.Equal(t, "from-env", key)

	_, err = ResolveAPIKey("unknown_key", "")
	assert.Error(t, err)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 5*time.Second, ParseDurationOr("", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDurationOr("bogus", 5*time.Second))
	assert.Equal(t, 5*time.Second, ParseDurationOr("-1s", 5*time.Second))
	assert.Equal(t, 2*time.Minute, ParseDurationOr("2m", 5*time.Second))
}

func TestNewIDs(t *testing.T) {
	assert.Regexp(t, `^run_[0-9a-f-]{36}$`, NewRunID())
	assert.Regexp(t, `^ch_[0-9a-f-]{36}$`, NewChannelID())
	assert.NotEqual(t, NewRunID(), NewRunID())
}
