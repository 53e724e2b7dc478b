package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/moonz/internal/mind"
	"github.com/keshon/moonz/internal/social"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PLATFORM", " X ")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "x", cfg.Platform)
	assert.Equal(t, "pollinations", cfg.AI.Engine)
	assert.True(t, cfg.X.Headless)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.Equal(t, 6*time.Hour, cfg.Schedule.BioCooldown)
	assert.False(t, cfg.RecordOnSuccess)

	assert.Equal(t, mind.DefaultRunnerConfig(), cfg.RunnerConfig())
	assert.Equal(t, mind.DefaultGenerationConfig(), cfg.GenerationConfig())
	assert.Equal(t, mind.DefaultSchedulerConfig(), cfg.SchedulerConfig())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PLATFORM", "discord")
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_CHANNEL_ID", "c1")
	t.Setenv("AGENT_CYCLE_MIN", "1m")
	t.Setenv("AGENT_MAX_REPLIES", "7")
	t.Setenv("SCHEDULE_TWEET", "0.5")
	t.Setenv("ENGAGE_RECORD_ON_SUCCESS", "true")
	t.Setenv("POST_PER_HOUR", "5")
	t.Setenv("GEN_TOKEN_STEP", "0")
	t.Setenv("GEN_TEMPERATURE_STEP", "0.15")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	rc := cfg.RunnerConfig()
	assert.Equal(t, time.Minute, rc.CycleMin)
	assert.Equal(t, 7, rc.MaxRepliesPerCycle)
	assert.True(t, rc.RecordOnSuccess)
	assert.Equal(t, 5, cfg.RateLimit.PerHour)

	sc := cfg.SchedulerConfig()
	assert.InDelta(t, 0.5, sc.TweetProbability, 1e-9)
	assert.Equal(t, []social.Tab{social.TabHome}, sc.Tabs, "no following channel configured")
	assert.Equal(t, "discord:c1", cfg.Account())

	gc := cfg.GenerationConfig()
	assert.Zero(t, gc.TokenStep)
	assert.InDelta(t, 0.15, gc.TemperatureStep, 1e-9)
}

func TestLoad_BadValue(t *testing.T) {
	t.Setenv("AGENT_CYCLE_MIN", "soon")
	_, err := Load()
	assert.ErrorIs(t, err, ErrSetup)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"x with credentials", func(c *Config) {
			c.X.Username, c.X.Password = "moonz", "pw"
		}, ""},
		{"x missing password", func(c *Config) { c.X.Username = "moonz" }, "X_PASSWORD"},
		{"discord missing token", func(c *Config) {
			c.Platform = "discord"
			c.Discord.ChannelID = "c1"
		}, "DISCORD_TOKEN"},
		{"unknown platform", func(c *Config) { c.Platform = "myspace" }, "unknown PLATFORM"},
		{"openai needs key", func(c *Config) {
			c.X.Username, c.X.Password = "moonz", "pw"
			c.AI.Engine = "openai"
		}, "AI_API_KEY"},
		{"cycle bounds", func(c *Config) {
			c.X.Username, c.X.Password = "moonz", "pw"
			c.Agent.CycleMax = time.Second
		}, "AGENT_CYCLE_MAX"},
		{"negative token step", func(c *Config) {
			c.X.Username, c.X.Password = "moonz", "pw"
			c.Generate.TokenStep = -5
		}, "GEN_TOKEN_STEP"},
		{"negative temperature step", func(c *Config) {
			c.X.Username, c.X.Password = "moonz", "pw"
			c.Generate.TemperatureStep = -0.1
		}, "GEN_TEMPERATURE_STEP"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrSetup)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPolicy_Defaults(t *testing.T) {
	pf, err := LoadPolicy("")
	require.NoError(t, err)

	p, err := pf.ValidationPolicy()
	require.NoError(t, err)
	def := mind.DefaultPolicy()
	assert.Equal(t, def.MinLength, p.MinLength)
	assert.Equal(t, def.MaxLength, p.MaxLength)
	assert.Equal(t, def.Bounds(mind.ContentBio), p.Bounds(mind.ContentBio))
	assert.Equal(t, def.BannedPhrases, p.BannedPhrases)
	assert.Len(t, p.ForbiddenPatterns, len(mind.DefaultForbiddenPatterns))

	persona := mind.DefaultPersona()
	pf.Apply(persona)
	assert.Equal(t, "Baggy Moonz", persona.Name)
}

func TestLoadPolicy_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[validation]
banned_phrases = ["synergy"]
max_length = 140

[persona]
topics = ["houseplants"]
`), 0o644))

	pf, err := LoadPolicy(path)
	require.NoError(t, err)
	p, err := pf.ValidationPolicy()
	require.NoError(t, err)

	assert.Equal(t, []string{"synergy"}, p.BannedPhrases)
	assert.Equal(t, 140, p.MaxLength)
	assert.Equal(t, 10, p.MinLength, "unset keys keep defaults")
	assert.Len(t, p.ForbiddenPatterns, len(mind.DefaultForbiddenPatterns))

	persona := mind.DefaultPersona()
	pf.Apply(persona)
	assert.Equal(t, []string{"houseplants"}, persona.Topics)
	assert.Equal(t, "Baggy Moonz", persona.Name)
}

func TestLoadPolicy_Invalid(t *testing.T) {
	_, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrSetup)

	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[validation]\nforbidden_patterns = [\"(\"]\n"), 0o644))
	pf, err := LoadPolicy(path)
	require.NoError(t, err)
	_, err = pf.ValidationPolicy()
	assert.ErrorIs(t, err, ErrSetup)
}
