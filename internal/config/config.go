package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/keshon/moonz/internal/mind"
	"github.com/keshon/moonz/internal/social"
)

// ErrSetup marks configuration the agent cannot start with.
var ErrSetup = errors.New("setup error")

type Config struct {
	Platform string `env:"PLATFORM" envDefault:"x"`

	Discord Discord `envPrefix:"DISCORD_"`
	X       X       `envPrefix:"X_"`
	AI      AI      `envPrefix:"AI_"`

	StoragePath string `env:"STORAGE_PATH" envDefault:"datastore.json"`
	PolicyFile  string `env:"POLICY_FILE"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	MetricsAddr string `env:"METRICS_ADDR"`

	Agent     Agent     `envPrefix:"AGENT_"`
	Schedule  Schedule  `envPrefix:"SCHEDULE_"`
	Generate  Generate  `envPrefix:"GEN_"`
	RateLimit RateLimit `envPrefix:"POST_"`

	RecordOnSuccess bool `env:"ENGAGE_RECORD_ON_SUCCESS" envDefault:"false"`
	TweetOnStart    bool `env:"TWEET_ON_START" envDefault:"false"`
}

type Discord struct {
	Token              string `env:"TOKEN"`
	ChannelID          string `env:"CHANNEL_ID"`
	FollowingChannelID string `env:"FOLLOWING_CHANNEL_ID"`
}

type X struct {
	Username   string        `env:"USERNAME"`
	Password   string        `env:"PASSWORD"`
	Headless   bool          `env:"HEADLESS" envDefault:"true"`
	ControlURL string        `env:"CONTROL_URL"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"45s"`
}

type AI struct {
	Engine  string `env:"ENGINE" envDefault:"pollinations"`
	Model   string `env:"MODEL"`
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`
	// Requests per second the LLM backend is paced at.
	Rate    float64 `env:"RATE" envDefault:"0.5"`
	Retries int     `env:"RETRIES" envDefault:"3"`
}

type Agent struct {
	CycleMin       time.Duration `env:"CYCLE_MIN" envDefault:"5m"`
	CycleMax       time.Duration `env:"CYCLE_MAX" envDefault:"15m"`
	ActionPauseMin time.Duration `env:"ACTION_PAUSE_MIN" envDefault:"30s"`
	ActionPauseMax time.Duration `env:"ACTION_PAUSE_MAX" envDefault:"2m"`
	ItemPauseMin   time.Duration `env:"ITEM_PAUSE_MIN" envDefault:"5s"`
	ItemPauseMax   time.Duration `env:"ITEM_PAUSE_MAX" envDefault:"20s"`
	ErrorDelay     time.Duration `env:"ERROR_DELAY" envDefault:"10s"`

	MaxReplies     int     `env:"MAX_REPLIES" envDefault:"3"`
	MaxEngagements int     `env:"MAX_ENGAGEMENTS" envDefault:"3"`
	LikeChance     float64 `env:"LIKE_CHANCE" envDefault:"0.6"`
	ReplyChance    float64 `env:"REPLY_CHANCE" envDefault:"0.5"`
	FollowChance   float64 `env:"FOLLOW_CHANCE" envDefault:"0.1"`

	MemorySize int `env:"MEMORY_SIZE" envDefault:"1000"`
	MemoryTrim int `env:"MEMORY_TRIM" envDefault:"500"`
}

type Schedule struct {
	Tweet       float64       `env:"TWEET" envDefault:"0.05"`
	Mentions    float64       `env:"MENTIONS" envDefault:"0.2"`
	Engage      float64       `env:"ENGAGE" envDefault:"0.4"`
	BioOuter    float64       `env:"BIO_OUTER" envDefault:"0.1"`
	Bio         float64       `env:"BIO" envDefault:"0.3"`
	BioCooldown time.Duration `env:"BIO_COOLDOWN" envDefault:"6h"`
}

type Generate struct {
	MaxAttempts int     `env:"MAX_ATTEMPTS" envDefault:"8"`
	MaxTokens   int     `env:"MAX_TOKENS" envDefault:"100"`
	MinTokens   int     `env:"MIN_TOKENS" envDefault:"40"`
	Temperature float64 `env:"TEMPERATURE" envDefault:"0.9"`
	MinTemp     float64 `env:"MIN_TEMPERATURE" envDefault:"0.3"`
	// Per-retry shrink of the token budget and the temperature.
	TokenStep       int     `env:"TOKEN_STEP" envDefault:"10"`
	TemperatureStep float64 `env:"TEMPERATURE_STEP" envDefault:"0.08"`
}

type RateLimit struct {
	PerMinute int `env:"PER_MINUTE" envDefault:"2"`
	PerHour   int `env:"PER_HOUR" envDefault:"20"`
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	cfg.Platform = strings.ToLower(strings.TrimSpace(cfg.Platform))
	return &cfg, nil
}

// Validate checks that the selected platform and LLM engine have what they
// need to start.
func (c *Config) Validate() error {
	var missing []string
	switch c.Platform {
	case "discord":
		if c.Discord.Token == "" {
			missing = append(missing, "DISCORD_TOKEN")
		}
		if c.Discord.ChannelID == "" {
			missing = append(missing, "DISCORD_CHANNEL_ID")
		}
	case "x":
		if c.X.Username == "" {
			missing = append(missing, "X_USERNAME")
		}
		if c.X.Password == "" {
			missing = append(missing, "X_PASSWORD")
		}
	default:
		return fmt.Errorf("%w: unknown PLATFORM %q (want x or discord)", ErrSetup, c.Platform)
	}

	switch strings.ToLower(c.AI.Engine) {
	case "openai", "anthropic":
		if c.AI.APIKey == "" {
			missing = append(missing, "AI_API_KEY")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set", ErrSetup, strings.Join(missing, ", "))
	}
	if c.Agent.CycleMax < c.Agent.CycleMin {
		return fmt.Errorf("%w: AGENT_CYCLE_MAX below AGENT_CYCLE_MIN", ErrSetup)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("%w: STORAGE_PATH is empty", ErrSetup)
	}
	if c.Generate.TokenStep < 0 || c.Generate.TemperatureStep < 0 {
		return fmt.Errorf("%w: GEN_TOKEN_STEP and GEN_TEMPERATURE_STEP must not be negative", ErrSetup)
	}
	return nil
}

func (c *Config) RunnerConfig() mind.RunnerConfig {
	a := c.Agent
	return mind.RunnerConfig{
		CycleMin:               a.CycleMin,
		CycleMax:               a.CycleMax,
		ActionPauseMin:         a.ActionPauseMin,
		ActionPauseMax:         a.ActionPauseMax,
		ItemPauseMin:           a.ItemPauseMin,
		ItemPauseMax:           a.ItemPauseMax,
		ErrorDelay:             a.ErrorDelay,
		MaxRepliesPerCycle:     a.MaxReplies,
		MaxEngagementsPerCycle: a.MaxEngagements,
		LikeProbability:        a.LikeChance,
		ReplyProbability:       a.ReplyChance,
		FollowProbability:      a.FollowChance,
		RecordOnSuccess:        c.RecordOnSuccess,
		TweetOnStart:           c.TweetOnStart,
	}
}

func (c *Config) SchedulerConfig() mind.SchedulerConfig {
	s := mind.DefaultSchedulerConfig()
	s.TweetProbability = c.Schedule.Tweet
	s.MentionsProbability = c.Schedule.Mentions
	s.EngageProbability = c.Schedule.Engage
	s.BioOuterProbability = c.Schedule.BioOuter
	s.BioProbability = c.Schedule.Bio
	s.BioCooldown = c.Schedule.BioCooldown
	if c.Platform == "discord" && c.Discord.FollowingChannelID == "" {
		s.Tabs = []social.Tab{social.TabHome}
	}
	return s
}

func (c *Config) GenerationConfig() mind.GenerationConfig {
	g := mind.DefaultGenerationConfig()
	g.MaxAttempts = c.Generate.MaxAttempts
	g.MaxTokens = c.Generate.MaxTokens
	g.MinTokens = c.Generate.MinTokens
	g.Temperature = c.Generate.Temperature
	g.MinTemperature = c.Generate.MinTemp
	g.TokenStep = c.Generate.TokenStep
	g.TemperatureStep = c.Generate.TemperatureStep
	return g
}

// Account keys persisted state by platform and login.
func (c *Config) Account() string {
	switch c.Platform {
	case "discord":
		return "discord:" + c.Discord.ChannelID
	default:
		return "x:" + strings.ToLower(strings.TrimPrefix(c.X.Username, "@"))
	}
}
