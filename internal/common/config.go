package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	Video       VideoConfig     `toml:"video"`
	YouTube     YouTubeConfig   `toml:"youtube"`
	Trends      TrendsConfig    `toml:"trends"`
	Pipeline    PipelineConfig  `toml:"pipeline"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Redis       RedisConfig     `toml:"redis"`
	NATS        NATSConfig      `toml:"nats"`
	Channels    ChannelsConfig  `toml:"channels"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	InMemory       bool   `toml:"in_memory"`        // Keep everything in memory (tests, one-shot runs)
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// GeminiConfig configures the Gemini structured generation provider
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default: "gemini-2.5-flash"
	Thinking    string  `toml:"thinking"`    // MINIMAL, LOW, MEDIUM, HIGH or empty
	Timeout     string  `toml:"timeout"`     // Per-request timeout (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Minimum time between requests (default: "4s" for 15 RPM)
	Temperature float32 `toml:"temperature"` // default: 0.7
}

// ClaudeConfig configures the Anthropic structured generation provider
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Timeout     string  `toml:"timeout"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig selects the provider used for structured generation
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini" or "claude" (default: "gemini")
}

// VideoConfig configures the video generation capability
type VideoConfig struct {
	Model        string `toml:"model"`         // Veo model name
	AspectRatio  string `toml:"aspect_ratio"`  // default: "9:16"
	Resolution   string `toml:"resolution"`    // default: "720p"
	PollInterval string `toml:"poll_interval"` // default: "10s"
	MaxPolls     int    `toml:"max_polls"`     // default: 60
	OutputDir    string `toml:"output_dir"`    // Where inline video bytes are written (default: "./data/videos"); empty embeds them as data URIs
}

// YouTubeConfig configures trend acquisition and publishing on YouTube
type YouTubeConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	APIKey        string `toml:"api_key"`        // Read-only key for trend acquisition
	CategoryID    string `toml:"category_id"`    // Upload category (default: "28", Science & Technology)
	UploadTimeout string `toml:"upload_timeout"` // default: "10m"
}

// TrendsConfig configures live trend acquisition
type TrendsConfig struct {
	Enabled    bool   `toml:"enabled"`     // Use the YouTube trend source; mock data otherwise
	Region     string `toml:"region"`      // Default region code (default: "US")
	CategoryID string `toml:"category_id"` // Default video category filter
	MaxResults int64  `toml:"max_results"` // default: 25
}

// WeightsConfig weights the scoring dimensions
type WeightsConfig struct {
	Virality       float64 `toml:"virality"`
	Feasibility    float64 `toml:"feasibility"`
	TrendAlignment float64 `toml:"trend_alignment"`
}

// PipelineConfig configures the stage sequence
type PipelineConfig struct {
	Scorer     string            `toml:"scorer"`      // "heuristic" or "generative" (default: "heuristic")
	Weights    WeightsConfig     `toml:"weights"`     // default: 1, 1, 1
	RunTimeout string            `toml:"run_timeout"` // Overall deadline of a run (default: "30m")
	Fallbacks  map[string]string `toml:"fallbacks"`   // stage name -> "none" | "substitute_mock"
}

// SchedulerConfig configures the time trigger
type SchedulerConfig struct {
	Enabled  bool   `toml:"enabled"`
	Tick     string `toml:"tick"`     // Cron expression of the scan (default: "*/15 * * * *")
	Cooldown string `toml:"cooldown"` // Minimum time between runs of one channel (default: "20h")
}

// RedisConfig configures the optional cross-process cooldown claim
type RedisConfig struct {
	Enabled   bool   `toml:"enabled"`
	Addr      string `toml:"addr"`
	Password  string `toml:"password"`
	DB        int    `toml:"db"`
	KeyPrefix string `toml:"key_prefix"`
}

// NATSConfig configures the optional run event forwarder
type NATSConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Subject string `toml:"subject"` // Subject prefix (default: "trendreel.events")
}

// ChannelsConfig configures channel seed files
type ChannelsConfig struct {
	Dir string `toml:"dir"` // Directory of channel files (TOML or YAML)
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8085,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			Timeout:     "2m",
			RateLimit:   "4s", // 15 RPM free tier
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
		Video: VideoConfig{
			Model:        "veo-3.0-fast-generate-001",
			AspectRatio:  "9:16",
			Resolution:   "720p",
			PollInterval: "10s",
			MaxPolls:     60,
			OutputDir:    "./data/videos",
		},
		YouTube: YouTubeConfig{
			CategoryID:    "28",
			UploadTimeout: "10m",
		},
		Trends: TrendsConfig{
			Enabled:    false, // Mock trend data until a YouTube API key is configured
			Region:     "US",
			MaxResults: 25,
		},
		Pipeline: PipelineConfig{
			Scorer:     "heuristic",
			Weights:    WeightsConfig{Virality: 1, Feasibility: 1, TrendAlignment: 1},
			RunTimeout: "30m",
			Fallbacks: map[string]string{
				"trend_signals": "substitute_mock",
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Tick:     "*/15 * * * *",
			Cooldown: "20h",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "trendreel:cooldown:",
		},
		NATS: NATSConfig{
			URL:     "nats://127.0.0.1:4222",
			Subject: "trendreel.events",
		},
		Channels: ChannelsConfig{
			Dir: "./channels",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env.
// Later files override earlier files. CLI flags are applied afterwards by the caller.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnvOverrides applies TRENDREEL_* environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRENDREEL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("TRENDREEL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("TRENDREEL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("TRENDREEL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("TRENDREEL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("TRENDREEL_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("TRENDREEL_LOG_OUTPUT"); output != "" {
		if outputs := splitList(output); len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("TRENDREEL_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("TRENDREEL_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if rateLimit := os.Getenv("TRENDREEL_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}

	// Claude configuration
	if apiKey := os.Getenv("TRENDREEL_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("TRENDREEL_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	if provider := os.Getenv("TRENDREEL_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}

	// Video configuration
	if model := os.Getenv("TRENDREEL_VIDEO_MODEL"); model != "" {
		config.Video.Model = model
	}
	if maxPolls := os.Getenv("TRENDREEL_VIDEO_MAX_POLLS"); maxPolls != "" {
		if mp, err := strconv.Atoi(maxPolls); err == nil {
			config.Video.MaxPolls = mp
		}
	}
	if pollInterval := os.Getenv("TRENDREEL_VIDEO_POLL_INTERVAL"); pollInterval != "" {
		config.Video.PollInterval = pollInterval
	}
	if outputDir := os.Getenv("TRENDREEL_VIDEO_OUTPUT_DIR"); outputDir != "" {
		config.Video.OutputDir = outputDir
	}

	// YouTube configuration
	if clientID := os.Getenv("TRENDREEL_YOUTUBE_CLIENT_ID"); clientID != "" {
		config.YouTube.ClientID = clientID
	}
	if clientSecret := os.Getenv("TRENDREEL_YOUTUBE_CLIENT_SECRET"); clientSecret != "" {
		config.YouTube.ClientSecret = clientSecret
	}
	if apiKey := os.Getenv("TRENDREEL_YOUTUBE_API_KEY"); apiKey != "" {
		config.YouTube.APIKey = apiKey
	}

	// Trends configuration
	if enabled := os.Getenv("TRENDREEL_TRENDS_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Trends.Enabled = e
		}
	}
	if region := os.Getenv("TRENDREEL_TRENDS_REGION"); region != "" {
		config.Trends.Region = region
	}

	// Scheduler configuration
	if enabled := os.Getenv("TRENDREEL_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if tick := os.Getenv("TRENDREEL_SCHEDULER_TICK"); tick != "" {
		config.Scheduler.Tick = tick
	}
	if cooldown := os.Getenv("TRENDREEL_SCHEDULER_COOLDOWN"); cooldown != "" {
		config.Scheduler.Cooldown = cooldown
	}

	// Redis configuration
	if addr := os.Getenv("TRENDREEL_REDIS_ADDR"); addr != "" {
		config.Redis.Addr = addr
		config.Redis.Enabled = true
	}
	if password := os.Getenv("TRENDREEL_REDIS_PASSWORD"); password != "" {
		config.Redis.Password = password
	}

	// NATS configuration
	if url := os.Getenv("TRENDREEL_NATS_URL"); url != "" {
		config.NATS.URL = url
		config.NATS.Enabled = true
	}

	// Channels configuration
	if dir := os.Getenv("TRENDREEL_CHANNELS_DIR"); dir != "" {
		config.Channels.Dir = dir
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ResolveAPIKey resolves an API key by name with environment variable priority.
// Resolution order: environment variables → config fallback → error
func ResolveAPIKey(name string, configFallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key":    {"TRENDREEL_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"anthropic_api_key": {"TRENDREEL_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"},
		"youtube_api_key":   {"TRENDREEL_YOUTUBE_API_KEY", "YOUTUBE_API_KEY"},
	}

	for _, envVarName := range keyToEnvMapping[name] {
		if envValue := os.Getenv(envVarName); envValue != "" {
			return envValue, nil
		}
	}

	if configFallback != "" {
		return configFallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or config", name)
}

// ValidateSchedule validates a standard cron expression and ensures a minimum 5-minute interval
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// Validate checks values that cannot be corrected by defaults
func (c *Config) Validate() error {
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude:
	default:
		return fmt.Errorf("llm.default_provider must be gemini or claude, got %q", c.LLM.DefaultProvider)
	}

	switch c.Pipeline.Scorer {
	case "", "heuristic", "generative":
	default:
		return fmt.Errorf("pipeline.scorer must be heuristic or generative, got %q", c.Pipeline.Scorer)
	}

	w := c.Pipeline.Weights
	if w.Virality < 0 || w.Feasibility < 0 || w.TrendAlignment < 0 {
		return fmt.Errorf("pipeline.weights must not be negative")
	}
	if w.Virality+w.Feasibility+w.TrendAlignment == 0 {
		return fmt.Errorf("pipeline.weights must not all be zero")
	}

	for stage, policy := range c.Pipeline.Fallbacks {
		if policy != "none" && policy != "substitute_mock" {
			return fmt.Errorf("pipeline.fallbacks.%s: unknown policy %q", stage, policy)
		}
	}

	if c.Video.MaxPolls <= 0 {
		return fmt.Errorf("video.max_polls must be positive")
	}

	for name, value := range map[string]string{
		"video.poll_interval":    c.Video.PollInterval,
		"pipeline.run_timeout":   c.Pipeline.RunTimeout,
		"scheduler.cooldown":     c.Scheduler.Cooldown,
		"youtube.upload_timeout": c.YouTube.UploadTimeout,
		"gemini.rate_limit":      c.Gemini.RateLimit,
		"claude.rate_limit":      c.Claude.RateLimit,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.Tick); err != nil {
			return fmt.Errorf("scheduler.tick: %w", err)
		}
	}
	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ParseDurationOr parses a duration string, returning def for empty or invalid values
func ParseDurationOr(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
