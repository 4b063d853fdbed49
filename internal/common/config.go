package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string        `toml:"environment"` // "development" or "production"
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Logging     LoggingConfig `toml:"logging"`
	Auth        AuthConfig    `toml:"auth"`
	Scraper     ScraperConfig `toml:"scraper"`
	Search      SearchConfig  `toml:"search"`
	Jobs        JobsConfig    `toml:"jobs"`
	Gemini      GeminiConfig  `toml:"gemini"`
	Claude      ClaudeConfig  `toml:"claude"`
	LLM         LLMConfig     `toml:"llm"`
}

type ServerConfig struct {
	Port           int     `toml:"port"`
	Host           string  `toml:"host"`
	PushRatePerSec float64 `toml:"push_rate_per_sec"` // Max websocket pushes per user per second (0 = unlimited)
	PushBurst      int     `toml:"push_burst"`        // Burst allowance for the per-user push limiter
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05.000")
}

// AuthConfig maps client bearer tokens to user identities.
// Keys are tokens, values are user IDs.
type AuthConfig struct {
	Tokens map[string]string `toml:"tokens"`
}

// ScraperConfig contains the external scraping service configuration
type ScraperConfig struct {
	Endpoint       string        `toml:"endpoint"`        // Base URL of the scraping service
	Project        string        `toml:"project"`         // Scraper project name
	Spider         string        `toml:"spider"`          // Spider used for product pages
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
	AffiliateTag   string        `toml:"affiliate_tag"`   // Tag appended to generated product links
}

// SearchConfig contains similarity search behavior
type SearchConfig struct {
	Limit           int `toml:"limit"`            // Max candidates returned by vector search
	MaxValidated    int `toml:"max_validated"`    // Max cards kept after relevance validation
	BatchSize       int `toml:"batch_size"`       // Payloads processed concurrently during reconciliation
	SimilarityLimit int `toml:"similarity_limit"` // Max results for explicit find-similar requests
}

// JobsConfig contains the scrape job lifecycle configuration
type JobsConfig struct {
	SweepSchedule string `toml:"sweep_schedule"` // Cron schedule for the stale job sweep
	PendingTTL    string `toml:"pending_ttl"`    // Pending jobs older than this are removed
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey         string  `toml:"api_key"`         // Google Gemini API key
	Model          string  `toml:"model"`           // Model for completions (default: "gemini-3-flash-preview")
	EmbedModel     string  `toml:"embed_model"`     // Model for embeddings (default: "gemini-embedding-001")
	EmbedDimension int     `toml:"embed_dimension"` // Output embedding dimensionality (default: 768)
	Timeout        string  `toml:"timeout"`         // Operation timeout as duration string (default: "2m")
	RateLimit      string  `toml:"rate_limit"`      // Rate limit duration string (default: "4s" for 15 RPM)
	Temperature    float32 `toml:"temperature"`     // Completion temperature (default: 0.7)
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`     // Anthropic API key
	Model       string  `toml:"model"`       // Model for completions (default: "claude-haiku-3-5-20241022")
	MaxTokens   int     `toml:"max_tokens"`  // Maximum tokens in response (default: 4096)
	Timeout     string  `toml:"timeout"`     // Operation timeout as duration string (default: "2m")
	RateLimit   string  `toml:"rate_limit"`  // Rate limit duration string (default: "1s")
	Temperature float32 `toml:"temperature"` // Completion temperature (default: 0.7)
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // Default provider: "gemini" or "claude" (default: "gemini")
	ClassifierModel string      `toml:"classifier_model"` // Model used for intent classification (defaults to provider model)
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in merx.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			PushRatePerSec: 10,
			PushBurst:      20,
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
		Auth: AuthConfig{
			Tokens: map[string]string{},
		},
		Scraper: ScraperConfig{
			Endpoint:       "http://localhost:6800",
			Project:        "default",
			Spider:         "amazon",
			RequestTimeout: 30 * time.Second,
			AffiliateTag:   "070777-20",
		},
		Search: SearchConfig{
			Limit:           5,
			MaxValidated:    5,
			BatchSize:       2,
			SimilarityLimit: 10,
		},
		Jobs: JobsConfig{
			SweepSchedule: "*/10 * * * *", // Every 10 minutes
			PendingTTL:    "30m",
		},
		Gemini: GeminiConfig{
			APIKey:         "", // User must provide API key (no fallback)
			Model:          "gemini-3-flash-preview",
			EmbedModel:     "gemini-embedding-001",
			EmbedDimension: 768,
			Timeout:        "2m",
			RateLimit:      "4s", // Default to 4s (15 RPM) for free tier
			Temperature:    0.7,
		},
		Claude: ClaudeConfig{
			APIKey:      "", // User must provide API key (ANTHROPIC_API_KEY or config)
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   4096,
			Timeout:     "2m",
			RateLimit:   "1s",
			Temperature: 0.7,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
		},
	}
}

// LoadFromFile loads configuration with priority: default -> file -> env -> CLI
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files. Later files override
// earlier files; environment variables override all files.
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

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MERX_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("MERX_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MERX_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("MERX_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Logging configuration
	if level := os.Getenv("MERX_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("MERX_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("MERX_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Scraper configuration
	if endpoint := os.Getenv("MERX_SCRAPER_ENDPOINT"); endpoint != "" {
		config.Scraper.Endpoint = endpoint
	}
	if project := os.Getenv("MERX_SCRAPER_PROJECT"); project != "" {
		config.Scraper.Project = project
	}
	if spider := os.Getenv("MERX_SCRAPER_SPIDER"); spider != "" {
		config.Scraper.Spider = spider
	}
	if timeout := os.Getenv("MERX_SCRAPER_REQUEST_TIMEOUT"); timeout != "" {
		if rt, err := time.ParseDuration(timeout); err == nil {
			config.Scraper.RequestTimeout = rt
		}
	}
	if tag := os.Getenv("MERX_SCRAPER_AFFILIATE_TAG"); tag != "" {
		config.Scraper.AffiliateTag = tag
	}

	// Search configuration
	if limit := os.Getenv("MERX_SEARCH_LIMIT"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			config.Search.Limit = l
		}
	}
	if maxValidated := os.Getenv("MERX_SEARCH_MAX_VALIDATED"); maxValidated != "" {
		if mv, err := strconv.Atoi(maxValidated); err == nil && mv > 0 {
			config.Search.MaxValidated = mv
		}
	}
	if batchSize := os.Getenv("MERX_SEARCH_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil && bs > 0 {
			config.Search.BatchSize = bs
		}
	}

	// Jobs configuration
	if schedule := os.Getenv("MERX_JOBS_SWEEP_SCHEDULE"); schedule != "" {
		config.Jobs.SweepSchedule = schedule
	}
	if ttl := os.Getenv("MERX_JOBS_PENDING_TTL"); ttl != "" {
		if _, err := time.ParseDuration(ttl); err == nil {
			config.Jobs.PendingTTL = ttl
		}
	}

	// Gemini configuration
	if apiKey := os.Getenv("MERX_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("MERX_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if embedModel := os.Getenv("MERX_GEMINI_EMBED_MODEL"); embedModel != "" {
		config.Gemini.EmbedModel = embedModel
	}
	if dim := os.Getenv("MERX_GEMINI_EMBED_DIMENSION"); dim != "" {
		if d, err := strconv.Atoi(dim); err == nil && d > 0 {
			config.Gemini.EmbedDimension = d
		}
	}
	if timeout := os.Getenv("MERX_GEMINI_TIMEOUT"); timeout != "" {
		config.Gemini.Timeout = timeout
	}
	if rateLimit := os.Getenv("MERX_GEMINI_RATE_LIMIT"); rateLimit != "" {
		config.Gemini.RateLimit = rateLimit
	}
	if temperature := os.Getenv("MERX_GEMINI_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Gemini.Temperature = float32(t)
		}
	}

	// Claude configuration
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("MERX_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey // MERX_ prefix takes priority
	}
	if model := os.Getenv("MERX_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if maxTokens := os.Getenv("MERX_CLAUDE_MAX_TOKENS"); maxTokens != "" {
		if mt, err := strconv.Atoi(maxTokens); err == nil {
			config.Claude.MaxTokens = mt
		}
	}
	if timeout := os.Getenv("MERX_CLAUDE_TIMEOUT"); timeout != "" {
		config.Claude.Timeout = timeout
	}
	if rateLimit := os.Getenv("MERX_CLAUDE_RATE_LIMIT"); rateLimit != "" {
		config.Claude.RateLimit = rateLimit
	}
	if temperature := os.Getenv("MERX_CLAUDE_TEMPERATURE"); temperature != "" {
		if t, err := strconv.ParseFloat(temperature, 32); err == nil {
			config.Claude.Temperature = float32(t)
		}
	}

	// LLM provider configuration
	if provider := os.Getenv("MERX_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if model := os.Getenv("MERX_LLM_CLASSIFIER_MODEL"); model != "" {
		config.LLM.ClassifierModel = model
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

// PendingJobTTL returns the parsed pending job TTL, falling back to the
// default when the configured value does not parse.
func (c *Config) PendingJobTTL() time.Duration {
	if d, err := time.ParseDuration(c.Jobs.PendingTTL); err == nil && d > 0 {
		return d
	}
	return 30 * time.Minute
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
