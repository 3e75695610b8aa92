// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.studypal/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - AI: provider and model selection for the classifier and generator
//   - Storage: PostgreSQL connection for checkpoints and retrieval documents
//   - Retrieval: embedder model and passage count
//   - Scheduler: Pomodoro block lengths and calendar MCP server command
//   - Observability: optional OTLP trace export
//
// Security: sensitive data (passwords) are never logged; config directory uses
// 0750 permissions. Validation is fail-fast with sentinel errors for errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid Ollama host")

	// ErrInvalidTopK indicates the retrieval passage count is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top-k")

	// ErrInvalidBlockMinutes indicates a Pomodoro block length is out of range.
	ErrInvalidBlockMinutes = errors.New("invalid block minutes")

	// ErrInvalidMaxHops indicates the graph hop ceiling is out of range.
	ErrInvalidMaxHops = errors.New("invalid max hops")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel outputs 3072 dimensions by default but
	// supports truncation to 768 via OutputDimensionality. The pgvector
	// schema uses 768; see retrieval.VectorDimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultStudyMinutes and DefaultBreakMinutes follow the classic
	// Pomodoro cadence.
	DefaultStudyMinutes = 25
	DefaultBreakMinutes = 5

	// DefaultMaxHops bounds a single graph traversal.
	DefaultMaxHops = 6
)

// SchedulerConfig controls study-plan generation and calendar sync.
type SchedulerConfig struct {
	StudyMinutes int `mapstructure:"study_minutes" json:"study_minutes"`
	BreakMinutes int `mapstructure:"break_minutes" json:"break_minutes"`
	// MaxBlocks caps the number of study blocks in one plan.
	MaxBlocks int `mapstructure:"max_blocks" json:"max_blocks"`
}

// CalendarConfig describes the external calendar MCP server. The client
// spawns Command with Args and speaks MCP over stdio. Disabled when
// Command is empty.
type CalendarConfig struct {
	Command   string   `mapstructure:"command" json:"command"`
	Args      []string `mapstructure:"args" json:"args"`
	TimeoutMS int      `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// QuotesConfig controls the motivational quote scraper.
type QuotesConfig struct {
	URL       string `mapstructure:"url" json:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms" json:"timeout_ms"`
}

// OtelConfig controls optional OTLP HTTP trace export.
type OtelConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
	Service  string `mapstructure:"service" json:"service"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider    string  `mapstructure:"provider" json:"provider"` // "gemini" (default), "ollama", "openai"
	ModelName   string  `mapstructure:"model_name" json:"model_name"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Retrieval configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`
	RetrievalTopK int    `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`

	// Graph configuration
	MaxHops int `mapstructure:"max_hops" json:"max_hops"`

	Scheduler SchedulerConfig `mapstructure:"scheduler" json:"scheduler"`
	Calendar  CalendarConfig  `mapstructure:"calendar" json:"calendar"`
	Quotes    QuotesConfig    `mapstructure:"quotes" json:"quotes"`
	Otel      OtelConfig      `mapstructure:"otel" json:"otel"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".studypal")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "studypal")
	viper.SetDefault("postgres_password", "studypal_dev_password")
	viper.SetDefault("postgres_db_name", "studypal")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Retrieval defaults
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("retrieval_top_k", 4)

	// Graph defaults
	viper.SetDefault("max_hops", DefaultMaxHops)

	// Scheduler defaults
	viper.SetDefault("scheduler.study_minutes", DefaultStudyMinutes)
	viper.SetDefault("scheduler.break_minutes", DefaultBreakMinutes)
	viper.SetDefault("scheduler.max_blocks", 8)

	// Calendar defaults (disabled until a command is configured)
	viper.SetDefault("calendar.command", "")
	viper.SetDefault("calendar.timeout_ms", 10000)

	// Quotes defaults
	viper.SetDefault("quotes.url", "https://quotes.toscrape.com/tag/inspirational/")
	viper.SetDefault("quotes.timeout_ms", 5000)

	// Otel defaults
	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")
	viper.SetDefault("otel.service", "studypal")

	// Logging defaults
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", false)
}

// bindEnvVariables binds environment overrides explicitly. API keys
// (GEMINI_API_KEY, OPENAI_API_KEY) are read directly by Genkit plugins,
// not via Viper; Validate() checks their presence for the selected provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "STUDYPAL_PROVIDER")
	mustBind("model_name", "STUDYPAL_MODEL_NAME")
	mustBind("ollama_host", "STUDYPAL_OLLAMA_HOST")
	mustBind("postgres_host", "STUDYPAL_POSTGRES_HOST")
	mustBind("postgres_port", "STUDYPAL_POSTGRES_PORT")
	mustBind("postgres_user", "STUDYPAL_POSTGRES_USER")
	mustBind("postgres_password", "STUDYPAL_POSTGRES_PASSWORD")
	mustBind("postgres_db_name", "STUDYPAL_POSTGRES_DB")
	mustBind("calendar.command", "STUDYPAL_CALENDAR_COMMAND")
	mustBind("otel.enabled", "STUDYPAL_OTEL_ENABLED")
	mustBind("otel.endpoint", "STUDYPAL_OTEL_ENDPOINT")
	mustBind("log_level", "STUDYPAL_LOG_LEVEL")
}

// ConnString builds a pgx connection string from the Postgres fields.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "googleai/gemini-2.5-flash", "ollama/llama3.3", "openai/gpt-4o".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + c.ModelName
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + c.ModelName
	default:
		return ProviderGoogleAI + "/" + c.ModelName
	}
}

// maskedValue uses full-width blocks so masked output can never be a
// substring of the real secret.
const maskedValue = "████████"

// maskSecret masks a secret for safe logging. Secrets of 8 chars or fewer
// are fully masked; longer ones keep the first and last 2 chars for debug
// utility. This defends against accidental logging, nothing more.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
