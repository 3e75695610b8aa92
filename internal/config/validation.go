package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Validate performs fail-fast validation of the whole configuration.
// Returns the first problem found, wrapped around a sentinel error.
func (c *Config) Validate() error {
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidTopK, c.RetrievalTopK)
	}
	if c.MaxHops < 1 || c.MaxHops > 32 {
		return fmt.Errorf("%w: %d (must be 1-32)", ErrInvalidMaxHops, c.MaxHops)
	}
	return c.validateScheduler()
}

func (c *Config) validateAI() error {
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY not set (provider %q)", ErrMissingAPIKey, c.Provider)
		}
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY not set", ErrMissingAPIKey)
		}
	case ProviderOllama:
		u, err := url.Parse(c.OllamaHost)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidOllamaHost, c.OllamaHost)
		}
	default:
		return fmt.Errorf("%w: %q (supported: gemini, ollama, openai)", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelName)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %g (must be 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: empty host", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPostgresDBName)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.StudyMinutes < 5 || c.Scheduler.StudyMinutes > 120 {
		return fmt.Errorf("%w: study_minutes %d (must be 5-120)", ErrInvalidBlockMinutes, c.Scheduler.StudyMinutes)
	}
	if c.Scheduler.BreakMinutes < 1 || c.Scheduler.BreakMinutes > 60 {
		return fmt.Errorf("%w: break_minutes %d (must be 1-60)", ErrInvalidBlockMinutes, c.Scheduler.BreakMinutes)
	}
	if c.Scheduler.MaxBlocks < 1 || c.Scheduler.MaxBlocks > 48 {
		return fmt.Errorf("%w: max_blocks %d (must be 1-48)", ErrInvalidBlockMinutes, c.Scheduler.MaxBlocks)
	}
	return nil
}
