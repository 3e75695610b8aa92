// Package llm wraps the Genkit model surface behind two narrow operations:
// free-text generation and closed-set classification. All calls go through
// a rate limiter, retry with exponential backoff, and a circuit breaker.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

var (
	// ErrNoLabel indicates the classifier response matched none of the
	// allowed labels.
	ErrNoLabel = errors.New("no label in classifier response")

	// ErrEmptyResponse indicates the model returned no text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Client is the concrete model client. Consumers declare their own narrow
// interfaces (Classifier, Generator) and accept *Client through them.
type Client struct {
	g       *genkit.Genkit
	model   string
	logger  *slog.Logger
	retry   RetryConfig
	breaker *CircuitBreaker
	limiter *rate.Limiter
}

// Options tunes the resilience wrapping. Zero values select defaults.
type Options struct {
	Retry   RetryConfig
	Breaker CircuitBreakerConfig
	// RequestsPerSecond bounds outbound call rate; 0 disables limiting.
	RequestsPerSecond float64
}

// New creates a model client. model is the provider-qualified name
// ("googleai/gemini-2.5-flash", "ollama/llama3.3").
func New(g *genkit.Genkit, model string, opts Options, logger *slog.Logger) (*Client, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Retry.MaxRetries == 0 && opts.Retry.InitialInterval == 0 {
		opts.Retry = DefaultRetryConfig()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		g:       g,
		model:   model,
		logger:  logger.With("component", "llm"),
		retry:   opts.Retry,
		breaker: NewCircuitBreaker(opts.Breaker),
		limiter: limiter,
	}, nil
}

// Generate produces free text for a prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.breaker.Allow(); err != nil {
		return "", err
	}

	out, err := c.withRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := genkit.Generate(ctx, c.g,
			ai.WithModelName(c.model),
			ai.WithPrompt(prompt),
		)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	})
	if err != nil {
		c.breaker.Failure()
		return "", err
	}
	c.breaker.Success()
	return out, nil
}

// Classify asks the model to pick exactly one of labels for text.
// The response is matched against the label set; anything that cannot be
// resolved to a single allowed label is an error, never a guessed label.
func (c *Client) Classify(ctx context.Context, text string, labels []string) (string, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("labels are required")
	}

	prompt := classifyPrompt(text, labels)
	out, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return matchLabel(out, labels)
}

func classifyPrompt(text string, labels []string) string {
	var b strings.Builder
	b.WriteString("Classify the user message into exactly one category.\n")
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(labels, ", "))
	b.WriteString("\nRespond with only the category name, nothing else.\n\nMessage: ")
	b.WriteString(text)
	return b.String()
}

// matchLabel resolves a raw model response to one of the allowed labels.
// Tries an exact (case-insensitive, trimmed) match first, then a unique
// substring match for chatty responses like "the answer is: tutoring".
func matchLabel(response string, labels []string) (string, error) {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(response), `."'`))

	for _, l := range labels {
		if cleaned == strings.ToLower(l) {
			return l, nil
		}
	}

	var found string
	for _, l := range labels {
		if strings.Contains(cleaned, strings.ToLower(l)) {
			if found != "" {
				return "", fmt.Errorf("%w: ambiguous response %q", ErrNoLabel, response)
			}
			found = l
		}
	}
	if found == "" {
		return "", fmt.Errorf("%w: %q", ErrNoLabel, response)
	}
	return found, nil
}
