package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/studypal/studypal/internal/quotes"
	"github.com/studypal/studypal/internal/state"
)

// Motivator delivers a short encouraging message built around a quote.
// The scraped source is tried first, the embedded list is the fallback, so
// motivation works even fully offline.
type Motivator struct {
	primary  QuoteSource
	fallback QuoteSource
	gen      Generator
	logger   *slog.Logger
}

// NewMotivator creates the motivation handler. primary may be nil; gen may
// be nil, in which case the response is a fixed frame around the quote.
func NewMotivator(primary, fallback QuoteSource, gen Generator, logger *slog.Logger) *Motivator {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = quotes.NewLocal()
	}
	return &Motivator{
		primary:  primary,
		fallback: fallback,
		gen:      gen,
		logger:   logger.With("agent", state.NodeMotivation),
	}
}

// Name returns the node name used for response attribution.
func (m *Motivator) Name() string { return state.NodeMotivation }

// Handle produces the motivational response. Nothing here can fail the
// turn: a dead quote source falls back to the embedded list, and a dead
// model falls back to a fixed frame.
func (m *Motivator) Handle(ctx context.Context, st *state.State) error {
	q := m.quote(ctx)

	text := fmt.Sprintf("Keep going, you're doing better than you think.\n\n%q", q.String())
	if m.gen != nil {
		generated, err := m.gen.Generate(ctx, fmt.Sprintf(
			"Write two or three warm, encouraging sentences for a student who needs a push. "+
				"Work in this quote naturally: %s", q.String()))
		if err != nil {
			m.logger.Warn("motivation generation failed, using fixed frame", "error", err)
		} else {
			text = generated
		}
	}

	st.AppendAssistant(m.Name(), text)
	st.TurnComplete = true
	return nil
}

func (m *Motivator) quote(ctx context.Context) quotes.Quote {
	if m.primary != nil {
		q, err := m.primary.Fetch(ctx)
		if err == nil {
			return q
		}
		m.logger.Warn("quote scrape failed, using embedded list", "error", err)
	}
	q, _ := m.fallback.Fetch(ctx)
	return q
}
