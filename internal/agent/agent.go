// Package agent implements the four conversation handlers: tutoring,
// analysis, scheduling, and motivation. Each handler consumes the shared
// session state, appends at most one assistant response, and records the
// flags the routing predicates read.
//
// External collaborator failures never fail a turn. Every degraded path
// still produces a textual response; the difference is visible only in the
// content.
package agent

import (
	"context"

	"github.com/studypal/studypal/internal/calendar"
	"github.com/studypal/studypal/internal/quotes"
	"github.com/studypal/studypal/internal/retrieval"
	"github.com/studypal/studypal/internal/state"
)

// Generator is the free-text model surface. *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever returns grounding passages for a user's query.
// *retrieval.Store satisfies it.
type Retriever interface {
	Query(ctx context.Context, ownerID, query string, topK int) ([]retrieval.Passage, error)
}

// ExitChecker decides whether the user wants to leave the tutoring loop.
// *intent.Router satisfies it.
type ExitChecker interface {
	WantsExit(ctx context.Context, st *state.State) bool
}

// EventCreator creates one calendar event per call. *calendar.Client
// satisfies it; a nil creator means calendar sync is not configured.
type EventCreator interface {
	CreateEvent(ctx context.Context, ev calendar.Event) error
}

// QuoteSource supplies one motivational quote. *quotes.Scraper and
// *quotes.Local satisfy it.
type QuoteSource interface {
	Fetch(ctx context.Context) (quotes.Quote, error)
}
