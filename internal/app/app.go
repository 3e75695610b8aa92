// Package app assembles the application: configuration, logging, tracing,
// storage, the model client, the four agents, the orchestration graph, and
// the session facade.
package app

import (
	"context"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/studypal/studypal/internal/calendar"
	"github.com/studypal/studypal/internal/checkpoint"
	"github.com/studypal/studypal/internal/config"
	"github.com/studypal/studypal/internal/llm"
	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/retrieval"
	"github.com/studypal/studypal/internal/session"
)

// App is the application container. Build one with Setup and release its
// resources with Close.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit      *genkit.Genkit
	DBPool      *pgxpool.Pool
	Checkpoints *checkpoint.PostgresStore
	Documents   *retrieval.Store
	LLM         *llm.Client

	// Calendar is nil when no MCP server command is configured.
	Calendar *calendar.Client

	Facade *session.Facade
	Flow   *session.Flow

	otelCleanup func()
	cancel      context.CancelFunc
}

// Close releases all resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down")
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.Calendar != nil {
		if err := a.Calendar.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("closing calendar client", "error", err)
		}
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
