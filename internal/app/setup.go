package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/studypal/studypal/db"
	"github.com/studypal/studypal/internal/agent"
	"github.com/studypal/studypal/internal/analysis"
	"github.com/studypal/studypal/internal/calendar"
	"github.com/studypal/studypal/internal/checkpoint"
	"github.com/studypal/studypal/internal/config"
	"github.com/studypal/studypal/internal/graph"
	"github.com/studypal/studypal/internal/intent"
	"github.com/studypal/studypal/internal/llm"
	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/quotes"
	"github.com/studypal/studypal/internal/retrieval"
	"github.com/studypal/studypal/internal/schedule"
	"github.com/studypal/studypal/internal/session"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be set up before Genkit so its TracerProvider is ready.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}

	client, err := llm.New(g, cfg.FullModelName(), llm.Options{}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating model client: %w", err)
	}
	a.LLM = client

	a.Documents, err = retrieval.NewStore(pool, embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating document store: %w", err)
	}

	a.Checkpoints, err = checkpoint.NewPostgresStore(pool, logger)
	if err != nil {
		return nil, fmt.Errorf("creating checkpoint store: %w", err)
	}

	a.Calendar = provideCalendar(ctx, cfg, logger)

	router := intent.NewRouter(client, logger)
	analyzer := analysis.NewAnalyzer(logger)
	planner := schedule.NewPlanner(cfg.Scheduler, client, logger)

	tutor := agent.NewTutor(a.Documents, client, router, cfg.RetrievalTopK, logger)
	analyst := agent.NewAnalyst(analyzer, logger)

	var creator agent.EventCreator
	if a.Calendar != nil {
		creator = a.Calendar
	}
	scheduler := agent.NewScheduler(planner, creator, logger)

	motivator := agent.NewMotivator(provideQuotes(cfg, logger), quotes.NewLocal(), client, logger)

	engine, err := graph.New(router, cfg.MaxHops, logger, tutor, analyst, scheduler, motivator)
	if err != nil {
		return nil, fmt.Errorf("building orchestration graph: %w", err)
	}

	a.Facade, err = session.New(engine, a.Checkpoints, logger)
	if err != nil {
		return nil, fmt.Errorf("creating session facade: %w", err)
	}
	a.Flow = session.NewFlow(g, a.Facade)

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// provideOtelShutdown sets up OTLP HTTP trace export when enabled. A
// failed exporter disables tracing with a warning; it never blocks startup.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger log.Logger) func() {
	if !cfg.Otel.Enabled {
		return func() {}
	}

	// Genkit's TracerProvider picks the service name up from the env.
	// SAFETY: called exactly once during startup, before goroutines spawn.
	if cfg.Otel.Service != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.Otel.Service)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Otel.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	tracing.TracerProvider().RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	logger.Debug("tracing enabled", "endpoint", cfg.Otel.Endpoint, "service", cfg.Otel.Service)

	shutdown := tracing.TracerProvider().Shutdown
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideDBPool runs migrations and creates the PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.ConnString()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery; models register explicitly.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini / googleai
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		// Keyed by server address, registered in provideGenkit.
		return ollama.Embedder(g, cfg.OllamaHost)
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideCalendar connects to the calendar MCP server. No configured
// command or a failed handshake means sync is disabled, not a startup
// failure.
func provideCalendar(ctx context.Context, cfg *config.Config, logger log.Logger) *calendar.Client {
	if cfg.Calendar.Command == "" {
		logger.Debug("no calendar command configured, sync disabled")
		return nil
	}

	timeout := time.Duration(cfg.Calendar.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cal, err := calendar.Connect(connectCtx, cfg.Calendar.Command, cfg.Calendar.Args, logger)
	if err != nil {
		logger.Warn("calendar MCP server unavailable, sync disabled", "error", err)
		return nil
	}
	return cal
}

// provideQuotes creates the quote scraper; nil when unconfigured.
func provideQuotes(cfg *config.Config, logger log.Logger) agent.QuoteSource {
	if cfg.Quotes.URL == "" {
		return nil
	}
	scraper, err := quotes.NewScraper(cfg.Quotes.URL, time.Duration(cfg.Quotes.TimeoutMS)*time.Millisecond, logger)
	if err != nil {
		logger.Warn("creating quote scraper, using embedded list only", "error", err)
		return nil
	}
	return scraper
}
