package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"creatorpulse/internal/config"
	"creatorpulse/internal/domain"
	"creatorpulse/internal/fetch"
	"creatorpulse/internal/infrastructure/embedding"
	"creatorpulse/internal/infrastructure/provider"
	"creatorpulse/internal/infrastructure/storage"
	"creatorpulse/internal/logging"
	"creatorpulse/internal/match"
	"creatorpulse/internal/normalize"
	"creatorpulse/internal/pipeline"
	"creatorpulse/internal/ports"
	"creatorpulse/internal/synth"
	"creatorpulse/internal/worker"
)

// Application wires configuration into the pipeline, worker pool and
// schedule, and owns their lifecycle.
type Application struct {
	cfg      config.Config
	store    *storage.Store
	pipeline *pipeline.Pipeline
	pool     *worker.Pool
	schedule *worker.Schedule
	embedder ports.EmbeddingProvider
	logger   *slog.Logger
}

// New builds a runnable application instance from configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	normalizer := normalize.New()
	fetcher := fetch.New(nil, normalizer, fetch.Options{
		SocialAPIBaseURL: cfg.Social.APIBaseURL,
		SocialToken:      cfg.Social.BearerToken,
	}, logging.Component(baseLogger, "fetch"))

	var generator ports.GenerationProvider
	if cfg.Generation.APIKey != "" {
		generator = provider.NewGeminiClient(cfg.Generation)
	}
	synthesizer := synth.New(generator, logging.Component(baseLogger, "synth"))

	var embedder ports.EmbeddingProvider
	if cfg.Embedding.Endpoint != "" {
		embedder = embedding.NewClient(cfg.Embedding.Endpoint, cfg.Embedding.APIKey)
	} else {
		embedder = embedding.DeterministicStub{}
	}

	pipe := pipeline.New(pipeline.Deps{
		Sources:  store,
		Content:  store,
		Styles:   store,
		Drafts:   store.Drafts(),
		Embedder: embedder,
		Fetcher:  fetcher,
		Synth:    synthesizer,
		Matcher: match.Matcher{
			Threshold:  cfg.Pipeline.SimilarityThreshold,
			MaxMatches: cfg.Pipeline.MaxMatches,
		},
		Logger: logging.Component(baseLogger, "pipeline"),
	}, pipeline.Options{
		MaxItemsPerSource: cfg.Pipeline.MaxItemsPerSource,
		FetchConcurrency:  cfg.Pipeline.FetchConcurrency,
	})

	contentAge := time.Duration(cfg.Pipeline.ContentAgeHours) * time.Hour
	pool := worker.NewPool(pipe, cfg.Pipeline.WorkerPoolSize, 0, logging.Component(baseLogger, "worker"))
	schedule, err := worker.NewSchedule(worker.ScheduleConfig{
		RunSpec:     cfg.Scheduler.CronExpression,
		CleanupSpec: cfg.Scheduler.CleanupCronExpression,
		Timezone:    cfg.Scheduler.Timezone,
		MaxDrafts:   cfg.Pipeline.MaxDraftsPerRun,
		ContentAge:  contentAge,
		Retention:   time.Duration(cfg.Pipeline.RetentionDays) * 24 * time.Hour,
	}, store, pool, store, logging.Component(baseLogger, "schedule"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build schedule: %w", err)
	}

	return &Application{
		cfg:      cfg,
		store:    store,
		pipeline: pipe,
		pool:     pool,
		schedule: schedule,
		embedder: embedder,
		logger:   baseLogger,
	}, nil
}

// Run starts the pool and schedule and blocks until the context is
// cancelled, then stops both and releases the database. Requests still
// queued at shutdown are dropped; the next scheduled tick re-enqueues
// every active user anyway.
func (a *Application) Run(ctx context.Context) error {
	a.pool.Start(ctx)
	a.schedule.Start()
	a.logger.Info("application started",
		"cron", a.cfg.Scheduler.CronExpression,
		"workers", a.cfg.Pipeline.WorkerPoolSize)

	<-ctx.Done()

	a.schedule.Stop()
	a.pool.Stop()
	return a.store.Close()
}

// RunOnce executes a single pipeline run for one user, bypassing the
// schedule. Used by the one-shot CLI mode.
func (a *Application) RunOnce(ctx context.Context, userID string) error {
	contentAge := time.Duration(a.cfg.Pipeline.ContentAgeHours) * time.Hour
	result, err := a.pipeline.Run(ctx, userID, a.cfg.Pipeline.MaxDraftsPerRun, contentAge)
	if err != nil {
		return err
	}
	a.logger.Info("run finished",
		"user", userID,
		"fetched", result.ItemsFetched,
		"deduped", result.ItemsDeduped,
		"drafts", result.DraftsGenerated,
		"errors", len(result.Errors))
	return nil
}

// AddSource registers a content source for a user after validating its
// locator. Returns the new source's id.
func (a *Application) AddSource(ctx context.Context, userID string, kind domain.SourceKind, name, locator string) (string, error) {
	if err := fetch.ValidateLocator(kind, locator); err != nil {
		return "", err
	}

	src := domain.Source{
		ID:      uuid.NewString(),
		OwnerID: userID,
		Kind:    kind,
		Name:    name,
		Locator: locator,
		Active:  true,
	}
	if err := a.store.AddSource(ctx, src); err != nil {
		return "", err
	}
	a.logger.Info("source added", "user", userID, "kind", kind, "id", src.ID)
	return src.ID, nil
}

// AddStyleExample embeds one of the user's past posts and adds it to
// their style corpus. Returns the new example's id.
func (a *Application) AddStyleExample(ctx context.Context, userID, text string) (string, error) {
	vector, err := a.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed style example: %w", err)
	}

	id := uuid.NewString()
	example := domain.StyleExample{Content: text, Embedding: vector}
	if err := a.store.AddStyleExample(ctx, id, userID, example); err != nil {
		return "", err
	}
	a.logger.Info("style example added", "user", userID, "id", id)
	return id, nil
}

// Close releases resources without running; safe after a failed Run.
func (a *Application) Close() error {
	return a.store.Close()
}
