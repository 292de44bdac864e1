// Package pipeline composes fetch, dedupe, embed, match and synthesis
// into one per-user run. Per-source and per-item failures are isolated
// and reported in the run result; only a hard dependency failure aborts
// the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/sync/errgroup"

	"creatorpulse/internal/dedupe"
	"creatorpulse/internal/domain"
	"creatorpulse/internal/match"
	"creatorpulse/internal/ports"
)

const (
	defaultFetchConcurrency  = 5
	defaultMaxItemsPerSource = 20
	persistRetryDelay        = 2 * time.Second
)

// Fetcher is the slice of the source fetcher the pipeline needs.
type Fetcher interface {
	Fetch(ctx context.Context, source domain.Source, maxItems int, cutoff time.Time) ([]domain.ContentItem, error)
}

// Synthesizer is the slice of the draft synthesizer the pipeline needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, ownerID string, m domain.MatchResult) domain.Draft
}

// Deps wires all driven adapters into the orchestration pipeline.
type Deps struct {
	Sources  ports.SourceCollaborator
	Content  ports.ContentStore
	Styles   ports.StyleStore
	Drafts   ports.DraftStore
	Embedder ports.EmbeddingProvider
	Fetcher  Fetcher
	Synth    Synthesizer
	Matcher  match.Matcher
	Logger   *slog.Logger
}

// Options tunes per-run behavior.
type Options struct {
	MaxItemsPerSource int
	FetchConcurrency  int
	PersistRetryDelay time.Duration
}

// Pipeline implements the per-user ingestion and generation workflow.
type Pipeline struct {
	deps Deps
	opts Options
}

// New constructs the orchestration component.
func New(deps Deps, opts Options) *Pipeline {
	if opts.MaxItemsPerSource <= 0 {
		opts.MaxItemsPerSource = defaultMaxItemsPerSource
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = defaultFetchConcurrency
	}
	if opts.PersistRetryDelay <= 0 {
		opts.PersistRetryDelay = persistRetryDelay
	}
	return &Pipeline{deps: deps, opts: opts}
}

// Run executes the full pipeline for one user: fetch -> dedupe -> embed
// -> match -> generate -> persist. Zero surviving items is a normal
// outcome, not an error. A non-nil error means the run aborted at the
// stage recorded on the returned ClassifiedError.
func (p *Pipeline) Run(ctx context.Context, userID string, maxDrafts int, contentAge time.Duration) (domain.RunResult, error) {
	var result domain.RunResult
	cutoff := time.Now().UTC().Add(-contentAge)

	sources, err := p.deps.Sources.ActiveSources(ctx, userID)
	if err != nil {
		return result, domain.Classify(domain.ErrPersistence, domain.StageFetching, "", fmt.Errorf("load active sources: %w", err))
	}
	if len(sources) == 0 {
		p.info("no active sources", "user", userID)
		return result, nil
	}

	items, fetchErrs := p.fetchAll(ctx, sources, cutoff)
	result.ItemsFetched = len(items)
	result.Errors = append(result.Errors, fetchErrs...)
	if err := ctx.Err(); err != nil {
		return result, domain.Classify(domain.ErrTransient, domain.StageFetching, "", err)
	}
	if len(items) == 0 {
		p.info("no new content", "user", userID, "sources", len(sources), "errors", len(result.Errors))
		return result, nil
	}

	// Merge order across sources is arbitrary; every later stage works
	// newest first.
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	existing, err := p.deps.Content.ExistingHashes(ctx, userID, dedupe.Hashes(items))
	if err != nil {
		return result, domain.Classify(domain.ErrPersistence, domain.StageDeduplicating, "", fmt.Errorf("load existing hashes: %w", err))
	}
	unique := dedupe.Dedupe(items, existing)
	result.ItemsDeduped = len(unique)
	if len(unique) == 0 {
		p.info("all content already known", "user", userID, "fetched", result.ItemsFetched)
		return result, nil
	}

	if err := p.saveContent(ctx, userID, unique); err != nil {
		result.Errors = append(result.Errors, domain.Classify(domain.ErrPersistence, domain.StagePersisting, "", err))
	}

	embedded := p.embedAll(ctx, unique, &result)
	if err := ctx.Err(); err != nil {
		return result, domain.Classify(domain.ErrTransient, domain.StageEmbedding, "", err)
	}

	examples, err := p.deps.Styles.Examples(ctx, userID)
	if err != nil {
		return result, domain.Classify(domain.ErrPersistence, domain.StageMatching, "", fmt.Errorf("load style examples: %w", err))
	}
	if len(examples) == 0 {
		p.info("user has no style corpus, skipping generation", "user", userID)
		return result, nil
	}

	matches := p.deps.Matcher.Match(embedded, examples)
	if maxDrafts > 0 && len(matches) > maxDrafts {
		matches = matches[:maxDrafts]
	}

	for _, m := range matches {
		if err := ctx.Err(); err != nil {
			return result, domain.Classify(domain.ErrTransient, domain.StageGenerating, "", err)
		}

		draft := p.deps.Synth.Synthesize(ctx, userID, m)
		if err := p.persistDraft(ctx, draft); err != nil {
			p.warn("draft dropped after persistence retry", "user", userID, "hash", draft.SourceContentHash, "error", err)
			result.Errors = append(result.Errors, domain.Classify(domain.ErrPersistence, domain.StagePersisting, "", err))
			continue
		}
		result.DraftsGenerated++
	}

	p.info("run complete",
		"user", userID,
		"fetched", result.ItemsFetched,
		"unique", result.ItemsDeduped,
		"drafts", result.DraftsGenerated,
		"errors", len(result.Errors))
	return result, nil
}

// fetchAll fans out one fetch per source with bounded concurrency. A
// failing source contributes a classified error and nothing else; the
// run continues with whatever the other sources produced. Source health
// is reported after every attempt.
func (p *Pipeline) fetchAll(ctx context.Context, sources []domain.Source, cutoff time.Time) ([]domain.ContentItem, []*domain.ClassifiedError) {
	var (
		mu        sync.Mutex
		collected []domain.ContentItem
		failures  []*domain.ClassifiedError
	)

	g := &errgroup.Group{}
	g.SetLimit(p.opts.FetchConcurrency)

	for _, source := range sources {
		source := source
		g.Go(func() error {
			items, err := p.deps.Fetcher.Fetch(ctx, source, p.opts.MaxItemsPerSource, cutoff)
			p.reportHealth(ctx, source, err)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				ce := asClassified(err)
				if ce == nil {
					ce = domain.Classify(domain.ErrTransient, domain.StageFetching, source.ID, err)
				}
				failures = append(failures, ce)
				return nil
			}
			collected = append(collected, items...)
			return nil
		})
	}
	_ = g.Wait()

	return collected, failures
}

// reportHealth resets the error counter on success (even with zero items;
// an empty-but-reachable source is healthy) and increments it on failure.
// The core never deactivates a source, it only records the counters.
func (p *Pipeline) reportHealth(ctx context.Context, source domain.Source, fetchErr error) {
	source.LastCheckedAt = time.Now().UTC()
	if fetchErr == nil {
		source.ConsecutiveErrors = 0
		source.LastError = ""
	} else {
		source.ConsecutiveErrors++
		source.LastError = truncateErr(fetchErr)
		if source.Unhealthy() {
			p.warn("source unhealthy", "source", source.ID, "consecutive_errors", source.ConsecutiveErrors)
		}
	}

	if err := p.deps.Sources.UpdateHealth(ctx, source); err != nil {
		p.warn("failed to record source health", "source", source.ID, "error", err)
	}
}

// embedAll attaches an embedding to every item it can; items whose
// embedding call fails are skipped with a provider error recorded.
func (p *Pipeline) embedAll(ctx context.Context, items []domain.ContentItem, result *domain.RunResult) []domain.ContentItem {
	embedded := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		vector, err := p.deps.Embedder.Embed(ctx, item.Title+" "+item.Body)
		if err != nil {
			result.Errors = append(result.Errors, domain.Classify(domain.ErrProvider, domain.StageEmbedding, item.SourceID, err))
			continue
		}
		item.Embedding = vector
		embedded = append(embedded, item)
	}
	return embedded
}

func (p *Pipeline) saveContent(ctx context.Context, userID string, items []domain.ContentItem) error {
	return retry.Do(
		func() error { return p.deps.Content.Save(ctx, userID, items) },
		retry.Attempts(2),
		retry.Delay(p.opts.PersistRetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

// persistDraft retries a failed write once with backoff before the draft
// is dropped from the run's result.
func (p *Pipeline) persistDraft(ctx context.Context, draft domain.Draft) error {
	return retry.Do(
		func() error { return p.deps.Drafts.Save(ctx, draft) },
		retry.Attempts(2),
		retry.Delay(p.opts.PersistRetryDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}

func asClassified(err error) *domain.ClassifiedError {
	var ce *domain.ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func truncateErr(err error) string {
	msg := err.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return msg
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) warn(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Warn(msg, args...)
	}
}
