package ports

import (
	"context"

	"creatorpulse/internal/domain"
)

// SourceCollaborator exposes the user-facing source records the core
// reads and whose health counters it reports back.
type SourceCollaborator interface {
	ActiveSources(ctx context.Context, userID string) ([]domain.Source, error)
	UpdateHealth(ctx context.Context, source domain.Source) error
}

// UserDirectory lists users eligible for scheduled pipeline runs.
type UserDirectory interface {
	ActiveUsers(ctx context.Context) ([]string, error)
}

// ContentStore persists fetched items and answers duplicate lookups.
// ExistingHashes must support concurrent reads across runs; results are
// scoped per user.
type ContentStore interface {
	ExistingHashes(ctx context.Context, userID string, hashes []string) (map[string]struct{}, error)
	Save(ctx context.Context, userID string, items []domain.ContentItem) error
}

// StyleStore returns a user's embedded style corpus. Read-only for the core.
type StyleStore interface {
	Examples(ctx context.Context, userID string) ([]domain.StyleExample, error)
}

// DraftStore persists generated drafts. The core writes each draft
// exactly once and never mutates it afterwards.
type DraftStore interface {
	Save(ctx context.Context, draft domain.Draft) error
}

// EmbeddingProvider turns text into a fixed-length vector. Implementations
// must produce vectors comparable under cosine similarity.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// GenerationProvider produces draft text from a style-conditioned prompt.
type GenerationProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
