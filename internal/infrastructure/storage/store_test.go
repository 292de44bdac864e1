package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatorpulse/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSourceRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	feed := domain.Source{ID: "src-1", OwnerID: "user-1", Kind: domain.KindFeed, Name: "Blog", Locator: "https://example.com/rss", Active: true}
	social := domain.Source{ID: "src-2", OwnerID: "user-1", Kind: domain.KindSocialHandle, Name: "Handle", Locator: "@gopher", Active: true}
	inactive := domain.Source{ID: "src-3", OwnerID: "user-1", Kind: domain.KindFeed, Locator: "https://example.com/dead", Active: false}
	otherUser := domain.Source{ID: "src-4", OwnerID: "user-2", Kind: domain.KindFeed, Locator: "https://example.com/other", Active: true}

	for _, src := range []domain.Source{feed, social, inactive, otherUser} {
		require.NoError(t, store.AddSource(ctx, src))
	}

	got, err := store.ActiveSources(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 2, "inactive and foreign sources must be excluded")
	assert.Equal(t, "src-1", got[0].ID)
	assert.Equal(t, domain.KindSocialHandle, got[1].Kind)
	assert.Equal(t, "@gopher", got[1].Locator)
}

func TestUpdateHealth(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	src := domain.Source{ID: "src-1", OwnerID: "user-1", Kind: domain.KindFeed, Locator: "https://example.com/rss", Active: true}
	require.NoError(t, store.AddSource(ctx, src))

	src.ConsecutiveErrors = 3
	src.LastError = "HTTP 500"
	src.LastCheckedAt = time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.UpdateHealth(ctx, src))

	got, err := store.ActiveSources(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ConsecutiveErrors)
	assert.Equal(t, "HTTP 500", got[0].LastError)
	assert.True(t, got[0].LastCheckedAt.Equal(src.LastCheckedAt))
	assert.True(t, got[0].Active, "health updates must not deactivate the source")
}

func TestActiveUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddSource(ctx, domain.Source{ID: "s1", OwnerID: "user-b", Kind: domain.KindFeed, Locator: "https://example.com/1", Active: true}))
	require.NoError(t, store.AddSource(ctx, domain.Source{ID: "s2", OwnerID: "user-a", Kind: domain.KindFeed, Locator: "https://example.com/2", Active: true}))
	require.NoError(t, store.AddSource(ctx, domain.Source{ID: "s3", OwnerID: "user-a", Kind: domain.KindFeed, Locator: "https://example.com/3", Active: true}))
	require.NoError(t, store.AddSource(ctx, domain.Source{ID: "s4", OwnerID: "user-c", Kind: domain.KindFeed, Locator: "https://example.com/4", Active: false}))

	users, err := store.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-a", "user-b"}, users)
}

func TestContentSaveAndExistingHashes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	now := time.Now().UTC()
	items := []domain.ContentItem{
		{SourceID: "src-1", Title: "First", Body: "First body", OriginURL: "https://example.com/1", IdentityHash: "hash-1", PublishedAt: now},
		{SourceID: "src-1", Title: "Second", Body: "Second body", OriginURL: "https://example.com/2", IdentityHash: "hash-2", PublishedAt: now},
	}
	require.NoError(t, store.Save(ctx, "user-1", items))

	// Re-saving the same identities is a no-op, not a failure.
	require.NoError(t, store.Save(ctx, "user-1", items))

	existing, err := store.ExistingHashes(ctx, "user-1", []string{"hash-1", "hash-2", "hash-3"})
	require.NoError(t, err)
	assert.Len(t, existing, 2)
	assert.Contains(t, existing, "hash-1")
	assert.NotContains(t, existing, "hash-3")

	// Hashes are scoped per user.
	other, err := store.ExistingHashes(ctx, "user-2", []string{"hash-1"})
	require.NoError(t, err)
	assert.Empty(t, other)

	empty, err := store.ExistingHashes(ctx, "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStyleExamplesRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	ex := domain.StyleExample{Content: "One of my past posts.", Embedding: []float64{0.25, -0.5, 1}}
	require.NoError(t, store.AddStyleExample(ctx, "ex-1", "user-1", ex))

	got, err := store.Examples(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ex.Content, got[0].Content)
	assert.Equal(t, ex.Embedding, got[0].Embedding)

	none, err := store.Examples(ctx, "user-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDraftRoundtrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	draft := domain.Draft{
		ID:                "draft-1",
		OwnerID:           "user-1",
		Content:           "A generated post long enough to be plausible in production.",
		SourceContentHash: "hash-1",
		GenerationMethod:  domain.MethodProvider,
		StyleSimilarity:   0.8,
		Status:            domain.StatusPending,
		FeedbackToken:     "token-1",
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, store.Drafts().Save(ctx, draft))

	// Duplicate feedback tokens are a schema violation.
	dup := draft
	dup.ID = "draft-2"
	assert.Error(t, store.Drafts().Save(ctx, dup))

	// Unknown enum values are rejected by the CHECK constraints.
	bad := draft
	bad.ID = "draft-3"
	bad.FeedbackToken = "token-3"
	bad.Status = domain.DraftStatus("published")
	assert.Error(t, store.Drafts().Save(ctx, bad))
}

func TestPruneOlderThan(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTestStore(t)

	old := domain.Draft{
		ID: "draft-old", OwnerID: "user-1", Content: "old", SourceContentHash: "h",
		GenerationMethod: domain.MethodTemplate, Status: domain.StatusPending,
		FeedbackToken: "token-old", CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	}
	approved := domain.Draft{
		ID: "draft-approved", OwnerID: "user-1", Content: "kept", SourceContentHash: "h",
		GenerationMethod: domain.MethodTemplate, Status: domain.StatusApproved,
		FeedbackToken: "token-approved", CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	}
	fresh := domain.Draft{
		ID: "draft-fresh", OwnerID: "user-1", Content: "fresh", SourceContentHash: "h",
		GenerationMethod: domain.MethodTemplate, Status: domain.StatusPending,
		FeedbackToken: "token-fresh", CreatedAt: time.Now().UTC(),
	}
	for _, d := range []domain.Draft{old, approved, fresh} {
		require.NoError(t, store.Drafts().Save(ctx, d))
	}

	pruned, err := store.PruneOlderThan(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned, "only stale pending drafts are pruned")
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "reopen.db")
	first, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, first.AddSource(context.Background(), domain.Source{
		ID: "src-1", OwnerID: "user-1", Kind: domain.KindFeed, Locator: "https://example.com/rss", Active: true,
	}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	got, err := second.ActiveSources(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, got, 1, "schema re-application must not drop data")
}
