// Package storage provides the SQLite-backed implementations of the
// pipeline's persistence ports: sources, fetched content, style corpus
// and generated drafts.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"creatorpulse/internal/domain"
	"creatorpulse/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('feed', 'social_handle')),
	name TEXT NOT NULL DEFAULT '',
	locator TEXT NOT NULL,
	active INTEGER NOT NULL DEFAULT 1,
	consecutive_errors INTEGER NOT NULL DEFAULT 0,
	last_checked_at INTEGER,
	last_error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sources_owner ON sources(owner_id, active);

CREATE TABLE IF NOT EXISTS source_content (
	identity_hash TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	source_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	body TEXT NOT NULL,
	origin_url TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	published_at INTEGER NOT NULL,
	fetched_at INTEGER NOT NULL,
	PRIMARY KEY (owner_id, identity_hash)
);

CREATE TABLE IF NOT EXISTS style_examples (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_style_owner ON style_examples(owner_id);

CREATE TABLE IF NOT EXISTS drafts (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	content TEXT NOT NULL,
	source_content_hash TEXT NOT NULL,
	generation_method TEXT NOT NULL CHECK (generation_method IN ('provider', 'template')),
	style_similarity REAL NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	feedback_token TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_owner ON drafts(owner_id, status);
`

// Store persists all pipeline records in one SQLite database.
type Store struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

var (
	_ ports.SourceCollaborator = (*Store)(nil)
	_ ports.UserDirectory      = (*Store)(nil)
	_ ports.ContentStore       = (*Store)(nil)
	_ ports.StyleStore         = (*Store)(nil)
	_ ports.DraftStore         = DraftsView{}
)

// DraftsView adapts the store to ports.DraftStore; both Save methods
// cannot live on one type.
type DraftsView struct {
	store *Store
}

// Drafts returns the draft persistence view of the store.
func (s *Store) Drafts() DraftsView {
	return DraftsView{store: s}
}

// Save writes one generated draft.
func (v DraftsView) Save(ctx context.Context, draft domain.Draft) error {
	return v.store.SaveDraft(ctx, draft)
}

// Open creates or opens the database at path and ensures the schema.
// WAL mode keeps hash lookups for one user from blocking writes for
// another.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, sb: sq.StatementBuilder}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// ActiveSources returns the user's active sources in creation order.
func (s *Store) ActiveSources(ctx context.Context, userID string) ([]domain.Source, error) {
	query, args, err := s.sb.
		Select("id", "owner_id", "kind", "name", "locator", "active", "consecutive_errors", "last_checked_at", "last_error").
		From("sources").
		Where(sq.Eq{"owner_id": userID, "active": 1}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var sources []domain.Source
	for rows.Next() {
		var (
			src       domain.Source
			active    int
			checkedAt sql.NullInt64
		)
		if err := rows.Scan(&src.ID, &src.OwnerID, &src.Kind, &src.Name, &src.Locator, &active, &src.ConsecutiveErrors, &checkedAt, &src.LastError); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		src.Active = active != 0
		if checkedAt.Valid {
			src.LastCheckedAt = time.Unix(checkedAt.Int64, 0).UTC()
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return sources, nil
}

// UpdateHealth records the outcome of a fetch attempt. It deliberately
// leaves the active flag alone; deactivation belongs to the collaborator
// that owns the record.
func (s *Store) UpdateHealth(ctx context.Context, source domain.Source) error {
	query, args, err := s.sb.
		Update("sources").
		Set("consecutive_errors", source.ConsecutiveErrors).
		Set("last_checked_at", source.LastCheckedAt.Unix()).
		Set("last_error", source.LastError).
		Where(sq.Eq{"id": source.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update source health: %w", err)
	}
	return nil
}

// ActiveUsers lists the distinct owners of active sources; these are the
// users the daily schedule enqueues runs for.
func (s *Store) ActiveUsers(ctx context.Context) ([]string, error) {
	query, args, err := s.sb.
		Select("DISTINCT owner_id").
		From("sources").
		Where(sq.Eq{"active": 1}).
		OrderBy("owner_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return users, nil
}

// ExistingHashes returns which of the given identity hashes are already
// stored for the user.
func (s *Store) ExistingHashes(ctx context.Context, userID string, hashes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(hashes))
	if len(hashes) == 0 {
		return existing, nil
	}

	query, args, err := s.sb.
		Select("identity_hash").
		From("source_content").
		Where(sq.Eq{"owner_id": userID, "identity_hash": hashes}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		existing[h] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return existing, nil
}

// Save upserts fetched items for the user. Embeddings are transient
// pipeline state and are not persisted.
func (s *Store) Save(ctx context.Context, userID string, items []domain.ContentItem) error {
	if len(items) == 0 {
		return nil
	}

	now := time.Now().UTC().Unix()
	builder := s.sb.
		Insert("source_content").
		Columns("identity_hash", "owner_id", "source_id", "title", "body", "origin_url", "author", "published_at", "fetched_at").
		Suffix("ON CONFLICT (owner_id, identity_hash) DO NOTHING")
	for _, item := range items {
		builder = builder.Values(item.IdentityHash, userID, item.SourceID, item.Title, item.Body, item.OriginURL, item.Author, item.PublishedAt.Unix(), now)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

// Examples loads the user's embedded style corpus.
func (s *Store) Examples(ctx context.Context, userID string) ([]domain.StyleExample, error) {
	query, args, err := s.sb.
		Select("content", "embedding").
		From("style_examples").
		Where(sq.Eq{"owner_id": userID}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query style examples: %w", err)
	}
	defer rows.Close()

	var examples []domain.StyleExample
	for rows.Next() {
		var (
			ex  domain.StyleExample
			raw string
		)
		if err := rows.Scan(&ex.Content, &raw); err != nil {
			return nil, fmt.Errorf("scan style example: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &ex.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding: %w", err)
		}
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return examples, nil
}

// AddStyleExample stores one embedded style post.
func (s *Store) AddStyleExample(ctx context.Context, id, userID string, example domain.StyleExample) error {
	raw, err := json.Marshal(example.Embedding)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	query, args, err := s.sb.
		Insert("style_examples").
		Columns("id", "owner_id", "content", "embedding").
		Values(id, userID, example.Content, string(raw)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert style example: %w", err)
	}
	return nil
}

// SaveDraft writes one generated draft.
func (s *Store) SaveDraft(ctx context.Context, draft domain.Draft) error {
	query, args, err := s.sb.
		Insert("drafts").
		Columns("id", "owner_id", "content", "source_content_hash", "generation_method", "style_similarity", "status", "feedback_token", "created_at").
		Values(draft.ID, draft.OwnerID, draft.Content, draft.SourceContentHash, string(draft.GenerationMethod), draft.StyleSimilarity, string(draft.Status), draft.FeedbackToken, draft.CreatedAt.Unix()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert draft: %w", err)
	}
	return nil
}

// PruneOlderThan deletes stored content older than the retention window
// and pending drafts that were never delivered. Keeps the database from
// growing without bound.
func (s *Store) PruneOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Unix()

	contentQuery, contentArgs, err := s.sb.
		Delete("source_content").
		Where(sq.Lt{"fetched_at": cutoff}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	contentRes, err := s.db.ExecContext(ctx, contentQuery, contentArgs...)
	if err != nil {
		return 0, fmt.Errorf("prune content: %w", err)
	}

	draftQuery, draftArgs, err := s.sb.
		Delete("drafts").
		Where(sq.And{sq.Lt{"created_at": cutoff}, sq.Eq{"status": string(domain.StatusPending)}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	draftRes, err := s.db.ExecContext(ctx, draftQuery, draftArgs...)
	if err != nil {
		return 0, fmt.Errorf("prune drafts: %w", err)
	}

	contentN, _ := contentRes.RowsAffected()
	draftN, _ := draftRes.RowsAffected()
	return contentN + draftN, nil
}

// AddSource inserts a source record.
func (s *Store) AddSource(ctx context.Context, source domain.Source) error {
	active := 0
	if source.Active {
		active = 1
	}

	query, args, err := s.sb.
		Insert("sources").
		Columns("id", "owner_id", "kind", "name", "locator", "active", "consecutive_errors", "last_error").
		Values(source.ID, source.OwnerID, string(source.Kind), source.Name, source.Locator, active, source.ConsecutiveErrors, source.LastError).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}
