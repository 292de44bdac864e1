package domain

import "time"

// SourceKind distinguishes how a source's locator is interpreted.
type SourceKind string

const (
	KindFeed         SourceKind = "feed"
	KindSocialHandle SourceKind = "social_handle"
)

// UnhealthyAfter is how many consecutive failed fetch attempts flag a
// source as unhealthy. The core only reports this; deactivation is up to
// the owning collaborator.
const UnhealthyAfter = 5

// Source is a user-owned content origin (feed URL or social handle).
type Source struct {
	ID                string
	OwnerID           string
	Kind              SourceKind
	Name              string
	Locator           string
	Active            bool
	ConsecutiveErrors int
	LastCheckedAt     time.Time
	LastError         string
}

// Unhealthy reports whether the source has crossed the failure budget.
func (s Source) Unhealthy() bool {
	return s.ConsecutiveErrors >= UnhealthyAfter
}

// ContentItem is a single normalized unit of fetched content. It is
// read-only after the normalizer produces it; Embedding is attached later
// by the pipeline and never persisted.
type ContentItem struct {
	SourceID    string
	Title       string
	Body        string
	OriginURL   string
	Author      string
	PublishedAt time.Time

	// IdentityHash is a pure function of normalized title, body and
	// origin URL. Re-fetching the same item yields the same hash.
	IdentityHash string

	Embedding []float64
}

// StyleExample is one of the user's own past posts, already embedded.
type StyleExample struct {
	Content   string
	Embedding []float64
}

// ScoredExample pairs a style example with its similarity to one item.
type ScoredExample struct {
	Example    StyleExample
	Similarity float64
}

// MatchResult is transient pipeline state: one content item with its
// mean-similarity score and the closest style examples for prompting.
type MatchResult struct {
	Item        ContentItem
	Score       float64
	TopExamples []ScoredExample
}

// DraftStatus is the closed set of draft states. The core only ever
// creates drafts in StatusPending; transitions belong to the feedback
// collaborator.
type DraftStatus string

const (
	StatusPending  DraftStatus = "pending"
	StatusApproved DraftStatus = "approved"
	StatusRejected DraftStatus = "rejected"
)

// GenerationMethod records which synthesis path produced a draft.
type GenerationMethod string

const (
	MethodProvider GenerationMethod = "provider"
	MethodTemplate GenerationMethod = "template"
)

// Draft is the generated artifact handed to delivery/feedback.
type Draft struct {
	ID                string
	OwnerID           string
	Content           string
	SourceContentHash string
	GenerationMethod  GenerationMethod
	StyleSimilarity   float64
	Status            DraftStatus
	FeedbackToken     string
	CreatedAt         time.Time
}

// RunResult summarizes one pipeline run for the scheduler.
type RunResult struct {
	DraftsGenerated int
	ItemsFetched    int
	ItemsDeduped    int
	Errors          []*ClassifiedError
}
