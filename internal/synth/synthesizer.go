// Package synth turns a matched content item into a draft post in the
// user's voice. The primary path calls a generation provider with a
// style-conditioned prompt; any provider failure or invalid response
// degrades to a deterministic template so every match yields a draft.
package synth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"creatorpulse/internal/domain"
	"creatorpulse/internal/ports"
)

const (
	minDraftChars = 50
	maxDraftChars = 3000
	truncateAt    = 2950

	styleExampleBudget = 300 // chars of each style example embedded in the prompt
)

// Synthesizer builds drafts from match results. A nil provider forces
// the template path, which is the degraded-but-valid mode of operation.
type Synthesizer struct {
	provider ports.GenerationProvider
	logger   *slog.Logger
	now      func() time.Time
}

// New constructs a synthesizer; provider may be nil.
func New(provider ports.GenerationProvider, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{provider: provider, logger: logger, now: time.Now}
}

// Synthesize produces exactly one valid draft for the match. It never
// returns an error: provider and validation failures fall through to the
// template path, and the draft records which path produced it.
func (s *Synthesizer) Synthesize(ctx context.Context, ownerID string, m domain.MatchResult) domain.Draft {
	content, method := s.generate(ctx, m)

	return domain.Draft{
		ID:                uuid.NewString(),
		OwnerID:           ownerID,
		Content:           content,
		SourceContentHash: m.Item.IdentityHash,
		GenerationMethod:  method,
		StyleSimilarity:   m.Score,
		Status:            domain.StatusPending,
		FeedbackToken:     NewFeedbackToken(),
		CreatedAt:         s.now().UTC(),
	}
}

func (s *Synthesizer) generate(ctx context.Context, m domain.MatchResult) (string, domain.GenerationMethod) {
	if s.provider == nil {
		return renderTemplate(m.Item), domain.MethodTemplate
	}

	raw, err := s.provider.Generate(ctx, BuildPrompt(m))
	if err != nil {
		s.warn("provider failed, falling back to template", "hash", m.Item.IdentityHash, "error", err)
		return renderTemplate(m.Item), domain.MethodTemplate
	}

	content, err := validateResponse(raw)
	if err != nil {
		s.warn("provider response rejected, falling back to template", "hash", m.Item.IdentityHash, "error", err)
		return renderTemplate(m.Item), domain.MethodTemplate
	}

	return content, domain.MethodProvider
}

// BuildPrompt assembles the style-conditioned generation prompt: up to
// three style examples, each truncated to a length budget, followed by
// the source content to transform.
func BuildPrompt(m domain.MatchResult) string {
	var b strings.Builder

	b.WriteString("You are a professional social content writer. Create a short post based on the source content below, written in the author's own voice.\n\n")

	b.WriteString("WRITING STYLE TO MATCH:\n")
	if len(m.TopExamples) == 0 {
		b.WriteString("No specific style examples available.\n")
	}
	for i, ex := range m.TopExamples {
		content := truncateRunes(ex.Example.Content, styleExampleBudget)
		fmt.Fprintf(&b, "Example %d (similarity %.2f):\n%s\n\n", i+1, ex.Similarity, content)
	}

	b.WriteString("SOURCE CONTENT TO TRANSFORM:\n")
	if m.Item.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", m.Item.Title)
	}
	fmt.Fprintf(&b, "Content: %s\n\n", m.Item.Body)

	b.WriteString("INSTRUCTIONS:\n")
	b.WriteString("1. Match the author's tone, sentence structure and formatting.\n")
	b.WriteString("2. Add value beyond summarizing the source.\n")
	b.WriteString("3. Keep the post between 150 and 300 words.\n")
	b.WriteString("4. End with 2-3 relevant hashtags.\n\n")
	b.WriteString("Respond with only the post text.\n\nPost:")

	return b.String()
}

// validateResponse enforces the output contract: empty or too-short text
// is the only hard rejection; over-long text is truncated with an
// ellipsis marker instead.
func validateResponse(raw string) (string, error) {
	content := strings.TrimSpace(raw)
	content = strings.TrimSpace(strings.TrimPrefix(content, "Post:"))

	length := utf8.RuneCountInString(content)
	if length < minDraftChars {
		return "", domain.Classify(domain.ErrValidation, domain.StageGenerating, "",
			fmt.Errorf("generated text too short (%d chars)", length))
	}
	if length > maxDraftChars {
		content = truncateRunes(content, truncateAt) + "..."
	}
	return content, nil
}

// NewFeedbackToken returns an opaque URL-safe token with 256 bits of
// entropy, generated once per draft and never regenerated.
func NewFeedbackToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process is in no state to mint
		// unguessable tokens.
		panic(fmt.Sprintf("feedback token entropy unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (s *Synthesizer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
