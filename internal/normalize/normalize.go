package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"creatorpulse/internal/domain"
)

const (
	// Items whose cleaned body is shorter than these floors carry no
	// usable style signal and are dropped before hashing.
	minFeedBodyLen   = 50
	minSocialBodyLen = 30
)

var whitespaceExpr = regexp.MustCompile(`\s+`)

// ParseError marks a malformed document. The fetcher classifies it as a
// permanent source failure; it never aborts the surrounding batch.
type ParseError struct {
	Kind domain.SourceKind
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s document: %v", e.Kind, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// codec turns one kind of raw document into content items.
type codec interface {
	Kind() domain.SourceKind
	Decode(raw []byte, source domain.Source) ([]entry, error)
}

// entry is a codec's pre-filter output; the normalizer applies floors,
// cutoff and hashing uniformly across kinds.
type entry struct {
	Title       string
	Body        string // may still contain markup
	OriginURL   string
	Author      string
	PublishedAt time.Time
	minBodyLen  int
}

// Normalizer parses raw source documents into deduplicatable ContentItems.
type Normalizer struct {
	codecs map[domain.SourceKind]codec
	now    func() time.Time
}

// New builds a normalizer with the feed and social codecs registered.
func New() *Normalizer {
	n := &Normalizer{
		codecs: map[domain.SourceKind]codec{},
		now:    time.Now,
	}
	n.register(&feedCodec{})
	n.register(&socialCodec{})
	return n
}

func (n *Normalizer) register(c codec) {
	n.codecs[c.Kind()] = c
}

// Normalize parses raw bytes according to the source kind and returns
// items newest first, filtered by body floor and recency cutoff. Items
// published before cutoff are dropped before hashing. A malformed
// document yields zero items and a *ParseError.
func (n *Normalizer) Normalize(raw []byte, source domain.Source, maxItems int, cutoff time.Time) ([]domain.ContentItem, error) {
	c, ok := n.codecs[source.Kind]
	if !ok {
		return nil, &ParseError{Kind: source.Kind, Err: fmt.Errorf("unsupported source kind %q", source.Kind)}
	}

	entries, err := c.Decode(raw, source)
	if err != nil {
		return nil, &ParseError{Kind: source.Kind, Err: err}
	}

	items := make([]domain.ContentItem, 0, len(entries))
	for _, e := range entries {
		publishedAt := e.PublishedAt
		if publishedAt.IsZero() {
			publishedAt = n.now().UTC()
		}
		if publishedAt.Before(cutoff) {
			continue
		}

		body := CollapseWhitespace(StripHTML(e.Body))
		if len(body) < e.minBodyLen {
			continue
		}
		title := CollapseWhitespace(StripHTML(e.Title))

		items = append(items, domain.ContentItem{
			SourceID:     source.ID,
			Title:        title,
			Body:         body,
			OriginURL:    strings.TrimSpace(e.OriginURL),
			Author:       strings.TrimSpace(e.Author),
			PublishedAt:  publishedAt,
			IdentityHash: IdentityHash(title, body, strings.TrimSpace(e.OriginURL)),
		})
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})

	return items, nil
}

// IdentityHash is a stable digest over normalized title, body and origin
// URL. It must be identical regardless of source kind so duplicates are
// caught across feeds and timelines for the same user.
func IdentityHash(title, body, originURL string) string {
	normalized := normalizeForHash(title) + "|" + normalizeForHash(body) + "|" + originURL
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeForHash(s string) string {
	return CollapseWhitespace(strings.ToLower(s))
}

// StripHTML extracts the plain text of an HTML fragment, decoding
// entities along the way. Non-HTML text passes through unchanged.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return fragment
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return doc.Text()
}

// CollapseWhitespace trims and folds runs of whitespace into single spaces.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(s, " "))
}
