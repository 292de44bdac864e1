package normalize

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"creatorpulse/internal/domain"
)

// socialCodec decodes a social-timeline JSON page (Twitter API v2 shape:
// a data array of posts with id, text and created_at).
type socialCodec struct{}

type timelinePage struct {
	Data []timelinePost `json:"data"`
}

type timelinePost struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

func (*socialCodec) Kind() domain.SourceKind {
	return domain.KindSocialHandle
}

func (*socialCodec) Decode(raw []byte, source domain.Source) ([]entry, error) {
	var page timelinePage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("timeline json: %w", err)
	}

	handle := CleanHandle(source.Locator)

	entries := make([]entry, 0, len(page.Data))
	for _, post := range page.Data {
		if post.ID == "" {
			continue
		}
		e := entry{
			Title:      fmt.Sprintf("Post by @%s", handle),
			Body:       post.Text,
			OriginURL:  fmt.Sprintf("https://twitter.com/%s/status/%s", handle, post.ID),
			Author:     "@" + handle,
			minBodyLen: minSocialBodyLen,
		}
		if post.CreatedAt != "" {
			if ts, err := time.Parse(time.RFC3339, post.CreatedAt); err == nil {
				e.PublishedAt = ts.UTC()
			}
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// CleanHandle strips a leading @ and surrounding whitespace from a
// social handle locator.
func CleanHandle(locator string) string {
	return strings.TrimPrefix(strings.TrimSpace(locator), "@")
}
