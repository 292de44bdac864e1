package normalize

import (
	"bytes"
	"fmt"

	"github.com/mmcdole/gofeed"

	"creatorpulse/internal/domain"
)

// feedCodec decodes RSS and Atom documents via gofeed.
type feedCodec struct{}

func (*feedCodec) Kind() domain.SourceKind {
	return domain.KindFeed
}

func (*feedCodec) Decode(raw []byte, source domain.Source) ([]entry, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("gofeed: %w", err)
	}

	entries := make([]entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		e := entry{
			Title:      item.Title,
			Body:       feedItemBody(item),
			OriginURL:  item.Link,
			minBodyLen: minFeedBodyLen,
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			e.Author = item.Authors[0].Name
		}
		if item.PublishedParsed != nil {
			e.PublishedAt = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			e.PublishedAt = item.UpdatedParsed.UTC()
		}
		entries = append(entries, e)
	}

	return entries, nil
}

func feedItemBody(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}
