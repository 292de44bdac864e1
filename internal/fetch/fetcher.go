package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"creatorpulse/internal/domain"
	"creatorpulse/internal/normalize"
)

const (
	userAgent       = "CreatorPulse/1.0 (Content Aggregator)"
	defaultTimeout  = 20 * time.Second
	fetchAttempts   = 3
	maxResponseSize = 4 << 20 // clamp pathological feeds
)

// Fetcher performs one bounded-timeout network round trip per source and
// hands the raw document to the normalizer. Failures come back as
// ClassifiedErrors: timeouts and 5xx are transient, bad locators, 4xx and
// malformed documents are permanent.
type Fetcher struct {
	client      *http.Client
	normalizer  *normalize.Normalizer
	logger      *slog.Logger
	socialBase  string
	socialToken string
}

// Options configures the social-timeline endpoint; the feed path needs none.
type Options struct {
	SocialAPIBaseURL string
	SocialToken      string
	Timeout          time.Duration
}

// New wires an HTTP client; a nil client gets a sane timeout.
func New(client *http.Client, normalizer *normalize.Normalizer, opts Options, logger *slog.Logger) *Fetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	base := opts.SocialAPIBaseURL
	if base == "" {
		base = "https://api.twitter.com"
	}
	return &Fetcher{
		client:      client,
		normalizer:  normalizer,
		logger:      logger,
		socialBase:  base,
		socialToken: opts.SocialToken,
	}
}

// Fetch retrieves and normalizes up to maxItems items published at or
// after cutoff. On failure it returns a nil slice and a classified error;
// the orchestrator decides what that means for source health.
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source, maxItems int, cutoff time.Time) ([]domain.ContentItem, error) {
	if err := ValidateLocator(source.Kind, source.Locator); err != nil {
		return nil, domain.Classify(domain.ErrPermanent, domain.StageFetching, source.ID, err)
	}

	requestURL, err := f.requestURL(source, maxItems, cutoff)
	if err != nil {
		return nil, domain.Classify(domain.ErrPermanent, domain.StageFetching, source.ID, err)
	}

	raw, err := f.download(ctx, source, requestURL)
	if err != nil {
		return nil, err
	}

	items, err := f.normalizer.Normalize(raw, source, maxItems, cutoff)
	if err != nil {
		return nil, domain.Classify(domain.ErrPermanent, domain.StageFetching, source.ID, err)
	}

	f.debug("source fetched", "source", source.ID, "kind", source.Kind, "items", len(items))
	return items, nil
}

func (f *Fetcher) requestURL(source domain.Source, maxItems int, cutoff time.Time) (string, error) {
	switch source.Kind {
	case domain.KindFeed:
		return source.Locator, nil
	case domain.KindSocialHandle:
		handle := normalize.CleanHandle(source.Locator)
		if maxItems <= 0 || maxItems > 100 {
			maxItems = 100
		}
		return fmt.Sprintf("%s/2/users/by/username/%s/tweets?max_results=%d&tweet.fields=created_at&exclude=retweets,replies&start_time=%s",
			f.socialBase, handle, maxItems, cutoff.UTC().Format(time.RFC3339)), nil
	default:
		return "", fmt.Errorf("unsupported source kind %q", source.Kind)
	}
}

// download performs the network call with a short internal retry on
// transient failures only.
func (f *Fetcher) download(ctx context.Context, source domain.Source, requestURL string) ([]byte, error) {
	var raw []byte

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(domain.Classify(domain.ErrPermanent, domain.StageFetching, source.ID, err))
			}
			req.Header.Set("User-Agent", userAgent)
			if source.Kind == domain.KindFeed {
				req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")
			} else if f.socialToken != "" {
				req.Header.Set("Authorization", "Bearer "+f.socialToken)
			}

			resp, err := f.client.Do(req)
			if err != nil {
				// Timeouts and connection failures are retryable.
				return domain.Classify(domain.ErrTransient, domain.StageFetching, source.ID, err)
			}
			defer resp.Body.Close()

			if err := classifyStatus(resp.StatusCode); err != nil {
				return domain.Classify(kindForStatus(resp.StatusCode), domain.StageFetching, source.ID, err)
			}

			raw, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			if err != nil {
				return domain.Classify(domain.ErrTransient, domain.StageFetching, source.ID, fmt.Errorf("read body: %w", err))
			}
			return nil
		},
		retry.Attempts(fetchAttempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(domain.IsTransient),
		retry.OnRetry(func(n uint, err error) {
			f.debug("retrying fetch", "source", source.ID, "attempt", n, "error", err)
		}),
	)
	if err != nil {
		if domain.KindOf(err) == "" {
			// Context cancellation surfaces unclassified.
			err = domain.Classify(domain.ErrTransient, domain.StageFetching, source.ID, err)
		}
		return nil, err
	}

	return raw, nil
}

func classifyStatus(status int) error {
	if status >= 200 && status < 300 {
		return nil
	}
	return fmt.Errorf("HTTP %d", status)
}

func kindForStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrTransient
	case status >= 500:
		return domain.ErrTransient
	default:
		return domain.ErrPermanent
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}
