package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"creatorpulse/internal/domain"
	"creatorpulse/internal/normalize"
)

const feedBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example</title>
    <item>
      <title>Release Notes</title>
      <link>https://example.com/release</link>
      <description>A detailed walkthrough of everything that changed in the latest release.</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newFetcher(opts Options) *Fetcher {
	return New(nil, normalize.New(), opts, nil)
}

func feedSource(locator string) domain.Source {
	return domain.Source{ID: "src-1", OwnerID: "user-1", Kind: domain.KindFeed, Locator: locator}
}

func TestFetchFeed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.HasPrefix(ua, "CreatorPulse/") {
			t.Errorf("unexpected user agent: %s", ua)
		}
		if accept := r.Header.Get("Accept"); !strings.Contains(accept, "rss") {
			t.Errorf("unexpected accept header: %s", accept)
		}
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	items, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Release Notes" {
		t.Fatalf("unexpected title: %s", items[0].Title)
	}
}

func TestFetchEmptyFeedIsNotAnError(t *testing.T) {
	t.Parallel()

	empty := `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(empty))
	}))
	defer srv.Close()

	items, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err != nil {
		t.Fatalf("empty feed must not fail: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected 0 items, got %d", len(items))
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(feedBody))
	}))
	defer srv.Close()

	items, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err != nil {
		t.Fatalf("fetch after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err == nil {
		t.Fatal("expected an error for HTTP 404")
	}
	if domain.KindOf(err) != domain.ErrPermanent {
		t.Fatalf("expected permanent classification, got %s", domain.KindOf(err))
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("permanent failure must not be retried, got %d attempts", got)
	}
}

func TestFetchRateLimitIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err == nil {
		t.Fatal("expected an error for HTTP 429")
	}
	if domain.KindOf(err) != domain.ErrTransient {
		t.Fatalf("expected transient classification, got %s", domain.KindOf(err))
	}
}

func TestFetchMalformedDocumentIsPermanent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte("this is not a feed"))
	}))
	defer srv.Close()

	_, err := newFetcher(Options{}).Fetch(context.Background(), feedSource(srv.URL), 20, time.Time{})
	if err == nil {
		t.Fatal("expected a parse failure")
	}
	if domain.KindOf(err) != domain.ErrPermanent {
		t.Fatalf("expected permanent classification, got %s", domain.KindOf(err))
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("parse failure must not trigger a re-download, got %d attempts", got)
	}
}

func TestFetchSocialTimeline(t *testing.T) {
	t.Parallel()

	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":[{"id":"7","text":"Notes from today's incident review, written up at length.","created_at":"2026-08-25T08:00:00Z"}]}`))
	}))
	defer srv.Close()

	f := newFetcher(Options{SocialAPIBaseURL: srv.URL, SocialToken: "token-123"})
	source := domain.Source{ID: "src-2", OwnerID: "user-1", Kind: domain.KindSocialHandle, Locator: "@gopher"}

	items, err := f.Fetch(context.Background(), source, 20, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("fetch timeline: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if gotPath != "/2/users/by/username/gopher/tweets" {
		t.Fatalf("unexpected request path: %s", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Fatalf("unexpected authorization header: %s", gotAuth)
	}
}

func TestFetchInvalidLocator(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		kind    domain.SourceKind
		locator string
	}{
		{"feed without scheme", domain.KindFeed, "example.com/rss"},
		{"feed with ftp scheme", domain.KindFeed, "ftp://example.com/rss"},
		{"handle too long", domain.KindSocialHandle, "@this_handle_is_way_too_long"},
		{"handle with spaces", domain.KindSocialHandle, "@bad handle"},
		{"empty handle", domain.KindSocialHandle, "@"},
	}

	f := newFetcher(Options{})
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			source := domain.Source{ID: "src-x", Kind: tc.kind, Locator: tc.locator}
			_, err := f.Fetch(context.Background(), source, 20, time.Time{})
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			if domain.KindOf(err) != domain.ErrPermanent {
				t.Fatalf("expected permanent classification, got %s", domain.KindOf(err))
			}
		})
	}
}

func TestValidateLocatorAccepts(t *testing.T) {
	t.Parallel()

	if err := ValidateLocator(domain.KindFeed, "https://example.com/feed.xml"); err != nil {
		t.Fatalf("valid feed url rejected: %v", err)
	}
	if err := ValidateLocator(domain.KindSocialHandle, "@gopher_dev"); err != nil {
		t.Fatalf("valid handle rejected: %v", err)
	}
}
