package fetch

import (
	"fmt"
	"net/url"
	"regexp"

	"creatorpulse/internal/domain"
	"creatorpulse/internal/normalize"
)

var handleExpr = regexp.MustCompile(`^[A-Za-z0-9_]{1,15}$`)

// ValidateLocator checks a locator's shape for the given kind before any
// network call. A failing locator is a permanent source error.
func ValidateLocator(kind domain.SourceKind, locator string) error {
	switch kind {
	case domain.KindFeed:
		parsed, err := url.Parse(locator)
		if err != nil {
			return fmt.Errorf("invalid feed url %q: %w", locator, err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("feed url %q must use http or https", locator)
		}
		if parsed.Host == "" {
			return fmt.Errorf("feed url %q has no host", locator)
		}
		return nil
	case domain.KindSocialHandle:
		handle := normalize.CleanHandle(locator)
		if !handleExpr.MatchString(handle) {
			return fmt.Errorf("invalid handle %q: must be 1-15 letters, digits or underscores", locator)
		}
		return nil
	default:
		return fmt.Errorf("unknown source kind %q", kind)
	}
}
