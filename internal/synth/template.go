package synth

import (
	"fmt"
	"strings"

	"creatorpulse/internal/domain"
)

const excerptBudget = 200

// templates are the deterministic fallback transformations. Each takes a
// title and a body excerpt. Selection is seeded by the content's
// identity hash, never wall-clock randomness, so retried runs over the
// same content produce identical fallback text.
var templates = []func(title, excerpt string) string{
	func(title, excerpt string) string {
		return fmt.Sprintf("Just read an insightful piece about %s.\n\n%s\n\nWhat are your thoughts on this?\n\n#insights #learning #growth", strings.ToLower(title), excerpt)
	},
	func(title, excerpt string) string {
		return fmt.Sprintf("Interesting perspective on %s:\n\n%s\n\nThis made me think about how we approach similar challenges in our own work.\n\n#leadership #innovation #thoughtleadership", strings.ToLower(title), excerpt)
	},
	func(title, excerpt string) string {
		return fmt.Sprintf("Found this valuable: %s\n\n%s\n\nHow do you see this applying to your work? Let me know in the comments.\n\n#professional #development #insights", title, excerpt)
	},
}

// renderTemplate picks a template from the item's identity hash and
// fills it with the item's title and a truncated excerpt.
func renderTemplate(item domain.ContentItem) string {
	title := item.Title
	if title == "" {
		title = "an interesting article"
	}

	excerpt := truncateRunes(item.Body, excerptBudget)
	if len(excerpt) < len(item.Body) {
		excerpt += "..."
	}

	return templates[templateIndex(item.IdentityHash)](title, excerpt)
}

// templateIndex folds the hash bytes into a stable template selector.
func templateIndex(identityHash string) int {
	var sum int
	for _, c := range []byte(identityHash) {
		sum += int(c)
	}
	return sum % len(templates)
}
