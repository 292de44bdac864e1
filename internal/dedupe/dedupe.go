// Package dedupe removes content items already stored for a user and
// duplicates within the same fetched batch. It is a pure function over
// its inputs so the orchestrator's re-entry is naturally idempotent.
package dedupe

import "creatorpulse/internal/domain"

// Dedupe filters items in two stages: items whose identity hash is in
// existing are dropped, then within the batch only one item per hash
// survives. Among batch duplicates the earliest PublishedAt wins, ties
// broken by fetch order. Survivors keep their input order.
func Dedupe(items []domain.ContentItem, existing map[string]struct{}) []domain.ContentItem {
	if len(items) == 0 {
		return nil
	}

	winner := make(map[string]int, len(items))
	for i, item := range items {
		if _, stored := existing[item.IdentityHash]; stored {
			continue
		}
		prev, seen := winner[item.IdentityHash]
		if !seen {
			winner[item.IdentityHash] = i
			continue
		}
		if item.PublishedAt.Before(items[prev].PublishedAt) {
			winner[item.IdentityHash] = i
		}
	}

	keep := make(map[int]struct{}, len(winner))
	for _, i := range winner {
		keep[i] = struct{}{}
	}

	unique := make([]domain.ContentItem, 0, len(winner))
	for i, item := range items {
		if _, ok := keep[i]; ok {
			unique = append(unique, item)
		}
	}
	return unique
}

// Hashes extracts the identity hashes of a batch, preserving order.
func Hashes(items []domain.ContentItem) []string {
	hashes := make([]string, len(items))
	for i, item := range items {
		hashes[i] = item.IdentityHash
	}
	return hashes
}
