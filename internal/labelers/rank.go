package labelers

import (
	"slices"
	"strings"

	"labelerdir/internal/richtext"
)

// Chunk splits items into consecutive groups of at most size elements,
// preserving order. The groups share the backing array of items.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := min(i+size, len(items))
		chunks = append(chunks, items[i:end:end])
	}
	return chunks
}

// Rank returns a copy of profiles sorted by like count, highest first.
// Profiles with equal counts keep their relative order.
func Rank(profiles []EnrichedProfile) []EnrichedProfile {
	ranked := slices.Clone(profiles)
	slices.SortStableFunc(ranked, func(a, b EnrichedProfile) int {
		switch la, lb := a.Likes(), b.Likes(); {
		case la > lb:
			return -1
		case la < lb:
			return 1
		}
		return 0
	})
	return ranked
}

// Filter returns the profiles matching term, case-insensitively, in their
// existing order. A profile matches on its display name, handle, description
// or any label value identifier. Description text is matched by segment text
// for plain text, by URI for links and by DID for mentions.
func Filter(profiles []EnrichedProfile, term string) []EnrichedProfile {
	term = strings.ToLower(term)
	if term == "" {
		return slices.Clone(profiles)
	}

	matched := []EnrichedProfile{}
	for _, p := range profiles {
		if matches(p, term) {
			matched = append(matched, p)
		}
	}
	return matched
}

func matches(p EnrichedProfile, term string) bool {
	if strings.Contains(strings.ToLower(p.DisplayName), term) ||
		strings.Contains(strings.ToLower(p.Handle), term) ||
		strings.Contains(searchableDescription(p.Description), term) {
		return true
	}
	for _, lv := range p.LabelValues {
		if strings.Contains(strings.ToLower(lv.Identifier), term) {
			return true
		}
	}
	return false
}

func searchableDescription(segments []richtext.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		switch s.Type {
		case richtext.KindLink:
			parts = append(parts, strings.ToLower(s.URI))
		case richtext.KindMention:
			parts = append(parts, strings.ToLower(s.DID))
		default:
			parts = append(parts, strings.ToLower(s.Text))
		}
	}
	return strings.Join(parts, " ")
}
