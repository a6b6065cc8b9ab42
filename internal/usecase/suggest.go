package usecase

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

const maxSuggestions = 5

// nearest returns up to limit candidates close to target, closest first.
// A candidate qualifies when it contains target or lies within an edit
// distance of a quarter of target's length (at least 2).
func nearest(candidates []string, target string, limit int) []string {
	target = strings.ToLower(strings.TrimSpace(target))
	if target == "" {
		return nil
	}
	threshold := max(2, len(target)/4)

	type scored struct {
		name     string
		distance int
	}
	var matches []scored
	for _, candidate := range candidates {
		lower := strings.ToLower(candidate)
		if lower == target {
			continue
		}
		d := levenshtein.ComputeDistance(lower, target)
		if strings.Contains(lower, target) {
			d = min(d, 1)
		}
		if d <= threshold {
			matches = append(matches, scored{name: candidate, distance: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
