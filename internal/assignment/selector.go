package assignment

import (
	"bytes"
	"slices"
	"strings"

	"proposal-review/internal/models"
)

// Deficit is how far an item is from fully staffed
func Deficit(c Candidate) int {
	return c.Target - c.Assigned
}

// Overlap scores how well an item's tags match a reviewer's expertise
type Overlap struct {
	Matches int // number of tags matching a declared area
	Weight  int // sum of expertise level weights over the matches
}

// ExpertiseOverlap matches candidate tags against declared expertise areas,
// case-insensitively.
func ExpertiseOverlap(expertise []models.Expertise, tags []string) Overlap {
	if len(expertise) == 0 || len(tags) == 0 {
		return Overlap{}
	}
	levels := make(map[string]int, len(expertise))
	for _, e := range expertise {
		area := normalizeTag(e.Area)
		if w, ok := levels[area]; !ok || e.Level.Weight() > w {
			levels[area] = e.Level.Weight()
		}
	}

	var o Overlap
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		t := normalizeTag(tag)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if w, ok := levels[t]; ok {
			o.Matches++
			o.Weight += w
		}
	}
	return o
}

// Rank returns the candidates ordered best first: highest deficit, then
// highest expertise overlap, then oldest, then lowest item ID. The input is
// not modified.
func Rank(reviewer *models.Reviewer, candidates []Candidate) []Candidate {
	type scored struct {
		c       Candidate
		deficit int
		overlap Overlap
	}
	var expertise []models.Expertise
	if reviewer != nil {
		expertise = reviewer.Expertise
	}

	items := make([]scored, len(candidates))
	for i, c := range candidates {
		items[i] = scored{c: c, deficit: Deficit(c), overlap: ExpertiseOverlap(expertise, c.Tags)}
	}

	slices.SortStableFunc(items, func(a, b scored) int {
		if a.deficit != b.deficit {
			return b.deficit - a.deficit
		}
		if a.overlap.Matches != b.overlap.Matches {
			return b.overlap.Matches - a.overlap.Matches
		}
		if a.overlap.Weight != b.overlap.Weight {
			return b.overlap.Weight - a.overlap.Weight
		}
		if c := a.c.CreatedAt.Compare(b.c.CreatedAt); c != 0 {
			return c
		}
		return bytes.Compare(a.c.ItemID[:], b.c.ItemID[:])
	})

	out := make([]Candidate, len(items))
	for i, s := range items {
		out[i] = s.c
	}
	return out
}

// SelectNext filters and ranks candidates, returning the best one.
// ok is false when nothing is eligible, meaning no work is available.
func SelectNext(reviewer *models.Reviewer, candidates []Candidate, kind models.AssignmentKind, held Pairings) (Candidate, bool) {
	ranked := Rank(reviewer, Filter(reviewer, candidates, kind, held))
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
