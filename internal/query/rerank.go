package query

import (
	"sort"
	"strings"
)

// applyAnchorBonus adds a fixed bonus to every candidate whose text or name
// contains any anchor, capped at 1.0, then stable-sorts by adjusted score
// descending. Ties keep their prior relative order. This is a bounded nudge
// to rescue anchor-matching chunks scoring marginally below less-relevant
// competitors, not a learned re-ranking model.
func applyAnchorBonus(candidates []ScoredChunk, anchors []string, bonus float64) []ScoredChunk {
	if len(anchors) == 0 || len(candidates) == 0 {
		return candidates
	}

	bumped := make([]ScoredChunk, len(candidates))
	for i, c := range candidates {
		if chunkMatchesAny(c.Chunk, anchors) {
			c.Score = min(1.0, c.Score+bonus)
		}
		bumped[i] = c
	}

	sort.SliceStable(bumped, func(i, j int) bool {
		return bumped[i].Score > bumped[j].Score
	})
	return bumped
}

// chunkMatchesAny reports whether any needle occurs, case-insensitively, in
// the chunk's text or its display name/source.
func chunkMatchesAny(c Chunk, needles []string) bool {
	text := strings.ToLower(c.Text)
	name := c.Meta.matchName()
	for _, n := range needles {
		if strings.Contains(text, n) || strings.Contains(name, n) {
			return true
		}
	}
	return false
}
