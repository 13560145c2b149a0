package query

import "strings"

// applyGuardrail conditionally excludes chunks referencing a configured
// sensitive term. It never fires when the query itself invokes one of the
// terms (treated as deliberate), and never fires when the exclusion would
// leave fewer than max(minSurvivors, k/2) candidates.
func applyGuardrail(chunks []Chunk, question string, terms []string, minSurvivors, k int) []Chunk {
	if len(terms) == 0 {
		return chunks
	}

	q := strings.ToLower(question)
	for _, term := range terms {
		if strings.Contains(q, strings.ToLower(term)) {
			return chunks
		}
	}

	kept := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		text := strings.ToLower(c.Text)
		excluded := false
		for _, term := range terms {
			if strings.Contains(text, strings.ToLower(term)) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, c)
		}
	}

	floor := minSurvivors
	if half := k / 2; half > floor {
		floor = half
	}
	if len(kept) < floor {
		return chunks
	}
	return kept
}
