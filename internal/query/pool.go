package query

// floorFilter drops candidates scoring below the floor. A hard cutoff: an
// empty result is the intended trigger for an Unknown outcome downstream.
func floorFilter(candidates []ScoredChunk, floor float64) []ScoredChunk {
	out := make([]ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= floor {
			out = append(out, c)
		}
	}
	return out
}

// dedupBySource caps the chunks retained per distinct source to limit,
// processed in pool order: the first chunks seen for a source win, the rest
// are dropped rather than reassigned.
func dedupBySource(chunks []Chunk, limit int) []Chunk {
	if limit <= 0 {
		return chunks
	}
	counts := make(map[string]int)
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		src := c.Meta.Source
		if src == "" {
			src = "unknown"
		}
		if counts[src] >= limit {
			continue
		}
		counts[src]++
		out = append(out, c)
	}
	return out
}

// budgetTruncate accumulates chunks in pool order and stops before a chunk
// that would push the cumulative character count past maxChars. A non-empty
// pool always yields at least one chunk, even if it alone exceeds the
// budget. maxChars <= 0 disables truncation.
func budgetTruncate(chunks []Chunk, maxChars int) []Chunk {
	if maxChars <= 0 {
		return chunks
	}
	total := 0
	out := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		n := len(c.Text)
		if total+n > maxChars && len(out) > 0 {
			break
		}
		out = append(out, c)
		total += n
	}
	return out
}
