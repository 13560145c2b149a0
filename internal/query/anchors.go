package query

import (
	"regexp"
	"strings"
)

// stopwords are question-scaffolding tokens that never become anchors.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "without": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"at": {}, "as": {}, "from": {}, "that": {}, "this": {}, "it": {}, "its": {},
	"into": {}, "over": {}, "about": {}, "how": {}, "do": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "what": {}, "when": {}, "where": {}, "why": {},
	"which": {}, "who": {}, "whom": {}, "whose": {},
}

var (
	quotedRe     = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	capitalizedRe = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)
	wordRe       = regexp.MustCompile(`\w+`)
)

// ExtractAnchors derives the evidence terms of a question.
//
// Strong anchors are quoted phrases followed by capitalized word-like tokens
// (length >= 3); soft anchors are the remaining tokens of length >= 4. All
// terms are lowercased and deduplicated across both lists, preserving order
// of first appearance, so the lists are disjoint. Capitalized stopwords
// ("What", "Where") are question scaffolding, not evidence, and are skipped.
func ExtractAnchors(question string) AnchorSet {
	var set AnchorSet
	seen := make(map[string]struct{})

	push := func(dst *[]string, term string) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			return
		}
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		*dst = append(*dst, term)
	}

	for _, m := range quotedRe.FindAllStringSubmatch(question, -1) {
		phrase := m[1]
		if phrase == "" {
			phrase = m[2]
		}
		push(&set.Strong, phrase)
	}

	for _, tok := range capitalizedRe.FindAllString(question, -1) {
		if _, stop := stopwords[strings.ToLower(tok)]; stop {
			continue
		}
		push(&set.Strong, tok)
	}

	for _, tok := range wordRe.FindAllString(strings.ToLower(question), -1) {
		if len(tok) < 4 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		push(&set.Soft, tok)
	}

	return set
}
