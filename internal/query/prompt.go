package query

import (
	"fmt"
	"strings"
)

// contextSeparator joins chunk texts in the prompt.
const contextSeparator = "\n\n---\n\n"

// noAnchors is rendered in place of an empty anchor list.
const noAnchors = "(none)"

const promptTemplate = `You are a careful assistant that must ONLY use the provided context.

CONTEXT:
%s

STRONG ANCHORS (must appear in the context to answer):
%s

OTHER ANCHORS (nice-to-have):
%s

TASK:
1) Try to answer the user's QUESTION strictly using the CONTEXT.
2) If the CONTEXT does not clearly contain information that answers the QUESTION,
   or at least one STRONG ANCHOR is absent from the CONTEXT and source names,
   respond with exactly: %s

QUESTION:
%s
`

// buildPrompt formats the generation request from the surviving context, the
// anchor lists and the original question.
func buildPrompt(contextText string, anchors AnchorSet, question string) string {
	return fmt.Sprintf(promptTemplate,
		contextText,
		renderAnchors(anchors.Strong),
		renderAnchors(anchors.Soft),
		Unknown,
		question,
	)
}

func renderAnchors(terms []string) string {
	if len(terms) == 0 {
		return noAnchors
	}
	return strings.Join(terms, ", ")
}

// joinContext concatenates chunk texts with the fixed separator.
func joinContext(chunks []Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, contextSeparator)
}

// contextHasAny reports whether any needle occurs, case-insensitively, in
// the concatenated context text or in any chunk's display name/source. An
// empty needle list never matches.
func contextHasAny(chunks []Chunk, contextText string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	lowered := strings.ToLower(contextText)
	for _, n := range needles {
		if strings.Contains(lowered, n) {
			return true
		}
	}
	for _, c := range chunks {
		name := c.Meta.matchName()
		for _, n := range needles {
			if strings.Contains(name, n) {
				return true
			}
		}
	}
	return false
}

// guardAnswer is the post-generation answerability check. When strong
// anchors exist and none of them is supported by the surviving context or
// source names, it overrides the response with Unknown. This check is
// authoritative over the generation capability's own judgment.
func guardAnswer(answer string, anchors AnchorSet, chunks []Chunk, contextText string) string {
	if strings.EqualFold(strings.TrimSpace(answer), Unknown) {
		return answer
	}
	if len(anchors.Strong) > 0 && !contextHasAny(chunks, contextText, anchors.Strong) {
		return Unknown
	}
	return answer
}
