package query

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	anchors := AnchorSet{Strong: []string{"atlantis"}, Soft: []string{"capital", "harbor"}}
	prompt := buildPrompt("first chunk\n\n---\n\nsecond chunk", anchors, "What is the capital of 'Atlantis'?")

	for _, want := range []string{
		"first chunk\n\n---\n\nsecond chunk",
		"STRONG ANCHORS (must appear in the context to answer):\natlantis",
		"OTHER ANCHORS (nice-to-have):\ncapital, harbor",
		"respond with exactly: UNKNOWN",
		"QUESTION:\nWhat is the capital of 'Atlantis'?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPromptEmptyAnchorsRenderSentinel(t *testing.T) {
	prompt := buildPrompt("ctx", AnchorSet{}, "question")
	if !strings.Contains(prompt, "STRONG ANCHORS (must appear in the context to answer):\n(none)") {
		t.Error("empty strong anchors should render as (none)")
	}
	if !strings.Contains(prompt, "OTHER ANCHORS (nice-to-have):\n(none)") {
		t.Error("empty soft anchors should render as (none)")
	}
}

func TestJoinContext(t *testing.T) {
	chunks := []Chunk{{Text: "one"}, {Text: "two"}}
	if got := joinContext(chunks); got != "one\n\n---\n\ntwo" {
		t.Errorf("joinContext() = %q", got)
	}
}

func TestGuardAnswer(t *testing.T) {
	chunks := []Chunk{
		{Text: "The harbor city thrived.", Meta: Metadata{DocName: "history.pdf"}},
	}
	contextText := joinContext(chunks)

	tests := []struct {
		name    string
		answer  string
		anchors AnchorSet
		want    string
	}{
		{
			name:    "unsupported strong anchor forces unknown",
			answer:  "The capital is Poseidonis.",
			anchors: AnchorSet{Strong: []string{"atlantis"}},
			want:    Unknown,
		},
		{
			name:    "anchor in context text passes",
			answer:  "The harbor city thrived.",
			anchors: AnchorSet{Strong: []string{"harbor"}},
			want:    "The harbor city thrived.",
		},
		{
			name:    "anchor in source name passes",
			answer:  "It is covered in the history document.",
			anchors: AnchorSet{Strong: []string{"history"}},
			want:    "It is covered in the history document.",
		},
		{
			name:    "no strong anchors never overrides",
			answer:  "Some freeform answer.",
			anchors: AnchorSet{Soft: []string{"atlantis"}},
			want:    "Some freeform answer.",
		},
		{
			name:    "already unknown stays untouched",
			answer:  "unknown",
			anchors: AnchorSet{Strong: []string{"atlantis"}},
			want:    "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guardAnswer(tt.answer, tt.anchors, chunks, contextText)
			if got != tt.want {
				t.Errorf("guardAnswer(%q) = %q, want %q", tt.answer, got, tt.want)
			}
		})
	}
}

func TestContextHasAnyEmptyNeedles(t *testing.T) {
	chunks := []Chunk{{Text: "anything"}}
	if contextHasAny(chunks, "anything", nil) {
		t.Error("contextHasAny() with no needles must be false")
	}
}
