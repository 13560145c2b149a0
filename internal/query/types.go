package query

import (
	"fmt"
	"strings"
)

// Unknown is the literal answer returned when the retrieved context does not
// support the question. Both the prompt and the answerability guard use it.
const Unknown = "UNKNOWN"

// Metadata describes where a chunk came from within its source document.
// Zero values mean the field is absent; TimeStart/TimeEnd are nil when the
// chunk has no time range (non-media sources).
type Metadata struct {
	// Source is the ingest path of the originating document.
	Source string `json:"source,omitempty"`
	// DocName is the display name shown to the user (usually the file name).
	DocName string `json:"doc_name,omitempty"`
	// Type is the document type tag (pdf, docx, image, video, ...).
	Type string `json:"type,omitempty"`

	Page      int      `json:"page,omitempty"`
	Slide     int      `json:"slide,omitempty"`
	Sheet     string   `json:"sheet,omitempty"`
	Row       int      `json:"row,omitempty"`
	Section   string   `json:"section,omitempty"`
	ElementID string   `json:"element_id,omitempty"`
	TimeStart *float64 `json:"time_start,omitempty"`
	TimeEnd   *float64 `json:"time_end,omitempty"`
}

// DisplayName returns the name used when citing this chunk: the display name
// if present, otherwise the source path, otherwise "unknown".
func (m Metadata) DisplayName() string {
	if m.DocName != "" {
		return m.DocName
	}
	if m.Source != "" {
		return m.Source
	}
	return "unknown"
}

// TypeTag returns the document type tag, defaulting to "doc".
func (m Metadata) TypeTag() string {
	if m.Type != "" {
		return m.Type
	}
	return "doc"
}

// matchName is the lowercased name anchors and filename filters match
// against: the display name if set, otherwise the source path.
func (m Metadata) matchName() string {
	if m.DocName != "" {
		return strings.ToLower(m.DocName)
	}
	return strings.ToLower(m.Source)
}

// Locator renders the chunk's position within its source as a compact
// string, e.g. "page=12" or "sheet=Q3 row=7" or "[01:05–01:40]".
func (m Metadata) Locator() string {
	var bits []string
	if m.Page > 0 {
		bits = append(bits, fmt.Sprintf("page=%d", m.Page))
	}
	if m.Slide > 0 {
		bits = append(bits, fmt.Sprintf("slide=%d", m.Slide))
	}
	if m.Sheet != "" {
		bits = append(bits, fmt.Sprintf("sheet=%s", m.Sheet))
	}
	if m.Row > 0 {
		bits = append(bits, fmt.Sprintf("row=%d", m.Row))
	}
	if m.Section != "" {
		bits = append(bits, fmt.Sprintf("section=%s", m.Section))
	}
	if m.ElementID != "" {
		bits = append(bits, fmt.Sprintf("element_id=%s", m.ElementID))
	}
	switch {
	case m.TimeStart != nil && m.TimeEnd != nil:
		bits = append(bits, fmt.Sprintf("[%s–%s]", formatTimestamp(*m.TimeStart), formatTimestamp(*m.TimeEnd)))
	case m.TimeStart != nil:
		bits = append(bits, fmt.Sprintf("[%s→]", formatTimestamp(*m.TimeStart)))
	}
	return strings.Join(bits, " ")
}

// formatTimestamp renders seconds as mm:ss.
func formatTimestamp(seconds float64) string {
	total := int(seconds + 0.5)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Chunk is a retrievable unit of previously indexed text.
type Chunk struct {
	ID   string   `json:"id,omitempty"`
	Text string   `json:"text"`
	Meta Metadata `json:"meta"`
}

// ScoredChunk pairs a chunk with its relevance score in [0, 1]. The score is
// immutable after retrieval except for the single anchor bonus applied by
// the reranker.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// AnchorSet holds the evidence terms derived from a question. Both lists are
// ordered, deduplicated, lowercase and disjoint; the set is derived once per
// query and never mutated afterward.
type AnchorSet struct {
	// Strong anchors must be supported by the surviving context for an
	// answer to be accepted (quoted phrases, proper nouns).
	Strong []string
	// Soft anchors only influence re-ranking.
	Soft []string
}

// All returns strong followed by soft anchors.
func (a AnchorSet) All() []string {
	if len(a.Strong) == 0 {
		return a.Soft
	}
	if len(a.Soft) == 0 {
		return a.Strong
	}
	out := make([]string, 0, len(a.Strong)+len(a.Soft))
	out = append(out, a.Strong...)
	out = append(out, a.Soft...)
	return out
}

// Empty reports whether the set contains no anchors at all.
func (a AnchorSet) Empty() bool {
	return len(a.Strong) == 0 && len(a.Soft) == 0
}

// Source is a cited source entry in a query result.
type Source struct {
	// Name is the display name of the source document.
	Name string `json:"name"`
	// Type is the document type tag ("doc" when unknown, "error" for
	// diagnostic entries describing a capability failure).
	Type string `json:"type"`
	// Locator describes the position within the source, when known.
	Locator string `json:"locator,omitempty"`
}

// Result is the structured outcome of a query.
type Result struct {
	// Answer is the generated answer, or the literal Unknown.
	Answer string `json:"answer"`
	// Sources lists the cited sources in context order. Empty (not nil)
	// when the answer is Unknown with no surviving context.
	Sources []Source `json:"sources"`
	// Snippets holds short previews of the surviving chunks when the
	// request asked for them.
	Snippets []string `json:"snippets,omitempty"`
}

// Request is a single question plus per-query overrides. Zero-valued
// numeric fields fall back to the engine's configured defaults; ScoreFloor
// is a pointer so callers can distinguish "use default" from an explicit 0.
type Request struct {
	Question string `json:"question"`

	// File restricts retrieval to an exact display name (e.g. "monopoly.pdf").
	File string `json:"file,omitempty"`
	// Type restricts retrieval to a document type tag.
	Type string `json:"type,omitempty"`

	K               int      `json:"k,omitempty"`
	FetchK          int      `json:"fetch_k,omitempty"`
	PerSourceLimit  int      `json:"per_source_limit,omitempty"`
	MaxContextChars int      `json:"max_context_chars,omitempty"`
	ScoreFloor      *float64 `json:"score_floor,omitempty"`

	// Model overrides the configured generation model.
	Model string `json:"model,omitempty"`

	ShowSnippets bool `json:"show_snippets,omitempty"`
}

// Config holds the engine defaults a request may override, plus the
// guardrail settings that are configuration-only.
type Config struct {
	K               int
	FetchK          int
	PerSourceLimit  int
	MaxContextChars int
	ScoreFloor      float64
	AnchorBonus     float64

	// GuardrailTerms are sensitive terms whose chunks are excluded unless
	// the query itself mentions one of them. Empty disables the guardrail.
	GuardrailTerms []string
	// GuardrailMinSurvivors is the absolute floor of candidates that must
	// survive an exclusion for it to be applied (combined with k/2).
	GuardrailMinSurvivors int

	// Model is the default generation model identifier.
	Model string
	// SnippetChars caps the length of each snippet preview.
	SnippetChars int
}

// DefaultConfig returns the stock pipeline tuning.
func DefaultConfig() Config {
	return Config{
		K:                     12,
		FetchK:                48,
		PerSourceLimit:        2,
		MaxContextChars:       12000,
		ScoreFloor:            0.30,
		AnchorBonus:           0.05,
		GuardrailMinSurvivors: 3,
		SnippetChars:          220,
	}
}

// settings are the per-query tunables after merging a Request with Config.
type settings struct {
	k               int
	fetchK          int
	perSourceLimit  int
	maxContextChars int
	scoreFloor      float64
	anchorBonus     float64
	model           string
	showSnippets    bool
	snippetChars    int
}

// resolve merges request overrides onto the configured defaults.
func (c Config) resolve(req Request) settings {
	s := settings{
		k:               c.K,
		fetchK:          c.FetchK,
		perSourceLimit:  c.PerSourceLimit,
		maxContextChars: c.MaxContextChars,
		scoreFloor:      c.ScoreFloor,
		anchorBonus:     c.AnchorBonus,
		model:           c.Model,
		showSnippets:    req.ShowSnippets,
		snippetChars:    c.SnippetChars,
	}
	if req.K > 0 {
		s.k = req.K
	}
	if req.FetchK > 0 {
		s.fetchK = req.FetchK
	}
	if req.PerSourceLimit > 0 {
		s.perSourceLimit = req.PerSourceLimit
	}
	if req.MaxContextChars != 0 {
		s.maxContextChars = req.MaxContextChars
	}
	if req.ScoreFloor != nil {
		s.scoreFloor = *req.ScoreFloor
	}
	if req.Model != "" {
		s.model = req.Model
	}
	if s.fetchK < s.k {
		s.fetchK = s.k
	}
	return s
}
