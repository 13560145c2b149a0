package query

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"opal-rag/internal/contextutil"
)

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_capabilities.go -package=mocks opal-rag/internal/query Searcher,Generator
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_engine.go -package=mocks opal-rag/internal/query Engine

// Searcher is the similarity-search capability the pipeline consumes. It
// returns chunks with relevance scores in [0, 1]; no ordering beyond what
// the underlying index documents is assumed.
type Searcher interface {
	Search(ctx context.Context, text string, k int, filter Filter) ([]ScoredChunk, error)
}

// Generator is the text-generation capability the pipeline consumes.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// Engine answers questions from previously indexed chunks, with permissive
// retrieval and strict answerability: retrieval may return merely related
// chunks, but an answer is only accepted when the query's strong anchors are
// supported by the surviving context.
type Engine interface {
	// Answer runs the full pipeline for one question. Capability failures
	// degrade to an Unknown result with a diagnostic source entry; the
	// returned error is reserved for invalid requests.
	Answer(ctx context.Context, req Request) (Result, error)
}

// engine implements Engine. It holds no cross-query mutable state; every
// per-query value is derived inside Answer.
type engine struct {
	searcher  Searcher
	generator Generator
	cfg       Config
}

// NewEngine creates a query engine over the given capabilities.
func NewEngine(searcher Searcher, generator Generator, cfg Config) Engine {
	return &engine{
		searcher:  searcher,
		generator: generator,
		cfg:       cfg,
	}
}

// Answer runs the pipeline: extract anchors, build filter, retrieve, floor,
// rerank, truncate to k, fall back for missed file requests, guardrail,
// dedup, budget, prompt, generate, guard, format sources.
func (e *engine) Answer(ctx context.Context, req Request) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return Result{}, fmt.Errorf("question must not be empty")
	}

	s := e.cfg.resolve(req)
	anchors := ExtractAnchors(question)
	filter := BuildFilter(req)

	logger.InfoContext(ctx, "query started",
		"question", question,
		"k", s.k,
		"fetch_k", s.fetchK,
		"score_floor", s.scoreFloor,
		"filter_kind", filter.Kind(),
		"strong_anchors", anchors.Strong,
		"soft_anchors", anchors.Soft,
	)

	retrieved, err := e.searcher.Search(ctx, question, s.fetchK, filter)
	if err != nil {
		logger.ErrorContext(ctx, "similarity search failed", "error", err)
		return failureResult("search", err), nil
	}

	candidates := floorFilter(retrieved, s.scoreFloor)
	logger.DebugContext(ctx, "score floor applied",
		"retrieved", len(retrieved), "surviving", len(candidates))

	if !anchors.Empty() {
		candidates = applyAnchorBonus(candidates, anchors.All(), s.anchorBonus)
	}
	if len(candidates) > s.k {
		candidates = candidates[:s.k]
	}

	pool := make([]Chunk, len(candidates))
	for i, c := range candidates {
		pool[i] = c.Chunk
	}

	// Strict retry when a specific file was requested but nothing survived:
	// the index's metadata filter may be stricter than its own name
	// normalization, so retry unfiltered with exact client-side matching.
	requestedFile := strings.ToLower(strings.TrimSpace(req.File))
	if requestedFile == "" {
		requestedFile = strings.ToLower(strings.TrimSpace(extractFilename(question)))
	}
	if requestedFile != "" && len(pool) == 0 {
		pool, err = e.fileFallback(ctx, question, requestedFile, s)
		if err != nil {
			logger.ErrorContext(ctx, "fallback search failed", "error", err)
			return failureResult("search", err), nil
		}
		logger.InfoContext(ctx, "file fallback attempted",
			"file", requestedFile, "recovered", len(pool))
	}

	pool = applyGuardrail(pool, question, e.cfg.GuardrailTerms, e.cfg.GuardrailMinSurvivors, s.k)
	pool = dedupBySource(pool, s.perSourceLimit)
	pool = budgetTruncate(pool, s.maxContextChars)

	if len(pool) == 0 {
		logger.InfoContext(ctx, "no confident matches after retrieval")
		return Result{Answer: Unknown, Sources: []Source{}}, nil
	}

	var snippets []string
	if s.showSnippets {
		snippets = formatSnippets(pool, s.snippetChars)
	}

	contextText := joinContext(pool)
	prompt := buildPrompt(contextText, anchors, question)

	answer, err := e.generator.Generate(ctx, prompt, s.model)
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		res := failureResult("generation", err)
		res.Snippets = snippets
		return res, nil
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		logger.WarnContext(ctx, "generation returned empty text")
		res := failureResult("generation", fmt.Errorf("empty response from model"))
		res.Snippets = snippets
		return res, nil
	}

	guarded := guardAnswer(answer, anchors, pool, contextText)
	if guarded != answer {
		logger.InfoContext(ctx, "answerability guard fired",
			"strong_anchors", anchors.Strong)
	}

	logger.InfoContext(ctx, "query completed",
		"chunks_used", len(pool), "answer_length", len(guarded))

	return Result{
		Answer:   guarded,
		Sources:  formatSources(pool),
		Snippets: snippets,
	}, nil
}

// fileFallback performs one unfiltered search and keeps only chunks whose
// display name or source basename exactly matches the requested file,
// case-insensitively, sorted by raw score descending, first k.
func (e *engine) fileFallback(ctx context.Context, question, requestedFile string, s settings) ([]Chunk, error) {
	broad, err := e.searcher.Search(ctx, question, s.fetchK, NoFilter())
	if err != nil {
		return nil, err
	}

	matched := make([]ScoredChunk, 0, len(broad))
	for _, c := range broad {
		dn := strings.ToLower(strings.TrimSpace(c.Chunk.Meta.DocName))
		bn := strings.ToLower(strings.TrimSpace(path.Base(c.Chunk.Meta.Source)))
		if dn == requestedFile || bn == requestedFile {
			matched = append(matched, c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	if len(matched) > s.k {
		matched = matched[:s.k]
	}

	pool := make([]Chunk, len(matched))
	for i, c := range matched {
		pool[i] = c.Chunk
	}
	return pool, nil
}

// failureResult reports a capability failure as an Unknown outcome with a
// diagnostic source entry naming the failure. Never a fatal error.
func failureResult(stage string, err error) Result {
	return Result{
		Answer: Unknown,
		Sources: []Source{{
			Name: fmt.Sprintf("ERROR: %s: %v", stage, err),
			Type: "error",
		}},
	}
}

// formatSources renders the surviving pool as cited sources, in order.
func formatSources(chunks []Chunk) []Source {
	sources := make([]Source, len(chunks))
	for i, c := range chunks {
		sources[i] = Source{
			Name:    c.Meta.DisplayName(),
			Type:    c.Meta.TypeTag(),
			Locator: c.Meta.Locator(),
		}
	}
	return sources
}

// formatSnippets renders short single-line previews of the surviving pool.
func formatSnippets(chunks []Chunk, snippetChars int) []string {
	if snippetChars <= 0 {
		snippetChars = 220
	}
	out := make([]string, len(chunks))
	for i, c := range chunks {
		text := c.Text
		if len(text) > snippetChars {
			text = text[:snippetChars]
		}
		text = strings.ReplaceAll(text, "\n", " ")
		out[i] = fmt.Sprintf("[%d] %s → %s...", i+1, c.Meta.DisplayName(), text)
	}
	return out
}
