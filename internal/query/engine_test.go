package query_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"opal-rag/internal/query"
	"opal-rag/internal/query/mocks"

	"go.uber.org/mock/gomock"
)

func newEngine(t *testing.T) (query.Engine, *mocks.MockSearcher, *mocks.MockGenerator) {
	t.Helper()
	ctrl := gomock.NewController(t)
	searcher := mocks.NewMockSearcher(ctrl)
	generator := mocks.NewMockGenerator(ctrl)
	return query.NewEngine(searcher, generator, query.DefaultConfig()), searcher, generator
}

func scored(text, source, docName string, score float64) query.ScoredChunk {
	return query.ScoredChunk{
		Chunk: query.Chunk{
			Text: text,
			Meta: query.Metadata{Source: source, DocName: docName},
		},
		Score: score,
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	engine, _, _ := newEngine(t)
	if _, err := engine.Answer(context.Background(), query.Request{Question: "   "}); err == nil {
		t.Fatal("Answer() with empty question should fail")
	}
}

func TestAnswerUnsupportedStrongAnchorForcesUnknown(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, query.NoFilter()).
		Return([]query.ScoredChunk{
			scored("The capital city is large and busy.", "/data/cities.pdf", "cities.pdf", 0.82),
		}, nil)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("The capital is Poseidonis.", nil)

	res, err := engine.Answer(context.Background(), query.Request{
		Question: "What is the capital of 'Atlantis'?",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Answer != query.Unknown {
		t.Errorf("Answer = %q, want %q: the guard must override unsupported generations", res.Answer, query.Unknown)
	}
	if len(res.Sources) != 1 || res.Sources[0].Name != "cities.pdf" {
		t.Errorf("Sources = %v, want the surviving chunk cited", res.Sources)
	}
}

func TestAnswerSupportedStrongAnchorPasses(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, query.NoFilter()).
		Return([]query.ScoredChunk{
			scored("Atlantis was a legendary island power.", "/data/myths.pdf", "myths.pdf", 0.82),
		}, nil)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("Atlantis was an island power.", nil)

	res, err := engine.Answer(context.Background(), query.Request{
		Question: "What is the capital of 'Atlantis'?",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Answer != "Atlantis was an island power." {
		t.Errorf("Answer = %q, want the generated answer kept", res.Answer)
	}
}

func TestAnswerFileFallbackRecoversExactMatches(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	question := "summarize monopoly.pdf"
	gomock.InOrder(
		searcher.EXPECT().
			Search(gomock.Any(), question, 48, query.ByDisplayName("monopoly.pdf")).
			Return(nil, nil),
		searcher.EXPECT().
			Search(gomock.Any(), question, 48, query.NoFilter()).
			Return([]query.ScoredChunk{
				scored("Unrelated rules.", "/data/other.pdf", "other.pdf", 0.90),
				scored("Monopoly setup section.", "/data/docs/monopoly.pdf", "", 0.50),
				scored("Monopoly auction rules.", "/elsewhere/Monopoly.PDF", "Monopoly.PDF", 0.70),
			}, nil),
	)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("It covers setup and auctions.", nil)

	res, err := engine.Answer(context.Background(), query.Request{
		Question: question,
		File:     "monopoly.pdf",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Answer != "It covers setup and auctions." {
		t.Errorf("Answer = %q, want generated answer", res.Answer)
	}
	if len(res.Sources) != 2 {
		t.Fatalf("Sources = %v, want the two exact-name matches", res.Sources)
	}
	// Sorted by raw score descending: the 0.70 match before the 0.50 one.
	if res.Sources[0].Name != "Monopoly.PDF" {
		t.Errorf("Sources[0].Name = %q, want Monopoly.PDF", res.Sources[0].Name)
	}
	if res.Sources[1].Name != "/data/docs/monopoly.pdf" {
		t.Errorf("Sources[1].Name = %q, want the source path", res.Sources[1].Name)
	}
}

func TestAnswerEmptyRetrievalIsUnknownWithEmptySources(t *testing.T) {
	engine, searcher, _ := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
		Return([]query.ScoredChunk{
			scored("weak match", "/a.pdf", "a.pdf", 0.10),
		}, nil)

	res, err := engine.Answer(context.Background(), query.Request{
		Question: "anything about nothing relevant",
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Answer != query.Unknown {
		t.Errorf("Answer = %q, want %q", res.Answer, query.Unknown)
	}
	if res.Sources == nil || len(res.Sources) != 0 {
		t.Errorf("Sources = %v, want empty non-nil list", res.Sources)
	}
}

func TestAnswerSearchFailureDegradesToUnknown(t *testing.T) {
	engine, searcher, _ := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
		Return(nil, errors.New("connection refused"))

	res, err := engine.Answer(context.Background(), query.Request{Question: "any question here"})
	if err != nil {
		t.Fatalf("Answer() must not propagate capability failures, got %v", err)
	}
	if res.Answer != query.Unknown {
		t.Errorf("Answer = %q, want %q", res.Answer, query.Unknown)
	}
	if len(res.Sources) != 1 || res.Sources[0].Type != "error" {
		t.Fatalf("Sources = %v, want one diagnostic entry", res.Sources)
	}
	if !strings.Contains(res.Sources[0].Name, "connection refused") {
		t.Errorf("diagnostic entry %q should name the failure", res.Sources[0].Name)
	}
}

func TestAnswerGenerationFailureDegradesToUnknown(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		genErr   error
		wantDiag string
	}{
		{"capability error", "", errors.New("model timeout"), "model timeout"},
		{"empty text", "   ", nil, "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, searcher, generator := newEngine(t)

			searcher.EXPECT().
				Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
				Return([]query.ScoredChunk{
					scored("some supporting text", "/a.pdf", "a.pdf", 0.80),
				}, nil)
			generator.EXPECT().
				Generate(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(tt.reply, tt.genErr)

			res, err := engine.Answer(context.Background(), query.Request{Question: "plain question words"})
			if err != nil {
				t.Fatalf("Answer() must not propagate capability failures, got %v", err)
			}
			if res.Answer != query.Unknown {
				t.Errorf("Answer = %q, want %q", res.Answer, query.Unknown)
			}
			if len(res.Sources) != 1 || res.Sources[0].Type != "error" {
				t.Fatalf("Sources = %v, want one diagnostic entry", res.Sources)
			}
			if !strings.Contains(res.Sources[0].Name, tt.wantDiag) {
				t.Errorf("diagnostic entry %q should contain %q", res.Sources[0].Name, tt.wantDiag)
			}
		})
	}
}

func TestAnswerStopwordQueryNeverGuarded(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
		Return([]query.ScoredChunk{
			scored("completely unrelated content", "/a.pdf", "a.pdf", 0.80),
		}, nil)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("A confident reply.", nil)

	res, err := engine.Answer(context.Background(), query.Request{Question: "What is that about?"})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if res.Answer != "A confident reply." {
		t.Errorf("Answer = %q: the guard only fires when strong anchors exist", res.Answer)
	}
}

func TestAnswerPoolBoundedByK(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	var results []query.ScoredChunk
	for i := 0; i < 8; i++ {
		results = append(results, scored("chunk text here", "/src-"+string(rune('a'+i))+".pdf", "", 0.90))
	}
	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
		Return(results, nil)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("fine", nil)

	res, err := engine.Answer(context.Background(), query.Request{Question: "plain question words", K: 3})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(res.Sources) != 3 {
		t.Errorf("len(Sources) = %d, want k=3", len(res.Sources))
	}
}

func TestAnswerSnippets(t *testing.T) {
	engine, searcher, generator := newEngine(t)

	searcher.EXPECT().
		Search(gomock.Any(), gomock.Any(), 48, gomock.Any()).
		Return([]query.ScoredChunk{
			scored("line one\nline two", "/a.pdf", "a.pdf", 0.80),
		}, nil)
	generator.EXPECT().
		Generate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("fine", nil)

	res, err := engine.Answer(context.Background(), query.Request{
		Question:     "plain question words",
		ShowSnippets: true,
	})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(res.Snippets) != 1 {
		t.Fatalf("Snippets = %v, want one entry", res.Snippets)
	}
	if strings.Contains(res.Snippets[0], "\n") {
		t.Errorf("snippet should be single-line, got %q", res.Snippets[0])
	}
	if !strings.HasPrefix(res.Snippets[0], "[1] a.pdf") {
		t.Errorf("snippet = %q, want rank and name prefix", res.Snippets[0])
	}
}

// stubSearcher and stubGenerator are deterministic capabilities for the
// idempotence check: repeated runs must not depend on call count.
type stubSearcher struct{ results []query.ScoredChunk }

func (s *stubSearcher) Search(_ context.Context, _ string, _ int, _ query.Filter) ([]query.ScoredChunk, error) {
	out := make([]query.ScoredChunk, len(s.results))
	copy(out, s.results)
	return out, nil
}

type stubGenerator struct{ reply string }

func (g *stubGenerator) Generate(_ context.Context, _ string, _ string) (string, error) {
	return g.reply, nil
}

func TestAnswerIdempotent(t *testing.T) {
	searcher := &stubSearcher{results: []query.ScoredChunk{
		scored("Monopoly auction rules explained.", "/a.pdf", "a.pdf", 0.55),
		scored("Unrelated board trivia.", "/b.pdf", "b.pdf", 0.58),
		scored("Monopoly setup steps.", "/c.pdf", "c.pdf", 0.41),
	}}
	generator := &stubGenerator{reply: "Auctions start when a purchase is declined."}
	engine := query.NewEngine(searcher, generator, query.DefaultConfig())

	req := query.Request{Question: "How do Monopoly auctions work?"}

	first, err := engine.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	second, err := engine.Answer(context.Background(), req)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeated runs differ:\nfirst:  %+v\nsecond: %+v", first, second)
	}
	// Anchor bonus lifts both monopoly chunks over the 0.58 competitor.
	if first.Sources[0].Name != "a.pdf" {
		t.Errorf("Sources[0] = %q, want the boosted a.pdf first", first.Sources[0].Name)
	}
}
