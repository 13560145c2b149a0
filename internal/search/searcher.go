// Package search adapts the embeddings service and the vector store into
// the similarity-search capability the query pipeline consumes.
package search

import (
	"context"
	"fmt"

	"opal-rag/internal/query"
	"opal-rag/internal/vectorstore"
)

// Embedder turns texts into vectors. Satisfied by llm.EmbeddingsClient.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorSearcher embeds the query text and runs it against a vector store
// collection, translating filters and payload metadata between the two
// worlds. It implements query.Searcher.
type VectorSearcher struct {
	embedder   Embedder
	store      vectorstore.VectorStore
	collection string
}

// NewVectorSearcher creates a searcher over the given collection.
func NewVectorSearcher(embedder Embedder, store vectorstore.VectorStore, collection string) *VectorSearcher {
	return &VectorSearcher{
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
}

// Search implements query.Searcher.
func (s *VectorSearcher) Search(ctx context.Context, text string, k int, filter query.Filter) ([]query.ScoredChunk, error) {
	vectors, err := s.embedder.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	var filters vectorstore.SearchFilters
	switch filter.Kind() {
	case query.FilterDisplayName:
		filters.DocName = filter.Value()
	case query.FilterType:
		filters.Type = filter.Value()
	}

	results, err := s.store.Search(ctx, s.collection, vectors[0], k, filters)
	if err != nil {
		return nil, fmt.Errorf("vector store search failed: %w", err)
	}

	chunks := make([]query.ScoredChunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, query.ScoredChunk{
			Chunk: query.Chunk{
				ID:   r.PointID,
				Text: metaString(r.Meta, "text"),
				Meta: chunkMetadata(r.Meta),
			},
			Score: float64(r.Score),
		})
	}
	return chunks, nil
}

// chunkMetadata maps a search payload to chunk metadata. The payload keys
// are the ones the ingestion tool writes alongside each point.
func chunkMetadata(meta map[string]any) query.Metadata {
	return query.Metadata{
		Source:    metaString(meta, "source"),
		DocName:   metaString(meta, "doc_name"),
		Type:      metaString(meta, "type"),
		Page:      metaInt(meta, "page"),
		Slide:     metaInt(meta, "slide"),
		Sheet:     metaString(meta, "sheet"),
		Row:       metaInt(meta, "row"),
		Section:   metaString(meta, "section"),
		ElementID: metaString(meta, "element_id"),
		TimeStart: metaFloat(meta, "time_start"),
		TimeEnd:   metaFloat(meta, "time_end"),
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func metaFloat(meta map[string]any, key string) *float64 {
	switch v := meta[key].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}
