package vectorstore

import "context"

// SearchResult represents a single hit from a similarity search.
type SearchResult struct {
	PointID string
	Score   float32
	Meta    map[string]any
}

// SearchFilters restricts a search by indexed payload fields. Zero-valued
// fields are not applied.
type SearchFilters struct {
	// DocName matches the exact display name of the source document.
	DocName string
	// Type matches the document type tag (pdf, image, video, ...).
	Type string
}

// VectorStore defines the similarity-search surface the query pipeline
// consumes. Ingestion writes points through a separate tool; this service
// only reads.
type VectorStore interface {
	// Search performs a similarity search with optional payload filters.
	Search(ctx context.Context, collection string, query []float32, k int, filters SearchFilters) ([]SearchResult, error)

	// CollectionExists checks if a collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// EnsureCollection ensures a collection exists with the given vector
	// size, validating the size when it already does.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
}
