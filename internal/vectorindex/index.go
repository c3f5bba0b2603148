package vectorindex

import "context"

// Entry is one indexed record: a text chunk or an image surrogate plus
// its embedding and metadata.
type Entry struct {
	ID       string
	Text     string
	Metadata map[string]any
	Vector   []float32
}

// Result is an entry returned from a similarity query. Distance is
// cosine distance, so 0 is identical and smaller is closer.
type Result struct {
	ID       string
	Text     string
	Metadata map[string]any
	Distance float64
}

// Filter restricts queries and scans to entries whose metadata matches
// every key/value pair (equality AND).
type Filter map[string]any

// Index is the vector store port. Backends must be safe for concurrent
// use.
type Index interface {
	// Upsert inserts or replaces entries keyed by Entry.ID.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to topK nearest entries to the vector, optionally
	// restricted by filter. Results are ordered by ascending distance.
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error)

	// Get fetches a single entry by ID. Returns (nil, nil) when absent.
	Get(ctx context.Context, id string) (*Entry, error)

	// List returns all entries matching filter. A nil filter lists
	// everything. Vectors are not populated.
	List(ctx context.Context, filter Filter) ([]Entry, error)

	// Delete removes all entries matching filter and reports how many
	// were removed.
	Delete(ctx context.Context, filter Filter) (int64, error)

	// Count returns the number of entries matching filter.
	Count(ctx context.Context, filter Filter) (int64, error)
}

func matchesFilter(metadata map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}
