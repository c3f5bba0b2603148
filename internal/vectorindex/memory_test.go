package vectorindex

import (
	"context"
	"testing"
)

func TestMemoryIndexUpsertAndQuery(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	entries := []Entry{
		{ID: "a", Text: "alpha", Metadata: map[string]any{"type": "text"}, Vector: []float32{1, 0, 0}},
		{ID: "b", Text: "beta", Metadata: map[string]any{"type": "text"}, Vector: []float32{0, 1, 0}},
		{ID: "c", Text: "gamma", Metadata: map[string]any{"type": "image"}, Vector: []float32{0.9, 0.1, 0}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	results, err := idx.Query(ctx, []float32{1, 0, 0}, 2, Filter{"type": "text"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected closest entry 'a', got %q", results[0].ID)
	}
	if results[0].Distance > results[1].Distance {
		t.Errorf("results not ordered by distance: %v then %v", results[0].Distance, results[1].Distance)
	}
	for _, r := range results {
		if r.Metadata["type"] != "text" {
			t.Errorf("filter leaked non-text entry %q", r.ID)
		}
	}
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	if err := idx.Upsert(ctx, []Entry{{ID: "a", Text: "old", Vector: []float32{1, 0}}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := idx.Upsert(ctx, []Entry{{ID: "a", Text: "new", Vector: []float32{0, 1}}}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	entry, err := idx.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.Text != "new" {
		t.Errorf("expected replaced entry text 'new', got %+v", entry)
	}

	count, err := idx.Count(ctx, nil)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 entry after replace, got %d", count)
	}
}

func TestMemoryIndexDeleteByFilter(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	entries := []Entry{
		{ID: "d1_chunk_0", Metadata: map[string]any{"document_id": "d1", "type": "text"}, Vector: []float32{1}},
		{ID: "d1_image_0", Metadata: map[string]any{"document_id": "d1", "type": "image"}, Vector: []float32{1}},
		{ID: "d2_chunk_0", Metadata: map[string]any{"document_id": "d2", "type": "text"}, Vector: []float32{1}},
	}
	if err := idx.Upsert(ctx, entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	deleted, err := idx.Delete(ctx, Filter{"document_id": "d1"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("expected 2 deleted, got %d", deleted)
	}

	remaining, err := idx.List(ctx, nil)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "d2_chunk_0" {
		t.Errorf("unexpected remaining entries: %+v", remaining)
	}
}

func TestMemoryIndexGetMissing(t *testing.T) {
	idx := NewMemoryIndex()

	entry, err := idx.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("expected nil for missing entry, got %+v", entry)
	}
}
