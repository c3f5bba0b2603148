package services

import (
	"context"
	"testing"

	"knowledge-capture-platform/internal/vectorindex"
)

func seedTextEntries(t *testing.T, idx vectorindex.Index, texts map[string]string) {
	t.Helper()
	var entries []vectorindex.Entry
	for id, text := range texts {
		entries = append(entries, vectorindex.Entry{
			ID:       id,
			Text:     text,
			Metadata: map[string]any{"type": "text"},
			Vector:   []float32{1},
		})
	}
	if err := idx.Upsert(context.Background(), entries); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestKeywordIndexRanksMatchingDocsFirst(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	seedTextEntries(t, idx, map[string]string{
		"d1_chunk_0": "go channels and goroutines make concurrency simple",
		"d2_chunk_0": "baking sourdough bread requires patience and flour",
		"d3_chunk_0": "goroutines communicate over channels in go programs",
	})

	ki := NewKeywordIndex(idx)
	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if !ki.Ready() {
		t.Fatal("index should be ready after rebuild")
	}

	results := ki.TopN("goroutines channels", 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.ID == "d2_chunk_0" {
			t.Errorf("bread document outranked goroutine documents: %+v", results)
		}
		if r.Score <= 0 {
			t.Errorf("matching document %s scored %v", r.ID, r.Score)
		}
	}
}

func TestKeywordIndexEmptyCorpus(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	ki := NewKeywordIndex(idx)

	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if ki.Ready() {
		t.Error("index must not report ready for empty corpus")
	}
	if results := ki.TopN("anything", 5); results != nil {
		t.Errorf("expected nil results for empty corpus, got %v", results)
	}
}

func TestKeywordIndexIgnoresImageEntries(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	seedTextEntries(t, idx, map[string]string{
		"d1_chunk_0": "notes about distributed systems",
	})
	err := idx.Upsert(context.Background(), []vectorindex.Entry{{
		ID:       "d1_image_0",
		Text:     "[IMAGE] distributed systems diagram",
		Metadata: map[string]any{"type": "image"},
		Vector:   []float32{1},
	}})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	ki := NewKeywordIndex(idx)
	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	results := ki.TopN("distributed systems", 10)
	for _, r := range results {
		if r.ID == "d1_image_0" {
			t.Error("image entry leaked into keyword index")
		}
	}
}

func TestKeywordIndexRebuildReplacesSnapshot(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	seedTextEntries(t, idx, map[string]string{
		"d1_chunk_0": "first generation content",
	})

	ki := NewKeywordIndex(idx)
	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	seedTextEntries(t, idx, map[string]string{
		"d2_chunk_0": "second generation content about gardening",
	})
	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	results := ki.TopN("gardening", 5)
	found := false
	for _, r := range results {
		if r.ID == "d2_chunk_0" && r.Score > 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("new document missing after rebuild: %+v", results)
	}
}

func TestKeywordIndexRebuildIdempotent(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	seedTextEntries(t, idx, map[string]string{
		"d1_chunk_0": "go channels and goroutines make concurrency simple",
		"d2_chunk_0": "baking sourdough bread requires patience and flour",
		"d3_chunk_0": "goroutines communicate over channels in go programs",
	})

	ki := NewKeywordIndex(idx)
	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	first := ki.TopN("goroutines channels", 10)

	if err := ki.Rebuild(context.Background()); err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}
	second := ki.TopN("goroutines channels", 10)

	if len(first) != len(second) {
		t.Fatalf("result count changed across rebuilds: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID || first[i].Score != second[i].Score {
			t.Errorf("rank %d changed across rebuilds: %+v vs %+v", i, first[i], second[i])
		}
	}
}
