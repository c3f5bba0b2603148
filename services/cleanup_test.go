package services

import (
	"context"
	"testing"
	"time"

	"knowledge-capture-platform/internal/vectorindex"
)

func TestSweepOrphansRemovesStaleDirectories(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	images := NewImageStore(t.TempDir(), time.Second)

	if _, err := images.DocumentDir("orphan"); err != nil {
		t.Fatalf("DocumentDir failed: %v", err)
	}
	if _, err := images.DocumentDir("live"); err != nil {
		t.Fatalf("DocumentDir failed: %v", err)
	}
	err := idx.Upsert(context.Background(), []vectorindex.Entry{{
		ID:       "live_image_0",
		Text:     "[IMAGE] Uploaded image 0",
		Metadata: map[string]any{"type": "image", "document_id": "live"},
		Vector:   []float32{1},
	}})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	cs := NewCleanupScheduler(idx, images)
	if err := cs.SweepOrphans(context.Background(), 0); err != nil {
		t.Fatalf("SweepOrphans failed: %v", err)
	}

	ids, err := images.DocumentIDs()
	if err != nil {
		t.Fatalf("DocumentIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "live" {
		t.Errorf("expected only the live directory to survive, got %v", ids)
	}
}

func TestSweepOrphansSparesRecentDirectories(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	images := NewImageStore(t.TempDir(), time.Second)

	// No index entries yet: an ingestion in flight looks exactly like
	// this between the image writes and the batch commit.
	if _, err := images.DocumentDir("inflight"); err != nil {
		t.Fatalf("DocumentDir failed: %v", err)
	}

	cs := NewCleanupScheduler(idx, images)
	if err := cs.SweepOrphans(context.Background(), time.Hour); err != nil {
		t.Fatalf("SweepOrphans failed: %v", err)
	}

	ids, err := images.DocumentIDs()
	if err != nil {
		t.Fatalf("DocumentIDs failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != "inflight" {
		t.Errorf("in-flight directory was swept: %v", ids)
	}
}
