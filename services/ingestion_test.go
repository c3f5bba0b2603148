package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"testing"
	"time"

	"knowledge-capture-platform/internal/vectorindex"
)

// fakeEmbedder produces deterministic bag-of-words vectors so texts
// sharing tokens land close together.
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, 16)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%16]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (fakeEmbedder) EmbedImageFile(_ context.Context, filePath string) ([]float32, error) {
	return fakeEmbedder{}.EmbedText(context.Background(), "image "+filePath)
}

func newTestIngestion(t *testing.T) (*IngestionService, vectorindex.Index, *KeywordIndex) {
	t.Helper()
	idx := vectorindex.NewMemoryIndex()
	keyword := NewKeywordIndex(idx)
	images := NewImageStore(t.TempDir(), 5*time.Second)
	svc := NewIngestionService(idx, fakeEmbedder{}, NewChunker(800, 150, 100), keyword, images, nil)
	return svc, idx, keyword
}

func TestProcessShortTextSingleChunk(t *testing.T) {
	svc, idx, keyword := newTestIngestion(t)
	ctx := context.Background()

	err := svc.Process(ctx, IngestJob{
		DocumentID:     "doc1",
		Text:           "A quick note about compiler escape analysis.",
		Metadata:       map[string]any{"title": "Escape analysis", "timestamp": "2026-08-31T09:14:00"},
		EnableChunking: true,
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	entry, err := idx.Get(ctx, "doc1_chunk_0")
	if err != nil || entry == nil {
		t.Fatalf("expected entry doc1_chunk_0, got %v (err %v)", entry, err)
	}

	if entry.Metadata["is_chunked"] != false {
		t.Errorf("single chunk should not be marked chunked: %v", entry.Metadata["is_chunked"])
	}
	if entry.Metadata["total_chunks"] != 1 {
		t.Errorf("total_chunks = %v, want 1", entry.Metadata["total_chunks"])
	}
	if entry.Metadata["type"] != "text" || entry.Metadata["document_id"] != "doc1" {
		t.Errorf("unexpected metadata: %+v", entry.Metadata)
	}
	if !strings.Contains(entry.Text, "[Saved: Monday morning, 09:14 AM]") {
		t.Errorf("chunk text missing recency annotation: %q", entry.Text)
	}
	if !keyword.Ready() {
		t.Error("keyword index should rebuild after text ingestion")
	}
}

func TestProcessLongTextChunks(t *testing.T) {
	svc, idx, _ := newTestIngestion(t)
	ctx := context.Background()

	sentence := "Every large capture gets split into overlapping pieces that still read naturally. "
	text := strings.TrimSpace(strings.Repeat(sentence, 30))

	if err := svc.Process(ctx, IngestJob{
		DocumentID:     "doc2",
		Text:           text,
		Metadata:       map[string]any{},
		EnableChunking: true,
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	entries, err := idx.List(ctx, vectorindex.Filter{"document_id": "doc2"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected multiple chunks for %d chars, got %d", len(text), len(entries))
	}

	for i, e := range entries {
		wantID := fmt.Sprintf("doc2_chunk_%d", i)
		if e.ID != wantID {
			t.Errorf("entry %d ID = %q, want %q", i, e.ID, wantID)
		}
		if e.Metadata["is_chunked"] != true {
			t.Errorf("chunk %d should be marked chunked", i)
		}
		if e.Metadata["total_chunks"] != len(entries) {
			t.Errorf("chunk %d total_chunks = %v, want %d", i, e.Metadata["total_chunks"], len(entries))
		}
	}
}

func TestProcessChunkingDisabled(t *testing.T) {
	svc, idx, _ := newTestIngestion(t)
	ctx := context.Background()

	text := strings.Repeat("No chunking wanted here. ", 100)
	if err := svc.Process(ctx, IngestJob{
		DocumentID:     "doc3",
		Text:           text,
		Metadata:       map[string]any{},
		EnableChunking: false,
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	count, _ := idx.Count(ctx, vectorindex.Filter{"document_id": "doc3"})
	if count != 1 {
		t.Errorf("expected exactly one entry with chunking disabled, got %d", count)
	}
}

func TestProcessEmptyTextNoEntries(t *testing.T) {
	svc, idx, keyword := newTestIngestion(t)
	ctx := context.Background()

	if err := svc.Process(ctx, IngestJob{
		DocumentID: "doc4",
		Text:       "   \n  ",
		Metadata:   map[string]any{},
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	count, _ := idx.Count(ctx, nil)
	if count != 0 {
		t.Errorf("whitespace text produced %d entries", count)
	}
	if keyword.Ready() {
		t.Error("keyword index should stay empty")
	}
}

func TestProcessSerializesCompositeMetadata(t *testing.T) {
	svc, idx, _ := newTestIngestion(t)
	ctx := context.Background()

	if err := svc.Process(ctx, IngestJob{
		DocumentID: "doc5",
		Text:       "Note with structured metadata attached to it.",
		Metadata: map[string]any{
			"structured_content": map[string]any{"headings": []any{"One"}},
		},
		EnableChunking: true,
	}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	entry, _ := idx.Get(ctx, "doc5_chunk_0")
	if entry == nil {
		t.Fatal("entry missing")
	}
	if _, ok := entry.Metadata["structured_content"].(string); !ok {
		t.Errorf("composite metadata should be stored as JSON string, got %T", entry.Metadata["structured_content"])
	}
}

func TestProcessUploadedImage(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	keyword := NewKeywordIndex(idx)
	images := NewImageStore(t.TempDir(), 5*time.Second)
	svc := NewIngestionService(idx, fakeEmbedder{}, NewChunker(800, 150, 100), keyword, images, nil)
	ctx := context.Background()

	err := svc.Process(ctx, IngestJob{
		DocumentID: "doc6",
		Metadata:   map[string]any{"image_0_alt": "whiteboard sketch"},
		UploadedImages: []UploadedImage{
			{Filename: "board.png", Content: pngBytes(t, 10, 8)},
		},
	})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	entry, _ := idx.Get(ctx, "doc6_image_0")
	if entry == nil {
		t.Fatal("image entry missing")
	}
	if entry.Text != "[IMAGE] whiteboard sketch" {
		t.Errorf("image document text = %q", entry.Text)
	}
	if entry.Metadata["filename"] != "image_0.png" || entry.Metadata["source"] != "upload" {
		t.Errorf("unexpected image metadata: %+v", entry.Metadata)
	}
	if entry.Metadata["width"] != 10 || entry.Metadata["height"] != 8 {
		t.Errorf("dimensions missing from metadata: %+v", entry.Metadata)
	}
	if keyword.Ready() {
		t.Error("image-only ingestion must not rebuild the keyword index")
	}

	if _, err := images.ImagePath("doc6", "image_0.png"); err != nil {
		t.Errorf("stored image not on disk: %v", err)
	}
}

func TestEnhanceTimestamp(t *testing.T) {
	cases := map[string]string{
		"2026-08-31T09:14:00":        "Monday morning, 09:14 AM",
		"2026-08-29T14:30:00.123456": "Saturday afternoon, 02:30 PM",
		"2026-08-28T19:05:00":        "Friday evening, 07:05 PM",
		"2026-08-28T23:45:00":        "Friday night, 11:45 PM",
		"2026-08-28T03:00:00":        "Friday night, 03:00 AM",
		"not a timestamp":            "not a timestamp",
		"":                           "",
	}
	for in, want := range cases {
		if got := enhanceTimestamp(in); got != want {
			t.Errorf("enhanceTimestamp(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTimeOfDayBuckets(t *testing.T) {
	cases := map[int]string{
		5: "morning", 11: "morning",
		12: "afternoon", 16: "afternoon",
		17: "evening", 20: "evening",
		21: "night", 0: "night", 4: "night",
	}
	for hour, want := range cases {
		if got := timeOfDay(hour); got != want {
			t.Errorf("timeOfDay(%d) = %q, want %q", hour, got, want)
		}
	}
}
