package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/telemetry"
	"knowledge-capture-platform/internal/vectorindex"
	"knowledge-capture-platform/models"
)

// ErrSourceNotFound is returned when a document has no index entries
var ErrSourceNotFound = errors.New("source document not found")

// Completer synthesizes an answer from a prompt
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RetrievalService answers queries with hybrid search and handles the
// read side of the store: sources, stats, deletes.
type RetrievalService struct {
	index     vectorindex.Index
	embedder  Embedder
	keyword   *KeywordIndex
	completer Completer
	images    *ImageStore
	chunker   *Chunker
	metrics   *telemetry.Metrics
	backend   string
	dimension int
}

func NewRetrievalService(
	index vectorindex.Index,
	embedder Embedder,
	keyword *KeywordIndex,
	completer Completer,
	images *ImageStore,
	chunker *Chunker,
	metrics *telemetry.Metrics,
	backend string,
	dimension int,
) *RetrievalService {
	return &RetrievalService{
		index:     index,
		embedder:  embedder,
		keyword:   keyword,
		completer: completer,
		images:    images,
		chunker:   chunker,
		metrics:   metrics,
		backend:   backend,
		dimension: dimension,
	}
}

// Query runs hybrid retrieval and synthesizes a response.
//
// Both legs run concurrently; when one fails the other still serves the
// query. Natural language time phrases match because save timestamps
// are embedded in chunk text.
func (s *RetrievalService) Query(ctx context.Context, opts models.QueryOptions) (*models.QueryResponse, error) {
	if s.metrics != nil {
		s.metrics.RecordQuery(opts.UseBM25Fusion, opts.EnableTemporalDecay)
	}

	queryVector, embedErr := s.embedder.EmbedText(ctx, opts.Query)
	if embedErr != nil {
		logger.Warn("Query embedding failed, semantic leg disabled", "error", embedErr)
	}

	var rankedIDs []string
	var relevance map[string]float64
	var textChunks []string

	if opts.UseBM25Fusion && s.keyword.Ready() {
		rankedIDs, relevance = s.hybridSearch(ctx, queryVector, opts)
		for _, id := range rankedIDs {
			entry, err := s.index.Get(ctx, id)
			if err != nil || entry == nil {
				continue
			}
			textChunks = append(textChunks, entry.Text)
		}
	} else if queryVector != nil {
		results, err := s.index.Query(ctx, queryVector, opts.TopK, vectorindex.Filter{"type": "text"})
		if err != nil {
			return nil, fmt.Errorf("semantic search failed: %w", err)
		}
		relevance = make(map[string]float64, len(results))
		for _, r := range results {
			rankedIDs = append(rankedIDs, r.ID)
			relevance[r.ID] = 1 - r.Distance
			textChunks = append(textChunks, r.Text)
		}
	}

	imageURLs := []string{}
	if opts.IncludeImages && queryVector != nil {
		imageURLs = s.imageSearch(ctx, queryVector, opts.TopKImages)
	}

	sources := s.buildSources(ctx, rankedIDs, relevance)

	response := s.synthesize(ctx, opts.Query, textChunks)

	return &models.QueryResponse{
		Response: response,
		Images:   imageURLs,
		Sources:  sources,
	}, nil
}

// hybridSearch runs the semantic and keyword legs in parallel, fuses
// them with RRF and optionally reranks by recency. Returns the top K
// entry IDs and their final scores.
func (s *RetrievalService) hybridSearch(ctx context.Context, queryVector []float32, opts models.QueryOptions) ([]string, map[string]float64) {
	candidates := opts.TopK * 3

	var semanticResults, keywordResults []ScoredID
	var wg sync.WaitGroup

	if queryVector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := s.index.Query(ctx, queryVector, candidates, vectorindex.Filter{"type": "text"})
			if err != nil {
				logger.Warn("Semantic leg failed, continuing with keyword results", "error", err)
				return
			}
			for _, r := range results {
				semanticResults = append(semanticResults, ScoredID{ID: r.ID, Score: 1 - r.Distance})
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, r := range s.keyword.TopN(opts.Query, candidates) {
			keywordResults = append(keywordResults, ScoredID{ID: r.ID, Score: r.Score})
		}
	}()

	wg.Wait()

	fused := ReciprocalRankFusion(semanticResults, keywordResults)

	if opts.EnableTemporalDecay {
		window := opts.TopK * 2
		if window > len(fused) {
			window = len(fused)
		}
		leading := fused[:window]

		// Candidates whose entries cannot be fetched (deleted between
		// search and rerank) are dropped; entries that merely lack a
		// timestamp stay and count as fresh.
		reranked := make([]ScoredID, 0, len(leading))
		timestamps := make(map[string]float64, len(leading))
		for _, c := range leading {
			entry, err := s.index.Get(ctx, c.ID)
			if err != nil || entry == nil {
				logger.Warn("Dropping candidate with unreadable metadata", "id", c.ID, "error", err)
				continue
			}
			if ts, ok := toFloat(entry.Metadata["timestamp_unix"]); ok {
				timestamps[c.ID] = ts
			}
			reranked = append(reranked, c)
		}
		fused = RerankWithDecay(reranked, timestamps, time.Now())
	}

	if len(fused) > opts.TopK {
		fused = fused[:opts.TopK]
	}

	ids := make([]string, 0, len(fused))
	scores := make(map[string]float64, len(fused))
	for _, f := range fused {
		ids = append(ids, f.ID)
		scores[f.ID] = f.Score
	}
	return ids, scores
}

func (s *RetrievalService) imageSearch(ctx context.Context, queryVector []float32, topK int) []string {
	urls := []string{}
	if topK <= 0 {
		return urls
	}

	results, err := s.index.Query(ctx, queryVector, topK, vectorindex.Filter{"type": "image"})
	if err != nil {
		logger.Warn("Image search failed", "error", err)
		return urls
	}

	for _, r := range results {
		docID, _ := r.Metadata["document_id"].(string)
		filename, _ := r.Metadata["filename"].(string)
		if docID != "" && filename != "" {
			urls = append(urls, fmt.Sprintf("/images/%s/%s", docID, filename))
		}
	}
	return urls
}

// buildSources aggregates ranked chunks into one source per document,
// first-seen chunk wins.
func (s *RetrievalService) buildSources(ctx context.Context, rankedIDs []string, relevance map[string]float64) []models.SourceDocument {
	sources := []models.SourceDocument{}
	seen := make(map[string]bool)

	for _, chunkID := range rankedIDs {
		entry, err := s.index.Get(ctx, chunkID)
		if err != nil || entry == nil {
			continue
		}

		metadata := DeserializeMetadata(entry.Metadata)
		docID, _ := metadata["document_id"].(string)
		if docID == "" || seen[docID] {
			continue
		}
		seen[docID] = true

		snippet := entry.Text
		if truncated := truncateRunes(snippet, 200); truncated != snippet {
			snippet = truncated + "..."
		}

		sources = append(sources, models.SourceDocument{
			DocumentID:        docID,
			URL:               asString(metadata["url"]),
			Title:             asString(metadata["title"]),
			Domain:            asString(metadata["domain"]),
			Favicon:           asString(metadata["favicon"]),
			Timestamp:         asString(metadata["timestamp_readable"]),
			Snippet:           snippet,
			RelevanceScore:    relevance[chunkID],
			StructuredContent: asMap(metadata["structured_content"]),
			YouTubeVideos:     metadata["youtube_videos"],
			CleanHTML:         asString(metadata["clean_html"]),
		})
	}
	return sources
}

func (s *RetrievalService) synthesize(ctx context.Context, query string, textChunks []string) string {
	if s.completer == nil {
		return "Completion model not configured. Set GEMINI_API_KEY to enable responses."
	}
	if len(textChunks) == 0 {
		return "No relevant text chunks found for your query."
	}

	answer, err := s.completer.Complete(ctx, buildPrompt(query, textChunks))
	if err != nil {
		logger.Error("Answer synthesis failed", "error", err)
		return "I found relevant information but couldn't generate a response. Please check the results."
	}
	return answer
}

func buildPrompt(query string, textChunks []string) string {
	var context strings.Builder
	for i, chunk := range textChunks {
		fmt.Fprintf(&context, "Chunk %d:\n%s\n\n", i+1, chunk)
	}

	return fmt.Sprintf(`Based on the following context chunks from the user's saved notes, provide a clear, concise, and helpful response to their query.

Query: %s

Context:
%s
Instructions:
- Provide a direct, tailored answer based on the context
- If the context doesn't contain relevant information, say so briefly
- Keep the response concise and natural
- Don't mention "chunks" or technical details

Response:`, query, context.String())
}

// GetSource returns the full source view for one captured document
func (s *RetrievalService) GetSource(ctx context.Context, documentID string) (*models.SourceDocument, error) {
	entries, err := s.index.List(ctx, vectorindex.Filter{"document_id": documentID})
	if err != nil {
		return nil, fmt.Errorf("failed to load source entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrSourceNotFound
	}

	metadata := DeserializeMetadata(entries[0].Metadata)

	imageEntries, err := s.index.List(ctx, vectorindex.Filter{"document_id": documentID, "type": "image"})
	if err != nil {
		logger.Warn("Failed to load source images", "document_id", documentID, "error", err)
	}

	images := []models.SourceImage{}
	for _, img := range imageEntries {
		docID, _ := img.Metadata["document_id"].(string)
		filename, _ := img.Metadata["filename"].(string)
		if docID == "" || filename == "" {
			continue
		}
		images = append(images, models.SourceImage{
			URL:    fmt.Sprintf("/images/%s/%s", docID, filename),
			Alt:    asString(img.Metadata["alt_text"]),
			Width:  img.Metadata["width"],
			Height: img.Metadata["height"],
		})
	}

	structured := asMap(metadata["structured_content"])
	if len(images) > 0 {
		if structured == nil {
			structured = map[string]any{}
		}
		structured["images"] = images
	}

	snippet := truncateRunes(entries[0].Text, 200)

	return &models.SourceDocument{
		DocumentID:        documentID,
		URL:               asString(metadata["url"]),
		Title:             asString(metadata["title"]),
		Domain:            asString(metadata["domain"]),
		Favicon:           asString(metadata["favicon"]),
		Timestamp:         asString(metadata["timestamp_readable"]),
		Snippet:           snippet,
		RelevanceScore:    1.0,
		StructuredContent: structured,
		YouTubeVideos:     metadata["youtube_videos"],
		CleanHTML:         asString(metadata["clean_html"]),
	}, nil
}

// DeleteSource removes one document's entries and stored images
func (s *RetrievalService) DeleteSource(ctx context.Context, documentID string) (int64, error) {
	removed, err := s.index.Delete(ctx, vectorindex.Filter{"document_id": documentID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete entries: %w", err)
	}
	if removed == 0 {
		return 0, ErrSourceNotFound
	}

	if err := s.images.RemoveDocument(documentID); err != nil {
		logger.Warn("Failed to remove document images", "document_id", documentID, "error", err)
	}
	if err := s.keyword.Rebuild(ctx); err != nil {
		logger.Warn("Could not rebuild keyword index", "error", err)
	}
	return removed, nil
}

// Clear wipes the whole store: entries, keyword index, stored images
func (s *RetrievalService) Clear(ctx context.Context) error {
	if _, err := s.index.Delete(ctx, nil); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}
	if err := s.keyword.Rebuild(ctx); err != nil {
		logger.Warn("Could not rebuild keyword index", "error", err)
	}
	if err := s.images.RemoveAll(); err != nil {
		logger.Warn("Failed to clear stored images", "error", err)
	}
	return nil
}

// Stats summarizes the store contents
func (s *RetrievalService) Stats(ctx context.Context, collectionName string) (*models.StatsResponse, error) {
	entries, err := s.index.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	documents := make(map[string]bool)
	stats := &models.StatsResponse{
		TotalEntries:       int64(len(entries)),
		StorageBackend:     s.backend,
		CollectionName:     collectionName,
		EmbeddingDimension: s.dimension,
		ChunkingConfig: models.ChunkingConfig{
			ChunkSize:    s.chunker.ChunkSize,
			Overlap:      s.chunker.Overlap,
			MinChunkSize: s.chunker.MinChunkSize,
		},
	}

	for _, e := range entries {
		if docID, _ := e.Metadata["document_id"].(string); docID != "" {
			documents[docID] = true
		}

		entryType := asString(e.Metadata["type"])
		if entryType == "image" {
			stats.TotalImages++
			continue
		}

		stats.TotalTextEntries++
		if chunked, _ := e.Metadata["is_chunked"].(bool); chunked {
			stats.TotalChunks++
			if idx, ok := toFloat(e.Metadata["chunk_index"]); ok && idx == 0 {
				stats.ChunkedDocuments++
			}
		}
	}
	stats.UniqueDocuments = int64(len(documents))

	return stats, nil
}

// truncateRunes shortens s to at most n characters, never splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// toFloat normalizes the numeric types bson and json decoding produce
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
