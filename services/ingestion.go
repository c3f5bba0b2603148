package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/telemetry"
	"knowledge-capture-platform/internal/vectorindex"
)

// Embedder produces vectors for text and stored image files
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImageFile(ctx context.Context, filePath string) ([]float32, error)
}

// UploadedImage carries a multipart upload into the background job
type UploadedImage struct {
	Filename string
	Content  []byte
}

// IngestJob is everything needed to index one captured document
type IngestJob struct {
	DocumentID     string
	Text           string
	Metadata       map[string]any
	EnableChunking bool
	ImageURLs      []string
	UploadedImages []UploadedImage
}

// Dispatcher hands an accepted job off for background processing
type Dispatcher interface {
	Dispatch(job IngestJob) error
}

// IngestionService turns captured documents into index entries: chunked
// annotated text plus embedded images, written in one batch.
type IngestionService struct {
	index    vectorindex.Index
	embedder Embedder
	chunker  *Chunker
	keyword  *KeywordIndex
	images   *ImageStore
	metrics  *telemetry.Metrics
}

func NewIngestionService(
	index vectorindex.Index,
	embedder Embedder,
	chunker *Chunker,
	keyword *KeywordIndex,
	images *ImageStore,
	metrics *telemetry.Metrics,
) *IngestionService {
	return &IngestionService{
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		keyword:  keyword,
		images:   images,
		metrics:  metrics,
	}
}

// GoroutineDispatcher runs jobs on detached goroutines. The capture
// endpoint answers before any of this work starts.
type GoroutineDispatcher struct {
	Service *IngestionService
}

func (d *GoroutineDispatcher) Dispatch(job IngestJob) error {
	go func() {
		if err := d.Service.Process(context.Background(), job); err != nil {
			logger.Error("Background ingestion failed", "document_id", job.DocumentID, "error", err)
		}
	}()
	return nil
}

func timeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// enhanceTimestamp turns an ISO timestamp into a human phrase like
// "Tuesday morning, 09:14 AM". Embedding this into chunk text lets
// natural language time queries match.
func enhanceTimestamp(timestamp string) string {
	if timestamp == "" {
		return ""
	}
	clean := strings.ReplaceAll(timestamp, "T", " ")
	if i := strings.Index(clean, "."); i >= 0 {
		clean = clean[:i]
	}
	dt, err := time.Parse("2006-01-02 15:04:05", clean)
	if err != nil {
		return timestamp
	}
	return fmt.Sprintf("%s %s, %s", dt.Weekday().String(), timeOfDay(dt.Hour()), dt.Format("03:04 PM"))
}

// Process runs the full background pipeline for one document. Failures
// on individual chunks or images are logged and skipped; a commit
// failure is logged and the job ends without retry.
func (s *IngestionService) Process(ctx context.Context, job IngestJob) error {
	start := time.Now()
	currentTime := float64(start.Unix())
	logger.Info("Background processing started", "document_id", job.DocumentID)

	serialized := SerializeMetadata(job.Metadata)

	var entries []vectorindex.Entry

	// Text
	textChunks := 0
	if strings.TrimSpace(job.Text) != "" {
		var chunks []string
		if job.EnableChunking {
			chunks = s.chunker.Chunk(job.Text)
		} else {
			chunks = []string{job.Text}
		}
		textChunks = len(chunks)

		rawTimestamp, _ := job.Metadata["timestamp"].(string)
		enhanced := enhanceTimestamp(rawTimestamp)

		for idx, chunk := range chunks {
			chunkText := chunk
			if enhanced != "" {
				chunkText = fmt.Sprintf("%s\n[Saved: %s]", chunk, enhanced)
			}

			vector, err := s.embedder.EmbedText(ctx, chunkText)
			if err != nil {
				logger.Error("Failed to embed text chunk", "document_id", job.DocumentID, "chunk", idx, "error", err)
				continue
			}

			metadata := make(map[string]any, len(serialized)+9)
			for k, v := range serialized {
				metadata[k] = v
			}
			metadata["type"] = "text"
			metadata["document_id"] = job.DocumentID
			metadata["chunk_index"] = idx
			metadata["total_chunks"] = textChunks
			metadata["is_chunked"] = textChunks > 1
			metadata["chunk_size"] = len(chunk)
			metadata["timestamp_unix"] = currentTime
			metadata["timestamp_readable"] = rawTimestamp

			entries = append(entries, vectorindex.Entry{
				ID:       fmt.Sprintf("%s_chunk_%d", job.DocumentID, idx),
				Text:     chunkText,
				Metadata: metadata,
				Vector:   vector,
			})
		}
		logger.Debug("Text chunks prepared", "document_id", job.DocumentID, "chunks", textChunks)
	}

	// Images, processed concurrently
	if len(job.UploadedImages) > 0 || len(job.ImageURLs) > 0 {
		imageDir, err := s.images.DocumentDir(job.DocumentID)
		if err != nil {
			logger.Error("Failed to create image directory", "document_id", job.DocumentID, "error", err)
		} else {
			entries = append(entries, s.processImages(ctx, job, serialized, imageDir, currentTime)...)
		}
	}

	imagesSaved := len(entries) - textChunks
	if imagesSaved < 0 {
		imagesSaved = 0
	}

	status := "empty"
	if len(entries) > 0 {
		status = "committed"
		if err := s.index.Upsert(ctx, entries); err != nil {
			// No retry; the document stays absent from the index.
			logger.Error("Failed to commit entries", "document_id", job.DocumentID, "error", err)
			status = "commit_failed"
		} else if textChunks > 0 {
			if err := s.keyword.Rebuild(ctx); err != nil {
				logger.Warn("Could not rebuild keyword index", "error", err)
			}
		}
	}

	if s.metrics != nil {
		s.metrics.RecordIngest(int64(len(entries)), time.Since(start).Seconds(), status)
	}

	logger.Info("Background processing completed",
		"document_id", job.DocumentID,
		"chunks", textChunks,
		"images", imagesSaved,
		"status", status,
	)
	return nil
}

func (s *IngestionService) processImages(
	ctx context.Context,
	job IngestJob,
	serialized map[string]any,
	imageDir string,
	currentTime float64,
) []vectorindex.Entry {
	total := len(job.UploadedImages) + len(job.ImageURLs)
	results := make(chan vectorindex.Entry, total)
	var wg sync.WaitGroup

	for idx, upload := range job.UploadedImages {
		wg.Add(1)
		go func(idx int, upload UploadedImage) {
			defer wg.Done()
			entry, err := s.processUpload(ctx, job.DocumentID, idx, upload, serialized, imageDir, currentTime)
			if err != nil {
				logger.Error("Failed to process uploaded image", "document_id", job.DocumentID, "index", idx, "error", err)
				return
			}
			results <- entry
		}(idx, upload)
	}

	for idx, imageURL := range job.ImageURLs {
		wg.Add(1)
		go func(idx int, imageURL string) {
			defer wg.Done()
			entry, err := s.processImageURL(ctx, job, idx, imageURL, serialized, imageDir, currentTime)
			if err != nil {
				logger.Error("Failed to process image URL", "document_id", job.DocumentID, "url", imageURL, "error", err)
				return
			}
			results <- entry
		}(idx, imageURL)
	}

	wg.Wait()
	close(results)

	entries := make([]vectorindex.Entry, 0, total)
	for entry := range results {
		entries = append(entries, entry)
	}
	return entries
}

func (s *IngestionService) processUpload(
	ctx context.Context,
	docID string,
	idx int,
	upload UploadedImage,
	serialized map[string]any,
	imageDir string,
	currentTime float64,
) (vectorindex.Entry, error) {
	ext := filepath.Ext(upload.Filename)
	if ext == "" {
		ext = ".jpg"
	}
	saveFilename := fmt.Sprintf("image_%d%s", idx, ext)
	filePath := filepath.Join(imageDir, saveFilename)

	if err := s.images.SaveUpload(upload.Content, filePath); err != nil {
		return vectorindex.Entry{}, err
	}

	vector, err := s.embedder.EmbedImageFile(ctx, filePath)
	if err != nil {
		return vectorindex.Entry{}, err
	}

	altText, _ := serialized[fmt.Sprintf("image_%d_alt", idx)].(string)
	document := fmt.Sprintf("[IMAGE] Uploaded image %d", idx)
	if altText != "" {
		document = "[IMAGE] " + altText
	}

	metadata := map[string]any{
		"type":           "image",
		"document_id":    docID,
		"image_index":    idx,
		"file_path":      filePath,
		"filename":       saveFilename,
		"alt_text":       altText,
		"source":         "upload",
		"timestamp_unix": currentTime,
	}
	for k, v := range serialized {
		metadata[k] = v
	}
	for k, v := range s.images.Dimensions(filePath) {
		metadata[k] = v
	}

	return vectorindex.Entry{
		ID:       fmt.Sprintf("%s_image_%d", docID, idx),
		Text:     document,
		Metadata: metadata,
		Vector:   vector,
	}, nil
}

func (s *IngestionService) processImageURL(
	ctx context.Context,
	job IngestJob,
	idx int,
	imageURL string,
	serialized map[string]any,
	imageDir string,
	currentTime float64,
) (vectorindex.Entry, error) {
	filename := fmt.Sprintf("image_url_%d%s", idx, ExtensionFromURL(imageURL))
	filePath := filepath.Join(imageDir, filename)

	if err := s.images.Download(ctx, imageURL, filePath); err != nil {
		return vectorindex.Entry{}, err
	}

	vector, err := s.embedder.EmbedImageFile(ctx, filePath)
	if err != nil {
		return vectorindex.Entry{}, err
	}

	altText, _ := serialized[fmt.Sprintf("image_url_%d_alt", idx)].(string)
	document := fmt.Sprintf("[IMAGE] Image from %s", imageURL)
	if altText != "" {
		document = "[IMAGE] " + altText
	}

	metadata := map[string]any{
		"type":           "image",
		"document_id":    job.DocumentID,
		"image_index":    len(job.UploadedImages) + idx,
		"file_path":      filePath,
		"filename":       filename,
		"source_url":     imageURL,
		"alt_text":       altText,
		"source":         "url",
		"timestamp_unix": currentTime,
	}
	for k, v := range serialized {
		metadata[k] = v
	}
	for k, v := range s.images.Dimensions(filePath) {
		metadata[k] = v
	}

	return vectorindex.Entry{
		ID:       fmt.Sprintf("%s_image_url_%d", job.DocumentID, idx),
		Text:     document,
		Metadata: metadata,
		Vector:   vector,
	}, nil
}
