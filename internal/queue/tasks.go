package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"knowledge-capture-platform/services"
)

const (
	TaskIngestDocument = "ingest:document"
)

type uploadedImagePayload struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"` // base64 over the wire
}

// IngestDocumentPayload carries a capture job through Redis to a worker
type IngestDocumentPayload struct {
	DocumentID     string                 `json:"document_id"`
	Text           string                 `json:"text"`
	Metadata       map[string]any         `json:"metadata"`
	EnableChunking bool                   `json:"enable_chunking"`
	ImageURLs      []string               `json:"image_urls"`
	UploadedImages []uploadedImagePayload `json:"uploaded_images"`
}

// NewIngestDocumentTask wraps an ingestion job as an asynq task
func NewIngestDocumentTask(job services.IngestJob) (*asynq.Task, error) {
	uploads := make([]uploadedImagePayload, 0, len(job.UploadedImages))
	for _, u := range job.UploadedImages {
		uploads = append(uploads, uploadedImagePayload{Filename: u.Filename, Content: u.Content})
	}

	payload, err := json.Marshal(IngestDocumentPayload{
		DocumentID:     job.DocumentID,
		Text:           job.Text,
		Metadata:       job.Metadata,
		EnableChunking: job.EnableChunking,
		ImageURLs:      job.ImageURLs,
		UploadedImages: uploads,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("default"),
	), nil
}

// QueueDispatcher enqueues jobs for a separate worker process
type QueueDispatcher struct {
	Client *asynq.Client
}

func (d *QueueDispatcher) Dispatch(job services.IngestJob) error {
	task, err := NewIngestDocumentTask(job)
	if err != nil {
		return fmt.Errorf("failed to create ingest task: %w", err)
	}
	if _, err := d.Client.Enqueue(task); err != nil {
		return fmt.Errorf("failed to enqueue ingest task: %w", err)
	}
	return nil
}

// Task handlers
type TaskProcessor struct {
	ingestion *services.IngestionService
}

func NewTaskProcessor(ingestion *services.IngestionService) *TaskProcessor {
	return &TaskProcessor{ingestion: ingestion}
}

func (p *TaskProcessor) IngestDocument(ctx context.Context, t *asynq.Task) error {
	var payload IngestDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing ingest task: document=%s", payload.DocumentID)

	uploads := make([]services.UploadedImage, 0, len(payload.UploadedImages))
	for _, u := range payload.UploadedImages {
		uploads = append(uploads, services.UploadedImage{Filename: u.Filename, Content: u.Content})
	}

	return p.ingestion.Process(ctx, services.IngestJob{
		DocumentID:     payload.DocumentID,
		Text:           payload.Text,
		Metadata:       payload.Metadata,
		EnableChunking: payload.EnableChunking,
		ImageURLs:      payload.ImageURLs,
		UploadedImages: uploads,
	})
}
