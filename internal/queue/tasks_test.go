package queue

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
)

func TestIngestDocumentMalformedPayloadSkipsRetry(t *testing.T) {
	p := NewTaskProcessor(nil)
	task := asynq.NewTask(TaskIngestDocument, []byte("{not json"))

	err := p.IngestDocument(context.Background(), task)
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, asynq.SkipRetry) {
		t.Errorf("malformed payload must not be retried: %v", err)
	}
	if !strings.Contains(err.Error(), "invalid character") {
		t.Errorf("error should carry the decode failure detail: %v", err)
	}
}
