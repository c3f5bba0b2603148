package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/vectorindex"
)

// CleanupScheduler periodically removes image directories whose
// documents no longer exist in the index. Deletes leave orphans when
// the process dies between index delete and disk delete.
type CleanupScheduler struct {
	scheduler *gocron.Scheduler
	index     vectorindex.Index
	images    *ImageStore
}

func NewCleanupScheduler(index vectorindex.Index, images *ImageStore) *CleanupScheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &CleanupScheduler{
		scheduler: s,
		index:     index,
		images:    images,
	}
}

// Start schedules the orphan sweep at the given interval. The interval
// doubles as the grace period so directories still being filled by an
// in-flight ingestion are never swept.
func (c *CleanupScheduler) Start(interval time.Duration) error {
	_, err := c.scheduler.Every(interval).Tag("orphan-image-sweep").Do(func() {
		if err := c.SweepOrphans(context.Background(), interval); err != nil {
			logger.Error("Orphan image sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}
	c.scheduler.StartAsync()
	return nil
}

func (c *CleanupScheduler) Stop() {
	c.scheduler.Stop()
}

// SweepOrphans removes image directories with no matching index
// entries. Directories modified within olderThan are left alone: an
// ingestion writes its images before the batch commit, so a young
// directory with no entries may simply not be committed yet.
func (c *CleanupScheduler) SweepOrphans(ctx context.Context, olderThan time.Duration) error {
	docIDs, err := c.images.DocumentIDs()
	if err != nil {
		return err
	}

	removed := 0
	for _, docID := range docIDs {
		modTime, err := c.images.DocumentModTime(docID)
		if err != nil {
			continue
		}
		if time.Since(modTime) < olderThan {
			continue
		}
		count, err := c.index.Count(ctx, vectorindex.Filter{"document_id": docID})
		if err != nil {
			logger.Warn("Could not check document during sweep", "document_id", docID, "error", err)
			continue
		}
		if count > 0 {
			continue
		}
		if err := c.images.RemoveDocument(docID); err != nil {
			logger.Warn("Could not remove orphaned images", "document_id", docID, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.Info("Orphan image sweep completed", "removed", removed)
	}
	return nil
}
