package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/internal/telemetry"
	"knowledge-capture-platform/models"
	"knowledge-capture-platform/services"
	"knowledge-capture-platform/utils"
)

// SetupCaptureRoutes registers the capture endpoint
func SetupCaptureRoutes(router *gin.Engine, dispatcher services.Dispatcher, metrics *telemetry.Metrics) {
	router.POST("/save", saveContent(dispatcher, metrics))
}

// saveContent accepts a multipart capture and queues it for background
// indexing. The response goes out before any embedding work starts.
func saveContent(dispatcher services.Dispatcher, metrics *telemetry.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		text := c.PostForm("text")

		metadata := map[string]any{}
		if raw := c.DefaultPostForm("metadata", "{}"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
				logger.Warn("Ignoring unparseable metadata", "error", err)
				metadata = map[string]any{}
			}
		}

		enableChunking := true
		if raw := c.PostForm("enable_chunking"); raw != "" {
			if parsed, err := strconv.ParseBool(raw); err == nil {
				enableChunking = parsed
			}
		}

		var imageURLs []string
		if raw := c.DefaultPostForm("image_urls", "[]"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &imageURLs); err != nil {
				logger.Warn("Ignoring unparseable image_urls", "error", err)
				imageURLs = nil
			}
		}

		// Uploads are read fully into memory so the background job owns
		// them after this request ends.
		var uploads []services.UploadedImage
		if form, err := c.MultipartForm(); err == nil && form != nil {
			for _, fileHeader := range form.File["images"] {
				file, err := fileHeader.Open()
				if err != nil {
					logger.Warn("Skipping unreadable upload", "filename", fileHeader.Filename, "error", err)
					continue
				}
				content, err := io.ReadAll(file)
				file.Close()
				if err != nil {
					logger.Warn("Skipping unreadable upload", "filename", fileHeader.Filename, "error", err)
					continue
				}
				uploads = append(uploads, services.UploadedImage{
					Filename: fileHeader.Filename,
					Content:  content,
				})
			}
		}

		docID := uuid.New().String()

		err := dispatcher.Dispatch(services.IngestJob{
			DocumentID:     docID,
			Text:           text,
			Metadata:       metadata,
			EnableChunking: enableChunking,
			ImageURLs:      imageURLs,
			UploadedImages: uploads,
		})
		if err != nil {
			logger.Error("Failed to dispatch ingestion", "document_id", docID, "error", err)
			utils.RespondWithInternalError(c, "Failed to queue content for processing", nil)
			return
		}

		if metrics != nil {
			metrics.RecordDocumentSaved(text != "", len(imageURLs)+len(uploads))
		}

		logger.Info("Capture accepted",
			"document_id", docID,
			"text_length", len(text),
			"image_urls", len(imageURLs),
			"uploads", len(uploads),
		)

		c.JSON(http.StatusAccepted, models.SaveResponse{
			Status:              "success",
			Message:             "Content received and queued for processing",
			DocumentID:          docID,
			ProcessingStatus:    "queued",
			TextLength:          len(text),
			ImageURLsCount:      len(imageURLs),
			UploadedImagesCount: len(uploads),
		})
	}
}
