package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"knowledge-capture-platform/internal/logger"
	"knowledge-capture-platform/models"
	"knowledge-capture-platform/services"
	"knowledge-capture-platform/utils"
)

// SetupQueryRoutes registers retrieval and store management endpoints
func SetupQueryRoutes(router *gin.Engine, retrieval *services.RetrievalService, collectionName string) {
	router.POST("/query", queryContent(retrieval))
	router.GET("/source/:document_id", getSource(retrieval))
	router.DELETE("/source/:document_id", deleteSource(retrieval))
	router.GET("/stats", getStats(retrieval, collectionName))
	router.DELETE("/clear", clearStore(retrieval))
}

func queryContent(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid query request", err.Error())
			return
		}

		opts := req.Options()
		if opts.TopK <= 0 {
			utils.RespondWithBadRequest(c, "top_k must be positive", nil)
			return
		}

		resp, err := retrieval.Query(c.Request.Context(), opts)
		if err != nil {
			logger.Error("Query failed", "query", opts.Query, "error", err)
			utils.RespondWithInternalError(c, "Error querying content", nil)
			return
		}

		c.JSON(http.StatusOK, resp)
	}
}

func getSource(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("document_id")

		source, err := retrieval.GetSource(c.Request.Context(), documentID)
		if errors.Is(err, services.ErrSourceNotFound) {
			utils.RespondWithNotFound(c, "Source document not found")
			return
		}
		if err != nil {
			logger.Error("Failed to load source", "document_id", documentID, "error", err)
			utils.RespondWithInternalError(c, "Error retrieving source", nil)
			return
		}

		c.JSON(http.StatusOK, source)
	}
}

func deleteSource(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("document_id")

		removed, err := retrieval.DeleteSource(c.Request.Context(), documentID)
		if errors.Is(err, services.ErrSourceNotFound) {
			utils.RespondWithNotFound(c, "Source document not found")
			return
		}
		if err != nil {
			logger.Error("Failed to delete source", "document_id", documentID, "error", err)
			utils.RespondWithInternalError(c, "Error deleting source", nil)
			return
		}

		c.JSON(http.StatusOK, models.DeleteSourceResponse{
			Status:         "success",
			DocumentID:     documentID,
			EntriesRemoved: removed,
		})
	}
}

func getStats(retrieval *services.RetrievalService, collectionName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := retrieval.Stats(c.Request.Context(), collectionName)
		if err != nil {
			logger.Error("Failed to compute stats", "error", err)
			utils.RespondWithInternalError(c, "Error computing statistics", nil)
			return
		}

		c.JSON(http.StatusOK, stats)
	}
}

func clearStore(retrieval *services.RetrievalService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := retrieval.Clear(c.Request.Context()); err != nil {
			logger.Error("Failed to clear store", "error", err)
			utils.RespondWithInternalError(c, "Error clearing store", nil)
			return
		}

		c.JSON(http.StatusOK, models.ClearResponse{
			Status:  "success",
			Message: "All embeddings and images cleared",
		})
	}
}
