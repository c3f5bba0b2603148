package routes

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"knowledge-capture-platform/services"
	"knowledge-capture-platform/utils"
)

// SetupImageRoutes registers the stored image endpoint
func SetupImageRoutes(router *gin.Engine, images *services.ImageStore) {
	router.GET("/images/:document_id/:filename", serveImage(images))
}

func serveImage(images *services.ImageStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		documentID := c.Param("document_id")
		filename := c.Param("filename")

		path, err := images.ImagePath(documentID, filename)
		if err != nil {
			utils.RespondWithNotFound(c, "Image not found")
			return
		}

		c.Header("Content-Type", utils.ContentTypeForExtension(filepath.Ext(filename)))
		c.File(path)
	}
}
