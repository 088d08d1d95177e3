package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/eduverify/backend/internal/apperr"
)

// respondError translates a service error into the HTTP response.
// Internal errors are logged server-side and masked in the body.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= 500 {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}
