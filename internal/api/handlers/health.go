package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/taskhub-ops/taskhub-backend-go/pkg/utils"
)

// Health returns the health status of the service
func (h *Handlers) Health(c *gin.Context) {
	utils.SendSuccess(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "taskhub-backend-go",
		"clients":   h.hub.ClientCount(),
	})
}
