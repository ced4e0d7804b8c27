package handlers

import (
	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades the request to an event stream subscription
func (h *Handlers) WebSocketHandler(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
