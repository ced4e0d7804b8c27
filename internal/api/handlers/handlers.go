// Package handlers contains the HTTP handlers for the monitoring API.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/taskhub-ops/taskhub-backend-go/internal/config"
	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
	"github.com/taskhub-ops/taskhub-backend-go/internal/websocket"
	"github.com/taskhub-ops/taskhub-backend-go/pkg/errors"
	"github.com/taskhub-ops/taskhub-backend-go/pkg/utils"
)

// Handlers aggregates the dependencies shared by all HTTP handlers
type Handlers struct {
	cfg    *config.Config
	log    *logrus.Logger
	engine *monitoring.Engine
	rules  monitoring.RuleStore
	alerts monitoring.AlertStore
	plans  monitoring.PlanStore
	tests  monitoring.TestStore
	hub    *websocket.Hub
}

// NewHandlers creates the handler set
func NewHandlers(cfg *config.Config, log *logrus.Logger, engine *monitoring.Engine,
	rules monitoring.RuleStore, alerts monitoring.AlertStore,
	plans monitoring.PlanStore, tests monitoring.TestStore, hub *websocket.Hub) *Handlers {
	return &Handlers{
		cfg:    cfg,
		log:    log,
		engine: engine,
		rules:  rules,
		alerts: alerts,
		plans:  plans,
		tests:  tests,
		hub:    hub,
	}
}

// sendError maps an error to a JSON error response. Store lookups return
// plain wrapped errors, so "not found" is detected by message.
func (h *Handlers) sendError(c *gin.Context, err error) {
	status := errors.GetStatusCode(err)
	if status == http.StatusInternalServerError && strings.Contains(err.Error(), "not found") {
		status = http.StatusNotFound
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).Error("Request failed")
	}
	utils.SendError(c, status, err.Error())
}
