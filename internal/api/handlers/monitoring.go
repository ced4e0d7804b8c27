package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
	"github.com/taskhub-ops/taskhub-backend-go/pkg/utils"
)

// CreateAlertRule registers a new alert rule and starts evaluating it
func (h *Handlers) CreateAlertRule(c *gin.Context) {
	var rule monitoring.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid rule payload: "+err.Error())
		return
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := h.engine.RegisterRule(c.Request.Context(), &rule); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendCreated(c, rule)
}

// GetAlertRule returns a single alert rule
func (h *Handlers) GetAlertRule(c *gin.Context) {
	rule, err := h.rules.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// ListAlertRules returns all alert rules
func (h *Handlers) ListAlertRules(c *gin.Context) {
	rules, err := h.rules.ListRules(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, rules, gin.H{"count": len(rules)})
}

// UpdateAlertRule replaces an alert rule and restarts its evaluation loop
func (h *Handlers) UpdateAlertRule(c *gin.Context) {
	var rule monitoring.AlertRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid rule payload: "+err.Error())
		return
	}
	rule.ID = c.Param("id")
	rule.UpdatedAt = time.Now()

	if err := h.engine.UpdateRule(c.Request.Context(), &rule); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, rule)
}

// DeleteAlertRule removes a rule and stops its evaluation loop
func (h *Handlers) DeleteAlertRule(c *gin.Context) {
	if err := h.engine.RemoveRule(c.Request.Context(), c.Param("id")); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"deleted": c.Param("id")})
}

// ListAlerts returns alerts, optionally filtered by ?status=
func (h *Handlers) ListAlerts(c *gin.Context) {
	status := monitoring.AlertStatus(c.Query("status"))
	alerts, err := h.alerts.ListAlerts(c.Request.Context(), status)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, alerts, gin.H{"count": len(alerts)})
}

// GetAlert returns a single alert with its history
func (h *Handlers) GetAlert(c *gin.Context) {
	alert, err := h.alerts.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, alert)
}

type alertActionRequest struct {
	User string `json:"user"`
}

// AcknowledgeAlert marks an active alert as acknowledged and stops escalation
func (h *Handlers) AcknowledgeAlert(c *gin.Context) {
	var req alertActionRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.engine.Lifecycle().Acknowledge(c.Request.Context(), c.Param("id"), req.User); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"acknowledged": c.Param("id")})
}

// ResolveAlert resolves an alert manually
func (h *Handlers) ResolveAlert(c *gin.Context) {
	var req alertActionRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.engine.Lifecycle().Resolve(c.Request.Context(), c.Param("id"), req.User); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"resolved": c.Param("id")})
}

// CreateCapacityPlan stores a new capacity plan
func (h *Handlers) CreateCapacityPlan(c *gin.Context) {
	var plan monitoring.CapacityPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid plan payload: "+err.Error())
		return
	}
	if plan.ID == "" {
		plan.ID = uuid.New().String()
	}
	plan.UpdatedAt = time.Now()

	if err := plan.Validate(); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.plans.CreatePlan(c.Request.Context(), &plan); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendCreated(c, plan)
}

// GetCapacityPlan returns a single capacity plan
func (h *Handlers) GetCapacityPlan(c *gin.Context) {
	plan, err := h.plans.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, plan)
}

// ListCapacityPlans returns all capacity plans
func (h *Handlers) ListCapacityPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, plans, gin.H{"count": len(plans)})
}

// UpdateCapacityPlan replaces a capacity plan
func (h *Handlers) UpdateCapacityPlan(c *gin.Context) {
	var plan monitoring.CapacityPlan
	if err := c.ShouldBindJSON(&plan); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid plan payload: "+err.Error())
		return
	}
	plan.ID = c.Param("id")
	plan.UpdatedAt = time.Now()

	if err := plan.Validate(); err != nil {
		utils.SendError(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.plans.UpdatePlan(c.Request.Context(), &plan); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, plan)
}

// DeleteCapacityPlan removes a capacity plan
func (h *Handlers) DeleteCapacityPlan(c *gin.Context) {
	id := c.Param("id")
	if err := h.plans.DeletePlan(c.Request.Context(), id); err != nil {
		h.sendError(c, err)
		return
	}
	h.engine.Projector().Forget(id)
	utils.SendSuccess(c, gin.H{"deleted": id})
}

// RecomputeCapacityPlan refreshes a plan's projection on demand
func (h *Handlers) RecomputeCapacityPlan(c *gin.Context) {
	plan, err := h.plans.GetPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	updated, err := h.engine.Projector().Recompute(c.Request.Context(), plan)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, updated)
}
