package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskhub-ops/taskhub-backend-go/internal/core/monitoring"
	"github.com/taskhub-ops/taskhub-backend-go/pkg/utils"
)

// CreatePerformanceTest registers a performance test definition
func (h *Handlers) CreatePerformanceTest(c *gin.Context) {
	var test monitoring.PerformanceTest
	if err := c.ShouldBindJSON(&test); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid test payload: "+err.Error())
		return
	}
	if test.Name == "" {
		utils.SendError(c, http.StatusBadRequest, "Test name is required")
		return
	}
	if test.ID == "" {
		test.ID = uuid.New().String()
	}
	test.CreatedAt = time.Now()

	if err := h.tests.CreateTest(c.Request.Context(), &test); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendCreated(c, test)
}

// GetPerformanceTest returns a single test with its baseline
func (h *Handlers) GetPerformanceTest(c *gin.Context) {
	test, err := h.tests.GetTest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, test)
}

// ListPerformanceTests returns all registered tests
func (h *Handlers) ListPerformanceTests(c *gin.Context) {
	tests, err := h.tests.ListTests(c.Request.Context())
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, tests, gin.H{"count": len(tests)})
}

// SetTestBaseline replaces the comparison baseline for a test. Verdicts on
// already recorded results are left untouched.
func (h *Handlers) SetTestBaseline(c *gin.Context) {
	var baseline monitoring.TestBaseline
	if err := c.ShouldBindJSON(&baseline); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid baseline payload: "+err.Error())
		return
	}
	if baseline.RecordedAt.IsZero() {
		baseline.RecordedAt = time.Now()
	}

	if err := h.tests.SetBaseline(c.Request.Context(), c.Param("id"), &baseline); err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccess(c, baseline)
}

// RecordTestResult stores a test run and returns it with the regression verdict
func (h *Handlers) RecordTestResult(c *gin.Context) {
	var result monitoring.TestResult
	if err := c.ShouldBindJSON(&result); err != nil {
		utils.SendError(c, http.StatusBadRequest, "Invalid result payload: "+err.Error())
		return
	}
	result.TestID = c.Param("id")
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now()
	}

	stored, err := h.engine.RecordTestResult(c.Request.Context(), &result)
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendCreated(c, stored)
}

// ListTestResults returns the recorded runs of a test, oldest first
func (h *Handlers) ListTestResults(c *gin.Context) {
	results, err := h.tests.ListResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	utils.SendSuccessWithMeta(c, results, gin.H{"count": len(results)})
}
