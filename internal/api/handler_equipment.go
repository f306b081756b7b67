package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/model"
)

func secondsOrDefault(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

type operationalStateRequest struct {
	State model.OperationalState `json:"state" binding:"required"`
}

// SetOperationalState handles PATCH /api/equipment/:equipment_id/operational-state.
// Operator only; authorization is enforced by the route middleware.
func (h *Handler) SetOperationalState(c *gin.Context) {
	equipmentID, err := strconv.ParseInt(c.Param("equipment_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid equipment id"})
		return
	}

	var req operationalStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state is required"})
		return
	}
	if req.State != model.OperationalNormal && req.State != model.OperationalMaintenance {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be NORMAL or MAINTENANCE"})
		return
	}

	if err := h.store.SetOperationalState(c.Request.Context(), equipmentID, req.State); err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"equipment_id": equipmentID, "operational_state": req.State})
}

type sweepRequest struct {
	TimeoutSeconds int `json:"timeout_seconds"`
	BatchSize      int `json:"batch_size"`
}

// SweepExpired handles POST /api/admin/sweep, a manual trigger for the same
// per-invocation algorithm the background sweeper runs. Operator only.
func (h *Handler) SweepExpired(timeoutSeconds, batchSize int) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := sweepRequest{TimeoutSeconds: timeoutSeconds, BatchSize: batchSize}
		// Body is optional; it may override the configured defaults.
		_ = c.ShouldBindJSON(&req)

		result, err := h.store.SweepExpired(c.Request.Context(),
			secondsOrDefault(req.TimeoutSeconds, timeoutSeconds), req.BatchSize)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
			return
		}

		if h.workerPool != nil {
			h.workerPool.DispatchPromotions(result.Promoted)
		}

		c.JSON(http.StatusOK, gin.H{
			"expired_count":  result.Expired,
			"notified_count": result.Notified,
		})
	}
}
