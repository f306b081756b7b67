package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/hardware"
	"gym-access-backend/internal/mw"
)

type startSessionRequest struct {
	NFCTagID string `json:"nfc_tag_id" binding:"required"`
}

// StartSession handles POST /api/workouts/start: an NFC tap on a machine.
func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nfc_tag_id is required"})
		return
	}

	result, err := h.store.StartSession(c.Request.Context(), mw.UserID(c), req.NFCTagID)
	if err != nil {
		abortStoreError(c, err)
		return
	}

	// Fire-and-forget: a controller hiccup must not fail the session.
	if h.signaler != nil {
		go h.signaler.Signal(context.Background(), result.Equipment, hardware.CommandUnlock)
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":        result.Session.ID,
		"equipment_id":      result.Equipment.ID,
		"allocated_minutes": result.Session.AllocatedMinutes,
		"kind":              result.Session.Kind,
		"start_time":        result.Session.StartTime,
	})
}

// EndSession handles POST /api/workouts/end.
func (h *Handler) EndSession(c *gin.Context) {
	result, err := h.store.EndSession(c.Request.Context(), mw.UserID(c))
	if err != nil {
		abortStoreError(c, err)
		return
	}

	if h.signaler != nil {
		go h.signaler.Signal(context.Background(), result.Equipment, hardware.CommandLock)
	}
	if h.workerPool != nil && result.Promoted != nil {
		h.workerPool.Dispatch(notificationJob(result.Promoted))
	}

	c.JSON(http.StatusOK, gin.H{"message": "session ended"})
}

// GetCurrentSession handles GET /api/workouts/session.
func (h *Handler) GetCurrentSession(c *gin.Context) {
	session, err := h.store.OpenSession(c.Request.Context(), mw.UserID(c))
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": session, "equipment": session.Equipment})
}
