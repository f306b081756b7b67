package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/mw"
	"gym-access-backend/internal/store"
)

type joinQueueRequest struct {
	EquipmentID int64 `json:"equipment_id" binding:"required"`
}

// JoinQueue handles POST /api/workouts/queue. Calling it again while the
// entry is active reports the existing entry rather than erroring, so the
// app can treat it as a refresh.
func (h *Handler) JoinQueue(c *gin.Context) {
	var req joinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "equipment_id is required"})
		return
	}

	ticket, err := h.store.JoinQueue(c.Request.Context(), mw.UserID(c), req.EquipmentID)
	if err != nil {
		abortStoreError(c, err)
		return
	}

	status := http.StatusOK
	if ticket.Created {
		status = http.StatusCreated
	}
	c.JSON(status, queueTicketResponse(ticket))
}

type leaveQueueRequest struct {
	ReservationID int64 `json:"reservation_id"`
	EquipmentID   int64 `json:"equipment_id"`
}

// LeaveQueue handles POST /api/workouts/queue/leave. The entry may be named
// by reservation id or by equipment id.
func (h *Handler) LeaveQueue(c *gin.Context) {
	var req leaveQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil || (req.ReservationID == 0 && req.EquipmentID == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "reservation_id or equipment_id is required"})
		return
	}

	result, err := h.store.LeaveQueue(c.Request.Context(), mw.UserID(c), store.QueueRef{
		ReservationID: req.ReservationID,
		EquipmentID:   req.EquipmentID,
	})
	if err != nil {
		abortStoreError(c, err)
		return
	}

	if h.workerPool != nil && result.Promoted != nil {
		h.workerPool.Dispatch(notificationJob(result.Promoted))
	}

	c.JSON(http.StatusOK, gin.H{"waiting_count": result.WaitingCount})
}

// GetQueueStatus handles GET /api/workouts/queue/:equipment_id.
func (h *Handler) GetQueueStatus(c *gin.Context) {
	equipmentID, err := strconv.ParseInt(c.Param("equipment_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid equipment id"})
		return
	}

	ticket, err := h.store.QueueStatus(c.Request.Context(), mw.UserID(c), equipmentID)
	if err != nil {
		abortStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, queueTicketResponse(ticket))
}

func queueTicketResponse(ticket store.QueueTicket) gin.H {
	return gin.H{
		"reservation_id": ticket.Reservation.ID,
		"equipment_id":   ticket.Reservation.EquipmentID,
		"status":         ticket.Reservation.Status,
		"position":       ticket.Position,
		"waiting_count":  ticket.WaitingCount,
	}
}
