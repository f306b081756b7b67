package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"gym-access-backend/internal/hardware"
	"gym-access-backend/internal/model"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store      store.Store
	webpush    *webpush.Options
	signaler   hardware.Signaler
	workerPool *notification.WorkerPool
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, webpushOptions *webpush.Options, signaler hardware.Signaler, workerPool *notification.WorkerPool) *Handler {
	return &Handler{
		store:      s,
		webpush:    webpushOptions,
		signaler:   signaler,
		workerPool: workerPool,
	}
}

// notificationJob converts a promoted reservation into a worker job.
func notificationJob(r *model.Reservation) notification.TurnJob {
	return notification.TurnJob{UserID: r.UserID, EquipmentID: r.EquipmentID}
}

// abortStoreError translates store sentinels into HTTP responses.
func abortStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrEquipmentNotFound),
		errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, store.ErrReservationNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrEquipmentUnavailable),
		errors.Is(err, store.ErrSessionActive):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
