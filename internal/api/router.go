package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gym-access-backend/config"
	"gym-access-backend/internal/hardware"
	"gym-access-backend/internal/mw"
	"gym-access-backend/internal/notification"
	"gym-access-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, webpushOptions *webpush.Options,
	signaler hardware.Signaler, workerPool *notification.WorkerPool) *gin.Engine {
	r := gin.Default()

	db := s.DB()
	handler := NewHandler(s, webpushOptions, signaler, workerPool)

	rateLimit := rate.Limit(cfg.Server.RateLimitPerSec)
	if rateLimit <= 0 {
		rateLimit = 10
	}
	burst := cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	rateLimiter := mw.RateLimiter(rateLimit, burst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(mw.Auth(cfg.Auth.JWTSecret), rateLimiter)
	{
		// Listings are user-independent and cheap to cache briefly.
		api.GET("/gyms", caching, GetGyms(db))
		api.GET("/gyms/:gym_id/equipment", caching, GetGymEquipment(db))

		api.POST("/workouts/start", handler.StartSession)
		api.POST("/workouts/end", handler.EndSession)
		api.GET("/workouts/session", handler.GetCurrentSession)

		api.POST("/workouts/queue", handler.JoinQueue)
		api.POST("/workouts/queue/leave", handler.LeaveQueue)
		api.GET("/workouts/queue/:equipment_id", handler.GetQueueStatus)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		admin := api.Group("")
		admin.Use(mw.RequireOperator())
		{
			admin.PATCH("/equipment/:equipment_id/operational-state", handler.SetOperationalState)
			admin.POST("/admin/sweep", handler.SweepExpired(cfg.Sweeper.TimeoutSeconds, cfg.Sweeper.BatchSize))
		}
	}

	return r
}
