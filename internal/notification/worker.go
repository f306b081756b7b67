package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// TurnJob tells a worker whose turn notification to deliver.
type TurnJob struct {
	UserID      int64
	EquipmentID int64
}

// WorkerPool manages a pool of workers that push "your turn" notifications
// to users promoted to the NOTIFIED slot of a machine's waiting line.
type WorkerPool struct {
	size    int
	jobs    chan TurnJob
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan TurnJob, size), // Buffered channel
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.notifyTurn(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(job TurnJob) {
	wp.jobs <- job
}

// DispatchPromotions queues one job per promoted reservation.
func (wp *WorkerPool) DispatchPromotions(promoted []model.Reservation) {
	for _, r := range promoted {
		wp.Dispatch(TurnJob{UserID: r.UserID, EquipmentID: r.EquipmentID})
	}
}

// notifyTurn fetches the user's subscriptions and tells every device that
// the machine is ready for them.
func (wp *WorkerPool) notifyTurn(ctx context.Context, job TurnJob) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Where("user_id = ?", job.UserID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for user %d: %v", job.UserID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var equipment model.Equipment
	machineLabel := fmt.Sprintf("machine %d", job.EquipmentID)
	if err := wp.db.WithContext(ctx).
		Select("name").
		First(&equipment, job.EquipmentID).Error; err != nil {
		log.Printf("Error fetching equipment %d: %v", job.EquipmentID, err)
	} else if equipment.Name != "" {
		machineLabel = equipment.Name
	}

	message := fmt.Sprintf("It's your turn on %s! Tap your pass within the claim window to start.", machineLabel)
	log.Printf("Sending %d turn notifications for user %d, equipment %d", len(subscriptions), job.UserID, job.EquipmentID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
