package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestWorkerPool_Dispatch(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	wp.Dispatch(TurnJob{UserID: 7, EquipmentID: 42})

	select {
	case job := <-wp.jobs:
		assert.Equal(t, TurnJob{UserID: 7, EquipmentID: 42}, job)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchPromotions(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(2, db, &webpush.Options{})

	wp.DispatchPromotions([]model.Reservation{
		{UserID: 1, EquipmentID: 10},
		{UserID: 2, EquipmentID: 10},
	})

	assert.Equal(t, TurnJob{UserID: 1, EquipmentID: 10}, <-wp.jobs)
	assert.Equal(t, TurnJob{UserID: 2, EquipmentID: 10}, <-wp.jobs)
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	t.Run("sends turn notification to every device", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "It's your turn on Leg Press 2! Tap your pass within the claim window to start.", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", 7, "test_p256dh", "test_auth", time.Now()))

		mock.ExpectQuery(`SELECT "name" FROM "equipment" WHERE "equipment"."id" = \$1 ORDER BY "equipment"."id" LIMIT \$[0-9]+`).
			WithArgs(int64(42), 1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Leg Press 2"))

		wp.Dispatch(TurnJob{UserID: 7, EquipmentID: 42})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(8)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", 8, "test_p256dh", "test_auth", time.Now()))

		mock.ExpectQuery(`SELECT "name" FROM "equipment" WHERE "equipment"."id" = \$1 ORDER BY "equipment"."id" LIMIT \$[0-9]+`).
			WithArgs(int64(42), 1).
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Leg Press 2"))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		wp.Dispatch(TurnJob{UserID: 8, EquipmentID: 42})

		// A short sleep to allow the worker to process the job
		time.Sleep(100 * time.Millisecond)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("falls back to equipment id when lookup fails", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		wp.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "It's your turn on machine 43! Tap your pass within the claim window to start.", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT \* FROM "push_subscriptions" WHERE user_id = \$1`).
			WithArgs(int64(9)).
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_id", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/fallback", 9, "test_p256dh", "test_auth", time.Now()))

		mock.ExpectQuery(`SELECT "name" FROM "equipment" WHERE "equipment"."id" = \$1 ORDER BY "equipment"."id" LIMIT \$[0-9]+`).
			WithArgs(int64(43), 1).
			WillReturnError(gorm.ErrRecordNotFound)

		wp.Dispatch(TurnJob{UserID: 9, EquipmentID: 43})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
