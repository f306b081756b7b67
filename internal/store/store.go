package store

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/predictor"
)

// Store defines the interface for all database operations around sessions
// and the per-machine waiting line.
type Store interface {
	// DB exposes the underlying handle for read-only handlers (listings)
	// and for wiring auxiliary components such as the push worker.
	DB() *gorm.DB

	// StartSession begins a session for the user on the machine carrying
	// the given NFC tag.
	StartSession(ctx context.Context, userID int64, nfcTagID string) (StartResult, error)

	// EndSession closes the user's open session and advances the machine's
	// waiting line.
	EndSession(ctx context.Context, userID int64) (EndResult, error)

	// OpenSession returns the user's current open session, if any.
	OpenSession(ctx context.Context, userID int64) (*model.UsageSession, error)

	// JoinQueue places the user in the machine's waiting line. A repeat
	// call while an entry is still active reports the existing entry
	// instead of creating a duplicate.
	JoinQueue(ctx context.Context, userID, equipmentID int64) (QueueTicket, error)

	// LeaveQueue removes the user's active entry, identified either by
	// reservation id or by equipment id.
	LeaveQueue(ctx context.Context, userID int64, ref QueueRef) (LeaveResult, error)

	// QueueStatus reports the user's active entry and position without
	// modifying anything.
	QueueStatus(ctx context.Context, userID, equipmentID int64) (QueueTicket, error)

	// SweepExpired expires NOTIFIED entries whose claim window has passed
	// and promotes their successors.
	SweepExpired(ctx context.Context, timeout time.Duration, batchSize int) (SweepResult, error)

	// SetOperationalState flips the operator-controlled NORMAL/MAINTENANCE
	// flag on a machine.
	SetOperationalState(ctx context.Context, equipmentID int64, state model.OperationalState) error

	// UsageRatios computes the trailing-24h upper/lower body usage split
	// fed into the duration recommender.
	UsageRatios(ctx context.Context, userID int64, now time.Time) (predictor.Ratios, error)
}

// StartResult carries the created session plus the machine snapshot the
// caller needs for the hardware unlock signal.
type StartResult struct {
	Session   model.UsageSession
	Equipment model.Equipment
}

// EndResult reports which machine was freed and, if the waiting line was
// advanced, the entry that was promoted to NOTIFIED.
type EndResult struct {
	Equipment model.Equipment
	Promoted  *model.Reservation
}

// QueueTicket describes one user's place in a waiting line. Position is the
// 1-indexed rank among WAITING entries; a NOTIFIED entry holds position 0
// and is not counted against anyone behind it.
type QueueTicket struct {
	Reservation  model.Reservation
	Position     int
	WaitingCount int64
	Created      bool
}

// QueueRef identifies an active queue entry either by its own id or by the
// machine it is queued for; exactly one field should be set.
type QueueRef struct {
	ReservationID int64
	EquipmentID   int64
}

// LeaveResult reports the line length after a departure and any promotion
// the departure triggered.
type LeaveResult struct {
	WaitingCount int64
	Promoted     *model.Reservation
}

// SweepResult reports one sweeper invocation for observability. Promoted
// carries the newly NOTIFIED entries so the caller can dispatch push
// notifications.
type SweepResult struct {
	Expired  int
	Notified int
	Promoted []model.Reservation
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db          *gorm.DB
	recommender predictor.Recommender
	// rowLocks is false on SQLite, which serializes writers itself and
	// rejects SELECT ... FOR UPDATE.
	rowLocks bool
}

// NewGormStore creates a new GORM-backed store. The recommender may be nil,
// in which case every walk-up session falls back to the base duration.
func NewGormStore(db *gorm.DB, recommender predictor.Recommender) Store {
	return &gormStore{
		db:          db,
		recommender: recommender,
		rowLocks:    db.Dialector.Name() == "postgres",
	}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// forUpdate acquires an exclusive row lock for the read-check-write
// sequences inside transactions.
func (s *gormStore) forUpdate(tx *gorm.DB) *gorm.DB {
	if !s.rowLocks {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// forUpdateSkipLocked is the sweeper variant: concurrent sweeps partition
// the expired set instead of blocking on each other's rows.
func (s *gormStore) forUpdateSkipLocked(tx *gorm.DB) *gorm.DB {
	if !s.rowLocks {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
}
