package store

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

const defaultSweepBatchSize = 50

// SweepExpired expires every NOTIFIED entry whose notified_at is older than
// the timeout and promotes the next WAITING entry on the same machine. Rows
// are processed oldest-first in bounded batches, each batch in its own
// short transaction with a savepoint per entry, and selected with SKIP
// LOCKED so overlapping sweeper runs partition the work instead of
// double-expiring entries.
func (s *gormStore) SweepExpired(ctx context.Context, timeout time.Duration, batchSize int) (SweepResult, error) {
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}

	var result SweepResult
	for {
		var picked int
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cutoff := time.Now().UTC().Add(-timeout)

			var stale []model.Reservation
			if err := s.forUpdateSkipLocked(tx).
				Where("status = ? AND notified_at < ?", model.ReservationNotified, cutoff).
				Order("notified_at ASC").
				Limit(batchSize).
				Find(&stale).Error; err != nil {
				return err
			}
			picked = len(stale)

			for i := range stale {
				entry := &stale[i]

				// Each entry runs under its own savepoint: a failed
				// statement would otherwise abort the whole batch
				// transaction on Postgres.
				var promoted *model.Reservation
				err := tx.Transaction(func(tx *gorm.DB) error {
					if err := tx.Model(&model.Reservation{}).
						Where("id = ?", entry.ID).
						Update("status", model.ReservationExpired).Error; err != nil {
						return err
					}
					var err error
					promoted, err = s.advance(tx, entry.EquipmentID)
					return err
				})
				if err != nil {
					log.Printf("sweep: failed to expire reservation %d: %v", entry.ID, err)
					continue
				}

				result.Expired++
				if promoted != nil {
					result.Notified++
					result.Promoted = append(result.Promoted, *promoted)
				}
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		if picked < batchSize {
			return result, nil
		}
	}
}
