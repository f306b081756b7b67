package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// JoinQueue places the user at the tail of the machine's waiting line. If
// the user already holds an active entry for that machine, the existing
// entry and its current position are reported instead of creating a
// duplicate, so repeated taps behave idempotently.
func (s *gormStore) JoinQueue(ctx context.Context, userID, equipmentID int64) (QueueTicket, error) {
	var ticket QueueTicket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The equipment lock serializes concurrent joins on one machine.
		var equipment model.Equipment
		if err := s.forUpdate(tx).First(&equipment, equipmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}

		var existing model.Reservation
		err := s.forUpdate(tx).
			Where("user_id = ? AND equipment_id = ? AND status IN ?",
				userID, equipmentID, model.ActiveReservationStatuses).
			First(&existing).Error
		switch {
		case err == nil:
			ticket.Reservation = existing
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry := model.Reservation{
				UserID:      userID,
				EquipmentID: equipmentID,
				Status:      model.ReservationWaiting,
				CreatedAt:   time.Now().UTC(),
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			ticket.Reservation = entry
			ticket.Created = true
		default:
			return err
		}

		return s.fillTicket(tx, &ticket)
	})
	if err != nil {
		return QueueTicket{}, err
	}
	return ticket, nil
}

// LeaveQueue voluntarily removes the user's active entry, whether WAITING
// or NOTIFIED. The line is always advanced afterwards; advance is a no-op
// when a NOTIFIED entry remains, so this is safe for plain WAITING leavers.
func (s *gormStore) LeaveQueue(ctx context.Context, userID int64, ref QueueRef) (LeaveResult, error) {
	var result LeaveResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := s.forUpdate(tx).
			Where("user_id = ? AND status IN ?", userID, model.ActiveReservationStatuses)
		if ref.ReservationID != 0 {
			query = query.Where("id = ?", ref.ReservationID)
		} else {
			query = query.Where("equipment_id = ?", ref.EquipmentID)
		}

		var entry model.Reservation
		if err := query.First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}

		if err := tx.Model(&model.Reservation{}).
			Where("id = ?", entry.ID).
			Update("status", model.ReservationExpired).Error; err != nil {
			return err
		}

		promoted, err := s.advance(tx, entry.EquipmentID)
		if err != nil {
			return err
		}
		result.Promoted = promoted

		return tx.Model(&model.Reservation{}).
			Where("equipment_id = ? AND status = ?", entry.EquipmentID, model.ReservationWaiting).
			Count(&result.WaitingCount).Error
	})
	if err != nil {
		return LeaveResult{}, err
	}
	return result, nil
}

// QueueStatus reports the user's active entry for a machine without
// modifying anything.
func (s *gormStore) QueueStatus(ctx context.Context, userID, equipmentID int64) (QueueTicket, error) {
	var ticket QueueTicket
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("user_id = ? AND equipment_id = ? AND status IN ?",
				userID, equipmentID, model.ActiveReservationStatuses).
			First(&ticket.Reservation).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReservationNotFound
		}
		if err != nil {
			return err
		}
		return s.fillTicket(tx, &ticket)
	})
	if err != nil {
		return QueueTicket{}, err
	}
	return ticket, nil
}

// advance promotes the oldest WAITING entry to NOTIFIED when the machine
// has no NOTIFIED entry. Idempotent: with a NOTIFIED entry present it does
// nothing, so callers may invoke it defensively.
func (s *gormStore) advance(tx *gorm.DB, equipmentID int64) (*model.Reservation, error) {
	var notified int64
	if err := tx.Model(&model.Reservation{}).
		Where("equipment_id = ? AND status = ?", equipmentID, model.ReservationNotified).
		Count(&notified).Error; err != nil {
		return nil, err
	}
	if notified > 0 {
		return nil, nil
	}

	var next model.Reservation
	err := s.forUpdate(tx).
		Where("equipment_id = ? AND status = ?", equipmentID, model.ReservationWaiting).
		Order("created_at ASC, id ASC").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := tx.Model(&model.Reservation{}).
		Where("id = ?", next.ID).
		Updates(map[string]any{
			"status":      model.ReservationNotified,
			"notified_at": now,
		}).Error; err != nil {
		return nil, err
	}
	next.Status = model.ReservationNotified
	next.NotifiedAt = &now
	return &next, nil
}

// fillTicket computes the position and line length for a ticket's entry.
// A NOTIFIED entry sits at position 0 and is not counted against the
// WAITING entries behind it.
func (s *gormStore) fillTicket(tx *gorm.DB, ticket *QueueTicket) error {
	entry := &ticket.Reservation

	if err := tx.Model(&model.Reservation{}).
		Where("equipment_id = ? AND status = ?", entry.EquipmentID, model.ReservationWaiting).
		Count(&ticket.WaitingCount).Error; err != nil {
		return err
	}

	if entry.Status == model.ReservationNotified {
		ticket.Position = 0
		return nil
	}

	var ahead int64
	if err := tx.Model(&model.Reservation{}).
		Where("equipment_id = ? AND status = ?", entry.EquipmentID, model.ReservationWaiting).
		Where("created_at < ? OR (created_at = ? AND id < ?)", entry.CreatedAt, entry.CreatedAt, entry.ID).
		Count(&ahead).Error; err != nil {
		return err
	}
	ticket.Position = int(ahead) + 1
	return nil
}
