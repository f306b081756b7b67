package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
)

// SetOperationalState flips the operator-controlled NORMAL/MAINTENANCE flag.
// The flag is independent of occupancy: an in-progress session is allowed
// to finish, but no new session can start on a MAINTENANCE machine.
func (s *gormStore) SetOperationalState(ctx context.Context, equipmentID int64, state model.OperationalState) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var equipment model.Equipment
		if err := s.forUpdate(tx).First(&equipment, equipmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}
		return tx.Model(&model.Equipment{}).
			Where("id = ?", equipmentID).
			Update("operational_state", state).Error
	})
}
