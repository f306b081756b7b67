package store

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"gorm.io/gorm"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/predictor"
)

const (
	minSessionMinutes = 5
	maxSessionMinutes = 60
)

// StartSession begins a session for the user on the machine carrying the
// given NFC tag. If the user holds the machine's NOTIFIED queue slot the
// session gets the base duration and completes the reservation; otherwise
// it is a walk-up and the recommender decides the duration.
func (s *gormStore) StartSession(ctx context.Context, userID int64, nfcTagID string) (StartResult, error) {
	// Resolve the tag outside the transaction; an unknown tag needs no locks.
	var equipment model.Equipment
	if err := s.db.WithContext(ctx).Where("nfc_tag_id = ?", nfcTagID).First(&equipment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return StartResult{}, ErrEquipmentNotFound
		}
		return StartResult{}, err
	}

	// The recommender call is a network round trip, so it happens before
	// any row lock is taken. Its result is discarded if the transaction
	// turns out to be a queue claim.
	walkUpMinutes, walkUpKind := s.allocateWalkUp(ctx, userID, &equipment)

	var result StartResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock order: equipment row first, then queue entries.
		if err := s.forUpdate(tx).First(&equipment, equipment.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEquipmentNotFound
			}
			return err
		}
		if equipment.Occupancy != model.OccupancyAvailable {
			return ErrEquipmentUnavailable
		}
		if equipment.OperationalState == model.OperationalMaintenance {
			return ErrEquipmentUnavailable
		}

		var open int64
		if err := tx.Model(&model.UsageSession{}).
			Where("user_id = ? AND end_time IS NULL", userID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return ErrSessionActive
		}

		allocated, kind := walkUpMinutes, walkUpKind
		claim, err := s.claim(tx, userID, equipment.ID)
		if err != nil {
			return err
		}
		if claim != nil {
			allocated, kind = equipment.BaseMinutes, model.SessionBase
			claim.Status = model.ReservationCompleted
			if err := tx.Save(claim).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Equipment{}).
			Where("id = ?", equipment.ID).
			Update("occupancy", model.OccupancyInUse).Error; err != nil {
			return err
		}
		equipment.Occupancy = model.OccupancyInUse

		session := model.UsageSession{
			UserID:           userID,
			EquipmentID:      equipment.ID,
			StartTime:        time.Now().UTC(),
			AllocatedMinutes: allocated,
			Kind:             kind,
		}
		if err := tx.Create(&session).Error; err != nil {
			return err
		}

		result = StartResult{Session: session, Equipment: equipment}
		return nil
	})
	if err != nil {
		return StartResult{}, err
	}
	return result, nil
}

// EndSession closes the user's open session, frees the machine, and
// advances its waiting line.
func (s *gormStore) EndSession(ctx context.Context, userID int64) (EndResult, error) {
	// Locate the open session without locks so the transaction can take
	// the equipment lock first and keep a fixed lock order.
	var current model.UsageSession
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND end_time IS NULL", userID).
		First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return EndResult{}, ErrSessionNotFound
		}
		return EndResult{}, err
	}

	var result EndResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var equipment model.Equipment
		if err := s.forUpdate(tx).First(&equipment, current.EquipmentID).Error; err != nil {
			return err
		}

		// Re-check under lock: a concurrent end for the same user loses here.
		if err := s.forUpdate(tx).
			Where("id = ? AND end_time IS NULL", current.ID).
			First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&model.UsageSession{}).
			Where("id = ?", current.ID).
			Update("end_time", now).Error; err != nil {
			return err
		}
		current.EndTime = &now

		// OUT_OF_ORDER is sticky; only an IN_USE machine flips back.
		if equipment.Occupancy == model.OccupancyInUse {
			if err := tx.Model(&model.Equipment{}).
				Where("id = ?", equipment.ID).
				Update("occupancy", model.OccupancyAvailable).Error; err != nil {
				return err
			}
			equipment.Occupancy = model.OccupancyAvailable
		}

		promoted, err := s.advance(tx, equipment.ID)
		if err != nil {
			return err
		}

		result = EndResult{Equipment: equipment, Promoted: promoted}
		return nil
	})
	if err != nil {
		return EndResult{}, err
	}
	return result, nil
}

// OpenSession returns the user's current open session.
func (s *gormStore) OpenSession(ctx context.Context, userID int64) (*model.UsageSession, error) {
	var session model.UsageSession
	err := s.db.WithContext(ctx).
		Preload("Equipment").
		Where("user_id = ? AND end_time IS NULL", userID).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// allocateWalkUp decides duration and kind for a non-claimant start. Any
// failure along the way (no profile, recommender down, bad response) falls
// back to the machine's base duration; a broken predictor must never block
// equipment usage.
func (s *gormStore) allocateWalkUp(ctx context.Context, userID int64, equipment *model.Equipment) (int, model.SessionKind) {
	if s.recommender == nil {
		return equipment.BaseMinutes, model.SessionBase
	}

	var profile model.UserProfile
	if err := s.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("allocate: profile lookup for user %d failed: %v", userID, err)
		}
		return equipment.BaseMinutes, model.SessionBase
	}

	ratios, err := s.UsageRatios(ctx, userID, time.Now().UTC())
	if err != nil {
		log.Printf("allocate: usage ratios for user %d failed: %v", userID, err)
		return equipment.BaseMinutes, model.SessionBase
	}

	raw, err := s.recommender.Recommend(ctx, &profile, equipment.RecommenderModelID, ratios)
	if err != nil {
		if !errors.Is(err, predictor.ErrUnavailable) {
			log.Printf("allocate: recommender error for user %d: %v", userID, err)
		}
		return equipment.BaseMinutes, model.SessionBase
	}

	return clampMinutes(raw), model.SessionAIRecommended
}

// clampMinutes bounds a raw recommendation to the allowed session range and
// rounds it to whole minutes.
func clampMinutes(raw float64) int {
	if raw < minSessionMinutes {
		raw = minSessionMinutes
	}
	if raw > maxSessionMinutes {
		raw = maxSessionMinutes
	}
	return int(math.Round(raw))
}

// claim returns the user's NOTIFIED entry for the machine under lock, or
// nil if the user is a walk-up.
func (s *gormStore) claim(tx *gorm.DB, userID, equipmentID int64) (*model.Reservation, error) {
	var r model.Reservation
	err := s.forUpdate(tx).
		Where("user_id = ? AND equipment_id = ? AND status = ?", userID, equipmentID, model.ReservationNotified).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
