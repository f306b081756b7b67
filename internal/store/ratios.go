package store

import (
	"context"
	"time"

	"gym-access-backend/internal/model"
	"gym-access-backend/internal/predictor"
)

// usageWindow is how far back completed sessions count toward the
// recommender's body-part ratios.
const usageWindow = 24 * time.Hour

// UsageRatios computes the user's upper/lower body usage split over the
// trailing 24 hours. Only sessions with both start and end times count; the
// in-progress session, if any, has no end time and is excluded. With no
// completed sessions in the window both ratios are zero.
func (s *gormStore) UsageRatios(ctx context.Context, userID int64, now time.Time) (predictor.Ratios, error) {
	type row struct {
		StartTime time.Time
		EndTime   time.Time
		BodyPart  model.BodyPart
	}

	var rows []row
	err := s.db.WithContext(ctx).
		Model(&model.UsageSession{}).
		Select("usage_sessions.start_time, usage_sessions.end_time, equipment.body_part").
		Joins("JOIN equipment ON equipment.id = usage_sessions.equipment_id").
		Where("usage_sessions.user_id = ? AND usage_sessions.end_time IS NOT NULL AND usage_sessions.start_time >= ?",
			userID, now.Add(-usageWindow)).
		Scan(&rows).Error
	if err != nil {
		return predictor.Ratios{}, err
	}

	var total, upper, lower float64
	for _, r := range rows {
		minutes := r.EndTime.Sub(r.StartTime).Minutes()
		if minutes <= 0 {
			continue
		}
		total += minutes
		switch r.BodyPart {
		case model.BodyPartUpper:
			upper += minutes
		case model.BodyPartLower:
			lower += minutes
		}
	}

	if total == 0 {
		return predictor.Ratios{}, nil
	}
	return predictor.Ratios{Upper: upper / total, Lower: lower / total}, nil
}
