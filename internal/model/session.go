package model

import "time"

// SessionKind records how a session's duration was decided.
type SessionKind string

const (
	SessionBase          SessionKind = "BASE"
	SessionAIRecommended SessionKind = "AI_RECOMMENDED"
	SessionExtended      SessionKind = "EXTENDED"
)

// UsageSession is one user's timed occupancy of one machine.
// StartTime and AllocatedMinutes are set at creation and never change;
// EndTime is null while the session is open and is stamped exactly once.
type UsageSession struct {
	ID               int64       `gorm:"primaryKey" json:"id"`
	UserID           int64       `gorm:"index;not null" json:"user_id"`
	EquipmentID      int64       `gorm:"index;not null" json:"equipment_id"`
	StartTime        time.Time   `gorm:"not null;index" json:"start_time"`
	EndTime          *time.Time  `gorm:"index" json:"end_time,omitempty"`
	AllocatedMinutes int         `gorm:"not null" json:"allocated_minutes"`
	Kind             SessionKind `gorm:"size:20;not null" json:"kind"`

	// Associations
	Equipment Equipment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Open reports whether the session is still in progress.
func (s *UsageSession) Open() bool {
	return s.EndTime == nil
}
