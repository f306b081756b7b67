package model

import "time"

// ReservationStatus is the lifecycle state of a queue entry.
// WAITING and NOTIFIED are active; EXPIRED and COMPLETED are terminal.
type ReservationStatus string

const (
	ReservationWaiting   ReservationStatus = "WAITING"
	ReservationNotified  ReservationStatus = "NOTIFIED"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// ActiveReservationStatuses are the statuses that count as "in line".
var ActiveReservationStatuses = []ReservationStatus{ReservationWaiting, ReservationNotified}

// Reservation is a user's place in the waiting line for one machine.
// CreatedAt orders the line (FIFO); NotifiedAt is stamped when the entry
// becomes the machine's single NOTIFIED slot.
type Reservation struct {
	ID          int64             `gorm:"primaryKey" json:"id"`
	UserID      int64             `gorm:"index;not null" json:"user_id"`
	EquipmentID int64             `gorm:"index;not null" json:"equipment_id"`
	Status      ReservationStatus `gorm:"size:20;not null;default:WAITING;index" json:"status"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
	NotifiedAt  *time.Time        `json:"notified_at,omitempty"`

	// Associations
	Equipment Equipment `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Active reports whether the entry still holds a place in line.
func (r *Reservation) Active() bool {
	return r.Status == ReservationWaiting || r.Status == ReservationNotified
}
