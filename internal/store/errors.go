package store

import "errors"

var (
	// ErrEquipmentNotFound is returned when no machine matches the given
	// NFC tag or id.
	ErrEquipmentNotFound = errors.New("equipment not found")

	// ErrEquipmentUnavailable is returned when a start is attempted on a
	// machine that is in use, out of order, or under maintenance.
	ErrEquipmentUnavailable = errors.New("equipment unavailable")

	// ErrSessionActive is returned when a user who already has an open
	// session tries to start another one.
	ErrSessionActive = errors.New("user already has an open session")

	// ErrSessionNotFound is returned when ending a session for a user with
	// no session in progress.
	ErrSessionNotFound = errors.New("no open session")

	// ErrReservationNotFound is returned when no active queue entry matches
	// the given reference.
	ErrReservationNotFound = errors.New("reservation not found")
)
