package models

import (
	"slices"
	"time"
)

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusNotified  ReservationStatus = "notified"
	ReservationStatusCompleted ReservationStatus = "completed"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// ActiveReservationStatuses are the statuses that hold a place in a book's
// waitlist. Priorities of these rows form a contiguous 1..N sequence.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusNotified,
}

// ReservationActive reports whether status holds a waitlist slot.
func ReservationActive(status ReservationStatus) bool {
	return slices.Contains(ActiveReservationStatuses, status)
}

// ValidReservationTransition reports whether a status change is allowed.
// Completed, cancelled and expired are terminal.
func ValidReservationTransition(from, to ReservationStatus) bool {
	switch from {
	case ReservationStatusPending:
		return to == ReservationStatusNotified ||
			to == ReservationStatusCompleted ||
			to == ReservationStatusCancelled
	case ReservationStatusNotified:
		return to == ReservationStatusCompleted ||
			to == ReservationStatusCancelled ||
			to == ReservationStatusExpired
	default:
		return false
	}
}

// Reservation is a waitlist entry for an exhausted book.
type Reservation struct {
	ID         int32             `json:"id"`
	AccountID  int32             `json:"account_id"`
	BookID     int32             `json:"book_id"`
	Status     ReservationStatus `json:"status"`
	Priority   int32             `json:"priority"`
	NotifiedAt *time.Time        `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// ReserveRequest represents a waitlist join request.
type ReserveRequest struct {
	BookID int32 `json:"book_id" binding:"required,min=1"`
}

// ReservationResponse is the wire representation of a reservation.
type ReservationResponse struct {
	ID         int32             `json:"id"`
	AccountID  int32             `json:"account_id"`
	BookID     int32             `json:"book_id"`
	Status     ReservationStatus `json:"status"`
	Priority   int32             `json:"priority"`
	NotifiedAt *time.Time        `json:"notified_at,omitempty"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
