package model

import "time"

// ReservationStatus enumerates the lifecycle states of a reservation.
// PENDING reservations hold their seats until confirmed or until the
// expiry sweep transitions them to EXPIRED.  Only PENDING and
// CONFIRMED reservations count against a show's seat inventory.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

// Valid reports whether s is one of the four defined statuses.
func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Active reports whether a reservation in this status holds its seats.
func (s ReservationStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Reservation records a user's claim on a set of seats for one show.
// The seat set is frozen once the record is created; only the status
// changes afterwards.  TotalPriceCents is computed at booking time
// (seat count × show price) and never recomputed, so later price edits
// on the show do not affect existing reservations.
//
// Fields:
//  ID              – primary key identifier.
//  UserID          – user who made the reservation.
//  ShowID          – show being reserved.
//  Status          – lifecycle state (see ReservationStatus).
//  Seats           – seat numbers claimed; non-empty, unique, each in
//                    [1, show.TotalSeats].
//  TotalPriceCents – frozen total price in cents.
//  ExpiresAt       – deadline for PENDING holds; nil for direct bookings.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Reservation struct {
	ID              uint64            `json:"id"`                   // reservations.id
	UserID          uint64            `json:"user_id"`              // reservations.user_id
	ShowID          uint64            `json:"show_id"`              // reservations.show_id
	Status          ReservationStatus `json:"status"`               // reservations.status
	Seats           []uint32          `json:"seats"`                // reservation_seats.seat_number
	TotalPriceCents uint32            `json:"total_price_cents"`    // reservations.total_price_cents
	ExpiresAt       *time.Time        `json:"expires_at,omitempty"` // reservations.expires_at (nullable)
	CreatedAt       time.Time         `json:"created_at"`           // reservations.created_at
	UpdatedAt       time.Time         `json:"updated_at"`           // reservations.updated_at
}
