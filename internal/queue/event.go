// Package queue defines message payloads exchanged over the message broker
// and the publisher/consumer for the reservation.confirmed queue.
package queue

// ReservationConfirmedEvent is published when a reservation reaches
// CONFIRMED.  It carries enough information for downstream consumers to
// log, notify, or feed analytics without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID   uint64   `json:"reservation_id"`
	UserID          uint64   `json:"user_id"`
	ShowID          uint64   `json:"show_id"`
	ShowTitle       string   `json:"show_title"`
	ShowDate        string   `json:"show_date"`
	ShowTime        string   `json:"show_time"`
	Seats           []uint32 `json:"seats"`
	TotalPriceCents uint32   `json:"total_price_cents"`
	ConfirmedAt     string   `json:"confirmed_at"`
}
