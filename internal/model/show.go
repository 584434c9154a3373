package model

import "time"

// Show represents a single schedulable theatrical performance with a
// fixed seat capacity and a fixed per-seat price.  Seats are not
// stored as rows; a seat is an integer in [1, TotalSeats] scoped to
// one show, so deleting or resizing a show never orphans seat records.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – title of the play.
//  Description – synopsis shown on the details page.
//  Director    – director of the production.
//  Date        – performance date in "2006-01-02" form.
//  Time        – performance start time in "15:04" form.
//  DurationMin – running time in minutes.
//  TotalSeats  – seat capacity; must be a positive integer.
//  PriceCents  – per-seat price in cents; must be non-negative.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Show struct {
	ID          uint64    `json:"id"`          // shows.id
	Title       string    `json:"title"`       // shows.title
	Description string    `json:"description"` // shows.description
	Director    string    `json:"director"`    // shows.director
	Date        string    `json:"date"`        // shows.show_date
	Time        string    `json:"time"`        // shows.show_time
	DurationMin uint32    `json:"duration"`    // shows.duration_min
	TotalSeats  uint32    `json:"total_seats"` // shows.total_seats
	PriceCents  uint32    `json:"price_cents"` // shows.price_cents
	CreatedAt   time.Time `json:"created_at"`  // shows.created_at
	UpdatedAt   time.Time `json:"updated_at"`  // shows.updated_at
}
