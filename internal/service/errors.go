package service

import (
	"errors"
	"fmt"
)

// ErrUnavailable signals that the ledger could not be reached even
// after bounded retries.  Callers may retry the whole operation with
// backoff; handlers translate it to HTTP 503.
var ErrUnavailable = errors.New("storage unavailable")

// ErrHoldExpired is returned by Confirm when the hold's deadline has
// already passed; the seats are free again and the client must start
// over.
var ErrHoldExpired = errors.New("hold expired")

// ErrNotPending is returned by Confirm when the reservation is not in
// the PENDING state (already confirmed, cancelled or expired).
var ErrNotPending = errors.New("reservation is not pending")

// InvalidRequestError reports a malformed seat-claim request: empty
// seat list, a seat outside [1, capacity] or a duplicate within the
// request.  It is the caller's fault and must never be retried.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid request: " + e.Reason }

// ConflictError reports that some of the requested seats are already
// held by another active reservation.  It names exactly the
// conflicting seats so the client can re-render its seat map.
// Conflicts are expected under contention and are never retried
// automatically: the seats were legitimately taken.
type ConflictError struct {
	Seats []uint32
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("seats already reserved: %v", e.Seats)
}
