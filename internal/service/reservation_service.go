// Package service implements the seat-reservation core: validation,
// per-show serialization of seat claims, conflict detection and the
// reservation lifecycle.  It talks to storage through small interfaces
// so the concurrency properties can be tested without a database.
package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/teatarmk/reservation-api/internal/model"
	"github.com/teatarmk/reservation-api/internal/queue"
	"github.com/teatarmk/reservation-api/internal/repository"
)

// Catalog is the slice of the show catalog the reservation core needs:
// capacity and price lookups by show ID.
type Catalog interface {
	GetByID(ctx context.Context, id uint64) (*model.Show, error)
}

// Ledger is the reservation store.  Create must persist a reservation
// together with its seats atomically; ReservedSeats must return the
// union of seat numbers over PENDING and CONFIRMED reservations for a
// show.  The ledger does not check cross-reservation seat conflicts —
// the service serializes claims per show so that check-then-commit is
// race free.
type Ledger interface {
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id uint64) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id uint64, status model.ReservationStatus) error
	ReservedSeats(ctx context.Context, showID uint64) ([]uint32, error)
	ExpirePending(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConfirmedPublisher is called after a reservation reaches CONFIRMED.
// Publish failures are logged and ignored; the booking already
// committed and must not be rolled back because a broker is down.
type ConfirmedPublisher func(ctx context.Context, ev queue.ReservationConfirmedEvent) error

// ReservationService orchestrates seat claims against the ledger.  The
// linchpin guarantee: for any one show, the inventory read and the
// ledger write of a claim are indivisible with respect to every other
// claim on that show (a per-show mutex held across both).  Claims on
// different shows proceed in parallel.
type ReservationService struct {
	catalog Catalog
	ledger  Ledger
	locks   *showLocks
	holdTTL time.Duration
	publish ConfirmedPublisher
}

// NewReservationService builds a service.  holdTTL bounds how long a
// PENDING hold keeps its seats before the expiry sweep frees them.
// publish may be nil when no broker is configured.
func NewReservationService(catalog Catalog, ledger Ledger, holdTTL time.Duration, publish ConfirmedPublisher) *ReservationService {
	if catalog == nil || ledger == nil {
		panic("nil dependency passed to NewReservationService")
	}
	if holdTTL <= 0 {
		holdTTL = 5 * time.Minute
	}
	return &ReservationService{
		catalog: catalog,
		ledger:  ledger,
		locks:   newShowLocks(),
		holdTTL: holdTTL,
		publish: publish,
	}
}

// Reserve claims the requested seats for the user and commits the
// reservation as CONFIRMED immediately; there is no external payment
// step in this domain.  The total price is seat count times the show's
// current price, frozen on the record.  It returns
// *InvalidRequestError for malformed requests, *ConflictError naming
// the already-taken seats, repository.ErrShowNotFound for an unknown
// show, and ErrUnavailable when the ledger stays unreachable.
func (s *ReservationService) Reserve(ctx context.Context, showID, userID uint64, seats []uint32) (*model.Reservation, error) {
	res, err := s.claim(ctx, showID, userID, seats, model.StatusConfirmed)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, res)
	return res, nil
}

// Hold claims the requested seats as a PENDING reservation that keeps
// them only until its deadline; the expiry sweep frees the seats if
// the hold is never confirmed.  Validation and conflict rules are
// identical to Reserve.
func (s *ReservationService) Hold(ctx context.Context, showID, userID uint64, seats []uint32) (*model.Reservation, error) {
	return s.claim(ctx, showID, userID, seats, model.StatusPending)
}

// claim runs the core algorithm: validate, then read-check-write under
// the show's lock.
func (s *ReservationService) claim(ctx context.Context, showID, userID uint64, seats []uint32, status model.ReservationStatus) (*model.Reservation, error) {
	show, err := s.catalog.GetByID(ctx, showID)
	if err != nil {
		return nil, err
	}
	normalized, err := validateSeats(seats, show.TotalSeats)
	if err != nil {
		return nil, err
	}

	mu := s.locks.forShow(showID)
	mu.Lock()
	defer mu.Unlock()

	reserved, err := s.reservedSet(ctx, showID)
	if err != nil {
		return nil, err
	}
	var conflicts []uint32
	for _, n := range normalized {
		if reserved[n] {
			conflicts = append(conflicts, n)
		}
	}
	if len(conflicts) > 0 {
		return nil, &ConflictError{Seats: conflicts}
	}

	res := &model.Reservation{
		UserID:          userID,
		ShowID:          showID,
		Status:          status,
		Seats:           normalized,
		TotalPriceCents: uint32(len(normalized)) * show.PriceCents,
	}
	if status == model.StatusPending {
		deadline := time.Now().UTC().Add(s.holdTTL)
		res.ExpiresAt = &deadline
	}
	if err := s.withRetry(ctx, func() error { return s.ledger.Create(ctx, res) }); err != nil {
		return nil, err
	}
	return res, nil
}

// Confirm promotes the user's PENDING hold to CONFIRMED.  It runs
// under the show's lock so the promotion cannot interleave with a
// concurrent claim or with the expiry sweep in a way that would let
// the hold's seats be handed to someone else mid-flight.  Returns
// ErrHoldExpired when the deadline has passed and ErrNotPending for
// any other non-PENDING state.
func (s *ReservationService) Confirm(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if res.UserID != userID {
		return nil, repository.ErrForbidden
	}

	mu := s.locks.forShow(res.ShowID)
	mu.Lock()
	res, err = s.confirmLocked(ctx, reservationID)
	mu.Unlock()
	if err != nil {
		return nil, err
	}
	s.announce(ctx, res)
	return res, nil
}

// confirmLocked does the status transition; the caller holds the
// show's lock.
func (s *ReservationService) confirmLocked(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	// Re-read under the lock; the sweep may have expired it meanwhile.
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	switch {
	case res.Status == model.StatusExpired:
		return nil, ErrHoldExpired
	case res.Status != model.StatusPending:
		return nil, ErrNotPending
	case res.ExpiresAt != nil && time.Now().UTC().After(*res.ExpiresAt):
		// Past the deadline but the sweep has not caught it yet.
		if err := s.withRetry(ctx, func() error {
			return s.ledger.UpdateStatus(ctx, reservationID, model.StatusExpired)
		}); err != nil {
			return nil, err
		}
		return nil, ErrHoldExpired
	}
	if err := s.withRetry(ctx, func() error {
		return s.ledger.UpdateStatus(ctx, reservationID, model.StatusConfirmed)
	}); err != nil {
		return nil, err
	}
	res.Status = model.StatusConfirmed
	return res, nil
}

// Cancel sets the reservation to CANCELLED, which immediately frees
// its seats for future claims: inventory is a live query over active
// statuses, so no further bookkeeping is needed.  Only the owning user
// or an admin may cancel.  Cancelling an already-cancelled reservation
// is a no-op.
func (s *ReservationService) Cancel(ctx context.Context, reservationID, requesterID uint64, requesterRole string) error {
	res, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.UserID != requesterID && requesterRole != model.RoleAdmin {
		return repository.ErrForbidden
	}
	if res.Status == model.StatusCancelled {
		return nil
	}
	return s.withRetry(ctx, func() error {
		return s.ledger.UpdateStatus(ctx, reservationID, model.StatusCancelled)
	})
}

// ReservedSeats returns the sorted seat numbers currently held for the
// show.  Reads are safe to run concurrently with claims: the ledger
// query sees either a committed reservation or none of it, never half
// a seat set.
func (s *ReservationService) ReservedSeats(ctx context.Context, showID uint64) ([]uint32, error) {
	if _, err := s.catalog.GetByID(ctx, showID); err != nil {
		return nil, err
	}
	var seats []uint32
	err := s.withRetry(ctx, func() error {
		var err error
		seats, err = s.ledger.ReservedSeats(ctx, showID)
		return err
	})
	if err != nil {
		return nil, err
	}
	// The union may repeat nothing, but normalise anyway so callers get
	// a stable, sorted, duplicate-free slice.
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	out := seats[:0]
	var last uint32
	for i, n := range seats {
		if i == 0 || n != last {
			out = append(out, n)
		}
		last = n
	}
	return out, nil
}

// ExpireStale transitions every overdue PENDING hold to EXPIRED and
// reports how many were swept.
func (s *ReservationService) ExpireStale(ctx context.Context) (int64, error) {
	var n int64
	err := s.withRetry(ctx, func() error {
		var err error
		n, err = s.ledger.ExpirePending(ctx, time.Now().UTC())
		return err
	})
	return n, err
}

// StartExpirySweeper runs ExpireStale every interval until ctx is
// cancelled.  Intended to be launched once from main as a goroutine.
func (s *ReservationService) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireStale(ctx)
			if err != nil {
				log.Printf("expiry-sweep: failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("expiry-sweep: expired %d stale holds", n)
			}
		}
	}
}

// getReservation wraps ledger.GetByID with the retry policy.
func (s *ReservationService) getReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res *model.Reservation
	err := s.withRetry(ctx, func() error {
		var err error
		res, err = s.ledger.GetByID(ctx, id)
		return err
	})
	return res, err
}

// validateSeats checks the structural rules of a seat request and
// returns the seats sorted.  capacity is the show's TotalSeats.
func validateSeats(seats []uint32, capacity uint32) ([]uint32, error) {
	if len(seats) == 0 {
		return nil, &InvalidRequestError{Reason: "no seats requested"}
	}
	normalized := append([]uint32(nil), seats...)
	sort.Slice(normalized, func(i, j int) bool { return normalized[i] < normalized[j] })
	for i, n := range normalized {
		if n < 1 || n > capacity {
			return nil, &InvalidRequestError{Reason: fmt.Sprintf("seat %d out of range 1..%d", n, capacity)}
		}
		if i > 0 && n == normalized[i-1] {
			return nil, &InvalidRequestError{Reason: fmt.Sprintf("seat %d requested twice", n)}
		}
	}
	return normalized, nil
}

// reservedSet reads the show's current inventory into a set.
func (s *ReservationService) reservedSet(ctx context.Context, showID uint64) (map[uint32]bool, error) {
	var seats []uint32
	err := s.withRetry(ctx, func() error {
		var err error
		seats, err = s.ledger.ReservedSeats(ctx, showID)
		return err
	})
	if err != nil {
		return nil, err
	}
	set := make(map[uint32]bool, len(seats))
	for _, n := range seats {
		set[n] = true
	}
	return set, nil
}

// retry policy for ledger I/O: transient MySQL failures (deadlock,
// lock wait timeout) are retried a few times with growing backoff and
// surfaced as ErrUnavailable once exhausted.  Everything else is
// returned as-is on the first attempt.
const (
	retryAttempts = 3
	retryBaseWait = 50 * time.Millisecond
)

func (s *ReservationService) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !repository.IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseWait << attempt):
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// announce publishes a confirmation event outside any lock; a slow or
// down broker must never stall the seat-claim critical section.
func (s *ReservationService) announce(ctx context.Context, res *model.Reservation) {
	if s.publish == nil {
		return
	}
	show, err := s.catalog.GetByID(ctx, res.ShowID)
	if err != nil {
		log.Printf("reservation-service: load show for event failed: %v", err)
		return
	}
	ev := queue.ReservationConfirmedEvent{
		ReservationID:   res.ID,
		UserID:          res.UserID,
		ShowID:          res.ShowID,
		ShowTitle:       show.Title,
		ShowDate:        show.Date,
		ShowTime:        show.Time,
		Seats:           res.Seats,
		TotalPriceCents: res.TotalPriceCents,
		ConfirmedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publish(ctx, ev); err != nil {
		log.Printf("reservation-service: publish confirmation failed: %v", err)
	}
}
