package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teatarmk/reservation-api/internal/model"
	"github.com/teatarmk/reservation-api/internal/queue"
	"github.com/teatarmk/reservation-api/internal/repository"
)

// memCatalog is an in-memory Catalog.
type memCatalog struct {
	mu    sync.Mutex
	shows map[uint64]model.Show
}

func newMemCatalog(shows ...model.Show) *memCatalog {
	c := &memCatalog{shows: make(map[uint64]model.Show)}
	for _, s := range shows {
		c.shows[s.ID] = s
	}
	return c
}

func (c *memCatalog) GetByID(_ context.Context, id uint64) (*model.Show, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	out := s
	return &out, nil
}

func (c *memCatalog) setPrice(id uint64, priceCents uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.shows[id]
	s.PriceCents = priceCents
	c.shows[id] = s
}

// memLedger is an in-memory Ledger.  createErrs scripts failures for
// the next Create calls, in order, to exercise the retry policy.
type memLedger struct {
	mu         sync.Mutex
	nextID     uint64
	rows       map[uint64]model.Reservation
	createErrs []error
	creates    int
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[uint64]model.Reservation)}
}

func (l *memLedger) Create(_ context.Context, res *model.Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.creates++
	if len(l.createErrs) > 0 {
		err := l.createErrs[0]
		l.createErrs = l.createErrs[1:]
		if err != nil {
			return err
		}
	}
	l.nextID++
	res.ID = l.nextID
	res.CreatedAt = time.Now().UTC()
	res.UpdatedAt = res.CreatedAt
	stored := *res
	stored.Seats = append([]uint32(nil), res.Seats...)
	l.rows[res.ID] = stored
	return nil
}

func (l *memLedger) GetByID(_ context.Context, id uint64) (*model.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	out := r
	out.Seats = append([]uint32(nil), r.Seats...)
	return &out, nil
}

func (l *memLedger) UpdateStatus(_ context.Context, id uint64, status model.ReservationStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	l.rows[id] = r
	return nil
}

func (l *memLedger) ReservedSeats(_ context.Context, showID uint64) ([]uint32, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var seats []uint32
	for _, r := range l.rows {
		if r.ShowID == showID && r.Status.Active() {
			seats = append(seats, r.Seats...)
		}
	}
	return seats, nil
}

func (l *memLedger) ExpirePending(_ context.Context, cutoff time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for id, r := range l.rows {
		if r.Status == model.StatusPending && r.ExpiresAt != nil && r.ExpiresAt.Before(cutoff) {
			r.Status = model.StatusExpired
			l.rows[id] = r
			n++
		}
	}
	return n, nil
}

func testShow(id uint64, seats, priceCents uint32) model.Show {
	return model.Show{
		ID:          id,
		Title:       "Hamlet",
		Description: "The tragedy of the Prince of Denmark",
		Director:    "L. Olivier",
		Date:        "2026-09-15",
		Time:        "19:30",
		DurationMin: 180,
		TotalSeats:  seats,
		PriceCents:  priceCents,
	}
}

func newTestService(catalog Catalog, ledger Ledger) *ReservationService {
	return NewReservationService(catalog, ledger, 5*time.Minute, nil)
}

func TestReserveCommitsConfirmed(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 250)), ledger)

	res, err := svc.Reserve(context.Background(), 1, 42, []uint32{3, 1})
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, res.Status)
	assert.Equal(t, []uint32{1, 3}, res.Seats)
	assert.Equal(t, uint32(500), res.TotalPriceCents)
	assert.Nil(t, res.ExpiresAt)

	stored, err := ledger.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Seats, stored.Seats)
}

func TestReserveValidation(t *testing.T) {
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), newMemLedger())

	cases := []struct {
		name  string
		seats []uint32
	}{
		{"empty", nil},
		{"zero seat", []uint32{0}},
		{"beyond capacity", []uint32{11}},
		{"duplicate", []uint32{4, 4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Reserve(context.Background(), 1, 42, tc.seats)
			var invalid *InvalidRequestError
			require.ErrorAs(t, err, &invalid)
		})
	}
}

func TestReserveUnknownShow(t *testing.T) {
	svc := newTestService(newMemCatalog(), newMemLedger())
	_, err := svc.Reserve(context.Background(), 99, 42, []uint32{1})
	assert.ErrorIs(t, err, repository.ErrShowNotFound)
}

func TestReserveConflictNamesTakenSeats(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	_, err := svc.Reserve(context.Background(), 1, 1, []uint32{1, 2, 3})
	require.NoError(t, err)

	_, err = svc.Reserve(context.Background(), 1, 2, []uint32{4, 3, 2})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []uint32{2, 3}, conflict.Seats)
	assert.Equal(t, 1, len(ledger.rows), "failed claim must not write to the ledger")
}

func TestConcurrentClaimsSingleWinner(t *testing.T) {
	// Capacity 2, price 250: many clients race for both seats.
	// Exactly one reservation may win, everyone else gets a conflict.
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 2, 250)), ledger)

	const clients = 20
	var wg sync.WaitGroup
	results := make(chan error, clients)
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			_, err := svc.Reserve(context.Background(), 1, userID, []uint32{1, 2})
			results <- err
		}(uint64(i + 1))
	}
	wg.Wait()
	close(results)

	wins, conflicts := 0, 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		conflicts++
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, clients-1, conflicts)

	seats, err := svc.ReservedSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, seats)
	for _, r := range ledger.rows {
		assert.Equal(t, uint32(500), r.TotalPriceCents)
	}
}

func TestConcurrentClaimsDisjointSeats(t *testing.T) {
	// Each seat is contested by several goroutines; every seat must end
	// up owned by exactly one reservation.
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	const perSeat = 3
	var wg sync.WaitGroup
	for seat := uint32(1); seat <= 10; seat++ {
		for i := 0; i < perSeat; i++ {
			wg.Add(1)
			go func(seat uint32, userID uint64) {
				defer wg.Done()
				_, _ = svc.Reserve(context.Background(), 1, userID, []uint32{seat})
			}(seat, uint64(seat)*100+uint64(i))
		}
	}
	wg.Wait()

	seats, err := svc.ReservedSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, seats, 10, "every seat taken exactly once")
	owners := make(map[uint32]int)
	for _, r := range ledger.rows {
		for _, n := range r.Seats {
			owners[n]++
		}
	}
	for seat, count := range owners {
		assert.Equalf(t, 1, count, "seat %d booked %d times", seat, count)
	}
}

func TestCancelFreesSeats(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	res, err := svc.Reserve(context.Background(), 1, 7, []uint32{5, 6})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), res.ID, 7, model.RoleCustomer))
	seats, err := svc.ReservedSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, seats)

	// Cancelling again is a no-op.
	require.NoError(t, svc.Cancel(context.Background(), res.ID, 7, model.RoleCustomer))

	// Another user can now take the same seats.
	_, err = svc.Reserve(context.Background(), 1, 8, []uint32{5, 6})
	assert.NoError(t, err)
}

func TestCancelAuthorization(t *testing.T) {
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), newMemLedger())

	res, err := svc.Reserve(context.Background(), 1, 7, []uint32{1})
	require.NoError(t, err)

	err = svc.Cancel(context.Background(), res.ID, 8, model.RoleCustomer)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	err = svc.Cancel(context.Background(), res.ID, 8, model.RoleAdmin)
	assert.NoError(t, err)

	err = svc.Cancel(context.Background(), 999, 7, model.RoleCustomer)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
}

func TestHoldThenConfirm(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	hold, err := svc.Hold(context.Background(), 1, 7, []uint32{2, 3})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, hold.Status)
	require.NotNil(t, hold.ExpiresAt)
	assert.WithinDuration(t, time.Now().UTC().Add(5*time.Minute), *hold.ExpiresAt, 5*time.Second)

	// Held seats block other claims.
	_, err = svc.Reserve(context.Background(), 1, 8, []uint32{3})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	confirmed, err := svc.Confirm(context.Background(), hold.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	// Confirming twice fails: the hold is gone.
	_, err = svc.Confirm(context.Background(), hold.ID, 7)
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestConfirmAuthorization(t *testing.T) {
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), newMemLedger())

	hold, err := svc.Hold(context.Background(), 1, 7, []uint32{1})
	require.NoError(t, err)

	_, err = svc.Confirm(context.Background(), hold.ID, 8)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	_, err = svc.Confirm(context.Background(), 999, 7)
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
}

func TestExpiredHoldFreesSeats(t *testing.T) {
	ledger := newMemLedger()
	svc := NewReservationService(newMemCatalog(testShow(1, 10, 100)), ledger, time.Millisecond, nil)

	hold, err := svc.Hold(context.Background(), 1, 7, []uint32{4})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	seats, err := svc.ReservedSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, seats)

	_, err = svc.Confirm(context.Background(), hold.ID, 7)
	assert.ErrorIs(t, err, ErrHoldExpired)

	// The freed seat can be claimed again.
	_, err = svc.Reserve(context.Background(), 1, 8, []uint32{4})
	assert.NoError(t, err)
}

func TestConfirmAfterDeadlineBeforeSweep(t *testing.T) {
	// The deadline has passed but the sweep has not run yet: Confirm
	// must refuse and expire the hold itself.
	ledger := newMemLedger()
	svc := NewReservationService(newMemCatalog(testShow(1, 10, 100)), ledger, time.Millisecond, nil)

	hold, err := svc.Hold(context.Background(), 1, 7, []uint32{4})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)

	_, err = svc.Confirm(context.Background(), hold.ID, 7)
	assert.ErrorIs(t, err, ErrHoldExpired)

	stored, err := ledger.GetByID(context.Background(), hold.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, stored.Status)
}

func TestPriceFrozenAtBooking(t *testing.T) {
	catalog := newMemCatalog(testShow(1, 10, 250))
	ledger := newMemLedger()
	svc := newTestService(catalog, ledger)

	res, err := svc.Reserve(context.Background(), 1, 7, []uint32{1, 2})
	require.NoError(t, err)
	require.Equal(t, uint32(500), res.TotalPriceCents)

	catalog.setPrice(1, 9999)

	stored, err := ledger.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), stored.TotalPriceCents)
}

func TestReservedSeatsSortedAndDeduplicated(t *testing.T) {
	ledger := newMemLedger()
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	_, err := svc.Reserve(context.Background(), 1, 1, []uint32{9, 2})
	require.NoError(t, err)
	_, err = svc.Hold(context.Background(), 1, 2, []uint32{5})
	require.NoError(t, err)

	seats, err := svc.ReservedSeats(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 5, 9}, seats)

	_, err = svc.ReservedSeats(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrShowNotFound)
}

func TestRetryOnTransientFailures(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}

	ledger := newMemLedger()
	ledger.createErrs = []error{deadlock, deadlock}
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	_, err := svc.Reserve(context.Background(), 1, 7, []uint32{1})
	require.NoError(t, err)
	assert.Equal(t, 3, ledger.creates, "two transient failures then success")
}

func TestRetryExhaustionReportsUnavailable(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}

	ledger := newMemLedger()
	ledger.createErrs = []error{deadlock, deadlock, deadlock}
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	_, err := svc.Reserve(context.Background(), 1, 7, []uint32{1})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNonRetryableErrorReturnedImmediately(t *testing.T) {
	boom := errors.New("constraint violated")

	ledger := newMemLedger()
	ledger.createErrs = []error{boom}
	svc := newTestService(newMemCatalog(testShow(1, 10, 100)), ledger)

	_, err := svc.Reserve(context.Background(), 1, 7, []uint32{1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ledger.creates)
}

func TestConfirmationEventsPublished(t *testing.T) {
	var mu sync.Mutex
	var events []queue.ReservationConfirmedEvent
	publish := func(_ context.Context, ev queue.ReservationConfirmedEvent) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
		return nil
	}
	svc := NewReservationService(newMemCatalog(testShow(1, 10, 250)), newMemLedger(), 5*time.Minute, publish)

	res, err := svc.Reserve(context.Background(), 1, 7, []uint32{1, 2})
	require.NoError(t, err)

	hold, err := svc.Hold(context.Background(), 1, 8, []uint32{3})
	require.NoError(t, err)
	require.Len(t, events, 1, "holds publish nothing until confirmed")

	_, err = svc.Confirm(context.Background(), hold.ID, 8)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, res.ID, events[0].ReservationID)
	assert.Equal(t, "Hamlet", events[0].ShowTitle)
	assert.Equal(t, []uint32{1, 2}, events[0].Seats)
	assert.Equal(t, uint32(500), events[0].TotalPriceCents)
	assert.Equal(t, hold.ID, events[1].ReservationID)
}
