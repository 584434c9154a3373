package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teatarmk/reservation-api/internal/model"
)

func newReservationMock(t *testing.T) (*ReservationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewReservationRepo(db), mock
}

func TestReservationCreate(t *testing.T) {
	repo, mock := newReservationMock(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(uint64(7), uint64(3), "CONFIRMED", uint32(500), nil).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WithArgs(uint64(11), uint64(3), uint32(2), uint64(11), uint64(3), uint32(5)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT created_at, updated_at FROM reservations WHERE id = ?").
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	res := &model.Reservation{
		UserID:          7,
		ShowID:          3,
		Status:          model.StatusConfirmed,
		Seats:           []uint32{5, 2}, // unsorted on purpose
		TotalPriceCents: 500,
	}
	require.NoError(t, repo.Create(context.Background(), res))
	assert.Equal(t, uint64(11), res.ID)
	assert.Equal(t, []uint32{2, 5}, res.Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationCreateRejectsBadInput(t *testing.T) {
	repo, _ := newReservationMock(t)

	cases := []struct {
		name string
		res  model.Reservation
	}{
		{"no seats", model.Reservation{UserID: 1, ShowID: 1, Status: model.StatusConfirmed}},
		{"duplicate seats", model.Reservation{UserID: 1, ShowID: 1, Status: model.StatusConfirmed, Seats: []uint32{2, 2}}},
		{"bad status", model.Reservation{UserID: 1, ShowID: 1, Status: "BOOKED", Seats: []uint32{1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.res
			assert.Error(t, repo.Create(context.Background(), &res))
		})
	}
}

func TestReservationCreateRollsBackOnSeatInsertFailure(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(uint64(7), uint64(3), "PENDING", uint32(100), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectExec("INSERT INTO reservation_seats").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	exp := time.Now().UTC().Add(5 * time.Minute)
	res := &model.Reservation{
		UserID:          7,
		ShowID:          3,
		Status:          model.StatusPending,
		Seats:           []uint32{1},
		TotalPriceCents: 100,
		ExpiresAt:       &exp,
	}
	assert.Error(t, repo.Create(context.Background(), res))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationGetByID(t *testing.T) {
	repo, mock := newReservationMock(t)
	now := time.Now().UTC()
	exp := now.Add(5 * time.Minute)

	mock.ExpectQuery("SELECT id, user_id, show_id, status, total_price_cents, expires_at, created_at, updated_at FROM reservations WHERE id = ?").
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "show_id", "status", "total_price_cents", "expires_at", "created_at", "updated_at",
		}).AddRow(11, 7, 3, "PENDING", 500, exp, now, now))
	mock.ExpectQuery("SELECT seat_number FROM reservation_seats WHERE reservation_id = \\? ORDER BY seat_number").
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(2).AddRow(5))

	res, err := repo.GetByID(context.Background(), 11)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, res.Status)
	assert.Equal(t, []uint32{2, 5}, res.Seats)
	require.NotNil(t, res.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationGetByIDNotFound(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectQuery("SELECT id, user_id, show_id, status, .+ FROM reservations WHERE id = ?").
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationUpdateStatus(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectExec("UPDATE reservations SET status = \\?, updated_at = CURRENT_TIMESTAMP WHERE id = ?").
		WithArgs("CANCELLED", uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), 11, model.StatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationUpdateStatusNotFound(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectExec("UPDATE reservations SET status = ").
		WithArgs("CANCELLED", uint64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM reservations WHERE id = ?").
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdateStatus(context.Background(), 99, model.StatusCancelled)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationUpdateStatusAlreadySet(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectExec("UPDATE reservations SET status = ").
		WithArgs("CANCELLED", uint64(11)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM reservations WHERE id = ?").
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	assert.NoError(t, repo.UpdateStatus(context.Background(), 11, model.StatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationUpdateStatusRejectsUnknownStatus(t *testing.T) {
	repo, _ := newReservationMock(t)
	assert.Error(t, repo.UpdateStatus(context.Background(), 11, "BOOKED"))
}

func TestReservedSeats(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectQuery("SELECT rs.seat_number FROM reservation_seats rs JOIN reservations r ON r.id = rs.reservation_id WHERE r.show_id = \\? AND r.status IN").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}).AddRow(1).AddRow(4).AddRow(9))

	seats, err := repo.ReservedSeats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 4, 9}, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservedSeatsEmpty(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectQuery("SELECT rs.seat_number FROM reservation_seats").
		WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number"}))

	seats, err := repo.ReservedSeats(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, seats)
	assert.Empty(t, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExpirePending(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectExec("UPDATE reservations SET status = 'EXPIRED'").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.ExpirePending(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser(t *testing.T) {
	repo, mock := newReservationMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT r.id, r.show_id, s.title, s.show_date, s.show_time, r.status, r.total_price_cents, r.created_at FROM reservations r JOIN shows s").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "show_id", "title", "show_date", "show_time", "status", "total_price_cents", "created_at",
		}).AddRow(11, 3, "Hamlet", "2026-09-15", "19:30", "CONFIRMED", 500, now))
	mock.ExpectQuery("SELECT reservation_id, seat_number FROM reservation_seats WHERE reservation_id IN").
		WithArgs(uint64(11)).
		WillReturnRows(sqlmock.NewRows([]string{"reservation_id", "seat_number"}).
			AddRow(11, 2).AddRow(11, 5))

	details, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "Hamlet", details[0].ShowTitle)
	assert.Equal(t, []uint32{2, 5}, details[0].Seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUserEmpty(t *testing.T) {
	repo, mock := newReservationMock(t)

	mock.ExpectQuery("SELECT r.id, r.show_id, s.title").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "show_id", "title", "show_date", "show_time", "status", "total_price_cents", "created_at",
		}))

	details, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	assert.NotNil(t, details)
	assert.Empty(t, details)
	assert.NoError(t, mock.ExpectationsWereMet())
}
