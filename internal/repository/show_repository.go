// Package repository contains data access logic for the show catalog
// and the reservation ledger. All SQL lives here; business rules such
// as seat-conflict detection belong to the service layer.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/teatarmk/reservation-api/internal/model"
)

// showColumns is the column list shared by every SELECT on shows.
const showColumns = `id, title, description, director, show_date, show_time, duration_min, total_seats, price_cents, created_at, updated_at`

// ShowRepo manages persistence for the show catalog.  Shows are
// referenced by reservations via their ID only; nothing is embedded.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

func scanShow(row interface{ Scan(...any) error }, s *model.Show) error {
	return row.Scan(
		&s.ID, &s.Title, &s.Description, &s.Director,
		&s.Date, &s.Time, &s.DurationMin, &s.TotalSeats, &s.PriceCents,
		&s.CreatedAt, &s.UpdatedAt,
	)
}

// Create inserts a new show and assigns the generated ID back to the
// struct.  The freshly inserted row is queried back so DB defaults
// (timestamps) are populated on the model.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (title, description, director, show_date, show_time, duration_min, total_seats, price_cents)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		s.Title, s.Description, s.Director, s.Date, s.Time, s.DurationMin, s.TotalSeats, s.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	const sel = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
	return scanShow(r.db.QueryRowContext(ctx, sel, s.ID), s)
}

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT ` + showColumns + ` FROM shows WHERE id = ?`
	var s model.Show
	if err := scanShow(r.db.QueryRowContext(ctx, q, id), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, err
	}
	return &s, nil
}

// List returns all shows ordered by date and time ascending.  When no
// shows exist it returns an empty slice and nil error.
func (r *ShowRepo) List(ctx context.Context) ([]model.Show, error) {
	const q = `SELECT ` + showColumns + ` FROM shows ORDER BY show_date ASC, show_time ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make([]model.Show, 0)
	for rows.Next() {
		var s model.Show
		if err := scanShow(rows, &s); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites a show's editable fields.  It returns
// ErrShowNotFound when no row with the given ID exists.  The seat
// capacity and price of existing reservations are unaffected: prices
// are frozen on the reservation rows at booking time.
func (r *ShowRepo) Update(ctx context.Context, s *model.Show) error {
	const q = `UPDATE shows
	           SET title = ?, description = ?, director = ?, show_date = ?, show_time = ?,
	               duration_min = ?, total_seats = ?, price_cents = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		s.Title, s.Description, s.Director, s.Date, s.Time, s.DurationMin, s.TotalSeats, s.PriceCents,
		s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// RowsAffected is 0 both for a missing row and for a no-op update,
	// so check existence before reporting not found.
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM shows WHERE id = ? LIMIT 1`, s.ID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrShowNotFound
		}
		return err
	}
	return nil
}

// Delete removes a show provided it has no active reservations.  The
// check and the delete run in one transaction so a reservation created
// concurrently cannot slip between them.  It returns ErrShowNotFound
// when the show does not exist and ErrConflict when PENDING or
// CONFIRMED reservations still reference it; cancelled and expired
// reservations do not block deletion but are removed with the show.
func (r *ShowRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var one int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM shows WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrShowNotFound
		}
		return err
	}
	var active int
	const cnt = `SELECT COUNT(*) FROM reservations WHERE show_id = ? AND status IN ('PENDING','CONFIRMED')`
	if err := tx.QueryRowContext(ctx, cnt, id).Scan(&active); err != nil {
		return err
	}
	if active > 0 {
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservation_seats WHERE show_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE show_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM shows WHERE id = ?`, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
