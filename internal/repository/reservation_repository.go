package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/teatarmk/reservation-api/internal/model"
)

// ReservationRepo is the reservation ledger: the authoritative store
// of reservation records and the seat numbers they own.  Seats claimed
// by a reservation live in the reservation_seats table.  The ledger
// enforces its own structural invariants (seat set non-empty, seats
// unique within a record, status one of the defined values) but does
// not detect cross-reservation seat conflicts; that is the reservation
// service's job.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// Create inserts a reservation together with its seat rows in a single
// transaction, so a crash can never leave a reservation without seats.
// The generated ID and DB timestamps are populated on the given record
// and its seat set is normalised to sorted order.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if len(res.Seats) == 0 {
		return errors.New("reservation has no seats")
	}
	if !res.Status.Valid() {
		return errors.New("invalid reservation status: " + string(res.Status))
	}
	seats := append([]uint32(nil), res.Seats...)
	sort.Slice(seats, func(i, j int) bool { return seats[i] < seats[j] })
	for i := 1; i < len(seats); i++ {
		if seats[i] == seats[i-1] {
			return errors.New("duplicate seat in reservation")
		}
	}

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

	const ins = `INSERT INTO reservations (user_id, show_id, status, total_price_cents, expires_at) VALUES (?, ?, ?, ?, ?)`
	var expires any
	if res.ExpiresAt != nil {
		expires = res.ExpiresAt.UTC()
	}
	result, err := tx.ExecContext(ctx, ins, res.UserID, res.ShowID, string(res.Status), res.TotalPriceCents, expires)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)

	// Bulk insert the seat rows in one statement.
	query := `INSERT INTO reservation_seats (reservation_id, show_id, seat_number) VALUES `
	args := make([]any, 0, len(seats)*3)
	for i, n := range seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, res.ID, res.ShowID, n)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}

	// Query back the row to populate timestamps and defaults.
	const sel = `SELECT created_at, updated_at FROM reservations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt, &res.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	res.Seats = seats
	return nil
}

// GetByID loads a reservation and its seat numbers.  It returns
// ErrReservationNotFound when no row with the given ID exists.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	const q = `SELECT id, user_id, show_id, status, total_price_cents, expires_at, created_at, updated_at
	           FROM reservations WHERE id = ?`
	var res model.Reservation
	var status string
	var expires sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&res.ID, &res.UserID, &res.ShowID, &status, &res.TotalPriceCents,
		&expires, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	res.Status = model.ReservationStatus(status)
	if expires.Valid {
		t := expires.Time.UTC()
		res.ExpiresAt = &t
	}
	const seatQ = `SELECT seat_number FROM reservation_seats WHERE reservation_id = ? ORDER BY seat_number`
	rows, err := r.db.QueryContext(ctx, seatQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		res.Seats = append(res.Seats, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &res, nil
}

// UpdateStatus transitions a reservation to newStatus.  The seat set
// is never touched; freeing seats is purely a consequence of the
// status no longer counting as active in inventory queries.  It
// returns ErrReservationNotFound when the row does not exist.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id uint64, newStatus model.ReservationStatus) error {
	if !newStatus.Valid() {
		return errors.New("invalid reservation status: " + string(newStatus))
	}
	const q = `UPDATE reservations SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(newStatus), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ? LIMIT 1`, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrReservationNotFound
		}
		return err
	}
	return nil // row exists, status already equal
}

// ReservedSeats returns the seat numbers currently held for a show:
// the union of seat sets over reservations with status PENDING or
// CONFIRMED.  Cancelled and expired reservations never contribute.
// This is the live inventory query; it is always consistent with the
// ledger because it IS the ledger.  The (show_id, status) index keeps
// it cheap.
func (r *ReservationRepo) ReservedSeats(ctx context.Context, showID uint64) ([]uint32, error) {
	const q = `SELECT rs.seat_number
	           FROM reservation_seats rs
	           JOIN reservations r ON r.id = rs.reservation_id
	           WHERE r.show_id = ? AND r.status IN ('PENDING','CONFIRMED')
	           ORDER BY rs.seat_number`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	seats := make([]uint32, 0)
	for rows.Next() {
		var n uint32
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		seats = append(seats, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ExpirePending transitions every PENDING reservation whose deadline
// has passed to EXPIRED and returns how many rows changed.  The single
// UPDATE is atomic, so a hold can never be both confirmed and expired.
func (r *ReservationRepo) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE reservations
	           SET status = 'EXPIRED', updated_at = CURRENT_TIMESTAMP
	           WHERE status = 'PENDING' AND expires_at IS NOT NULL AND expires_at < ?`
	res, err := r.db.ExecContext(ctx, q, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReservationDetail is a reservation joined with its show for display
// to customers: the shape the profile page renders.
type ReservationDetail struct {
	ID              uint64    `json:"id"`
	ShowID          uint64    `json:"show_id"`
	ShowTitle       string    `json:"title"`
	ShowDate        string    `json:"date"`
	ShowTime        string    `json:"time"`
	Status          string    `json:"status"`
	Seats           []uint32  `json:"seats"`
	TotalPriceCents uint32    `json:"total_price_cents"`
	CreatedAt       time.Time `json:"created_at"`
}

// AdminReservationDetail extends ReservationDetail with the customer's
// identity for the admin dashboard.
type AdminReservationDetail struct {
	ReservationDetail
	UserID    uint64 `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ListByUser returns all reservations created by the given user, newest
// first, each with its show details and seat numbers.  When no
// reservations exist an empty slice is returned.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT r.id, r.show_id, s.title, s.show_date, s.show_time, r.status, r.total_price_cents, r.created_at
	           FROM reservations r
	           JOIN shows s ON s.id = r.show_id
	           WHERE r.user_id = ?
	           ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		if err := rows.Scan(&d.ID, &d.ShowID, &d.ShowTitle, &d.ShowDate, &d.ShowTime, &d.Status, &d.TotalPriceCents, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Seats = []uint32{}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	dest := make(map[uint64]*[]uint32, len(details))
	for i := range details {
		dest[details[i].ID] = &details[i].Seats
	}
	if err := r.attachSeats(ctx, dest); err != nil {
		return nil, err
	}
	return details, nil
}

// ListByShow returns every reservation for one show with customer
// details, newest first.  Intended for the admin dashboard's per-show
// view.
func (r *ReservationRepo) ListByShow(ctx context.Context, showID uint64) ([]AdminReservationDetail, error) {
	const q = `SELECT r.id, r.show_id, s.title, s.show_date, s.show_time, r.status, r.total_price_cents, r.created_at,
	                  u.id, u.first_name, u.last_name, u.email
	           FROM reservations r
	           JOIN shows s ON s.id = r.show_id
	           JOIN users u ON u.id = r.user_id
	           WHERE r.show_id = ?
	           ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details, err := scanAdminDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	dest := make(map[uint64]*[]uint32, len(details))
	for i := range details {
		dest[details[i].ID] = &details[i].Seats
	}
	if err := r.attachSeats(ctx, dest); err != nil {
		return nil, err
	}
	return details, nil
}

// ListAll returns every reservation with show and customer details,
// newest first.  Intended for the admin dashboard.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]AdminReservationDetail, error) {
	const q = `SELECT r.id, r.show_id, s.title, s.show_date, s.show_time, r.status, r.total_price_cents, r.created_at,
	                  u.id, u.first_name, u.last_name, u.email
	           FROM reservations r
	           JOIN shows s ON s.id = r.show_id
	           JOIN users u ON u.id = r.user_id
	           ORDER BY r.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details, err := scanAdminDetails(rows)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	dest := make(map[uint64]*[]uint32, len(details))
	for i := range details {
		dest[details[i].ID] = &details[i].Seats
	}
	if err := r.attachSeats(ctx, dest); err != nil {
		return nil, err
	}
	return details, nil
}

func scanAdminDetails(rows *sql.Rows) ([]AdminReservationDetail, error) {
	details := make([]AdminReservationDetail, 0)
	for rows.Next() {
		var d AdminReservationDetail
		if err := rows.Scan(
			&d.ID, &d.ShowID, &d.ShowTitle, &d.ShowDate, &d.ShowTime, &d.Status, &d.TotalPriceCents, &d.CreatedAt,
			&d.UserID, &d.FirstName, &d.LastName, &d.Email,
		); err != nil {
			return nil, err
		}
		d.Seats = []uint32{}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// attachSeats populates the seat numbers for a batch of reservations
// in a single IN query.  dest maps reservation ID to the seat slice to
// append into.
func (r *ReservationRepo) attachSeats(ctx context.Context, dest map[uint64]*[]uint32) error {
	ids := make([]any, 0, len(dest))
	placeholders := make([]string, 0, len(dest))
	for id := range dest {
		ids = append(ids, id)
		placeholders = append(placeholders, "?")
	}
	q := `SELECT reservation_id, seat_number
	      FROM reservation_seats
	      WHERE reservation_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY reservation_id, seat_number`
	rows, err := r.db.QueryContext(ctx, q, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rid uint64
		var n uint32
		if err := rows.Scan(&rid, &n); err != nil {
			return err
		}
		if seats, ok := dest[rid]; ok {
			*seats = append(*seats, n)
		}
	}
	return rows.Err()
}
