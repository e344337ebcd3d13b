package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/subashmuthub/lab-management-system/internal/model"
)

// BookingRepo provides CRUD operations for bookings. The critical
// operation is CreateIfAvailable, which runs the overlap check and the
// insert inside one serializable transaction so that two concurrent
// proposals for the same slot cannot both succeed.
type BookingRepo struct{ DB *sql.DB }

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{DB: db} }

const bookingColumns = `id, user_id, resource_kind, resource_id, start_time, end_time,
	status, purpose, created_at, updated_at`

// CreateIfAvailable inserts the booking with status pending unless an
// existing pending/confirmed booking for the same resource overlaps
// the half-open interval [StartTime, EndTime). On overlap it returns
// ErrBookingConflict and leaves the table untouched.
//
// The SELECT uses FOR UPDATE under a serializable transaction:
// InnoDB's next-key locks on the scanned index range block a second
// writer until the first commits, turning the check-then-insert into
// an atomic unit. A plain read followed by an insert would race.
func (r *BookingRepo) CreateIfAvailable(ctx context.Context, b *model.Booking) error {
	tx, err := r.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const overlap = `SELECT COUNT(*) FROM bookings
		WHERE resource_kind = ? AND resource_id = ?
		  AND status IN (?, ?)
		  AND start_time < ? AND end_time > ?
		FOR UPDATE`
	var n int
	err = tx.QueryRowContext(ctx, overlap,
		b.ResourceKind, b.ResourceID,
		model.BookingPending, model.BookingConfirmed,
		b.EndTime, b.StartTime,
	).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrBookingConflict
	}

	now := time.Now().UTC()
	const insert = `INSERT INTO bookings
		(user_id, resource_kind, resource_id, start_time, end_time, status, purpose, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, insert,
		b.UserID, b.ResourceKind, b.ResourceID,
		b.StartTime, b.EndTime, model.BookingPending, b.Purpose, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true

	b.ID = uint64(id)
	b.Status = model.BookingPending
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

// GetByID fetches a single booking.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (model.Booking, error) {
	var b model.Booking
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id=? LIMIT 1", id).
		Scan(&b.ID, &b.UserID, &b.ResourceKind, &b.ResourceID, &b.StartTime, &b.EndTime,
			&b.Status, &b.Purpose, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// ListByUser returns the user's bookings, most recent start first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id=? ORDER BY start_time DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.UserID, &b.ResourceKind, &b.ResourceID,
			&b.StartTime, &b.EndTime, &b.Status, &b.Purpose, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a booking to the given status.
func (r *BookingRepo) UpdateStatus(ctx context.Context, id uint64, status string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE bookings SET status=?, updated_at=? WHERE id=?",
		status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrBookingNotFound
	}
	return nil
}
