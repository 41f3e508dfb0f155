package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, account_id, book_id, status, priority, notified_at, expires_at, created_at, updated_at`

func scanReservation(row interface{ Scan(dest ...any) error }) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.AccountID,
		&r.BookID,
		&r.Status,
		&r.Priority,
		&r.NotifiedAt,
		&r.ExpiresAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

type CreateReservationParams struct {
	AccountID int32
	BookID    int32
	Priority  int32
}

const createReservation = `
INSERT INTO reservations (account_id, book_id, status, priority)
VALUES ($1, $2, 'pending', $3)
RETURNING ` + reservationColumns

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, createReservation, arg.AccountID, arg.BookID, arg.Priority))
}

const getReservationByID = `
SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

func (q *Queries) GetReservationByID(ctx context.Context, id int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservationByID, id))
}

const countActiveReservationsByBook = `
SELECT count(*) FROM reservations
WHERE book_id = $1 AND status IN ('pending', 'notified')`

func (q *Queries) CountActiveReservationsByBook(ctx context.Context, bookID int32) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveReservationsByBook, bookID).Scan(&count)
	return count, err
}

type GetActiveReservationForAccountParams struct {
	AccountID int32
	BookID    int32
}

const getActiveReservationForAccount = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE account_id = $1 AND book_id = $2 AND status IN ('pending', 'notified')
LIMIT 1`

func (q *Queries) GetActiveReservationForAccount(ctx context.Context, arg GetActiveReservationForAccountParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getActiveReservationForAccount, arg.AccountID, arg.BookID))
}

type SetReservationStatusParams struct {
	ID     int32
	Status string
}

const setReservationStatus = `
UPDATE reservations
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + reservationColumns

func (q *Queries) SetReservationStatus(ctx context.Context, arg SetReservationStatusParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, setReservationStatus, arg.ID, arg.Status))
}

type MarkReservationNotifiedParams struct {
	ID         int32
	NotifiedAt pgtype.Timestamptz
	ExpiresAt  pgtype.Timestamptz
}

// MarkReservationNotified keeps the entry's priority untouched: a notified
// reservation holds its rank until it completes, cancels or expires, so a
// notified row may coexist with lower-priority pending rows.
const markReservationNotified = `
UPDATE reservations
SET status = 'notified', notified_at = $2, expires_at = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + reservationColumns

func (q *Queries) MarkReservationNotified(ctx context.Context, arg MarkReservationNotifiedParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, markReservationNotified, arg.ID, arg.NotifiedAt, arg.ExpiresAt))
}

// GetNextPendingReservation picks the head of the waitlist: lowest priority,
// then earliest creation, then lowest id so ties on the same instant still
// order deterministically.
const getNextPendingReservation = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'pending'
ORDER BY priority, created_at, id
LIMIT 1`

func (q *Queries) GetNextPendingReservation(ctx context.Context, bookID int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getNextPendingReservation, bookID))
}

// ReorderBookReservations rewrites the priorities of a book's active
// reservations to the contiguous sequence 1..N, ordered by creation time
// with id as the tie break. Callers must hold the book row lock
// (GetBookForUpdate) in the same transaction: under read committed a bare
// UPDATE re-evaluates rows that a concurrent re-rank already moved and can
// write ranks computed from a stale snapshot.
const reorderBookReservations = `
UPDATE reservations r
SET priority = ranked.rank, updated_at = now()
FROM (
    SELECT id, ROW_NUMBER() OVER (ORDER BY created_at, id) AS rank
    FROM reservations
    WHERE book_id = $1 AND status IN ('pending', 'notified')
) ranked
WHERE r.id = ranked.id`

func (q *Queries) ReorderBookReservations(ctx context.Context, bookID int32) error {
	_, err := q.db.Exec(ctx, reorderBookReservations, bookID)
	return err
}

const listReservationsByBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status IN ('pending', 'notified')
ORDER BY priority, created_at, id`

func (q *Queries) ListReservationsByBook(ctx context.Context, bookID int32) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservationsByBook, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

type ListReservationsByAccountParams struct {
	AccountID int32
	Limit     int32
	Offset    int32
}

const listReservationsByAccount = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListReservationsByAccount(ctx context.Context, arg ListReservationsByAccountParams) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservationsByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

// ExpireNotifiedReservations flips every notified reservation whose hold
// deadline has passed and returns the affected rows so the caller can
// re-rank each touched book.
const expireNotifiedReservations = `
UPDATE reservations
SET status = 'expired', updated_at = now()
WHERE status = 'notified' AND expires_at < $1
RETURNING ` + reservationColumns

func (q *Queries) ExpireNotifiedReservations(ctx context.Context, now pgtype.Timestamptz) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, expireNotifiedReservations, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}
