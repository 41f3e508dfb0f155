package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const bookColumns = `id, title, author, isbn, category, publisher, published_year, total_copies, available_copies, status, created_at, updated_at`

func scanBook(row interface{ Scan(dest ...any) error }) (Book, error) {
	var b Book
	err := row.Scan(
		&b.ID,
		&b.Title,
		&b.Author,
		&b.Isbn,
		&b.Category,
		&b.Publisher,
		&b.PublishedYear,
		&b.TotalCopies,
		&b.AvailableCopies,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

type CreateBookParams struct {
	Title           string
	Author          string
	Isbn            string
	Category        pgtype.Text
	Publisher       pgtype.Text
	PublishedYear   pgtype.Int4
	TotalCopies     int32
	AvailableCopies int32
	Status          string
}

const createBook = `
INSERT INTO books (title, author, isbn, category, publisher, published_year, total_copies, available_copies, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + bookColumns

func (q *Queries) CreateBook(ctx context.Context, arg CreateBookParams) (Book, error) {
	row := q.db.QueryRow(ctx, createBook,
		arg.Title,
		arg.Author,
		arg.Isbn,
		arg.Category,
		arg.Publisher,
		arg.PublishedYear,
		arg.TotalCopies,
		arg.AvailableCopies,
		arg.Status,
	)
	return scanBook(row)
}

const getBookByID = `
SELECT ` + bookColumns + ` FROM books WHERE id = $1`

func (q *Queries) GetBookByID(ctx context.Context, id int32) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, getBookByID, id))
}

// GetBookForUpdate locks the book row for the rest of the transaction.
// Waitlist writers take this lock first so ranking reads and rewrites for
// one book never interleave.
const getBookForUpdate = `
SELECT ` + bookColumns + ` FROM books WHERE id = $1 FOR UPDATE`

func (q *Queries) GetBookForUpdate(ctx context.Context, id int32) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, getBookForUpdate, id))
}

const getBookByISBN = `
SELECT ` + bookColumns + ` FROM books WHERE isbn = $1`

func (q *Queries) GetBookByISBN(ctx context.Context, isbn string) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, getBookByISBN, isbn))
}

type ListBooksParams struct {
	Limit  int32
	Offset int32
}

const listBooks = `
SELECT ` + bookColumns + `
FROM books
ORDER BY title
LIMIT $1 OFFSET $2`

func (q *Queries) ListBooks(ctx context.Context, arg ListBooksParams) ([]Book, error) {
	rows, err := q.db.Query(ctx, listBooks, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

type UpdateBookParams struct {
	ID            int32
	Title         string
	Author        string
	Category      pgtype.Text
	Publisher     pgtype.Text
	PublishedYear pgtype.Int4
}

const updateBook = `
UPDATE books
SET title = $2, author = $3, category = $4, publisher = $5, published_year = $6, updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns

func (q *Queries) UpdateBook(ctx context.Context, arg UpdateBookParams) (Book, error) {
	row := q.db.QueryRow(ctx, updateBook,
		arg.ID,
		arg.Title,
		arg.Author,
		arg.Category,
		arg.Publisher,
		arg.PublishedYear,
	)
	return scanBook(row)
}

type AdjustBookCopiesParams struct {
	ID    int32
	Delta int32
}

// AdjustBookCopies changes the available-copy counter by Delta in a single
// statement. The WHERE clause enforces 0 <= available+delta <= total under
// concurrency: when two checkouts race for the last copy one of them matches
// no row and gets pgx.ErrNoRows. The status CASE mirrors
// services.DeriveStatus; it lives in the statement because the post-update
// counter is only known here.
const adjustBookCopies = `
UPDATE books
SET available_copies = available_copies + $2,
    status = CASE
        WHEN status = 'maintenance' THEN 'maintenance'
        WHEN available_copies + $2 = 0 THEN 'exhausted'
        ELSE 'available'
    END,
    updated_at = now()
WHERE id = $1
  AND available_copies + $2 >= 0
  AND available_copies + $2 <= total_copies
RETURNING ` + bookColumns

func (q *Queries) AdjustBookCopies(ctx context.Context, arg AdjustBookCopiesParams) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, adjustBookCopies, arg.ID, arg.Delta))
}

type SetBookTotalCopiesParams struct {
	ID          int32
	TotalCopies int32
}

// SetBookTotalCopies resizes the inventory, moving the available counter by
// the same delta so the loaned-copy count is preserved. The guard rejects a
// total below the number of currently loaned copies.
const setBookTotalCopies = `
UPDATE books
SET available_copies = available_copies + ($2 - total_copies),
    total_copies = $2,
    status = CASE
        WHEN status = 'maintenance' THEN 'maintenance'
        WHEN available_copies + ($2 - total_copies) = 0 THEN 'exhausted'
        ELSE 'available'
    END,
    updated_at = now()
WHERE id = $1
  AND $2 >= total_copies - available_copies
RETURNING ` + bookColumns

func (q *Queries) SetBookTotalCopies(ctx context.Context, arg SetBookTotalCopiesParams) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, setBookTotalCopies, arg.ID, arg.TotalCopies))
}

type SetBookStatusParams struct {
	ID     int32
	Status string
}

const setBookStatus = `
UPDATE books
SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + bookColumns

func (q *Queries) SetBookStatus(ctx context.Context, arg SetBookStatusParams) (Book, error) {
	return scanBook(q.db.QueryRow(ctx, setBookStatus, arg.ID, arg.Status))
}

const deleteBook = `
DELETE FROM books WHERE id = $1`

func (q *Queries) DeleteBook(ctx context.Context, id int32) error {
	tag, err := q.db.Exec(ctx, deleteBook, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
