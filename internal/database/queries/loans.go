package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const loanColumns = `id, account_id, book_id, checked_out_at, due_at, returned_at, overdue_days, fine_amount, status, renewal_count, created_at, updated_at`

func scanLoan(row interface{ Scan(dest ...any) error }) (Loan, error) {
	var l Loan
	err := row.Scan(
		&l.ID,
		&l.AccountID,
		&l.BookID,
		&l.CheckedOutAt,
		&l.DueAt,
		&l.ReturnedAt,
		&l.OverdueDays,
		&l.FineAmount,
		&l.Status,
		&l.RenewalCount,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

type CreateLoanParams struct {
	AccountID int32
	BookID    int32
	DueAt     pgtype.Timestamptz
}

const createLoan = `
INSERT INTO loans (account_id, book_id, checked_out_at, due_at, overdue_days, fine_amount, status, renewal_count)
VALUES ($1, $2, now(), $3, 0, 0, 'active', 0)
RETURNING ` + loanColumns

func (q *Queries) CreateLoan(ctx context.Context, arg CreateLoanParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, createLoan, arg.AccountID, arg.BookID, arg.DueAt))
}

const getLoanByID = `
SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

func (q *Queries) GetLoanByID(ctx context.Context, id int32) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, getLoanByID, id))
}

type ReturnLoanParams struct {
	ID          int32
	ReturnedAt  pgtype.Timestamptz
	OverdueDays int32
	FineAmount  pgtype.Numeric
}

// ReturnLoan flips an active loan to returned and records the overdue fields
// exactly once. The status guard makes a concurrent double return match no
// row instead of overwriting the first return's fine.
const returnLoan = `
UPDATE loans
SET returned_at = $2, overdue_days = $3, fine_amount = $4, status = 'returned', updated_at = now()
WHERE id = $1 AND status = 'active'
RETURNING ` + loanColumns

func (q *Queries) ReturnLoan(ctx context.Context, arg ReturnLoanParams) (Loan, error) {
	row := q.db.QueryRow(ctx, returnLoan,
		arg.ID,
		arg.ReturnedAt,
		arg.OverdueDays,
		arg.FineAmount,
	)
	return scanLoan(row)
}

type RenewLoanParams struct {
	ID    int32
	DueAt pgtype.Timestamptz
}

const renewLoan = `
UPDATE loans
SET due_at = $2, renewal_count = renewal_count + 1, updated_at = now()
WHERE id = $1 AND status = 'active' AND renewal_count < 2
RETURNING ` + loanColumns

func (q *Queries) RenewLoan(ctx context.Context, arg RenewLoanParams) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, renewLoan, arg.ID, arg.DueAt))
}

type ListLoansByAccountParams struct {
	AccountID int32
	Limit     int32
	Offset    int32
}

const listLoansByAccount = `
SELECT ` + loanColumns + `
FROM loans
WHERE account_id = $1
ORDER BY checked_out_at DESC
LIMIT $2 OFFSET $3`

func (q *Queries) ListLoansByAccount(ctx context.Context, arg ListLoansByAccountParams) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listLoansByAccount, arg.AccountID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

const listActiveLoans = `
SELECT ` + loanColumns + `
FROM loans
WHERE status = 'active'
ORDER BY due_at`

func (q *Queries) ListActiveLoans(ctx context.Context) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listActiveLoans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

const listOverdueLoans = `
SELECT ` + loanColumns + `
FROM loans
WHERE status = 'active' AND due_at < $1
ORDER BY due_at`

func (q *Queries) ListOverdueLoans(ctx context.Context, now pgtype.Timestamptz) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listOverdueLoans, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

const countActiveLoansByBook = `
SELECT count(*) FROM loans WHERE book_id = $1 AND status = 'active'`

func (q *Queries) CountActiveLoansByBook(ctx context.Context, bookID int32) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveLoansByBook, bookID).Scan(&count)
	return count, err
}
