package queries

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const accountColumns = `id, first_name, last_name, email, password_hash, role, is_active, fine_balance, created_at, updated_at`

func scanAccount(row interface{ Scan(dest ...any) error }) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID,
		&a.FirstName,
		&a.LastName,
		&a.Email,
		&a.PasswordHash,
		&a.Role,
		&a.IsActive,
		&a.FineBalance,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

type CreateAccountParams struct {
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
}

const createAccount = `
INSERT INTO accounts (first_name, last_name, email, password_hash, role, is_active, fine_balance)
VALUES ($1, $2, $3, $4, $5, TRUE, 0)
RETURNING ` + accountColumns

func (q *Queries) CreateAccount(ctx context.Context, arg CreateAccountParams) (Account, error) {
	row := q.db.QueryRow(ctx, createAccount,
		arg.FirstName,
		arg.LastName,
		arg.Email,
		arg.PasswordHash,
		arg.Role,
	)
	return scanAccount(row)
}

const getAccountByID = `
SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

func (q *Queries) GetAccountByID(ctx context.Context, id int32) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByID, id))
}

const getAccountByEmail = `
SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

func (q *Queries) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, getAccountByEmail, email))
}

type ListAccountsParams struct {
	Limit  int32
	Offset int32
}

const listAccounts = `
SELECT ` + accountColumns + `
FROM accounts
ORDER BY last_name, first_name
LIMIT $1 OFFSET $2`

func (q *Queries) ListAccounts(ctx context.Context, arg ListAccountsParams) ([]Account, error) {
	rows, err := q.db.Query(ctx, listAccounts, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type SetAccountActiveParams struct {
	ID       int32
	IsActive bool
}

const setAccountActive = `
UPDATE accounts
SET is_active = $2, updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (q *Queries) SetAccountActive(ctx context.Context, arg SetAccountActiveParams) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, setAccountActive, arg.ID, arg.IsActive))
}

type UpdateAccountRoleParams struct {
	ID   int32
	Role string
}

const updateAccountRole = `
UPDATE accounts
SET role = $2, updated_at = now()
WHERE id = $1
RETURNING ` + accountColumns

func (q *Queries) UpdateAccountRole(ctx context.Context, arg UpdateAccountRoleParams) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, updateAccountRole, arg.ID, arg.Role))
}

type AddToFineBalanceParams struct {
	ID     int32
	Amount pgtype.Numeric
}

// AddToFineBalance is an atomic increment, not an overwrite, so concurrent
// accruals for the same account cannot lose updates. The guard keeps the
// balance non-negative; a negative result matches no row and the caller
// sees pgx.ErrNoRows.
const addToFineBalance = `
UPDATE accounts
SET fine_balance = fine_balance + $2, updated_at = now()
WHERE id = $1 AND fine_balance + $2 >= 0
RETURNING ` + accountColumns

func (q *Queries) AddToFineBalance(ctx context.Context, arg AddToFineBalanceParams) (Account, error) {
	return scanAccount(q.db.QueryRow(ctx, addToFineBalance, arg.ID, arg.Amount))
}
