package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// Account mirrors the accounts table.
type Account struct {
	ID           int32
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Role         string
	IsActive     pgtype.Bool
	FineBalance  pgtype.Numeric
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Book mirrors the books table.
type Book struct {
	ID              int32
	Title           string
	Author          string
	Isbn            string
	Category        pgtype.Text
	Publisher       pgtype.Text
	PublishedYear   pgtype.Int4
	TotalCopies     int32
	AvailableCopies int32
	Status          string
	CreatedAt       pgtype.Timestamptz
	UpdatedAt       pgtype.Timestamptz
}

// Loan mirrors the loans table.
type Loan struct {
	ID           int32
	AccountID    int32
	BookID       int32
	CheckedOutAt pgtype.Timestamptz
	DueAt        pgtype.Timestamptz
	ReturnedAt   pgtype.Timestamptz
	OverdueDays  int32
	FineAmount   pgtype.Numeric
	Status       string
	RenewalCount int32
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

// Reservation mirrors the reservations table.
type Reservation struct {
	ID         int32
	AccountID  int32
	BookID     int32
	Status     string
	Priority   int32
	NotifiedAt pgtype.Timestamptz
	ExpiresAt  pgtype.Timestamptz
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}
