package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "active"
	LoanStatusReturned LoanStatus = "returned"
)

// MaxRenewals is the cap on renewals per loan.
const MaxRenewals = 2

// Loan is one checkout transaction linking an account to a book. Loans are
// never deleted; a returned loan is the historical record of the checkout.
type Loan struct {
	ID           int32           `json:"id"`
	AccountID    int32           `json:"account_id"`
	BookID       int32           `json:"book_id"`
	CheckedOutAt time.Time       `json:"checked_out_at"`
	DueAt        time.Time       `json:"due_at"`
	ReturnedAt   *time.Time      `json:"returned_at,omitempty"`
	OverdueDays  int32           `json:"overdue_days"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
	Status       LoanStatus      `json:"status"`
	RenewalCount int32           `json:"renewal_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CheckoutRequest represents a checkout request. The due date is supplied by
// the caller and must be strictly in the future.
type CheckoutRequest struct {
	BookID int32     `json:"book_id" binding:"required,min=1"`
	DueAt  time.Time `json:"due_at" binding:"required"`
}

// RenewRequest extends an active loan's due date.
type RenewRequest struct {
	DueAt time.Time `json:"due_at" binding:"required"`
}

// LoanResponse is the wire representation of a loan.
type LoanResponse struct {
	ID           int32           `json:"id"`
	AccountID    int32           `json:"account_id"`
	BookID       int32           `json:"book_id"`
	CheckedOutAt time.Time       `json:"checked_out_at"`
	DueAt        time.Time       `json:"due_at"`
	ReturnedAt   *time.Time      `json:"returned_at,omitempty"`
	OverdueDays  int32           `json:"overdue_days"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
	Status       LoanStatus      `json:"status"`
	RenewalCount int32           `json:"renewal_count"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
