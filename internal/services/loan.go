package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

// LoanQuerier defines the interface for loan database operations.
type LoanQuerier interface {
	CreateLoan(ctx context.Context, arg queries.CreateLoanParams) (queries.Loan, error)
	GetLoanByID(ctx context.Context, id int32) (queries.Loan, error)
	ReturnLoan(ctx context.Context, arg queries.ReturnLoanParams) (queries.Loan, error)
	RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error)
	ListLoansByAccount(ctx context.Context, arg queries.ListLoansByAccountParams) ([]queries.Loan, error)
	ListActiveLoans(ctx context.Context) ([]queries.Loan, error)
	ListOverdueLoans(ctx context.Context, now pgtype.Timestamptz) ([]queries.Loan, error)
	GetBookByID(ctx context.Context, id int32) (queries.Book, error)
	AdjustBookCopies(ctx context.Context, arg queries.AdjustBookCopiesParams) (queries.Book, error)
	AddToFineBalance(ctx context.Context, arg queries.AddToFineBalanceParams) (queries.Account, error)
}

// LoanStore adds the transactional boundary: operations that mutate more
// than one row run their statements through ExecLoanTx so a mid-operation
// failure rolls everything back.
type LoanStore interface {
	LoanQuerier
	ExecLoanTx(ctx context.Context, fn func(LoanQuerier) error) error
}

// LoanService orchestrates checkout, return and renewal. Every operation
// validates all of its preconditions before the first mutation.
type LoanService struct {
	store      LoanStore
	finePolicy *FinePolicy
	now        func() time.Time
}

func NewLoanService(store LoanStore, finePolicy *FinePolicy) *LoanService {
	return &LoanService{
		store:      store,
		finePolicy: finePolicy,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock. Tests use it to pin time-dependent checks.
func (s *LoanService) WithNow(now func() time.Time) *LoanService {
	s.now = now
	return s
}

// Checkout lends one copy of a book to the actor. The due date comes from
// the caller and must be strictly in the future.
func (s *LoanService) Checkout(ctx context.Context, actor models.Actor, bookID int32, dueAt time.Time) (*models.LoanResponse, error) {
	if !actor.IsActive {
		return nil, apperrors.PreconditionFailed("account %d is not active", actor.ID)
	}
	if actor.FineBalance.GreaterThan(decimal.Zero) {
		return nil, apperrors.PreconditionFailed("account %d has outstanding fines of %s", actor.ID, actor.FineBalance.StringFixed(2))
	}
	if !dueAt.After(s.now()) {
		return nil, apperrors.InvalidOperand("due date must be in the future")
	}

	book, err := s.store.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", bookID)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book.Status != string(models.BookStatusAvailable) {
		return nil, apperrors.PreconditionFailed("book %d is not available for checkout (status %s)", bookID, book.Status)
	}
	if book.AvailableCopies <= 0 {
		return nil, apperrors.PreconditionFailed("book %d has no available copies", bookID)
	}

	var loan queries.Loan
	err = s.store.ExecLoanTx(ctx, func(q LoanQuerier) error {
		// The guarded decrement, not the read above, decides who gets the
		// last copy when checkouts race.
		if _, err := q.AdjustBookCopies(ctx, queries.AdjustBookCopiesParams{ID: bookID, Delta: -1}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.PreconditionFailed("book %d has no available copies", bookID)
			}
			return fmt.Errorf("failed to decrement copies: %w", err)
		}

		loan, err = q.CreateLoan(ctx, queries.CreateLoanParams{
			AccountID: actor.ID,
			BookID:    bookID,
			DueAt:     pgtype.Timestamptz{Time: dueAt, Valid: true},
		})
		if err != nil {
			return fmt.Errorf("failed to create loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loanResponseFromRow(loan), nil
}

// Return closes an active loan. Overdue days and the fine are computed once,
// here, and never recomputed. The status flip, fine accrual and copy release
// commit together or not at all, so a failure cannot strand a returned loan
// with an unaccrued fine or an unreleased copy.
func (s *LoanService) Return(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error) {
	var returned queries.Loan
	err := s.store.ExecLoanTx(ctx, func(q LoanQuerier) error {
		loan, err := q.GetLoanByID(ctx, loanID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("loan %d not found", loanID)
			}
			return fmt.Errorf("failed to get loan: %w", err)
		}
		if err := AuthorizeOwner(actor, loan.AccountID); err != nil {
			return err
		}
		if loan.Status != string(models.LoanStatusActive) {
			return apperrors.AlreadyCompleted("loan %d is already returned", loanID)
		}

		returnedAt := s.now()
		overdueDays, fine := s.finePolicy.ComputeOverdue(loan.DueAt.Time, returnedAt)

		returned, err = q.ReturnLoan(ctx, queries.ReturnLoanParams{
			ID:          loanID,
			ReturnedAt:  pgtype.Timestamptz{Time: returnedAt, Valid: true},
			OverdueDays: overdueDays,
			FineAmount:  numericFromDecimal(fine),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				// A concurrent return won the status guard.
				return apperrors.AlreadyCompleted("loan %d is already returned", loanID)
			}
			return fmt.Errorf("failed to return loan: %w", err)
		}

		if fine.GreaterThan(decimal.Zero) {
			if _, err := q.AddToFineBalance(ctx, queries.AddToFineBalanceParams{
				ID:     loan.AccountID,
				Amount: numericFromDecimal(fine),
			}); err != nil {
				return fmt.Errorf("failed to accrue fine: %w", err)
			}
		}

		if _, err := q.AdjustBookCopies(ctx, queries.AdjustBookCopiesParams{ID: loan.BookID, Delta: 1}); err != nil {
			return fmt.Errorf("failed to increment copies: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return loanResponseFromRow(returned), nil
}

// Renew extends an active loan's due date, at most twice per loan.
func (s *LoanService) Renew(ctx context.Context, actor models.Actor, loanID int32, newDueAt time.Time) (*models.LoanResponse, error) {
	loan, err := s.store.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("loan %d not found", loanID)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if err := AuthorizeOwner(actor, loan.AccountID); err != nil {
		return nil, err
	}
	if loan.Status != string(models.LoanStatusActive) {
		return nil, apperrors.AlreadyCompleted("loan %d is already returned", loanID)
	}
	if loan.RenewalCount >= models.MaxRenewals {
		return nil, apperrors.LimitExceeded("loan %d has reached the maximum of %d renewals", loanID, models.MaxRenewals)
	}
	if !newDueAt.After(s.now()) {
		return nil, apperrors.InvalidOperand("new due date must be in the future")
	}

	renewed, err := s.store.RenewLoan(ctx, queries.RenewLoanParams{
		ID:    loanID,
		DueAt: pgtype.Timestamptz{Time: newDueAt, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Lost a race against a return or a concurrent renewal at the cap.
			return nil, apperrors.InvalidState("loan %d can no longer be renewed", loanID)
		}
		return nil, fmt.Errorf("failed to renew loan: %w", err)
	}

	return loanResponseFromRow(renewed), nil
}

// GetLoan returns one loan, patrons only their own.
func (s *LoanService) GetLoan(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error) {
	loan, err := s.store.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("loan %d not found", loanID)
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	if err := AuthorizeOwner(actor, loan.AccountID); err != nil {
		return nil, err
	}
	return loanResponseFromRow(loan), nil
}

// ListAccountLoans returns a page of an account's loan history.
func (s *LoanService) ListAccountLoans(ctx context.Context, actor models.Actor, accountID, limit, offset int32) ([]models.LoanResponse, error) {
	if err := AuthorizeOwner(actor, accountID); err != nil {
		return nil, err
	}

	loans, err := s.store.ListLoansByAccount(ctx, queries.ListLoansByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loanResponsesFromRows(loans), nil
}

// ListActiveLoans returns every loan still out on the floor (staff view).
func (s *LoanService) ListActiveLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	loans, err := s.store.ListActiveLoans(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active loans: %w", err)
	}
	return loanResponsesFromRows(loans), nil
}

// ListOverdueLoans returns all currently overdue active loans (staff view).
func (s *LoanService) ListOverdueLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	loans, err := s.store.ListOverdueLoans(ctx, pgtype.Timestamptz{Time: s.now(), Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}
	return loanResponsesFromRows(loans), nil
}

func loanResponsesFromRows(loans []queries.Loan) []models.LoanResponse {
	responses := make([]models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		responses = append(responses, *loanResponseFromRow(loan))
	}
	return responses
}

func loanResponseFromRow(loan queries.Loan) *models.LoanResponse {
	resp := &models.LoanResponse{
		ID:           loan.ID,
		AccountID:    loan.AccountID,
		BookID:       loan.BookID,
		CheckedOutAt: loan.CheckedOutAt.Time,
		DueAt:        loan.DueAt.Time,
		OverdueDays:  loan.OverdueDays,
		FineAmount:   decimalFromNumeric(loan.FineAmount),
		Status:       models.LoanStatus(loan.Status),
		RenewalCount: loan.RenewalCount,
		CreatedAt:    loan.CreatedAt.Time,
		UpdatedAt:    loan.UpdatedAt.Time,
	}
	if loan.ReturnedAt.Valid {
		resp.ReturnedAt = &loan.ReturnedAt.Time
	}
	return resp
}
