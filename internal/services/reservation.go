package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

// ReservationQuerier defines the interface for reservation database operations.
type ReservationQuerier interface {
	CreateReservation(ctx context.Context, arg queries.CreateReservationParams) (queries.Reservation, error)
	GetReservationByID(ctx context.Context, id int32) (queries.Reservation, error)
	CountActiveReservationsByBook(ctx context.Context, bookID int32) (int64, error)
	GetActiveReservationForAccount(ctx context.Context, arg queries.GetActiveReservationForAccountParams) (queries.Reservation, error)
	SetReservationStatus(ctx context.Context, arg queries.SetReservationStatusParams) (queries.Reservation, error)
	MarkReservationNotified(ctx context.Context, arg queries.MarkReservationNotifiedParams) (queries.Reservation, error)
	GetNextPendingReservation(ctx context.Context, bookID int32) (queries.Reservation, error)
	ReorderBookReservations(ctx context.Context, bookID int32) error
	ListReservationsByBook(ctx context.Context, bookID int32) ([]queries.Reservation, error)
	ListReservationsByAccount(ctx context.Context, arg queries.ListReservationsByAccountParams) ([]queries.Reservation, error)
	ExpireNotifiedReservations(ctx context.Context, now pgtype.Timestamptz) ([]queries.Reservation, error)
	GetBookByID(ctx context.Context, id int32) (queries.Book, error)
	GetBookForUpdate(ctx context.Context, id int32) (queries.Book, error)
}

// ReservationStore adds the transactional boundary for waitlist writes.
type ReservationStore interface {
	ReservationQuerier
	ExecReservationTx(ctx context.Context, fn func(ReservationQuerier) error) error
}

// ReservationService maintains the per-book waitlist. Priorities of
// pending/notified reservations for one book always form the contiguous
// sequence 1..N; the only sanctioned gap is a notified entry keeping its
// rank while lower-priority pending entries wait behind it.
//
// Every write that depends on the current shape of a book's queue runs in
// a transaction that locks the book row first (GetBookForUpdate). That
// serializes rank assignment and re-ranking per book; without the lock two
// concurrent cancels can both rewrite ranks from stale snapshots and leave
// the surviving queue non-contiguous.
type ReservationService struct {
	store    ReservationStore
	holdDays int
	now      func() time.Time
}

func NewReservationService(store ReservationStore) *ReservationService {
	return &ReservationService{
		store:    store,
		holdDays: 3,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithHoldDays overrides how long a notified reservation is held open.
func (s *ReservationService) WithHoldDays(days int) *ReservationService {
	s.holdDays = days
	return s
}

// WithNow overrides the clock. Tests use it to pin time-dependent checks.
func (s *ReservationService) WithNow(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// Reserve puts the actor at the tail of an exhausted book's waitlist.
func (s *ReservationService) Reserve(ctx context.Context, actor models.Actor, bookID int32) (*models.ReservationResponse, error) {
	if !actor.IsActive {
		return nil, apperrors.PreconditionFailed("account %d is not active", actor.ID)
	}
	if actor.FineBalance.GreaterThan(decimal.Zero) {
		return nil, apperrors.PreconditionFailed("account %d has outstanding fines of %s", actor.ID, actor.FineBalance.StringFixed(2))
	}

	var reservation queries.Reservation
	err := s.store.ExecReservationTx(ctx, func(q ReservationQuerier) error {
		// The book lock serializes tail joins: count and insert see the
		// same queue, so two racing reserves cannot share a priority.
		book, err := q.GetBookForUpdate(ctx, bookID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("book %d not found", bookID)
			}
			return fmt.Errorf("failed to get book: %w", err)
		}
		if book.Status == string(models.BookStatusMaintenance) {
			return apperrors.PreconditionFailed("book %d is in maintenance", bookID)
		}
		if book.AvailableCopies > 0 {
			return apperrors.PreconditionFailed("book %d has available copies; check it out instead of reserving", bookID)
		}

		_, err = q.GetActiveReservationForAccount(ctx, queries.GetActiveReservationForAccountParams{
			AccountID: actor.ID,
			BookID:    bookID,
		})
		if err == nil {
			return apperrors.Conflict("account %d already has an active reservation for book %d", actor.ID, bookID)
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to check existing reservation: %w", err)
		}

		activeCount, err := q.CountActiveReservationsByBook(ctx, bookID)
		if err != nil {
			return fmt.Errorf("failed to count reservations: %w", err)
		}

		reservation, err = q.CreateReservation(ctx, queries.CreateReservationParams{
			AccountID: actor.ID,
			BookID:    bookID,
			Priority:  int32(activeCount) + 1,
		})
		if err != nil {
			return fmt.Errorf("failed to create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservationResponseFromRow(reservation), nil
}

// Cancel withdraws a pending or notified reservation and closes the rank gap
// it leaves behind by re-ranking the book's remaining active reservations.
func (s *ReservationService) Cancel(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error) {
	var cancelled queries.Reservation
	err := s.store.ExecReservationTx(ctx, func(q ReservationQuerier) error {
		reservation, err := q.GetReservationByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("reservation %d not found", reservationID)
			}
			return fmt.Errorf("failed to get reservation: %w", err)
		}
		if err := AuthorizeOwner(actor, reservation.AccountID); err != nil {
			return err
		}
		if !models.ReservationActive(models.ReservationStatus(reservation.Status)) {
			return apperrors.InvalidState("reservation %d is %s and cannot be cancelled", reservationID, reservation.Status)
		}

		if _, err := q.GetBookForUpdate(ctx, reservation.BookID); err != nil {
			return fmt.Errorf("failed to lock book: %w", err)
		}

		cancelled, err = q.SetReservationStatus(ctx, queries.SetReservationStatusParams{
			ID:     reservationID,
			Status: string(models.ReservationStatusCancelled),
		})
		if err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}

		if err := q.ReorderBookReservations(ctx, reservation.BookID); err != nil {
			return fmt.Errorf("failed to re-rank reservations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservationResponseFromRow(cancelled), nil
}

// NotifyAvailability hands the book's head-of-queue pending reservation a
// hold: status notified, expiry holdDays out. The entry keeps its priority
// and nothing is re-ranked or decremented here; the gap closes only when the
// entry completes, cancels or expires.
func (s *ReservationService) NotifyAvailability(ctx context.Context, actor models.Actor, bookID int32) (*models.ReservationResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	book, err := s.store.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", bookID)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if book.AvailableCopies == 0 {
		return nil, apperrors.PreconditionFailed("book %d has no available copies to offer", bookID)
	}

	next, err := s.store.GetNextPendingReservation(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d has no pending reservations", bookID)
		}
		return nil, fmt.Errorf("failed to get next reservation: %w", err)
	}
	if !models.ValidReservationTransition(models.ReservationStatus(next.Status), models.ReservationStatusNotified) {
		return nil, apperrors.InvalidState("reservation %d is no longer pending", next.ID)
	}

	now := s.now()
	notified, err := s.store.MarkReservationNotified(ctx, queries.MarkReservationNotifiedParams{
		ID:         next.ID,
		NotifiedAt: pgtype.Timestamptz{Time: now, Valid: true},
		ExpiresAt:  pgtype.Timestamptz{Time: now.AddDate(0, 0, s.holdDays), Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Raced with a cancel of the same entry.
			return nil, apperrors.InvalidState("reservation %d is no longer pending", next.ID)
		}
		return nil, fmt.Errorf("failed to notify reservation: %w", err)
	}

	return reservationResponseFromRow(notified), nil
}

// Complete marks an active reservation as fulfilled, normally when the
// notified account checks the book out, and re-ranks the remaining entries.
func (s *ReservationService) Complete(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	var completed queries.Reservation
	err := s.store.ExecReservationTx(ctx, func(q ReservationQuerier) error {
		reservation, err := q.GetReservationByID(ctx, reservationID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("reservation %d not found", reservationID)
			}
			return fmt.Errorf("failed to get reservation: %w", err)
		}
		if !models.ValidReservationTransition(models.ReservationStatus(reservation.Status), models.ReservationStatusCompleted) {
			return apperrors.InvalidState("reservation %d is %s and cannot be completed", reservationID, reservation.Status)
		}

		if _, err := q.GetBookForUpdate(ctx, reservation.BookID); err != nil {
			return fmt.Errorf("failed to lock book: %w", err)
		}

		completed, err = q.SetReservationStatus(ctx, queries.SetReservationStatusParams{
			ID:     reservationID,
			Status: string(models.ReservationStatusCompleted),
		})
		if err != nil {
			return fmt.Errorf("failed to complete reservation: %w", err)
		}

		if err := q.ReorderBookReservations(ctx, reservation.BookID); err != nil {
			return fmt.Errorf("failed to re-rank reservations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return reservationResponseFromRow(completed), nil
}

// ExpireStaleReservations sweeps notified reservations whose hold deadline
// has passed, marks them expired and closes the rank gaps per book. It is
// caller-triggered; nothing in the core runs it in the background.
func (s *ReservationService) ExpireStaleReservations(ctx context.Context, actor models.Actor) (int, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return 0, err
	}

	var count int
	err := s.store.ExecReservationTx(ctx, func(q ReservationQuerier) error {
		expired, err := q.ExpireNotifiedReservations(ctx, pgtype.Timestamptz{Time: s.now(), Valid: true})
		if err != nil {
			return fmt.Errorf("failed to expire reservations: %w", err)
		}
		count = len(expired)

		touched := make(map[int32]struct{})
		for _, r := range expired {
			touched[r.BookID] = struct{}{}
		}
		bookIDs := make([]int32, 0, len(touched))
		for bookID := range touched {
			bookIDs = append(bookIDs, bookID)
		}
		// Ascending lock order keeps concurrent sweeps off each other's toes.
		slices.Sort(bookIDs)

		for _, bookID := range bookIDs {
			if _, err := q.GetBookForUpdate(ctx, bookID); err != nil {
				return fmt.Errorf("failed to lock book %d: %w", bookID, err)
			}
			if err := q.ReorderBookReservations(ctx, bookID); err != nil {
				return fmt.Errorf("failed to re-rank reservations for book %d: %w", bookID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// GetBookQueue returns a book's active waitlist in priority order (staff view).
func (s *ReservationService) GetBookQueue(ctx context.Context, actor models.Actor, bookID int32) ([]models.ReservationResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	reservations, err := s.store.ListReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list book reservations: %w", err)
	}
	return reservationResponsesFromRows(reservations), nil
}

// ListAccountReservations returns a page of an account's reservation history.
func (s *ReservationService) ListAccountReservations(ctx context.Context, actor models.Actor, accountID, limit, offset int32) ([]models.ReservationResponse, error) {
	if err := AuthorizeOwner(actor, accountID); err != nil {
		return nil, err
	}

	reservations, err := s.store.ListReservationsByAccount(ctx, queries.ListReservationsByAccountParams{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	return reservationResponsesFromRows(reservations), nil
}

func reservationResponsesFromRows(reservations []queries.Reservation) []models.ReservationResponse {
	responses := make([]models.ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		responses = append(responses, *reservationResponseFromRow(r))
	}
	return responses
}

func reservationResponseFromRow(r queries.Reservation) *models.ReservationResponse {
	resp := &models.ReservationResponse{
		ID:        r.ID,
		AccountID: r.AccountID,
		BookID:    r.BookID,
		Status:    models.ReservationStatus(r.Status),
		Priority:  r.Priority,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if r.NotifiedAt.Valid {
		resp.NotifiedAt = &r.NotifiedAt.Time
	}
	if r.ExpiresAt.Valid {
		resp.ExpiresAt = &r.ExpiresAt.Time
	}
	return resp
}
