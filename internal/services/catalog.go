package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

// CatalogQuerier defines the interface for catalog database operations.
type CatalogQuerier interface {
	CreateBook(ctx context.Context, arg queries.CreateBookParams) (queries.Book, error)
	GetBookByID(ctx context.Context, id int32) (queries.Book, error)
	GetBookByISBN(ctx context.Context, isbn string) (queries.Book, error)
	ListBooks(ctx context.Context, arg queries.ListBooksParams) ([]queries.Book, error)
	UpdateBook(ctx context.Context, arg queries.UpdateBookParams) (queries.Book, error)
	AdjustBookCopies(ctx context.Context, arg queries.AdjustBookCopiesParams) (queries.Book, error)
	SetBookTotalCopies(ctx context.Context, arg queries.SetBookTotalCopiesParams) (queries.Book, error)
	SetBookStatus(ctx context.Context, arg queries.SetBookStatusParams) (queries.Book, error)
	DeleteBook(ctx context.Context, id int32) error
	CountActiveLoansByBook(ctx context.Context, bookID int32) (int64, error)
}

// CatalogService owns book records and their copy counters.
type CatalogService struct {
	queries CatalogQuerier
}

func NewCatalogService(querier CatalogQuerier) *CatalogService {
	return &CatalogService{queries: querier}
}

// DeriveStatus computes a book's status from its counters. Maintenance is
// sticky: once set it survives counter changes until explicitly cleared.
func DeriveStatus(totalCopies, availableCopies int32, current models.BookStatus) models.BookStatus {
	if current == models.BookStatusMaintenance {
		return models.BookStatusMaintenance
	}
	if availableCopies == 0 {
		return models.BookStatusExhausted
	}
	return models.BookStatusAvailable
}

// CreateBook adds a title to the catalog with all copies available.
func (s *CatalogService) CreateBook(ctx context.Context, actor models.Actor, req models.CreateBookRequest) (*models.BookResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	existing, err := s.queries.GetBookByISBN(ctx, req.ISBN)
	if err == nil && existing.ID != 0 {
		return nil, apperrors.Conflict("book with ISBN %s already exists", req.ISBN)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check ISBN: %w", err)
	}

	status := DeriveStatus(req.TotalCopies, req.TotalCopies, models.BookStatusAvailable)
	book, err := s.queries.CreateBook(ctx, queries.CreateBookParams{
		Title:           req.Title,
		Author:          req.Author,
		Isbn:            req.ISBN,
		Category:        textFromPtr(req.Category),
		Publisher:       textFromPtr(req.Publisher),
		PublishedYear:   int4FromPtr(req.PublishedYear),
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		Status:          string(status),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	return bookResponseFromRow(book), nil
}

// GetBook returns one catalog entry.
func (s *CatalogService) GetBook(ctx context.Context, id int32) (*models.BookResponse, error) {
	book, err := s.queries.GetBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", id)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// ListBooks returns a page of the catalog ordered by title.
func (s *CatalogService) ListBooks(ctx context.Context, limit, offset int32) ([]models.BookResponse, error) {
	books, err := s.queries.ListBooks(ctx, queries.ListBooksParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list books: %w", err)
	}

	responses := make([]models.BookResponse, 0, len(books))
	for _, book := range books {
		responses = append(responses, *bookResponseFromRow(book))
	}
	return responses, nil
}

// UpdateBook edits descriptive fields. Copy counters are only touched by
// AdjustCopies and SetTotalCopies.
func (s *CatalogService) UpdateBook(ctx context.Context, actor models.Actor, id int32, req models.UpdateBookRequest) (*models.BookResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	current, err := s.queries.GetBookByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", id)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}

	params := queries.UpdateBookParams{
		ID:            id,
		Title:         current.Title,
		Author:        current.Author,
		Category:      current.Category,
		Publisher:     current.Publisher,
		PublishedYear: current.PublishedYear,
	}
	if req.Title != nil {
		params.Title = *req.Title
	}
	if req.Author != nil {
		params.Author = *req.Author
	}
	if req.Category != nil {
		params.Category = pgtype.Text{String: *req.Category, Valid: true}
	}
	if req.Publisher != nil {
		params.Publisher = pgtype.Text{String: *req.Publisher, Valid: true}
	}
	if req.PublishedYear != nil {
		params.PublishedYear = pgtype.Int4{Int32: *req.PublishedYear, Valid: true}
	}

	book, err := s.queries.UpdateBook(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update book: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// AdjustCopies atomically moves the available counter by delta. The guard
// 0 <= available+delta <= total is enforced inside the UPDATE itself, so a
// race on the last copy rejects one of the competitors instead of losing an
// update.
func (s *CatalogService) AdjustCopies(ctx context.Context, bookID, delta int32) (*models.BookResponse, error) {
	book, err := s.queries.AdjustBookCopies(ctx, queries.AdjustBookCopiesParams{ID: bookID, Delta: delta})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyGuardMiss(ctx, bookID,
				apperrors.InvariantViolation("adjusting book %d copies by %d would leave the counter out of range", bookID, delta))
		}
		return nil, fmt.Errorf("failed to adjust copies: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// SetTotalCopies resizes the inventory. The new total may not fall below the
// number of copies currently out on loan.
func (s *CatalogService) SetTotalCopies(ctx context.Context, actor models.Actor, bookID, newTotal int32) (*models.BookResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if newTotal < 0 {
		return nil, apperrors.InvalidOperand("total copies must not be negative")
	}

	book, err := s.queries.SetBookTotalCopies(ctx, queries.SetBookTotalCopiesParams{ID: bookID, TotalCopies: newTotal})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyGuardMiss(ctx, bookID,
				apperrors.InvalidOperand("total copies %d is below the number of copies currently on loan", newTotal))
		}
		return nil, fmt.Errorf("failed to set total copies: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// SetMaintenance forces the status to maintenance. The flag is sticky and
// only ClearMaintenance re-derives the status from the counters.
func (s *CatalogService) SetMaintenance(ctx context.Context, actor models.Actor, bookID int32) (*models.BookResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	book, err := s.queries.SetBookStatus(ctx, queries.SetBookStatusParams{
		ID:     bookID,
		Status: string(models.BookStatusMaintenance),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", bookID)
		}
		return nil, fmt.Errorf("failed to set maintenance: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// ClearMaintenance lifts the maintenance flag and re-derives the status.
func (s *CatalogService) ClearMaintenance(ctx context.Context, actor models.Actor, bookID int32) (*models.BookResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	current, err := s.queries.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("book %d not found", bookID)
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	if current.Status != string(models.BookStatusMaintenance) {
		return nil, apperrors.InvalidState("book %d is not in maintenance", bookID)
	}

	derived := DeriveStatus(current.TotalCopies, current.AvailableCopies, models.BookStatusAvailable)
	book, err := s.queries.SetBookStatus(ctx, queries.SetBookStatusParams{
		ID:     bookID,
		Status: string(derived),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to clear maintenance: %w", err)
	}
	return bookResponseFromRow(book), nil
}

// DeleteBook removes a title, but only while no active loan references it.
func (s *CatalogService) DeleteBook(ctx context.Context, actor models.Actor, bookID int32) error {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return err
	}

	activeLoans, err := s.queries.CountActiveLoansByBook(ctx, bookID)
	if err != nil {
		return fmt.Errorf("failed to count active loans: %w", err)
	}
	if activeLoans > 0 {
		return apperrors.Conflict("book %d has %d active loans and cannot be deleted", bookID, activeLoans)
	}

	if err := s.queries.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("book %d not found", bookID)
		}
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

// classifyGuardMiss turns a no-row result from a guarded counter update into
// NotFound when the book is missing, or the supplied guard error otherwise.
func (s *CatalogService) classifyGuardMiss(ctx context.Context, bookID int32, guardErr error) error {
	if _, err := s.queries.GetBookByID(ctx, bookID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("book %d not found", bookID)
		}
		return fmt.Errorf("failed to get book: %w", err)
	}
	return guardErr
}

func bookResponseFromRow(book queries.Book) *models.BookResponse {
	resp := &models.BookResponse{
		ID:              book.ID,
		Title:           book.Title,
		Author:          book.Author,
		ISBN:            book.Isbn,
		TotalCopies:     book.TotalCopies,
		AvailableCopies: book.AvailableCopies,
		Status:          models.BookStatus(book.Status),
		CreatedAt:       book.CreatedAt.Time,
		UpdatedAt:       book.UpdatedAt.Time,
	}
	if book.Category.Valid {
		resp.Category = &book.Category.String
	}
	if book.Publisher.Valid {
		resp.Publisher = &book.Publisher.String
	}
	if book.PublishedYear.Valid {
		resp.PublishedYear = &book.PublishedYear.Int32
	}
	return resp
}

func textFromPtr(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func int4FromPtr(i *int32) pgtype.Int4 {
	if i == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *i, Valid: true}
}
