package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/bookwarden/bookwarden/internal/apperrors"
	"github.com/bookwarden/bookwarden/internal/database/queries"
	"github.com/bookwarden/bookwarden/internal/models"
)

// AccountQuerier defines the interface for account database operations.
type AccountQuerier interface {
	CreateAccount(ctx context.Context, arg queries.CreateAccountParams) (queries.Account, error)
	GetAccountByID(ctx context.Context, id int32) (queries.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (queries.Account, error)
	ListAccounts(ctx context.Context, arg queries.ListAccountsParams) ([]queries.Account, error)
	SetAccountActive(ctx context.Context, arg queries.SetAccountActiveParams) (queries.Account, error)
	UpdateAccountRole(ctx context.Context, arg queries.UpdateAccountRoleParams) (queries.Account, error)
	AddToFineBalance(ctx context.Context, arg queries.AddToFineBalanceParams) (queries.Account, error)
}

// PasswordHasher derives password hashes; AuthService implements it.
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// AccountService handles registration and administrative account changes.
type AccountService struct {
	queries AccountQuerier
	hasher  PasswordHasher
	logger  *slog.Logger
}

func NewAccountService(querier AccountQuerier, hasher PasswordHasher, logger *slog.Logger) *AccountService {
	return &AccountService{
		queries: querier,
		hasher:  hasher,
		logger:  logger,
	}
}

// Register creates a patron account. New accounts are active with a zero
// fine balance; roles are only changed by an administrator afterwards.
func (s *AccountService) Register(ctx context.Context, req models.RegisterAccountRequest) (*models.AccountResponse, error) {
	_, err := s.queries.GetAccountByEmail(ctx, req.Email)
	if err == nil {
		return nil, apperrors.Conflict("email %s is already registered", req.Email)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.InvalidOperand("password does not meet requirements")
	}

	account, err := s.queries.CreateAccount(ctx, queries.CreateAccountParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         string(models.RolePatron),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account registered", "account_id", account.ID, "email", account.Email)
	return accountResponseFromRow(account), nil
}

// GetAccount returns one account, patrons only their own.
func (s *AccountService) GetAccount(ctx context.Context, actor models.Actor, id int32) (*models.AccountResponse, error) {
	if err := AuthorizeOwner(actor, id); err != nil {
		return nil, err
	}

	account, err := s.queries.GetAccountByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("account %d not found", id)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return accountResponseFromRow(account), nil
}

// ListAccounts returns a page of accounts (staff view).
func (s *AccountService) ListAccounts(ctx context.Context, actor models.Actor, limit, offset int32) ([]models.AccountResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	accounts, err := s.queries.ListAccounts(ctx, queries.ListAccountsParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	responses := make([]models.AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		responses = append(responses, *accountResponseFromRow(account))
	}
	return responses, nil
}

// SetActive toggles the active flag (staff/admin).
func (s *AccountService) SetActive(ctx context.Context, actor models.Actor, id int32, active bool) (*models.AccountResponse, error) {
	if err := Authorize(actor, models.RoleStaff, models.RoleAdministrator); err != nil {
		return nil, err
	}

	account, err := s.queries.SetAccountActive(ctx, queries.SetAccountActiveParams{ID: id, IsActive: active})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("account %d not found", id)
		}
		return nil, fmt.Errorf("failed to set account active: %w", err)
	}

	s.logger.Info("account active flag changed", "account_id", id, "is_active", active, "by", actor.ID)
	return accountResponseFromRow(account), nil
}

// SetRole changes an account's role. Only administrators may do this, and
// an administrator cannot demote their own account.
func (s *AccountService) SetRole(ctx context.Context, actor models.Actor, id int32, role models.AccountRole) (*models.AccountResponse, error) {
	if err := Authorize(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if !models.ValidRole(role) {
		return nil, apperrors.InvalidOperand("unknown role %q", role)
	}
	if actor.ID == id && role != models.RoleAdministrator {
		return nil, apperrors.InvalidOperand("administrators cannot change their own role")
	}

	account, err := s.queries.UpdateAccountRole(ctx, queries.UpdateAccountRoleParams{ID: id, Role: string(role)})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("account %d not found", id)
		}
		return nil, fmt.Errorf("failed to set account role: %w", err)
	}

	s.logger.Info("account role changed", "account_id", id, "role", role, "by", actor.ID)
	return accountResponseFromRow(account), nil
}

// AdjustFine applies an administrative fine adjustment. Negative amounts
// record payments; the balance may never drop below zero, which the store
// enforces atomically.
func (s *AccountService) AdjustFine(ctx context.Context, actor models.Actor, id int32, amount decimal.Decimal) (*models.AccountResponse, error) {
	if err := Authorize(actor, models.RoleAdministrator); err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, apperrors.InvalidOperand("adjustment amount must not be zero")
	}

	account, err := s.queries.AddToFineBalance(ctx, queries.AddToFineBalanceParams{
		ID:     id,
		Amount: numericFromDecimal(amount),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := s.queries.GetAccountByID(ctx, id); getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return nil, apperrors.NotFound("account %d not found", id)
				}
				return nil, fmt.Errorf("failed to get account: %w", getErr)
			}
			return nil, apperrors.InvalidOperand("adjustment of %s would make the fine balance negative", amount.StringFixed(2))
		}
		return nil, fmt.Errorf("failed to adjust fine balance: %w", err)
	}

	s.logger.Info("fine balance adjusted", "account_id", id, "amount", amount.StringFixed(2), "by", actor.ID)
	return accountResponseFromRow(account), nil
}

func accountResponseFromRow(account queries.Account) *models.AccountResponse {
	return &models.AccountResponse{
		ID:          account.ID,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Email:       account.Email,
		Role:        models.AccountRole(account.Role),
		IsActive:    account.IsActive.Bool,
		FineBalance: decimalFromNumeric(account.FineBalance),
		CreatedAt:   account.CreatedAt.Time,
		UpdatedAt:   account.UpdatedAt.Time,
	}
}
