package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
)

// AccountRole gates operations. Staff covers day-to-day library work;
// administrators additionally adjust fine balances.
type AccountRole string

const (
	RolePatron        AccountRole = "patron"
	RoleStaff         AccountRole = "staff"
	RoleAdministrator AccountRole = "administrator"
)

// Account is a registered library member or employee.
type Account struct {
	ID           int32           `json:"id"`
	FirstName    string          `json:"first_name"`
	LastName     string          `json:"last_name"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"-"`
	Role         AccountRole     `json:"role"`
	IsActive     bool            `json:"is_active"`
	FineBalance  decimal.Decimal `json:"fine_balance"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Actor is the authenticated principal attached to a request. The active
// flag and fine balance are resolved fresh per request, not from the token.
type Actor struct {
	ID          int32
	Role        AccountRole
	IsActive    bool
	FineBalance decimal.Decimal
}

// ActorFromAccount builds the request principal from a stored account.
func ActorFromAccount(account Account) Actor {
	return Actor{
		ID:          account.ID,
		Role:        account.Role,
		IsActive:    account.IsActive,
		FineBalance: account.FineBalance,
	}
}

// RegisterAccountRequest creates a patron account.
type RegisterAccountRequest struct {
	FirstName string `json:"first_name" binding:"required,max=100"`
	LastName  string `json:"last_name" binding:"required,max=100"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8"`
}

// SetAccountActiveRequest toggles the active flag (staff only). The pointer
// distinguishes an explicit false from a missing field.
type SetAccountActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetAccountRoleRequest changes an account's role (administrators only).
type SetAccountRoleRequest struct {
	Role AccountRole `json:"role" binding:"required,oneof=patron staff administrator"`
}

// ValidRole reports whether role is one of the three known roles.
func ValidRole(role AccountRole) bool {
	return role == RolePatron || role == RoleStaff || role == RoleAdministrator
}

// AdjustFineRequest applies an administrative balance adjustment. Negative
// amounts record payments.
type AdjustFineRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// LoginRequest represents a credential login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued access token and the account it belongs to.
type LoginResponse struct {
	Account     *AccountResponse `json:"account"`
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresIn   int              `json:"expires_in"`
}

// AccountResponse is the wire representation of an account. The password
// hash never leaves the service layer.
type AccountResponse struct {
	ID          int32           `json:"id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	Role        AccountRole     `json:"role"`
	IsActive    bool            `json:"is_active"`
	FineBalance decimal.Decimal `json:"fine_balance"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// JWTClaims is the access token payload.
type JWTClaims struct {
	AccountID int32       `json:"account_id"`
	Email     string      `json:"email"`
	Role      AccountRole `json:"role"`
	jwt.RegisteredClaims
}
