package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwarden/bookwarden/internal/models"
	"github.com/bookwarden/bookwarden/internal/services"
)

// AuthServiceInterface defines the auth operations the handler needs.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*models.LoginResponse, error)
}

// AccountRegistrar defines the registration operation the handler needs.
type AccountRegistrar interface {
	Register(ctx context.Context, req models.RegisterAccountRequest) (*models.AccountResponse, error)
}

type AuthHandler struct {
	authService    AuthServiceInterface
	accountService AccountRegistrar
}

func NewAuthHandler(authService AuthServiceInterface, accountService AccountRegistrar) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		accountService: accountService,
	}
}

// Register creates a new patron account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.accountService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    account,
		Message: "Account registered successfully",
	})
}

// Login authenticates an account and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		status := http.StatusUnauthorized
		code := "INVALID_CREDENTIALS"
		message := "Invalid email or password"
		switch {
		case errors.Is(err, services.ErrAccountInactive):
			status = http.StatusForbidden
			code = "ACCOUNT_INACTIVE"
			message = "Account is inactive. Contact an administrator."
		case !errors.Is(err, services.ErrInvalidCredentials):
			status = http.StatusInternalServerError
			code = "INTERNAL_ERROR"
			message = "Internal server error"
		}

		c.JSON(status, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    code,
				Message: message,
			},
		})
		return
	}

	c.JSON(http.StatusOK, response)
}
