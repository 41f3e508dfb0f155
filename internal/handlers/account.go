package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/bookwarden/bookwarden/internal/middleware"
	"github.com/bookwarden/bookwarden/internal/models"
)

// AccountServiceInterface defines the account operations the handler needs.
type AccountServiceInterface interface {
	GetAccount(ctx context.Context, actor models.Actor, id int32) (*models.AccountResponse, error)
	ListAccounts(ctx context.Context, actor models.Actor, limit, offset int32) ([]models.AccountResponse, error)
	SetActive(ctx context.Context, actor models.Actor, id int32, active bool) (*models.AccountResponse, error)
	SetRole(ctx context.Context, actor models.Actor, id int32, role models.AccountRole) (*models.AccountResponse, error)
	AdjustFine(ctx context.Context, actor models.Actor, id int32, amount decimal.Decimal) (*models.AccountResponse, error)
}

type AccountHandler struct {
	accountService AccountServiceInterface
}

func NewAccountHandler(accountService AccountServiceInterface) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	account, err := h.accountService.GetAccount(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: account})
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	limit, offset := pagination(c)

	accounts, err := h.accountService.ListAccounts(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: accounts})
}

func (h *AccountHandler) SetActive(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.SetAccountActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.accountService.SetActive(c.Request.Context(), actor, id, *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    account,
		Message: "Account updated successfully",
	})
}

func (h *AccountHandler) SetRole(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.SetAccountRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.accountService.SetRole(c.Request.Context(), actor, id, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    account,
		Message: "Account role updated successfully",
	})
}

func (h *AccountHandler) AdjustFine(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.AdjustFineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	account, err := h.accountService.AdjustFine(c.Request.Context(), actor, id, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    account,
		Message: "Fine balance adjusted successfully",
	})
}

// pathID parses an int32 path parameter, writing a 400 on failure.
func pathID(c *gin.Context, name string) (int32, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || value < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid " + name + " parameter",
				Details: name + " must be a positive integer",
			},
		})
		return 0, false
	}
	return int32(value), true
}

// pagination reads limit/offset query parameters with sane bounds.
func pagination(c *gin.Context) (int32, int32) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 32)
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	offset, err := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 32)
	if err != nil || offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}
