package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bookwarden/bookwarden/internal/middleware"
	"github.com/bookwarden/bookwarden/internal/models"
)

// LoanServiceInterface defines the loan operations the handler needs.
type LoanServiceInterface interface {
	Checkout(ctx context.Context, actor models.Actor, bookID int32, dueAt time.Time) (*models.LoanResponse, error)
	Return(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error)
	Renew(ctx context.Context, actor models.Actor, loanID int32, newDueAt time.Time) (*models.LoanResponse, error)
	GetLoan(ctx context.Context, actor models.Actor, loanID int32) (*models.LoanResponse, error)
	ListAccountLoans(ctx context.Context, actor models.Actor, accountID, limit, offset int32) ([]models.LoanResponse, error)
	ListActiveLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error)
	ListOverdueLoans(ctx context.Context, actor models.Actor) ([]models.LoanResponse, error)
}

type LoanHandler struct {
	loanService LoanServiceInterface
}

func NewLoanHandler(loanService LoanServiceInterface) *LoanHandler {
	return &LoanHandler{loanService: loanService}
}

func (h *LoanHandler) Checkout(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.Checkout(c.Request.Context(), actor, req.BookID, req.DueAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Book checked out successfully",
	})
}

func (h *LoanHandler) Return(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.Return(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Book returned successfully",
	})
}

func (h *LoanHandler) Renew(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.Renew(c.Request.Context(), actor, id, req.DueAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan renewed successfully",
	})
}

func (h *LoanHandler) GetLoan(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.GetLoan(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: loan})
}

func (h *LoanHandler) ListAccountLoans(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	accountID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)

	loans, err := h.loanService.ListAccountLoans(c.Request.Context(), actor, accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: loans})
}

func (h *LoanHandler) ListActiveLoans(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	loans, err := h.loanService.ListActiveLoans(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: loans})
}

func (h *LoanHandler) ListOverdueLoans(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	loans, err := h.loanService.ListOverdueLoans(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: loans})
}
