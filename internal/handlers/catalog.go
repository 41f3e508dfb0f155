package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwarden/bookwarden/internal/middleware"
	"github.com/bookwarden/bookwarden/internal/models"
)

// CatalogServiceInterface defines the catalog operations the handler needs.
type CatalogServiceInterface interface {
	CreateBook(ctx context.Context, actor models.Actor, req models.CreateBookRequest) (*models.BookResponse, error)
	GetBook(ctx context.Context, id int32) (*models.BookResponse, error)
	ListBooks(ctx context.Context, limit, offset int32) ([]models.BookResponse, error)
	UpdateBook(ctx context.Context, actor models.Actor, id int32, req models.UpdateBookRequest) (*models.BookResponse, error)
	SetTotalCopies(ctx context.Context, actor models.Actor, bookID, newTotal int32) (*models.BookResponse, error)
	SetMaintenance(ctx context.Context, actor models.Actor, bookID int32) (*models.BookResponse, error)
	ClearMaintenance(ctx context.Context, actor models.Actor, bookID int32) (*models.BookResponse, error)
	DeleteBook(ctx context.Context, actor models.Actor, bookID int32) error
}

type CatalogHandler struct {
	catalogService CatalogServiceInterface
}

func NewCatalogHandler(catalogService CatalogServiceInterface) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService}
}

func (h *CatalogHandler) CreateBook(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	book, err := h.catalogService.CreateBook(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book created successfully",
	})
}

func (h *CatalogHandler) GetBook(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	book, err := h.catalogService.GetBook(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: book})
}

func (h *CatalogHandler) ListBooks(c *gin.Context) {
	limit, offset := pagination(c)

	books, err := h.catalogService.ListBooks(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: books})
}

func (h *CatalogHandler) UpdateBook(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	book, err := h.catalogService.UpdateBook(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book updated successfully",
	})
}

func (h *CatalogHandler) SetTotalCopies(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req models.SetTotalCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	book, err := h.catalogService.SetTotalCopies(c.Request.Context(), actor, id, req.TotalCopies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Total copies updated successfully",
	})
}

func (h *CatalogHandler) SetMaintenance(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	book, err := h.catalogService.SetMaintenance(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book placed in maintenance",
	})
}

func (h *CatalogHandler) ClearMaintenance(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	book, err := h.catalogService.ClearMaintenance(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    book,
		Message: "Book maintenance cleared",
	})
}

func (h *CatalogHandler) DeleteBook(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.catalogService.DeleteBook(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Book deleted successfully",
	})
}
