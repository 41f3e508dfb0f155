package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookwarden/bookwarden/internal/middleware"
	"github.com/bookwarden/bookwarden/internal/models"
)

// ReservationServiceInterface defines the reservation operations the handler needs.
type ReservationServiceInterface interface {
	Reserve(ctx context.Context, actor models.Actor, bookID int32) (*models.ReservationResponse, error)
	Cancel(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error)
	NotifyAvailability(ctx context.Context, actor models.Actor, bookID int32) (*models.ReservationResponse, error)
	Complete(ctx context.Context, actor models.Actor, reservationID int32) (*models.ReservationResponse, error)
	ExpireStaleReservations(ctx context.Context, actor models.Actor) (int, error)
	GetBookQueue(ctx context.Context, actor models.Actor, bookID int32) ([]models.ReservationResponse, error)
	ListAccountReservations(ctx context.Context, actor models.Actor, accountID, limit, offset int32) ([]models.ReservationResponse, error)
}

type ReservationHandler struct {
	reservationService ReservationServiceInterface
}

func NewReservationHandler(reservationService ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

func (h *ReservationHandler) Reserve(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.Reserve(c.Request.Context(), actor, req.BookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation created successfully",
	})
}

func (h *ReservationHandler) Cancel(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.Cancel(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation cancelled successfully",
	})
}

func (h *ReservationHandler) NotifyAvailability(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	bookID, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.NotifyAvailability(c.Request.Context(), actor, bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Next reservation notified",
	})
}

func (h *ReservationHandler) Complete(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.Complete(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation completed successfully",
	})
}

func (h *ReservationHandler) ExpireStale(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)

	count, err := h.reservationService.ExpireStaleReservations(c.Request.Context(), actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"expired": count},
		Message: "Stale reservations expired",
	})
}

func (h *ReservationHandler) GetBookQueue(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	bookID, ok := pathID(c, "id")
	if !ok {
		return
	}

	queue, err := h.reservationService.GetBookQueue(c.Request.Context(), actor, bookID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: queue})
}

func (h *ReservationHandler) ListAccountReservations(c *gin.Context) {
	actor, _ := middleware.ActorFromContext(c)
	accountID, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, offset := pagination(c)

	reservations, err := h.reservationService.ListAccountReservations(c.Request.Context(), actor, accountID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Data: reservations})
}
