package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teatarmk/reservation-api/internal/repository"
	"github.com/teatarmk/reservation-api/internal/service"
)

// ReservationHandler exposes the seat-reservation operations.  All
// routes assume JWT authentication has already run; the handler reads
// the authenticated user from the context and delegates every booking
// decision to the reservation service, which owns the per-show
// consistency guarantees.
type ReservationHandler struct {
	Svc          *service.ReservationService
	Reservations *repository.ReservationRepo
}

// NewReservationHandler constructs a ReservationHandler.
func NewReservationHandler(svc *service.ReservationService, reservations *repository.ReservationRepo) *ReservationHandler {
	if svc == nil || reservations == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{Svc: svc, Reservations: reservations}
}

type reserveReq struct {
	ShowID uint64   `json:"show_id"`
	Seats  []uint32 `json:"seats"`
}

// claimError maps the service error taxonomy to HTTP.  Conflicts name
// the seats that were taken so the client can re-render its seat map.
func claimError(c echo.Context, err error) error {
	var invalid *service.InvalidRequestError
	var conflict *service.ConflictError
	switch {
	case errors.As(err, &invalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": invalid.Reason})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":             "some seats are already reserved",
			"conflicting_seats": conflict.Seats,
		})
	case errors.Is(err, repository.ErrShowNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
	case errors.Is(err, service.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "reservation failed"})
	}
}

// CreateReservation handles POST /v1/reservations.  The claim commits
// as CONFIRMED immediately; on conflict the response lists exactly the
// unavailable seats.
func (h *ReservationHandler) CreateReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ShowID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "show_id is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	res, err := h.Svc.Reserve(ctx, req.ShowID, userID, req.Seats)
	if err != nil {
		return claimError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// HoldSeats handles POST /v1/reservations/hold.  It claims seats as a
// PENDING reservation that expires automatically unless confirmed; the
// response includes the deadline.
func (h *ReservationHandler) HoldSeats(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req reserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.ShowID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "show_id is required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	res, err := h.Svc.Hold(ctx, req.ShowID, userID, req.Seats)
	if err != nil {
		return claimError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// ConfirmReservation handles POST /v1/reservations/:id/confirm.  It
// promotes the caller's PENDING hold to CONFIRMED.
func (h *ReservationHandler) ConfirmReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	res, err := h.Svc.Confirm(ctx, resID, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, service.ErrHoldExpired):
			return c.JSON(http.StatusConflict, echo.Map{"error": "hold expired"})
		case errors.Is(err, service.ErrNotPending):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not pending"})
		case errors.Is(err, service.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "confirmation failed"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// DeleteReservation handles DELETE /v1/reservations/:id.  Cancellation
// frees the seats immediately.  Customers may cancel only their own
// reservations; admins may cancel any.
func (h *ReservationHandler) DeleteReservation(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || resID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	if err := h.Svc.Cancel(ctx, resID, userID, getRole(c)); err != nil {
		switch {
		case errors.Is(err, repository.ErrReservationNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, service.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancellation failed"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// GetReservedSeats handles GET /v1/shows/:id/reserved-seats.  It
// returns the seat numbers currently held for the show so the client
// can grey them out on the seat map.
func (h *ReservationHandler) GetReservedSeats(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	seats, err := h.Svc.ReservedSeats(ctx, showID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrShowNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		case errors.Is(err, service.ErrUnavailable):
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "service temporarily unavailable"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reserved seats"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// ListMyReservations handles GET /v1/my-reservations.  It returns the
// caller's reservations with show details, newest first.
func (h *ReservationHandler) ListMyReservations(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	details, err := h.Reservations.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// ListAllReservations handles GET /v1/reservations.  Admin only: every
// reservation with customer identity for the dashboard.
func (h *ReservationHandler) ListAllReservations(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	details, err := h.Reservations.ListAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}

// ListShowReservations handles GET /v1/shows/:id/reservations.  Admin
// only: the reservations of a single show.
func (h *ReservationHandler) ListShowReservations(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || showID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	details, err := h.Reservations.ListByShow(ctx, showID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": details})
}
