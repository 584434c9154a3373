package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teatarmk/reservation-api/internal/model"
	"github.com/teatarmk/reservation-api/internal/repository"
)

// ShowHandler serves the show catalog: public browse endpoints plus
// the admin-only CRUD.  Role enforcement happens in middleware; the
// handler only validates payloads and maps repository errors to HTTP
// responses.
type ShowHandler struct {
	Shows *repository.ShowRepo
}

// NewShowHandler constructs a ShowHandler.
func NewShowHandler(shows *repository.ShowRepo) *ShowHandler {
	if shows == nil {
		panic("nil repository passed to NewShowHandler")
	}
	return &ShowHandler{Shows: shows}
}

// showReq is the payload for create and update.  Numeric fields bind
// as int64 so negative values can be rejected with a clear message
// instead of a generic bind error.
type showReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Director    string `json:"director"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	DurationMin int64  `json:"duration"`
	TotalSeats  int64  `json:"total_seats"`
	PriceCents  int64  `json:"price_cents"`
}

// validate checks the catalog rules: required text fields non-empty,
// capacity a positive integer, price non-negative, parseable schedule.
func (r *showReq) validate() string {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Director = strings.TrimSpace(r.Director)
	if r.Title == "" || r.Description == "" || r.Director == "" {
		return "title, description and director are required"
	}
	if _, err := time.Parse("2006-01-02", r.Date); err != nil {
		return "date must be YYYY-MM-DD"
	}
	if _, err := time.Parse("15:04", r.Time); err != nil {
		return "time must be HH:MM"
	}
	if r.DurationMin <= 0 {
		return "duration must be positive"
	}
	if r.TotalSeats <= 0 {
		return "total_seats must be positive"
	}
	if r.PriceCents < 0 {
		return "price_cents must not be negative"
	}
	return ""
}

func (r *showReq) toModel() *model.Show {
	return &model.Show{
		Title:       r.Title,
		Description: r.Description,
		Director:    r.Director,
		Date:        r.Date,
		Time:        r.Time,
		DurationMin: uint32(r.DurationMin),
		TotalSeats:  uint32(r.TotalSeats),
		PriceCents:  uint32(r.PriceCents),
	}
}

// ListShows handles GET /v1/shows.  Public; returns all shows ordered
// by schedule.
func (h *ShowHandler) ListShows(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	shows, err := h.Shows.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load shows"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": shows})
}

// GetShow handles GET /v1/shows/:id.  Public.
func (h *ShowHandler) GetShow(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	show, err := h.Shows.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load show"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": show})
}

// CreateShow handles POST /v1/shows.  Admin only.
func (h *ShowHandler) CreateShow(c echo.Context) error {
	var req showReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	show := req.toModel()
	if err := h.Shows.Create(ctx, show); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create show"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": show})
}

// UpdateShow handles PUT /v1/shows/:id.  Admin only.  Editing the
// price never rewrites existing reservations: their totals were frozen
// at booking time.
func (h *ShowHandler) UpdateShow(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var req showReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	show := req.toModel()
	show.ID = id
	if err := h.Shows.Update(ctx, show); err != nil {
		if errors.Is(err, repository.ErrShowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update show"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": show})
}

// DeleteShow handles DELETE /v1/shows/:id.  Admin only.  A show that
// still has PENDING or CONFIRMED reservations is never deleted; the
// admin must wait for them to clear or cancel them first, so no
// customer's booking silently disappears.
func (h *ShowHandler) DeleteShow(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Shows.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrShowNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "show has active reservations"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete show"})
		}
	}
	return c.NoContent(http.StatusNoContent)
}
