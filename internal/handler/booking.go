package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/subashmuthub/lab-management-system/internal/repository"
	"github.com/subashmuthub/lab-management-system/internal/service"
)

// BookingHandler exposes the booking surface. All routes sit behind
// the session middleware; the requesting user always comes from the
// context, never from the body.
type BookingHandler struct {
	Bookings *service.BookingService
}

func NewBookingHandler(b *service.BookingService) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

type proposeReq struct {
	ResourceKind string `json:"resourceKind" validate:"required,oneof=lab equipment"`
	ResourceID   uint64 `json:"resourceId" validate:"required,gt=0"`
	Date         string `json:"date" validate:"required"`
	StartTime    string `json:"startTime" validate:"required"`
	EndTime      string `json:"endTime" validate:"required"`
	Purpose      string `json:"purpose" validate:"max=500"`
}

// Create handles POST /v1/bookings. On success it returns 201 with
// the booking joined with resource and user details. A slot taken by
// another pending/confirmed booking yields 409.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req proposeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	detail, err := h.Bookings.Propose(c.Request().Context(), service.ProposeRequest{
		UserID:       userID,
		ResourceKind: req.ResourceKind,
		ResourceID:   req.ResourceID,
		Date:         req.Date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Purpose:      req.Purpose,
	})
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"booking": detail})
}

// List handles GET /v1/bookings and returns the caller's bookings.
func (h *BookingHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Bookings.ListMine(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load bookings"})
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, err := h.Bookings.Get(c.Request().Context(), id, userID)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": booking})
}

// Cancel handles DELETE /v1/bookings/:id. The booking row survives
// with status cancelled; re-proposing the freed slot succeeds.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	if err := h.Bookings.Cancel(c.Request().Context(), id, userID); err != nil {
		return bookingError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// bookingError maps service and repository failures onto HTTP
// responses with a stable error string.
func bookingError(c echo.Context, err error) error {
	var input *service.InputError
	switch {
	case errors.As(err, &input):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": input.Reason})
	case errors.Is(err, repository.ErrResourceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
	case errors.Is(err, service.ErrEquipmentUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "equipment is not available for booking"})
	case errors.Is(err, repository.ErrBookingConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "time slot already booked"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
