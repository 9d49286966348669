package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/averon/venue-reservation/internal/booking"
	"github.com/averon/venue-reservation/internal/model"
	"github.com/averon/venue-reservation/internal/payment"
	"github.com/averon/venue-reservation/internal/repository"
)

// ReservationHandler exposes the customer-facing reservation lifecycle.
// JWT authentication and role validation have already been performed by
// middleware; methods return 401 if the user id cannot be extracted from
// the context.
type ReservationHandler struct {
	Booking  *booking.Service
	Currency string
}

// NewReservationHandler constructs the handler.
func NewReservationHandler(svc *booking.Service, currency string) *ReservationHandler {
	if svc == nil {
		panic("nil booking service passed to NewReservationHandler")
	}
	return &ReservationHandler{Booking: svc, Currency: currency}
}

// createRequest is the body of POST /v1/reservations.  Exactly one of
// venue, event or shop must be present and must match kind.
type createRequest struct {
	Kind        model.Kind           `json:"kind"`
	Venue       *model.VenueDetails  `json:"venue,omitempty"`
	Event       *model.EventDetails  `json:"event,omitempty"`
	Shop        *model.ShopDetails   `json:"shop,omitempty"`
	Method      model.PaymentMethod  `json:"method"`
	AmountCents uint32               `json:"amount_cents,omitempty"`
}

type reservationResponse struct {
	ID            uint64                  `json:"id"`
	Kind          model.Kind              `json:"kind"`
	Status        model.ReservationStatus `json:"status"`
	PaymentStatus model.PaymentStatus     `json:"payment_status"`
	AmountCents   uint32                  `json:"amount_cents"`
	Currency      string                  `json:"currency"`
	Venue         *model.VenueDetails     `json:"venue,omitempty"`
	Event         *model.EventDetails     `json:"event,omitempty"`
	Shop          *model.ShopDetails      `json:"shop,omitempty"`
	OrderID       string                  `json:"order_id,omitempty"`
	CreatedAt     string                  `json:"created_at,omitempty"`
	ConfirmedAt   string                  `json:"confirmed_at,omitempty"`
}

func toResponse(res *model.Reservation) reservationResponse {
	out := reservationResponse{
		ID:            res.ID,
		Kind:          res.Kind,
		Status:        res.ReservationStatus,
		PaymentStatus: res.PaymentStatus,
		AmountCents:   res.AmountCents,
		Currency:      res.Currency,
		Venue:         res.Venue,
		Event:         res.Event,
		Shop:          res.Shop,
		OrderID:       res.Payment.OrderID,
	}
	if !res.CreatedAt.IsZero() {
		out.CreatedAt = res.CreatedAt.UTC().Format(time.RFC3339)
	}
	if res.ConfirmedAt != nil {
		out.ConfirmedAt = res.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return out
}

// Create handles POST /v1/reservations.  On success it returns 201 with
// the stored reservation and the payment intent the client needs to
// complete (or, for wallet, has already completed).
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body createRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Method != model.MethodWallet && body.Method != model.MethodGateway {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "method must be WALLET or GATEWAY"})
	}

	out, err := h.Booking.Create(c.Request().Context(), booking.CreateRequest{
		OwnerID:       userID,
		Kind:          body.Kind,
		Venue:         body.Venue,
		Event:         body.Event,
		Shop:          body.Shop,
		Method:        body.Method,
		Currency:      h.Currency,
		AssertedCents: body.AmountCents,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrInvalidPayload):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "payload does not match kind"})
		case errors.Is(err, booking.ErrAmountMismatch):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "amount does not match priced components"})
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
		case errors.Is(err, repository.ErrResourceUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "requested resources are no longer available"})
		case errors.Is(err, payment.ErrInsufficientBalance):
			return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "insufficient wallet balance"})
		case errors.Is(err, payment.ErrGatewayUnavailable):
			return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment gateway unavailable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create reservation"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"reservation": toResponse(out.Reservation),
		"payment": echo.Map{
			"order_id":     out.Intent.OrderID,
			"receipt":      out.Intent.Receipt,
			"method":       out.Intent.Method,
			"amount_cents": out.Intent.AmountCents,
			"currency":     out.Intent.Currency,
		},
	})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Booking.Get(c.Request().Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, toResponse(res))
}

// List handles GET /v1/reservations and returns the caller's
// reservations, newest first.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	list, err := h.Booking.List(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]reservationResponse, 0, len(list))
	for _, res := range list {
		out = append(out, toResponse(res))
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Cancel handles DELETE /v1/reservations/:id.  Paid wallet reservations
// are refunded to the wallet; resources return to the available pool.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	if err := h.Booking.Cancel(c.Request().Context(), id, userID); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
		case errors.Is(err, repository.ErrForbidden):
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "reservation is not cancellable"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel reservation"})
	}
	return c.NoContent(http.StatusNoContent)
}
