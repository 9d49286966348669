package handler

import (
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"github.com/averon/venue-reservation/internal/repository"
)

// BrowseHandler exposes unauthenticated catalog endpoints so guests can
// inspect availability before registering: free slots of a facility,
// upcoming events and the product catalog.
type BrowseHandler struct {
	Slots     *repository.SlotRepo
	Events    *repository.EventRepo
	Inventory *repository.InventoryRepo
}

// NewBrowseHandler constructs the handler.
func NewBrowseHandler(slots *repository.SlotRepo, events *repository.EventRepo, inventory *repository.InventoryRepo) *BrowseHandler {
	if slots == nil || events == nil || inventory == nil {
		panic("nil repository passed to NewBrowseHandler")
	}
	return &BrowseHandler{Slots: slots, Events: events, Inventory: inventory}
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// GetFacilitySlots handles GET /v1/facilities/:id/slots?date=YYYY-MM-DD
// and returns the facility's available slots for that date.
func (h *BrowseHandler) GetFacilitySlots(c echo.Context) error {
	facilityID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	date := c.QueryParam("date")
	if !datePattern.MatchString(date) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	slots, err := h.Slots.ListAvailable(c.Request().Context(), facilityID, date)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(slots))
	for _, s := range slots {
		out = append(out, echo.Map{
			"id":          s.ID,
			"venue_id":    s.VenueID,
			"date":        s.Date,
			"start_time":  s.StartTime,
			"end_time":    s.EndTime,
			"price_cents": s.PriceCents,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"slots": out})
}

// GetUpcomingEvents handles GET /v1/events and returns events that have
// not started yet with their remaining capacity.
func (h *BrowseHandler) GetUpcomingEvents(c echo.Context) error {
	events, err := h.Events.ListUpcoming(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(events))
	for _, e := range events {
		out = append(out, echo.Map{
			"id":               e.ID,
			"title":            e.Title,
			"starts_at":        e.StartsAt,
			"seat_price_cents": e.SeatPriceCents,
			"seats_left":       e.Capacity - e.BookedSeats,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GetProducts handles GET /v1/products and returns the shop catalog.
func (h *BrowseHandler) GetProducts(c echo.Context) error {
	products, err := h.Inventory.ListProducts(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	out := make([]echo.Map, 0, len(products))
	for _, p := range products {
		out = append(out, echo.Map{
			"id":          p.ID,
			"name":        p.Name,
			"price_cents": p.PriceCents,
			"in_stock":    p.Stock > 0,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"products": out})
}
