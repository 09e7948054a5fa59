package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/matrix-ai/backend/internal/events"
	authmw "github.com/matrix-ai/backend/internal/middleware/auth"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
)

type EventHandler struct {
	events *events.Manager
}

func NewEventHandler(events *events.Manager) *EventHandler {
	return &EventHandler{
		events: events,
	}
}

func (h *EventHandler) List(c *fiber.Ctx) error {
	filter := sqlite.EventFilter{
		Status:   c.Query("status"),
		Severity: c.Query("severity"),
		Category: c.Query("category"),
		SourceID: c.Query("sourceId"),
		Search:   c.Query("search"),
		Page:     c.QueryInt("page", 1),
		Limit:    c.QueryInt("limit", 20),
	}

	if start := c.Query("startDate"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "startDate must be RFC3339",
			})
		}
		filter.StartDate = &t
	}

	if end := c.Query("endDate"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "endDate must be RFC3339",
			})
		}
		filter.EndDate = &t
	}

	list, total, err := h.events.List(filter)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"events": list,
		"pagination": fiber.Map{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

func (h *EventHandler) Get(c *fiber.Ctx) error {
	event, err := h.events.Get(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"event": event,
	})
}

// UpdateStatus moves an event through its lifecycle. Restricted to analysts
// and admins by the route chain.
func (h *EventHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status  string `json:"status"`
		Comment string `json:"comment"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user := authmw.UserFromCtx(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	event, err := h.events.TransitionStatus(c.Params("id"), req.Status, user, req.Comment)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"event": event.Summary(),
	})
}

func (h *EventHandler) Stats(c *fiber.Ctx) error {
	var start, end *time.Time

	if s := c.Query("startDate"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "startDate must be RFC3339",
			})
		}
		start = &t
	}

	if e := c.Query("endDate"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "endDate must be RFC3339",
			})
		}
		end = &t
	}

	stats, err := h.events.Stats(start, end)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"stats": stats,
	})
}
