// Package handlers holds the fiber handler factories for the beach club API. Each factory
// takes the services it needs and returns a fiber.Handler, so nothing here reaches for a
// global. Handlers return domain errors as-is; ErrorHandler maps them to responses.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trentd187/beach-club/internal/events"
	"github.com/trentd187/beach-club/internal/middleware"
)

// EventRequest is the body of POST and PUT /api/events. On update, absent fields keep
// their stored value.
type EventRequest struct {
	Title       *string `json:"title"`       // required on create
	Description *string `json:"description"` // optional
	Date        *string `json:"date"`        // ISO 8601
	Location    *string `json:"location"`    // optional
	EventType   *string `json:"event_type"`  // defaults to "general"
}

// ListEvents handles GET /api/events. ?type= narrows the list to one event type.
func ListEvents(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Each event comes with its "going" count from a single grouped query.
		list, err := ledger.ListEvents(c.UserContext(), c.Query("type"))
		if err != nil {
			return err
		}
		out := make([]EventResponse, len(list))
		for i := range list {
			out[i] = newEventSummaryResponse(&list[i])
		}
		return c.JSON(fiber.Map{"events": out})
	}
}

// GetEvent handles GET /api/events/:id. Like the list, it is public and includes the
// number of members going.
func GetEvent(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", events.ErrEventNotFound)
		if err != nil {
			return err
		}
		ev, err := ledger.GetEvent(c.UserContext(), id)
		if err != nil {
			return err
		}
		// GetEvent already carries the going count, so no second query is needed.
		return c.JSON(fiber.Map{"event": newEventSummaryResponse(ev)})
	}
}

// CreateEvent handles POST /api/events. Any signed-in member may create an event.
func CreateEvent(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req EventRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// Pointers in the request become plain values here. The ledger reports what is missing.
		d := events.EventDetails{
			Description: req.Description,
			Location:    req.Location,
		}
		if req.Title != nil {
			d.Title = *req.Title
		}
		if req.EventType != nil {
			d.EventType = *req.EventType
		}
		if req.Date != nil && *req.Date != "" {
			// Dates may be a full timestamp or a bare day; see timeLayouts.
			date, err := parseTime("date", *req.Date)
			if err != nil {
				return err
			}
			d.Date = date
		}

		// The creator's events_created counter is bumped in the same transaction.
		ev, err := ledger.CreateEvent(c.UserContext(), middleware.UserID(c), d)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Event created successfully",
			// A new event has no RSVPs yet.
			"event":   newEventResponse(ev, 0),
		})
	}
}

// UpdateEvent handles PUT /api/events/:id. Only the creator or an admin may edit.
func UpdateEvent(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c, "id", events.ErrEventNotFound)
		if err != nil {
			return err
		}
		var req EventRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// Unlike create, nil here means "keep", so the pointers are passed straight through.
		ch := events.EventChanges{
			Title:       req.Title,
			Description: req.Description,
			Location:    req.Location,
			EventType:   req.EventType,
		}
		// An explicit empty date is an error on update because the date cannot be cleared.
		if req.Date != nil {
			date, err := parseTime("date", *req.Date)
			if err != nil {
				return err
			}
			ch.Date = &date
		}

		// The ledger checks the caller is the creator or an admin.
		if _, err := ledger.UpdateEvent(c.UserContext(), middleware.UserID(c), middleware.IsAdmin(c), id, ch); err != nil {
			return err
		}
		// Reload through GetEvent so the response carries the creator and going count.
		ev, err := ledger.GetEvent(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Event updated successfully",
			"event":   newEventSummaryResponse(ev),
		})
	}
}
