// This file handles RSVPs: a member's answer to an event invitation.
//
// A member has one RSVP per event. POSTing again does not add a second row, it
// changes the status of the first one, and the response code tells the client
// which happened (201 for the first answer, 200 for a change).

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trentd187/beach-club/internal/events"
	"github.com/trentd187/beach-club/internal/metrics"
	"github.com/trentd187/beach-club/internal/middleware"
	"github.com/trentd187/beach-club/internal/models"
)

// RSVPRequest is the body of POST /api/events/:id/rsvps.
type RSVPRequest struct {
	Status string `json:"status"` // going, not_going or interested
}

// UpsertRSVP handles POST /api/events/:id/rsvps. The first answer creates the RSVP (201);
// later answers replace its status (200).
func UpsertRSVP(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramID(c, "id", events.ErrEventNotFound)
		if err != nil {
			return err
		}
		// The ledger validates the status value, so it is passed through as-is.
		var req RSVPRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}

		// The ledger inserts or updates in one statement, so racing requests from the same member never
		// produce two rows.
		rsvp, created, err := ledger.UpsertRSVP(c.UserContext(), middleware.UserID(c), eventID, models.RSVPStatus(req.Status))
		if err != nil {
			return err
		}

		// created picks both the status code and the metric label.
		status, result, message := fiber.StatusOK, "updated", "RSVP updated successfully."
		if created {
			status, result, message = fiber.StatusCreated, "created", "RSVP created successfully."
		}
		metrics.RSVPWrites.WithLabelValues(result).Inc()
		return c.Status(status).JSON(fiber.Map{"message": message, "rsvp": newRSVPResponse(rsvp)})
	}
}

// ListEventRSVPs handles GET /api/events/:id/rsvps: every answer to one event, oldest
// first, with the member's display name.
func ListEventRSVPs(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		eventID, err := paramID(c, "id", events.ErrEventNotFound)
		if err != nil {
			return err
		}
		list, err := ledger.ListRSVPsForEvent(c.UserContext(), eventID)
		if err != nil {
			return err
		}
		// The route is public: any visitor may see who is coming.
		return c.JSON(fiber.Map{"rsvps": rsvpList(list)})
	}
}

// MyRSVPs handles GET /api/users/me/rsvps: every answer the signed-in member has
// given, with the event attached, soonest event first.
func MyRSVPs(ledger *events.Ledger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Each RSVP comes back with its event preloaded.
		list, err := ledger.ListRSVPsForUser(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"rsvps": rsvpList(list)})
	}
}

// rsvpList maps a list of RSVPs onto their response shape.
func rsvpList(list []models.RSVP) []RSVPResponse {
	out := make([]RSVPResponse, len(list))
	for i := range list {
		out[i] = newRSVPResponse(&list[i])
	}
	return out
}
