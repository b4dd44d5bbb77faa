// This file holds the error handler Fiber calls whenever a handler returns an error,
// plus the small request-parsing helpers whose failures feed into it.
//
// Handlers never write error responses themselves. They return the error, and
// ErrorHandler picks the status from its apperr.Kind:
//
//	return bags.ErrGameNotFound   ->  404 {"error": "game not found"}
//	return fmt.Errorf("...")      ->  500 {"error": "internal server error"}, logged

package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/apperr"
)

// ErrorHandler turns handler errors into the API's {"error": "..."} bodies. Classified
// errors keep their message; anything else is logged and reported as a generic 500.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		// Fiber's own errors (unknown route, wrong method, body too large) already carry
		// a status code.
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
		}

		// Everything else is ours. Unclassified errors come back as 500.
		status := apperr.Status(err)
		// 4xx responses are the client's problem and are not logged. A 5xx is ours, and
		// the underlying cause is logged here because the client only sees a generic message.
		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}
		// Message never exposes the wrapped cause.
		return c.Status(status).JSON(fiber.Map{"error": apperr.Message(err)})
	}
}

// errBadBody is returned for any body that does not decode into the request struct.
var errBadBody = apperr.Validation("invalid request body")

// parseBody decodes the JSON body into v.
func parseBody(c *fiber.Ctx, v any) error {
	// BodyParser picks the decoder from Content-Type. The decode error is kept as the
	// cause for logging but never shown to the client.
	if err := c.BodyParser(v); err != nil {
		return apperr.Wrap(errBadBody, err)
	}
	return nil
}

// paramID parses the :name route parameter as a UUID. A malformed id can never match a
// row, so it is reported the same way as a missing one.
func paramID(c *fiber.Ctx, name string, notFound *apperr.Error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

// Timestamps accepted from clients, most specific first. Zone-less values are UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime parses a client timestamp using the first layout that fits.
func parseTime(field, raw string) (time.Time, error) {
	// time.Parse treats a layout without a zone as UTC.
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, apperr.Validation("%s must be an ISO 8601 date or timestamp", field)
}

// parseDate parses a calendar date such as a member-since date.
func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be a YYYY-MM-DD date", field)
	}
	return t, nil
}
