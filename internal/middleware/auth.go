// This file turns a bearer token into a member on the request.
//
// Every protected route runs one of the two entry points, which share authenticate:
//
//	Auth        Authorization: Bearer <token>    normal API calls
//	StreamAuth  ?token=<token>                   EventSource, which cannot set headers
//
// On success the handlers read the caller back with UserID, IsAdmin and CurrentUser.
// On failure the middleware writes the error response itself and the handler never runs.

// Package middleware contains the fiber middleware shared by the API routes: bearer
// authentication, the live-stream variant that reads its token from the query string, and
// the admin gate.
package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/identity"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/session"
)

// Keys under which Auth stores the caller in c.Locals.
const (
	LocalUserID  = "userID"  // uuid.UUID
	LocalIsAdmin = "isAdmin" // bool
	LocalUser    = "user"    // *models.User
)

// Auth validates the "Authorization: Bearer <token>" header, loads the member the token
// was issued to and stores them in the request context.
//
// The admin flag is the token claim AND the stored flag, so revoking admin takes effect
// immediately rather than when the token expires. Deactivated members get a 403.
func Auth(sessions *session.Manager, users *identity.Store, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// The header must be exactly "Bearer <token>".
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing or invalid authorization header",
			})
		}
		return authenticate(c, sessions, users, log, strings.TrimPrefix(header, "Bearer "))
	}
}

// StreamAuth is Auth for EventSource clients, which cannot set headers: the token comes
// from the "token" query parameter.
func StreamAuth(sessions *session.Manager, users *identity.Store, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing token query parameter",
			})
		}
		return authenticate(c, sessions, users, log, token)
	}
}

// authenticate checks token, loads its member and stores them in c.Locals for the
// handlers downstream.
func authenticate(c *fiber.Ctx, sessions *session.Manager, users *identity.Store, log *zap.Logger, token string) error {
	// Step 1: signature, expiry and algorithm. Any failure is a 401.
	id, err := sessions.Verify(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": apperr.Message(err)})
	}

	// Step 2: the member must still exist. A deleted account's token is just invalid.
	user, err := users.Get(c.UserContext(), id.UserID)
	if errors.Is(err, identity.ErrUserNotFound) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}
	if err != nil {
		log.Error("load authenticated user", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": apperr.Message(err)})
	}
	// Step 3: a deactivated member is known but not allowed in.
	if !user.IsActive {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": identity.ErrAccountDeactivated.Msg})
	}

	// Step 4: expose the caller to the handlers.
	c.Locals(LocalUserID, user.ID)
	c.Locals(LocalIsAdmin, id.IsAdmin && user.IsAdmin)
	c.Locals(LocalUser, user)
	return c.Next()
}

// UserID returns the authenticated member's id, or uuid.Nil outside Auth.
func UserID(c *fiber.Ctx) uuid.UUID {
	// The comma-ok assertion yields the zero value when Auth did not run.
	id, _ := c.Locals(LocalUserID).(uuid.UUID)
	return id
}

// IsAdmin reports whether the authenticated member may use admin routes.
func IsAdmin(c *fiber.Ctx) bool {
	admin, _ := c.Locals(LocalIsAdmin).(bool)
	return admin
}

// CurrentUser returns the member loaded by Auth.
func CurrentUser(c *fiber.Ctx) *models.User {
	u, _ := c.Locals(LocalUser).(*models.User)
	return u
}
