// This file handles the /api/auth routes a member uses to get in and manage their own
// account: password registration and sign-in, Google sign-in, reading and editing the
// profile, and changing the password.
//
// Every sign-in route ends the same way, in signIn: a session token is issued and
// returned alongside the member's full record, so the client can render the profile
// without a second request.
//
// Request flow for a password sign-in:
//
//	POST /api/auth/login {"email", "password"}
//	  -> identity.Store.AuthenticateLocal   bcrypt check, last_login stamped
//	  -> session.Manager.Issue              HS256 JWT with the member's id and role
//	  <- 200 {"token", "expires_at", "user"}

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trentd187/beach-club/internal/apperr"
	"github.com/trentd187/beach-club/internal/identity"
	"github.com/trentd187/beach-club/internal/metrics"
	"github.com/trentd187/beach-club/internal/middleware"
	"github.com/trentd187/beach-club/internal/models"
	"github.com/trentd187/beach-club/internal/session"
)

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email            string  `json:"email"`      // required; becomes the login name
	Password         string  `json:"password"`   // 8 to 72 bytes
	FirstName        *string `json:"first_name"` // optional profile fields from here on
	LastName         *string `json:"last_name"`
	DisplayName      *string `json:"display_name"`
	BeachMemberSince *string `json:"beach_member_since"` // YYYY-MM-DD
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`    // case-insensitive
	Password string `json:"password"` // checked against the bcrypt hash
}

// GoogleLoginRequest is the body of POST /api/auth/google.
type GoogleLoginRequest struct {
	Token string `json:"token"` // Google ID token (a JWT signed by Google)
}

// SessionResponse is returned by every sign-in route.
type SessionResponse struct {
	Token     string       `json:"token"`      // bearer token for the Authorization header
	ExpiresAt string       `json:"expires_at"` // RFC 3339; sign in again after this
	User      UserResponse `json:"user"`       // the signed-in member, stats included
}

// Register handles POST /api/auth/register and signs the new member in.
func Register(users *identity.Store, sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Parse and shape the request; the identity store does the validation.
		var req RegisterRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		reg := identity.Registration{
			Email:       req.Email,
			Password:    req.Password,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			DisplayName: req.DisplayName,
		}
		// An empty date is the same as leaving it out.
		if req.BeachMemberSince != nil && *req.BeachMemberSince != "" {
			since, err := parseDate("beach_member_since", *req.BeachMemberSince)
			if err != nil {
				return err
			}
			reg.MemberSince = &since
		}

		// Count the attempt whatever the outcome, then let ErrorHandler map any failure.
		user, err := users.RegisterLocal(c.UserContext(), reg)
		metrics.AuthAttempts.WithLabelValues("register", metrics.Outcome(err)).Inc()
		if err != nil {
			return err
		}
		// 201 because an account was created.
		return signIn(c, sessions, user, fiber.StatusCreated)
	}
}

// Login handles POST /api/auth/login.
func Login(users *identity.Store, sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// Reject obviously empty input before paying for a bcrypt comparison.
		if req.Email == "" || req.Password == "" {
			return apperr.Validation("email and password are required")
		}

		user, err := users.AuthenticateLocal(c.UserContext(), req.Email, req.Password)
		metrics.AuthAttempts.WithLabelValues("password", metrics.Outcome(err)).Inc()
		if err != nil {
			return err
		}
		return signIn(c, sessions, user, fiber.StatusOK)
	}
}

// GoogleLogin handles POST /api/auth/google. The body carries the ID token the client got
// from Google Sign-In.
func GoogleLogin(users *identity.Store, sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req GoogleLoginRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.Token == "" {
			return apperr.Validation("token is required")
		}

		// The store verifies the token with Google's keys and finds, links or creates the member.
		user, err := users.AuthenticateFederated(c.UserContext(), req.Token)
		metrics.AuthAttempts.WithLabelValues("google", metrics.Outcome(err)).Inc()
		if err != nil {
			return err
		}
		// A first Google sign-in also creates the account, but the response stays 200.
		return signIn(c, sessions, user, fiber.StatusOK)
	}
}

// signIn issues a session for user and writes the SessionResponse with the given status.
func signIn(c *fiber.Ctx, sessions *session.Manager, user *models.User, status int) error {
	tok, err := sessions.Issue(user)
	if err != nil {
		return err
	}
	// The member always sees their own stats.
	return c.Status(status).JSON(SessionResponse{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt.UTC().Format(time.RFC3339),
		User:      newUserResponse(user, true),
	})
}

// Me handles GET /api/auth/me.
func Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// RequireAuth has already loaded the member, so there is no query here.
		return c.JSON(fiber.Map{"user": newUserResponse(middleware.CurrentUser(c), true)})
	}
}

// ProfileRequest is the body of PUT /api/auth/profile. Absent fields are left alone.
type ProfileRequest struct {
	FirstName        *string `json:"first_name"`
	LastName         *string `json:"last_name"`
	DisplayName      *string `json:"display_name"`
	Bio              *string `json:"bio"` // sanitised free text
	FavoriteBand     *string `json:"favorite_band"`
	BeachMemberSince *string `json:"beach_member_since"` // YYYY-MM-DD, or "" to clear
	NotifyEvents     *bool   `json:"notify_events"`      // notification switches
	NotifyBagsGames  *bool   `json:"notify_bags_games"`
	NotifyMessages   *bool   `json:"notify_messages"`
}

// UpdateProfile handles PUT /api/auth/profile.
func UpdateProfile(users *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ProfileRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// The member id comes from the session, never the body: members only edit themselves.
		user, err := users.UpdateProfile(c.UserContext(), middleware.UserID(c), identity.ProfileUpdate{
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			DisplayName:     req.DisplayName,
			Bio:             req.Bio,
			FavoriteBand:    req.FavoriteBand,
			MemberSince:     req.BeachMemberSince,
			NotifyEvents:    req.NotifyEvents,
			NotifyBagsGames: req.NotifyBagsGames,
			NotifyMessages:  req.NotifyMessages,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "Profile updated successfully",
			"user":    newUserResponse(user, true),
		})
	}
}

// ChangePasswordRequest is the body of POST /api/auth/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"` // proves the caller knows the old one
	NewPassword     string `json:"new_password"`     // same rules as at registration
}

// ChangePassword handles POST /api/auth/change-password.
func ChangePassword(users *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ChangePasswordRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		if req.CurrentPassword == "" || req.NewPassword == "" {
			return apperr.Validation("current_password and new_password are required")
		}
		// Existing tokens stay valid; only the next password sign-in changes.
		if err := users.ChangePassword(c.UserContext(), middleware.UserID(c), req.CurrentPassword, req.NewPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Password changed successfully"})
	}
}
