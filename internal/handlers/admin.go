// This file handles the /api/auth/admin routes. Routes.go mounts them in a group that
// runs Auth and then RequireAdmin, so every handler here can assume the caller is a
// signed-in admin and does not check again.

package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/trentd187/beach-club/internal/identity"
	"github.com/trentd187/beach-club/internal/middleware"
)

// ListUsers handles GET /api/auth/admin/users.
func ListUsers(users *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Admins see every member, inactive ones included, with their private counters.
		list, err := users.List(c.UserContext())
		if err != nil {
			return err
		}
		out := make([]UserResponse, len(list))
		for i := range list {
			out[i] = newUserResponse(&list[i], true)
		}
		// total is the length of this list; the admin page has no paging.
		return c.JSON(fiber.Map{"users": out, "total": len(out)})
	}
}

// AdminUserRequest is the body of PUT /api/auth/admin/users/:id. Only these two flags
// can be changed through the admin pages.
type AdminUserRequest struct {
	IsActive *bool `json:"is_active"` // false deactivates; the member can no longer sign in
	IsAdmin  *bool `json:"is_admin"`  // grant or revoke admin rights
}

// UpdateUser handles PUT /api/auth/admin/users/:id.
func UpdateUser(users *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		targetID, err := paramID(c, "id", identity.ErrUserNotFound)
		if err != nil {
			return err
		}
		var req AdminUserRequest
		if err := parseBody(c, &req); err != nil {
			return err
		}
		// The acting admin is passed along so the store can refuse self-demotion.
		user, err := users.AdminUpdate(c.UserContext(), middleware.UserID(c), targetID, identity.AdminChanges{
			IsActive: req.IsActive,
			IsAdmin:  req.IsAdmin,
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"message": "User updated successfully",
			"user":    newUserResponse(user, true),
		})
	}
}

// AdminStats handles GET /api/auth/admin/stats.
func AdminStats(users *identity.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Stats is already shaped for the dashboard, so it is returned as-is.
		stats, err := users.Stats(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(stats)
	}
}
