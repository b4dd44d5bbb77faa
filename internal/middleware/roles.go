package middleware

import "github.com/gofiber/fiber/v2"

// RequireAdmin lets only admins through. It must run after Auth, which is what sets the
// flag it reads; without it every request is refused.
//
//	admin := api.Group("/auth/admin", middleware.Auth(...), middleware.RequireAdmin())
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Auth already combined the token claim with the stored flag.
		if !IsAdmin(c) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "admin access required",
			})
		}
		return c.Next()
	}
}
