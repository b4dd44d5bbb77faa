package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Health handles GET /api/health. It stays unauthenticated and cheap for load balancer
// health checks, but it does ping the database: an API that cannot reach its store is not healthy.
func Health(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// A hung database should fail the check quickly rather than hang the caller.
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		// db.DB() exposes the *sql.DB pool underneath GORM.
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		// 503 tells the load balancer to stop routing traffic here.
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":   "degraded",
				"database": "unreachable",
			})
		}
		// Everything answered: report healthy.
		return c.JSON(fiber.Map{
			"status":   "ok",
			"database": "ok",
			"message":  "Beach Club API is running",
		})
	}
}
