package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

// respondError maps an error to its HTTP status. Internal errors are logged
// and answered with a generic message so internals never leak to clients.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)

	if status == fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(status).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
