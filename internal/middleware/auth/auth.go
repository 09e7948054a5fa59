package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	authsvc "github.com/matrix-ai/backend/internal/auth"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/pkg/apperr"
)

const userLocal = "auth_user"

// New authenticates the bearer token and stores the resolved user in locals.
func New(svc *authsvc.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		if token == c.Get("Authorization") {
			token = ""
		}

		user, err := svc.Authenticate(token)
		if err != nil {
			return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals(userLocal, user)
		return c.Next()
	}
}

// RequireRoles gates a route behind role membership. Must run after New.
func RequireRoles(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := UserFromCtx(c)
		if user == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}

		if !authsvc.Authorize(user, roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient permissions",
			})
		}

		return c.Next()
	}
}

func UserFromCtx(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userLocal).(*models.User)
	return user
}
