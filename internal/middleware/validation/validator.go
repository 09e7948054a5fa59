package validation

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxTextLength       int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects unsupported content types and oversized analysis
// payloads before they reach a handler.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = 20000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get("Content-Type")
			if contentType != "" && !contentTypeAllowed(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if strings.HasSuffix(c.Path(), "/analyze") && c.Method() == fiber.MethodPost {
			var req struct {
				Text string `json:"text"`
			}
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid JSON format",
				})
			}

			if len(req.Text) > cfg.MaxTextLength {
				cfg.Logger.Warn("Oversized analysis payload rejected",
					zap.String("ip", c.IP()),
					zap.Int("length", len(req.Text)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Text exceeds maximum length",
				})
			}
		}

		return c.Next()
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	for _, a := range allowed {
		if strings.Contains(contentType, a) {
			return true
		}
	}
	return false
}
