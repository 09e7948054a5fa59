package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/ingest"
	authmw "github.com/matrix-ai/backend/internal/middleware/auth"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/logger"
)

type SourceHandler struct {
	db        *sqlite.Client
	processor *ingest.Processor
}

func NewSourceHandler(db *sqlite.Client, processor *ingest.Processor) *SourceHandler {
	return &SourceHandler{
		db:        db,
		processor: processor,
	}
}

func (h *SourceHandler) Create(c *fiber.Ctx) error {
	var req struct {
		Name          string `json:"name"`
		Type          string `json:"type"`
		URL           string `json:"url"`
		SyncFrequency int    `json:"syncFrequency"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Type) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Name and type are required",
		})
	}

	user := authmw.UserFromCtx(c)
	createdBy := ""
	if user != nil {
		createdBy = user.ID
	}

	now := time.Now()
	source := &models.Source{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Type:          req.Type,
		URL:           req.URL,
		IsActive:      true,
		SyncFrequency: req.SyncFrequency,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.db.CreateSource(source); err != nil {
		return respondError(c, err)
	}

	logger.Info("Source created",
		zap.String("source_id", source.ID),
		zap.String("name", source.Name),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"source": source,
	})
}

func (h *SourceHandler) List(c *fiber.Ctx) error {
	sources, err := h.db.ListSources()
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"sources": sources,
	})
}

// Ingest accepts raw HTML fetched from the source, cleans it, and runs it
// through the analysis pipeline.
func (h *SourceHandler) Ingest(c *fiber.Ctx) error {
	var req struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.HTML == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "HTML content is required",
		})
	}

	user := authmw.UserFromCtx(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "authentication required",
		})
	}

	result, event, err := h.processor.ProcessHTML(c.Context(), c.Params("id"), req.URL, req.HTML, user)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"analysis": result,
		"event":    event,
	})
}
