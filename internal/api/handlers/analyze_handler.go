package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/events"
	authmw "github.com/matrix-ai/backend/internal/middleware/auth"
	"github.com/matrix-ai/backend/pkg/logger"
)

type AnalyzeHandler struct {
	analyzer *analysis.Analyzer
	events   *events.Manager
}

func NewAnalyzeHandler(analyzer *analysis.Analyzer, events *events.Manager) *AnalyzeHandler {
	return &AnalyzeHandler{
		analyzer: analyzer,
		events:   events,
	}
}

// Analyze classifies the submitted text. When a sourceId is supplied the
// verdict is also recorded as a monitoring event against that source.
func (h *AnalyzeHandler) Analyze(c *fiber.Ctx) error {
	var req struct {
		Text     string `json:"text"`
		SourceID string `json:"sourceId"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Text is required",
		})
	}

	result, err := h.analyzer.Analyze(c.Context(), req.Text)
	if err != nil {
		return respondError(c, err)
	}

	response := fiber.Map{
		"analysis": result,
	}

	if req.SourceID != "" {
		user := authmw.UserFromCtx(c)
		createdBy := ""
		if user != nil {
			createdBy = user.ID
		}

		event, err := h.events.CreateFromAnalysis(req.SourceID, req.Text, "", "", result, createdBy)
		if err != nil {
			return respondError(c, err)
		}

		logger.Info("Event created from analysis",
			zap.String("event_id", event.ID),
			zap.String("source_id", req.SourceID),
			zap.String("threat_level", result.ThreatLevel),
		)

		response["event"] = event
	}

	return c.JSON(response)
}
