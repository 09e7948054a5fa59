package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/cache/redis"
	"github.com/matrix-ai/backend/internal/metrics"
	"github.com/matrix-ai/backend/internal/nlp"
	"github.com/matrix-ai/backend/internal/storage/modelstore"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

type ModelHandler struct {
	classifier *nlp.Classifier
	analyzer   *analysis.Analyzer
	cache      *redis.Client
}

func NewModelHandler(classifier *nlp.Classifier, analyzer *analysis.Analyzer, cache *redis.Client) *ModelHandler {
	return &ModelHandler{
		classifier: classifier,
		analyzer:   analyzer,
		cache:      cache,
	}
}

func (h *ModelHandler) Info(c *fiber.Ctx) error {
	report, err := h.classifier.Report()
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"model": report,
	})
}

func (h *ModelHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": nlp.Categories,
	})
}

// Train retrains the model on the submitted samples, then reloads the
// serving classifier and drops cached analysis results so subsequent
// requests see the new weights.
func (h *ModelHandler) Train(c *fiber.Ctx) error {
	var req struct {
		TrainingData []modelstore.Sample `json:"trainingData"`
		Options      nlp.TrainOptions    `json:"options"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.TrainingData) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "trainingData must be a non-empty array",
		})
	}
	for _, sample := range req.TrainingData {
		if sample.Text == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "training sample text cannot be empty",
			})
		}
	}

	start := time.Now()

	result, err := h.classifier.Train(req.TrainingData, req.Options)
	if err != nil {
		metrics.TrainingRuns.WithLabelValues("error").Inc()
		if apperr.Is(err, apperr.KindModelLoad) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return respondError(c, err)
	}

	metrics.TrainingRuns.WithLabelValues("ok").Inc()
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	metrics.ModelAccuracy.Set(result.FinalAccuracy)

	if err := h.analyzer.Reload(); err != nil {
		logger.Error("Failed to reload classifier after training", zap.Error(err))
	}

	if h.cache != nil {
		if err := h.cache.InvalidateAnalysisCache(c.Context()); err != nil {
			logger.Warn("Failed to invalidate analysis cache", zap.Error(err))
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}

func (h *ModelHandler) Evaluate(c *fiber.Ctx) error {
	var req struct {
		TestData []modelstore.Sample `json:"testData"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if len(req.TestData) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "testData must be a non-empty array",
		})
	}

	result, err := h.classifier.Evaluate(req.TestData)
	if err != nil {
		if apperr.Is(err, apperr.KindModelLoad) || apperr.Is(err, apperr.KindConfiguration) {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		}
		return respondError(c, err)
	}

	metrics.ModelAccuracy.Set(result.Accuracy)

	return c.JSON(fiber.Map{
		"success": true,
		"result":  result,
	})
}
