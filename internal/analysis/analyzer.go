// Package analysis combines classification and sentiment into a threat-level
// verdict for a piece of text.
package analysis

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/cache/redis"
	"github.com/matrix-ai/backend/internal/metrics"
	"github.com/matrix-ai/backend/internal/nlp"
	"github.com/matrix-ai/backend/pkg/circuitbreaker"
	"github.com/matrix-ai/backend/pkg/logger"
	"github.com/matrix-ai/backend/pkg/utils"
)

const (
	ThreatLevelLow    = "low"
	ThreatLevelMedium = "medium"
	ThreatLevelHigh   = "high"
)

type AnalysisResult struct {
	Text           string                    `json:"text"`
	Classification *nlp.ClassificationResult `json:"classification"`
	Sentiment      nlp.SentimentResult       `json:"sentiment"`
	ThreatLevel    string                    `json:"threatLevel"`
	Timestamp      time.Time                 `json:"timestamp"`
}

type textClassifier interface {
	Load() error
	Classify(text string) (*nlp.ClassificationResult, error)
}

// Analyzer owns the process-wide model state. The classifier is loaded on
// first use and reused across requests; Reload refreshes it after a retrain.
type Analyzer struct {
	classifier textClassifier
	cache      *redis.Client
	breaker    *circuitbreaker.CircuitBreaker
	cacheTTL   time.Duration

	mu     sync.Mutex
	loaded bool
}

func New(classifier textClassifier, cache *redis.Client, cacheTTL time.Duration) *Analyzer {
	a := &Analyzer{
		classifier: classifier,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
	if cache != nil {
		a.breaker = circuitbreaker.New("analysis-cache", circuitbreaker.Config{
			Timeout:          30 * time.Second,
			FailureThreshold: 3,
			Logger:           logger.Log,
		})
	}
	return a
}

func (a *Analyzer) ensureLoaded() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded {
		return nil
	}
	if err := a.classifier.Load(); err != nil {
		return err
	}
	a.loaded = true
	return nil
}

// Reload forces the classifier to re-read its persisted artifacts. Called
// after a training run replaces the model on disk.
func (a *Analyzer) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.classifier.Load(); err != nil {
		a.loaded = false
		return err
	}
	a.loaded = true
	return nil
}

// Analyze classifies text, scores its sentiment, and derives the threat
// level. Results are cached by text hash when a cache is configured.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*AnalysisResult, error) {
	if err := a.ensureLoaded(); err != nil {
		return nil, err
	}

	key := utils.HashString(text)
	if cached := a.cacheGet(ctx, key); cached != nil {
		metrics.CacheHits.WithLabelValues("analysis").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("analysis").Inc()

	start := time.Now()

	classification, err := a.classifier.Classify(text)
	if err != nil {
		metrics.AnalysisTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	sentiment := nlp.ScoreSentiment(text)

	result := &AnalysisResult{
		Text:           text,
		Classification: classification,
		Sentiment:      sentiment,
		ThreatLevel:    threatLevel(classification.IsHighRisk, sentiment.Sentiment),
		Timestamp:      time.Now().UTC(),
	}

	metrics.AnalysisTotal.WithLabelValues("ok").Inc()
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	metrics.ThreatLevelTotal.WithLabelValues(result.ThreatLevel).Inc()
	if classification.IsHighRisk {
		metrics.HighRiskTotal.Inc()
	}

	logger.Debug("Text analyzed",
		zap.String("top_category", classification.TopCategory),
		zap.Float64("confidence", classification.Confidence),
		zap.String("threat_level", result.ThreatLevel),
	)

	a.cacheSet(ctx, key, result)
	return result, nil
}

// threatLevel applies the decision table: high risk with negative sentiment
// is high; exactly one of the two is medium; neither is low.
func threatLevel(isHighRisk bool, sentiment string) string {
	negative := sentiment == nlp.SentimentNegative
	switch {
	case isHighRisk && negative:
		return ThreatLevelHigh
	case isHighRisk || negative:
		return ThreatLevelMedium
	default:
		return ThreatLevelLow
	}
}

func (a *Analyzer) cacheGet(ctx context.Context, key string) *AnalysisResult {
	if a.cache == nil {
		return nil
	}

	var result AnalysisResult
	found := false
	err := a.breaker.Execute(ctx, func() error {
		var err error
		found, err = a.cache.GetAnalysis(ctx, key, &result)
		return err
	})
	if err != nil || !found {
		return nil
	}
	return &result
}

func (a *Analyzer) cacheSet(ctx context.Context, key string, result *AnalysisResult) {
	if a.cache == nil {
		return
	}

	err := a.breaker.Execute(ctx, func() error {
		return a.cache.SetAnalysis(ctx, key, result, a.cacheTTL)
	})
	if err != nil {
		logger.Warn("Failed to cache analysis result", zap.Error(err))
	}
}
