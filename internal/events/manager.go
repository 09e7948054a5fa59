// Package events owns the monitoring-event lifecycle: creation from analysis
// verdicts and the status-transition state machine.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/metrics"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

const titlePrefixRunes = 50

type Manager struct {
	db        *sqlite.Client
	onCreated func(*models.Event)
}

func NewManager(db *sqlite.Client) *Manager {
	return &Manager{db: db}
}

// OnCreated registers a hook invoked after every successful event insert.
// Used by the websocket stream to push new events to connected clients.
func (m *Manager) OnCreated(fn func(*models.Event)) {
	m.onCreated = fn
}

// CreateFromAnalysis persists a new event carrying the analysis verdict.
// title may be empty, in which case it is derived from the text. sourceURL
// is recorded when the text came from a fetched page.
func (m *Manager) CreateFromAnalysis(sourceID, text, title, sourceURL string, result *analysis.AnalysisResult, createdBy string) (*models.Event, error) {
	source, err := m.db.GetSource(sourceID)
	if err != nil {
		return nil, err
	}

	snapshot, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis snapshot: %w", err)
	}

	if title == "" {
		title = "Text analysis: " + truncate(text, titlePrefixRunes)
	}

	now := time.Now()
	event := &models.Event{
		ID:         uuid.NewString(),
		Title:      title,
		Content:    text,
		Type:       "text",
		Category:   strings.ReplaceAll(result.Classification.TopCategory, "_", " "),
		Severity:   severityFromThreatLevel(result.ThreatLevel),
		Confidence: result.Classification.Confidence,
		SourceURL:  sourceURL,
		Metadata:   models.EventMetadata{Analysis: snapshot},
		Status:     models.StatusNew,
		SourceID:   source.ID,
		CreatedBy:  createdBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := m.db.CreateEvent(event); err != nil {
		return nil, err
	}

	metrics.EventsCreated.Inc()
	metrics.ConfidenceScore.Observe(event.Confidence)

	if m.onCreated != nil {
		m.onCreated(event)
	}

	return event, nil
}

// TransitionStatus moves an event to newStatus. processedAt is stamped only
// on the first entry into processing; resolvedAt/resolvedBy only on the first
// entry into resolved or false_positive. A supplied comment is appended to
// the metadata comment thread, never overwriting prior entries.
//
// Concurrent transitions on the same event are last-writer-wins; there is no
// optimistic concurrency token.
func (m *Manager) TransitionStatus(eventID, newStatus string, actor *models.User, comment string) (*models.Event, error) {
	if !models.ValidStatus(newStatus) {
		return nil, apperr.Newf(apperr.KindValidation, "invalid status %q", newStatus)
	}

	event, err := m.db.GetEvent(eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if newStatus == models.StatusProcessing && event.ProcessedAt == nil {
		event.ProcessedAt = &now
	}

	terminal := newStatus == models.StatusResolved || newStatus == models.StatusFalsePositive
	if terminal && event.ResolvedAt == nil {
		event.ResolvedAt = &now
		event.ResolvedBy = actor.ID
	}

	if comment != "" {
		event.Metadata.Comments = append(event.Metadata.Comments, models.EventComment{
			Text:      comment,
			UserID:    actor.ID,
			Username:  actor.Username,
			CreatedAt: now,
		})
	}

	event.Status = newStatus

	if err := m.db.UpdateEventStatus(event); err != nil {
		return nil, err
	}

	metrics.EventTransitions.WithLabelValues(newStatus).Inc()

	logger.Info("Event transitioned",
		zap.String("event_id", event.ID),
		zap.String("status", newStatus),
		zap.String("actor", actor.Username),
	)

	return event, nil
}

func (m *Manager) Get(eventID string) (*models.Event, error) {
	return m.db.GetEvent(eventID)
}

func (m *Manager) List(filter sqlite.EventFilter) ([]models.Event, int, error) {
	return m.db.ListEvents(filter)
}

func (m *Manager) Stats(start, end *time.Time) (*models.EventStats, error) {
	return m.db.EventStats(start, end)
}

func severityFromThreatLevel(threatLevel string) string {
	switch threatLevel {
	case analysis.ThreatLevelHigh:
		return models.SeverityHigh
	case analysis.ThreatLevelMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
