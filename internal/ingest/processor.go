// Package ingest turns raw HTML fetched from a monitored source into a clean
// text payload for the analysis pipeline.
package ingest

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/events"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/apperr"
	"github.com/matrix-ai/backend/pkg/logger"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

type Processor struct {
	db       *sqlite.Client
	analyzer *analysis.Analyzer
	events   *events.Manager
}

func NewProcessor(db *sqlite.Client, analyzer *analysis.Analyzer, events *events.Manager) *Processor {
	return &Processor{
		db:       db,
		analyzer: analyzer,
		events:   events,
	}
}

// ProcessHTML cleans the page, analyzes the extracted text, and records an
// event against the source titled after the page.
func (p *Processor) ProcessHTML(ctx context.Context, sourceID, url, htmlContent string, actor *models.User) (*analysis.AnalysisResult, *models.Event, error) {
	text := cleanHTML(htmlContent)
	if text == "" {
		return nil, nil, apperr.New(apperr.KindValidation, "no content extracted from HTML")
	}

	result, err := p.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	event, err := p.events.CreateFromAnalysis(sourceID, text, extractTitle(htmlContent), url, result, actor.ID)
	if err != nil {
		return nil, nil, err
	}

	if err := p.db.TouchSourceSync(sourceID, time.Now()); err != nil {
		logger.Warn("Failed to update source sync date", zap.Error(err))
	}

	logger.Info("Source content ingested",
		zap.String("source_id", sourceID),
		zap.String("event_id", event.ID),
		zap.String("threat_level", result.ThreatLevel),
	)

	return result, event, nil
}

func cleanHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	text = whitespaceRe.ReplaceAllString(text, " ")

	return strings.TrimSpace(text)
}

func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	title := doc.Find("title").First().Text()
	if title == "" {
		title = doc.Find("h1").First().Text()
	}

	return strings.TrimSpace(title)
}
