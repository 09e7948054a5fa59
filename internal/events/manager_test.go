package events

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/matrix-ai/backend/internal/analysis"
	"github.com/matrix-ai/backend/internal/nlp"
	"github.com/matrix-ai/backend/internal/storage/models"
	"github.com/matrix-ai/backend/internal/storage/sqlite"
	"github.com/matrix-ai/backend/pkg/apperr"
)

func newTestDB(t *testing.T) *sqlite.Client {
	t.Helper()

	db, err := sqlite.NewClient(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create sqlite client: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return db
}

func newTestSource(t *testing.T, db *sqlite.Client) *models.Source {
	t.Helper()

	now := time.Now()
	source := &models.Source{
		ID:        uuid.NewString(),
		Name:      "test feed",
		Type:      "web",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.CreateSource(source); err != nil {
		t.Fatalf("create source: %v", err)
	}
	return source
}

func testAnalysisResult(threatLevel string) *analysis.AnalysisResult {
	return &analysis.AnalysisResult{
		Text: "sample threat text",
		Classification: &nlp.ClassificationResult{
			Categories:  map[string]float64{"security_threat": 0.85},
			TopCategory: "security_threat",
			Confidence:  0.85,
			IsHighRisk:  true,
		},
		Sentiment: nlp.SentimentResult{
			Sentiment: nlp.SentimentNegative,
			Score:     -1,
		},
		ThreatLevel: threatLevel,
		Timestamp:   time.Now().UTC(),
	}
}

func testUser(t *testing.T, db *sqlite.Client, role string) *models.User {
	t.Helper()

	now := time.Now()
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     role + "-" + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.CreateUser(user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCreateFromAnalysis(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)

	longText := "this text should be truncated into the event title because it runs well past fifty characters"
	event, err := m.CreateFromAnalysis(source.ID, longText, "", "", testAnalysisResult(analysis.ThreatLevelHigh), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	wantTitle := "Text analysis: " + string([]rune(longText)[:50]) + "..."
	if event.Title != wantTitle {
		t.Errorf("Title = %q, want %q", event.Title, wantTitle)
	}
	if event.Category != "security threat" {
		t.Errorf("Category = %q, want %q", event.Category, "security threat")
	}
	if event.Severity != models.SeverityHigh {
		t.Errorf("Severity = %q, want %q", event.Severity, models.SeverityHigh)
	}
	if event.Status != models.StatusNew {
		t.Errorf("Status = %q, want %q", event.Status, models.StatusNew)
	}
	if event.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", event.Confidence)
	}
}

func TestCreateFromAnalysisUnknownSource(t *testing.T) {
	db := newTestDB(t)
	m := NewManager(db)

	_, err := m.CreateFromAnalysis(uuid.NewString(), "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("error = %v, want not-found", err)
	}
}

func TestCreateFromAnalysisSeverityMapping(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)

	tests := []struct {
		threatLevel string
		severity    string
	}{
		{analysis.ThreatLevelHigh, models.SeverityHigh},
		{analysis.ThreatLevelMedium, models.SeverityMedium},
		{analysis.ThreatLevelLow, models.SeverityLow},
	}

	for _, tt := range tests {
		event, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(tt.threatLevel), "")
		if err != nil {
			t.Fatalf("CreateFromAnalysis(%s) error = %v", tt.threatLevel, err)
		}
		if event.Severity != tt.severity {
			t.Errorf("Severity for %s = %q, want %q", tt.threatLevel, event.Severity, tt.severity)
		}
	}
}

func TestCreateFromAnalysisSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)

	result := testAnalysisResult(analysis.ThreatLevelHigh)
	created, err := m.CreateFromAnalysis(source.ID, result.Text, "", "", result, "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	stored, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	var snapshot analysis.AnalysisResult
	if err := json.Unmarshal(stored.Metadata.Analysis, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}

	if snapshot.Classification.TopCategory != result.Classification.TopCategory {
		t.Errorf("snapshot TopCategory = %q, want %q",
			snapshot.Classification.TopCategory, result.Classification.TopCategory)
	}
	if snapshot.ThreatLevel != result.ThreatLevel {
		t.Errorf("snapshot ThreatLevel = %q, want %q", snapshot.ThreatLevel, result.ThreatLevel)
	}
}

func TestCreateFromAnalysisBroadcastsHook(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)

	var got *models.Event
	m.OnCreated(func(e *models.Event) { got = e })

	created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Errorf("hook got %v, want event %s", got, created.ID)
	}
}

func TestTransitionStatusStampsProcessedAtOnce(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)
	user := testUser(t, db, models.RoleAnalyst)

	created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	first, err := m.TransitionStatus(created.ID, models.StatusProcessing, user, "")
	if err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if first.ProcessedAt == nil {
		t.Fatal("ProcessedAt not stamped on first transition to processing")
	}
	stamped := *first.ProcessedAt

	// Leave processing and come back; the stamp must not move.
	if _, err := m.TransitionStatus(created.ID, models.StatusNew, user, ""); err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	again, err := m.TransitionStatus(created.ID, models.StatusProcessing, user, "")
	if err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}

	// Timestamps are persisted at second precision.
	if again.ProcessedAt == nil || again.ProcessedAt.Unix() != stamped.Unix() {
		t.Errorf("ProcessedAt = %v, want original stamp %v", again.ProcessedAt, stamped)
	}
}

func TestTransitionStatusStampsResolutionOnce(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)
	resolver := testUser(t, db, models.RoleAnalyst)
	other := testUser(t, db, models.RoleAdmin)

	created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	resolved, err := m.TransitionStatus(created.ID, models.StatusResolved, resolver, "")
	if err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("ResolvedAt not stamped on resolve")
	}
	if resolved.ResolvedBy != resolver.ID {
		t.Errorf("ResolvedBy = %q, want %q", resolved.ResolvedBy, resolver.ID)
	}
	stamped := *resolved.ResolvedAt

	// Reclassifying as false positive keeps the original resolution stamp.
	reclassified, err := m.TransitionStatus(created.ID, models.StatusFalsePositive, other, "")
	if err != nil {
		t.Fatalf("TransitionStatus() error = %v", err)
	}
	if reclassified.ResolvedAt == nil || reclassified.ResolvedAt.Unix() != stamped.Unix() {
		t.Errorf("ResolvedAt = %v, want original stamp %v", reclassified.ResolvedAt, stamped)
	}
	if reclassified.ResolvedBy != resolver.ID {
		t.Errorf("ResolvedBy = %q, want original resolver %q", reclassified.ResolvedBy, resolver.ID)
	}
}

func TestTransitionStatusRejectsUnknownStatus(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)
	user := testUser(t, db, models.RoleAnalyst)

	created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	_, err = m.TransitionStatus(created.ID, "archived", user, "")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("error = %v, want validation error", err)
	}

	// The failed transition must not have touched the stored event.
	stored, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != models.StatusNew {
		t.Errorf("Status = %q, want %q after rejected transition", stored.Status, models.StatusNew)
	}
}

func TestTransitionStatusAppendsComments(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)
	user := testUser(t, db, models.RoleAnalyst)

	created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
	if err != nil {
		t.Fatalf("CreateFromAnalysis() error = %v", err)
	}

	comments := []string{"taking a look", "confirmed benign", "closing out"}
	statuses := []string{models.StatusProcessing, models.StatusResolved, models.StatusIgnored}

	for i := range comments {
		if _, err := m.TransitionStatus(created.ID, statuses[i], user, comments[i]); err != nil {
			t.Fatalf("TransitionStatus(%s) error = %v", statuses[i], err)
		}
	}

	stored, err := m.Get(created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if len(stored.Metadata.Comments) != len(comments) {
		t.Fatalf("comment count = %d, want %d", len(stored.Metadata.Comments), len(comments))
	}
	for i, want := range comments {
		got := stored.Metadata.Comments[i]
		if got.Text != want {
			t.Errorf("comment[%d].Text = %q, want %q", i, got.Text, want)
		}
		if got.UserID != user.ID || got.Username != user.Username {
			t.Errorf("comment[%d] attribution = %s/%s, want %s/%s",
				i, got.UserID, got.Username, user.ID, user.Username)
		}
	}
}

func TestListEventsFilterByStatus(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)
	user := testUser(t, db, models.RoleAnalyst)

	for i := 0; i < 3; i++ {
		created, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(analysis.ThreatLevelLow), "")
		if err != nil {
			t.Fatalf("CreateFromAnalysis() error = %v", err)
		}
		if i == 0 {
			if _, err := m.TransitionStatus(created.ID, models.StatusResolved, user, ""); err != nil {
				t.Fatalf("TransitionStatus() error = %v", err)
			}
		}
	}

	resolved, total, err := m.List(sqlite.EventFilter{Status: models.StatusResolved, Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 1 || len(resolved) != 1 {
		t.Errorf("List(resolved) = %d events, total %d, want 1/1", len(resolved), total)
	}

	all, total, err := m.List(sqlite.EventFilter{Page: 1, Limit: 10})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Errorf("List(all) = %d events, total %d, want 3/3", len(all), total)
	}
}

func TestEventStats(t *testing.T) {
	db := newTestDB(t)
	source := newTestSource(t, db)
	m := NewManager(db)

	for _, level := range []string{analysis.ThreatLevelHigh, analysis.ThreatLevelHigh, analysis.ThreatLevelLow} {
		if _, err := m.CreateFromAnalysis(source.ID, "text", "", "", testAnalysisResult(level), ""); err != nil {
			t.Fatalf("CreateFromAnalysis() error = %v", err)
		}
	}

	stats, err := m.Stats(nil, nil)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}

	if stats.TotalCount != 3 {
		t.Errorf("TotalCount = %d, want 3", stats.TotalCount)
	}
	if stats.ByStatus[models.StatusNew] != 3 {
		t.Errorf("ByStatus[new] = %d, want 3", stats.ByStatus[models.StatusNew])
	}
	if stats.BySeverity[models.SeverityHigh] != 2 {
		t.Errorf("BySeverity[high] = %d, want 2", stats.BySeverity[models.SeverityHigh])
	}
}
