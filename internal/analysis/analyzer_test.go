package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/matrix-ai/backend/internal/nlp"
)

type mockClassifier struct {
	loadErr  error
	loads    int
	result   *nlp.ClassificationResult
	classErr error
}

func (m *mockClassifier) Load() error {
	m.loads++
	return m.loadErr
}

func (m *mockClassifier) Classify(text string) (*nlp.ClassificationResult, error) {
	if m.classErr != nil {
		return nil, m.classErr
	}
	r := *m.result
	r.Text = text
	return &r, nil
}

func TestThreatLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		isHighRisk bool
		sentiment  string
		want       string
	}{
		{"high risk and negative", true, nlp.SentimentNegative, ThreatLevelHigh},
		{"high risk and neutral", true, nlp.SentimentNeutral, ThreatLevelMedium},
		{"low risk and negative", false, nlp.SentimentNegative, ThreatLevelMedium},
		{"low risk and positive", false, nlp.SentimentPositive, ThreatLevelLow},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := threatLevel(tt.isHighRisk, tt.sentiment); got != tt.want {
				t.Errorf("threatLevel(%v, %q) = %q, want %q", tt.isHighRisk, tt.sentiment, got, tt.want)
			}
		})
	}
}

func TestAnalyzeHighRiskThreatText(t *testing.T) {
	t.Parallel()

	mock := &mockClassifier{
		result: &nlp.ClassificationResult{
			Categories:  map[string]float64{"security_threat": 0.8},
			TopCategory: "security_threat",
			Confidence:  0.8,
			IsHighRisk:  true,
		},
	}
	a := New(mock, nil, 0)

	result, err := a.Analyze(context.Background(), "imminent threat of attack")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.ThreatLevel != ThreatLevelHigh {
		t.Errorf("ThreatLevel = %q, want %q", result.ThreatLevel, ThreatLevelHigh)
	}
	if result.Sentiment.Sentiment != nlp.SentimentNegative {
		t.Errorf("Sentiment = %q, want %q", result.Sentiment.Sentiment, nlp.SentimentNegative)
	}
	if result.Classification.TopCategory != "security_threat" {
		t.Errorf("TopCategory = %q, want security_threat", result.Classification.TopCategory)
	}
	if result.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestAnalyzeLoadsClassifierOnce(t *testing.T) {
	t.Parallel()

	mock := &mockClassifier{
		result: &nlp.ClassificationResult{
			Categories:  map[string]float64{"neutral": 0.9},
			TopCategory: "neutral",
			Confidence:  0.9,
		},
	}
	a := New(mock, nil, 0)

	for i := 0; i < 3; i++ {
		if _, err := a.Analyze(context.Background(), "ordinary text"); err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
	}

	if mock.loads != 1 {
		t.Errorf("classifier loaded %d times, want 1", mock.loads)
	}
}

func TestAnalyzeLoadFailure(t *testing.T) {
	t.Parallel()

	mock := &mockClassifier{loadErr: errors.New("corrupt model file")}
	a := New(mock, nil, 0)

	if _, err := a.Analyze(context.Background(), "text"); err == nil {
		t.Fatal("Analyze() succeeded with failing load, want error")
	}
}

func TestReloadResetsLoadState(t *testing.T) {
	t.Parallel()

	mock := &mockClassifier{
		result: &nlp.ClassificationResult{
			Categories:  map[string]float64{"neutral": 1},
			TopCategory: "neutral",
			Confidence:  1,
		},
	}
	a := New(mock, nil, 0)

	if _, err := a.Analyze(context.Background(), "before"); err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if err := a.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if _, err := a.Analyze(context.Background(), "after"); err != nil {
		t.Fatalf("Analyze() after reload error = %v", err)
	}

	if mock.loads != 2 {
		t.Errorf("classifier loaded %d times, want 2", mock.loads)
	}
}

func TestAnalyzeClassifierError(t *testing.T) {
	t.Parallel()

	mock := &mockClassifier{classErr: errors.New("predict failed")}
	a := New(mock, nil, 0)

	if _, err := a.Analyze(context.Background(), "text"); err == nil {
		t.Fatal("Analyze() succeeded with failing classifier, want error")
	}
}
