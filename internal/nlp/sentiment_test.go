package nlp

import (
	"testing"
)

func TestScoreSentiment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		sentiment string
		score     float64
	}{
		{
			name:      "no keywords is neutral with zero score",
			text:      "the quick brown fox jumps over the lazy dog",
			sentiment: SentimentNeutral,
			score:     0,
		},
		{
			name:      "purely negative",
			text:      "serious threat and danger detected",
			sentiment: SentimentNegative,
			score:     -1,
		},
		{
			name:      "purely positive",
			text:      "excellent and safe outcome",
			sentiment: SentimentPositive,
			score:     1,
		},
		{
			name:      "balanced mix is neutral",
			text:      "good result but a bad risk and a safe path",
			sentiment: SentimentNeutral,
			score:     0,
		},
		{
			name:      "slight negative lean stays neutral under threshold",
			text:      "good and excellent but threat danger attack",
			sentiment: SentimentNeutral,
			score:     -0.2,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ScoreSentiment(tt.text)
			if got.Sentiment != tt.sentiment {
				t.Errorf("Sentiment = %q, want %q", got.Sentiment, tt.sentiment)
			}
			if diff := got.Score - tt.score; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Score = %v, want %v", got.Score, tt.score)
			}
		})
	}
}

func TestScoreSentimentCountsHits(t *testing.T) {
	t.Parallel()

	got := ScoreSentiment("a good attack on a bad threat")
	if got.PositiveHits != 1 {
		t.Errorf("PositiveHits = %d, want 1", got.PositiveHits)
	}
	if got.NegativeHits != 3 {
		t.Errorf("NegativeHits = %d, want 3", got.NegativeHits)
	}
	if got.Sentiment != SentimentNegative {
		t.Errorf("Sentiment = %q, want %q", got.Sentiment, SentimentNegative)
	}
}
