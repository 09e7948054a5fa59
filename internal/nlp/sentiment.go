package nlp

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var positiveWords = map[string]struct{}{
	"good":       {},
	"excellent":  {},
	"successful": {},
	"positive":   {},
	"safe":       {},
}

var negativeWords = map[string]struct{}{
	"bad":      {},
	"threat":   {},
	"danger":   {},
	"negative": {},
	"risk":     {},
	"attack":   {},
}

type SentimentResult struct {
	Sentiment    string  `json:"sentiment"`
	Score        float64 `json:"score"`
	PositiveHits int     `json:"positive"`
	NegativeHits int     `json:"negative"`
}

// ScoreSentiment is a pure keyword-count polarity score, independent of the
// classifier. Score is (positive-negative)/max(positive+negative, 1).
func ScoreSentiment(text string) SentimentResult {
	var positive, negative int
	for _, token := range Tokenize(text) {
		if _, ok := positiveWords[token]; ok {
			positive++
		}
		if _, ok := negativeWords[token]; ok {
			negative++
		}
	}

	total := positive + negative
	if total == 0 {
		total = 1
	}
	score := float64(positive-negative) / float64(total)

	sentiment := SentimentNeutral
	if score > 0.3 {
		sentiment = SentimentPositive
	} else if score < -0.3 {
		sentiment = SentimentNegative
	}

	return SentimentResult{
		Sentiment:    sentiment,
		Score:        score,
		PositiveHits: positive,
		NegativeHits: negative,
	}
}
