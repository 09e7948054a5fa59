package nlp

const CategoryNeutral = "neutral"

// Categories is the fixed classification taxonomy. Order defines the one-hot
// label encoding and the output vector positions; changing order or
// membership requires a retrain, never an in-place edit.
var Categories = []string{
	CategoryNeutral,
	"security_threat",
	"financial_risk",
	"social_tension",
	"extremism",
	"information_attack",
}

// CategoryIndex returns the positional index of name, or -1 if unknown.
func CategoryIndex(name string) int {
	for i, c := range Categories {
		if c == name {
			return i
		}
	}
	return -1
}
