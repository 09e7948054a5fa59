package nlp

import (
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// Tokenize lowercases text and splits it into word tokens. Punctuation-only
// tokens are dropped; no stemming is applied.
func Tokenize(text string) []string {
	lower := strings.ToLower(text)

	doc, err := prose.NewDocument(lower,
		prose.WithTagging(false),
		prose.WithExtraction(false),
		prose.WithSegmentation(false),
	)
	if err != nil {
		return fieldsTokenize(lower)
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		if isWord(tok.Text) {
			tokens = append(tokens, tok.Text)
		}
	}

	return tokens
}

// fieldsTokenize is the fallback when the tokenizer cannot process the input
// (for example, on empty text).
func fieldsTokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	var tokens []string
	for _, f := range fields {
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func isWord(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
