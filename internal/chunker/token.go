package chunker

import "strings"

// EstimateTokens approximates a token count from whitespace-separated words.
// Exact tokenization is not needed for context budgeting.
func EstimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	// Roughly 1.33 tokens per English word.
	tokens := int(float64(words) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}

// EstimateTotalTokens sums EstimateTokens over texts.
func EstimateTotalTokens(texts []string) int {
	total := 0
	for _, t := range texts {
		total += EstimateTokens(t)
	}
	return total
}
