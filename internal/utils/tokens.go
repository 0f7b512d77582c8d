package utils

// Token estimation uses a flat 4 characters per token heuristic. It is only
// used to report prompt sizes, never to enforce provider limits.

// CountTokens estimates the number of tokens in the given text.
func CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	tokens := len([]rune(text)) / 4
	if tokens == 0 {
		return 1
	}
	return tokens
}
