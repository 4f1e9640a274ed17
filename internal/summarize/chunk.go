package summarize

import (
	"strings"
	"unicode/utf8"
)

// charsPerToken is the rough characters-per-token ratio used for budgeting.
const charsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return utf8.RuneCountInString(text) / charsPerToken
}

// ChunkText splits text into ordered chunks of at most maxTokens estimated tokens.
// Paragraphs ("\n\n") are kept together when they fit; oversized paragraphs are
// split on sentences (". "), and an oversized sentence is cut on rune boundaries.
func ChunkText(text string, maxTokens int) []string {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return []string{text}
	}

	var chunks []string
	current := ""
	flush := func() {
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if EstimateTokens(candidate) <= maxTokens {
			current = candidate
			continue
		}

		flush()
		if EstimateTokens(para) <= maxTokens {
			current = para
			continue
		}
		chunks = append(chunks, splitSentences(para, maxTokens)...)
	}
	flush()

	return chunks
}

func splitSentences(para string, maxTokens int) []string {
	var out []string
	current := ""
	for _, sentence := range strings.Split(para, ". ") {
		candidate := sentence
		if current != "" {
			candidate = current + ". " + sentence
		}
		if EstimateTokens(candidate) <= maxTokens {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		if EstimateTokens(sentence) <= maxTokens {
			current = sentence
			continue
		}
		pieces := splitRunes(sentence, maxTokens*charsPerToken)
		out = append(out, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

func splitRunes(s string, maxRunes int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > maxRunes {
		out = append(out, string(runes[:maxRunes]))
		runes = runes[maxRunes:]
	}
	return append(out, string(runes))
}
