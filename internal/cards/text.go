package cards

import (
	"strings"
	"unicode/utf8"
)

const (
	titleMaxLength   = 50
	titleTruncateAt  = 47
	placeholderTitle = "Untitled"
)

var sentenceTerminators = []rune{'.', '!', '?'}

func isSentenceTerminator(r rune) bool {
	for _, terminator := range sentenceTerminators {
		if r == terminator {
			return true
		}
	}
	return false
}

// ExtractTitle derives a human label from raw content: the first line when
// it fits in 50 characters, otherwise the first sentence, truncated to 47
// characters plus an ellipsis when even that is too long. Lengths count
// runes, same as split offsets, so multi-byte content never truncates
// mid-character. Empty content yields a fixed placeholder.
func ExtractTitle(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return placeholderTitle
	}

	firstLine := trimmed
	if index := strings.IndexByte(trimmed, '\n'); index >= 0 {
		firstLine = strings.TrimSpace(trimmed[:index])
	}
	if utf8.RuneCountInString(firstLine) <= titleMaxLength {
		return firstLine
	}

	firstSentence := firstLine
	if segments := SegmentSentences(trimmed); len(segments) > 0 {
		firstSentence = segments[0]
	}
	runes := []rune(firstSentence)
	if len(runes) <= titleMaxLength {
		return firstSentence
	}
	return string(runes[:titleTruncateAt]) + "..."
}

// CountWords counts whitespace-separated tokens in content. Empty or
// whitespace-only content counts zero words.
func CountWords(content string) int {
	return len(strings.Fields(content))
}

// SegmentParagraphs splits text on blank-line boundaries, trims each
// segment, and drops empty segments. Segment order follows source order.
func SegmentParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	segments := make([]string, 0)
	for _, raw := range splitOnBlankLines(normalized) {
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

func splitOnBlankLines(text string) []string {
	var (
		parts   []string
		current strings.Builder
		blank   bool
	)
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		blank = false
		if current.Len() > 0 {
			current.WriteByte('\n')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

// SegmentSentences splits text on sentence-terminal punctuation, trims each
// sentence, and drops empty segments. The terminator stays attached to its
// sentence.
func SegmentSentences(text string) []string {
	segments := make([]string, 0)
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if isSentenceTerminator(r) {
			if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
				segments = append(segments, trimmed)
			}
			current.Reset()
		}
	}
	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		segments = append(segments, trimmed)
	}
	return segments
}
