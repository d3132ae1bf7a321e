package format

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// DefaultMaxLength is the platform's per-message text limit in bytes.
const DefaultMaxLength = 1000

// Chunk splits text into pieces of at most max bytes, preferring to break after
// a newline in the second half of the window. Pieces never split a rune.
func Chunk(text string, max int) []string {
	if max <= 0 {
		max = DefaultMaxLength
	}
	var chunks []string
	for len(text) > 0 {
		if len(text) <= max {
			chunks = append(chunks, text)
			break
		}
		cutAt := max
		if idx := strings.LastIndex(text[:max], "\n"); idx > max/2 {
			cutAt = idx + 1
		} else {
			for cutAt > 0 && !utf8.RuneStart(text[cutAt]) {
				cutAt--
			}
			if cutAt == 0 {
				// A single rune wider than max; emit it whole.
				_, size := utf8.DecodeRuneInString(text)
				cutAt = size
			}
		}
		chunks = append(chunks, text[:cutAt])
		text = text[cutAt:]
	}
	return chunks
}

// Preview flattens s to one line and truncates it to width display cells, for logs.
func Preview(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "...")
}
