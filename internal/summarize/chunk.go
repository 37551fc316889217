package summarize

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/rfpdesk/internal/keyinfo"
)

// Split cuts text into contiguous chunks of at most size runes. Joining the
// returned chunks reproduces text exactly.
//
// Within each window the cut prefers, in order: the start of a key-info
// section, a paragraph break, a line break, a sentence end. Cuts before the
// midpoint of the window (a quarter for section starts) are ignored so
// chunks stay reasonably full.
func Split(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	boundaries := keyinfo.Extract(text).Boundaries()

	var chunks []string
	pos := 0
	for pos < len(text) {
		limit := runeOffset(text, pos, size)
		if limit >= len(text) {
			chunks = append(chunks, text[pos:])
			break
		}
		cut := chooseCut(text, pos, limit, boundaries)
		chunks = append(chunks, text[pos:cut])
		pos = cut
	}
	return chunks
}

// runeOffset returns the byte offset n runes past from, capped at len(s).
func runeOffset(s string, from, n int) int {
	i := from
	for n > 0 && i < len(s) {
		_, w := utf8.DecodeRuneInString(s[i:])
		i += w
		n--
	}
	return i
}

func chooseCut(text string, pos, limit int, boundaries []int) int {
	window := limit - pos

	// Latest section start inside the window.
	for i := len(boundaries) - 1; i >= 0; i-- {
		b := boundaries[i]
		if b <= limit && b > pos+window/4 {
			return b
		}
		if b <= pos {
			break
		}
	}

	seg := text[pos:limit]
	half := window / 2
	for _, sep := range []string{"\n\n", "\n", ". ", "? ", "! "} {
		if idx := strings.LastIndex(seg, sep); idx >= half {
			return pos + idx + len(sep)
		}
	}
	return limit
}
