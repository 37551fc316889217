package extract

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// decodeText honors a UTF-8 or UTF-16 byte order mark and otherwise treats
// data as UTF-8, replacing invalid sequences.
func decodeText(data []byte) []byte {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return data
	}
	return out
}

func extractPlain(data []byte) (*Result, error) {
	return &Result{Text: string(decodeText(data)), Format: FormatText}, nil
}
