package anthropic

import "strings"

// ExtractJSON strips markdown code fences and surrounding prose from a model
// reply and returns the outermost JSON object or array.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return strings.TrimSpace(text)
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(text, closer); end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
