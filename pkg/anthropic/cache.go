package anthropic

// BuildCachedSystemBlocks returns the instruction block followed by a shared
// context block carrying a 1-hour cache breakpoint. Requests that reuse the
// same context (batched answers, per-question follow-ups) then read it from
// the prompt cache.
func BuildCachedSystemBlocks(instructions, sharedContext string) []SystemBlock {
	blocks := []SystemBlock{{Text: instructions}}
	if sharedContext == "" {
		return blocks
	}
	return append(blocks, SystemBlock{
		Text: sharedContext,
		CacheControl: &CacheControl{
			TTL: "1h",
		},
	})
}
