package stages

import (
	"encoding/json"
	"strings"
)

// ParseList decodes a reply that should be a JSON array of strings. A
// surrounding ``` or ```json fence is removed first. Any failure returns
// ok=false; callers treat that as an empty result, never as an error.
func ParseList(reply string) (items []string, ok bool) {
	text := strings.TrimSpace(reply)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			// Drop the info string ("json") with the rest of the fence line.
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
		text = strings.TrimSpace(text)
		text = strings.TrimSuffix(text, "```")
		text = strings.TrimSpace(text)
	}
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	return items, true
}
