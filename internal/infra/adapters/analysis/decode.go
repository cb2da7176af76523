package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"autoapply-agent/internal/domain"
)

// cleanMarkdownJSON strips the ```json fences some models wrap replies in.
func cleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// decodeReply parses the JSON object in raw into v. Prose around the object
// is ignored. Failures wrap domain.ErrMalformedReply.
func decodeReply(raw string, v any) error {
	s := cleanMarkdownJSON(raw)
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedReply, err)
	}
	return nil
}
