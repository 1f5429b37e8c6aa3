package anthropic

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func CleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// DecodeJSON unmarshals the JSON object in a model reply into v. Replies that
// do not parse as-is are passed through jsonrepair once before giving up.
func DecodeJSON(r *Reply, v any) error {
	text := CleanJSON(r.Text())
	if text == "" {
		return eris.New("anthropic: empty reply")
	}
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return eris.Wrap(err, "anthropic: repair json")
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		if r.Truncated() {
			return eris.Wrap(err, "anthropic: decode json: reply hit max tokens")
		}
		return eris.Wrap(err, "anthropic: decode json")
	}
	zap.L().Debug("anthropic: repaired malformed json reply")
	return nil
}
