package report

import (
	"bytes"
	"encoding/json"

	"tripreport/internal/core"
	"tripreport/internal/llm"
)

// rawReport is a model response decoded one level deep. Text fields stay raw
// so each can be normalized on its own.
type rawReport struct {
	fields       map[string]json.RawMessage
	highlights   []rawHighlight
	keyTakeaways []json.RawMessage
}

type rawHighlight map[string]json.RawMessage

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// decodeReport parses text as a report document. A non-object document, or a
// highlights/keyTakeaways member that is present but not an array, is an
// invalid response. Missing members are not errors.
func decodeReport(text string) (*rawReport, error) {
	clean := llm.CleanJSON(text)
	if clean == "" {
		return nil, invalid(text, "empty response")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return nil, invalid(text, "decode report: %w", err)
	}
	if fields == nil {
		return nil, invalid(text, "report is null")
	}

	r := &rawReport{fields: fields}

	if raw, ok := fields["highlights"]; ok && !isNull(raw) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, invalid(text, "highlights is not an array: %w", err)
		}
		for _, item := range items {
			var h rawHighlight
			// Non-object items degrade to an empty highlight.
			if err := json.Unmarshal(item, &h); err != nil || h == nil {
				h = rawHighlight{}
			}
			r.highlights = append(r.highlights, h)
		}
	}

	if raw, ok := fields["keyTakeaways"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &r.keyTakeaways); err != nil {
			return nil, invalid(text, "keyTakeaways is not an array: %w", err)
		}
	}

	return r, nil
}

func (r *rawReport) text(key string, lang core.Language) core.BilingualText {
	return core.NormalizeJSON(r.fields[key], lang)
}

func (h rawHighlight) text(key string, lang core.Language) core.BilingualText {
	return core.NormalizeJSON(h[key], lang)
}

// str returns the first of keys holding a JSON string.
func (h rawHighlight) str(keys ...string) string {
	for _, key := range keys {
		var s string
		if raw, ok := h[key]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}
