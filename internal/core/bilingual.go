package core

import (
	"encoding/json"
	"strings"
)

// BilingualText carries the English and Chinese rendition of one text field.
// Both keys are always serialized.
type BilingualText struct {
	En string `json:"en"`
	Zh string `json:"zh"`
}

// Get returns the text for lang, Both resolving to its primary language.
func (b BilingualText) Get(lang Language) string {
	if lang.Primary() == English {
		return b.En
	}
	return b.Zh
}

// With returns a copy with the text for lang replaced.
func (b BilingualText) With(lang Language, text string) BilingualText {
	if lang.Primary() == English {
		b.En = text
	} else {
		b.Zh = text
	}
	return b
}

// Either returns the English text, falling back to Chinese.
func (b BilingualText) Either() string {
	if b.En != "" {
		return b.En
	}
	return b.Zh
}

// IsEmpty reports whether neither language has text.
func (b BilingualText) IsEmpty() bool {
	return strings.TrimSpace(b.En) == "" && strings.TrimSpace(b.Zh) == ""
}

// Normalize coerces a decoded value of unknown shape into a complete BilingualText.
//
// A missing value yields two empty strings. A bare string is assigned to the
// primary language of lang and the other side is left empty, so content the
// model failed to translate still surfaces in one language. Objects keep their
// en/zh string members and ignore everything else.
func Normalize(v any, lang Language) BilingualText {
	switch t := v.(type) {
	case nil:
		return BilingualText{}
	case string:
		return BilingualText{}.With(lang, t)
	case BilingualText:
		return t
	case *BilingualText:
		if t == nil {
			return BilingualText{}
		}
		return *t
	case map[string]any:
		return BilingualText{En: stringMember(t, "en"), Zh: stringMember(t, "zh")}
	case map[string]string:
		return BilingualText{En: t["en"], Zh: t["zh"]}
	}
	return BilingualText{}
}

// NormalizeJSON decodes raw model output and normalizes it. Undecodable input
// is treated as missing.
func NormalizeJSON(raw json.RawMessage, lang Language) BilingualText {
	if len(raw) == 0 {
		return BilingualText{}
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return BilingualText{}
	}
	return Normalize(v, lang)
}

// NormalizeList normalizes every element of an array valued bilingual field.
func NormalizeList(items []json.RawMessage, lang Language) []BilingualText {
	out := make([]BilingualText, 0, len(items))
	for _, item := range items {
		out = append(out, NormalizeJSON(item, lang))
	}
	return out
}

func stringMember(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
