package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"tripreport/internal/core"
	"tripreport/internal/llm"
)

// CreativeReport asks for a full bilingual report authored primarily in lang.
// draft, when present, is passed as soft reference only.
func CreativeReport(entries []core.TripEntry, settings core.ContextSettings, draft *core.ReportDraft, lang core.Language) llm.Request {
	primary := lang.Primary()
	secondary := lang.Secondary()

	var b strings.Builder
	writeContext(&b, settings)

	b.WriteString("**TASK: CREATIVE REPORT GENERATION**\n")
	b.WriteString("Synthesize the inputs to produce a high-quality PR report.\n\n")

	b.WriteString("**SOURCE MATERIAL:**\n")
	if len(entries) == 0 {
		b.WriteString("No entries. Base the report on the event context only.\n\n")
	}
	writeEntries(&b, entries)

	if draft != nil {
		b.WriteString("**DRAFT CONTENT (REFERENCE):**\n")
		fmt.Fprintf(&b, "Title: %s\n", compactJSON(draft.Title))
		fmt.Fprintf(&b, "Subtitle: %s\n", compactJSON(draft.Subtitle))
		fmt.Fprintf(&b, "Summary: %s\n\n", compactJSON(draft.ExecutiveSummary))
	}

	b.WriteString("**REQUIREMENTS:**\n")
	fmt.Fprintf(&b, "1. Create exactly one highlight for EVERY entry (%d in total), in input order.\n", len(entries))
	b.WriteString("2. Set each highlight's relatedEntryId to the ID of the entry it covers.\n")
	b.WriteString("3. LANGUAGE RULE:\n")
	fmt.Fprintf(&b, "   - Write the content PRIMARILY in %s.\n", primary.DisplayName())
	fmt.Fprintf(&b, "   - You MUST provide a %s translation for every text field (title, subtitle, summary, highlights, takeaways, conclusion).\n", secondary.DisplayName())
	b.WriteString("   - Every text field is an object with both \"en\" and \"zh\" keys.\n")
	b.WriteString("4. Do not invent facts that are not in the source material or context.\n\n")

	b.WriteString("**OUTPUT FORMAT:**\n")
	b.WriteString("Strict JSON only, matching this schema:\n")
	b.WriteString(SchemaFor[reportShape]())

	return llm.Request{
		Operation:   llm.OpCreativeReport,
		Prompt:      b.String(),
		JSON:        true,
		Schema:      ReportSchema(),
		Temperature: 0.7,
	}
}

// SourceText holds a field's source language text, or nothing.
type SourceText map[core.Language]string

func sourceOnly(b core.BilingualText, source core.Language) SourceText {
	out := SourceText{}
	if text := b.Get(source); text != "" {
		out[source] = text
	}
	return out
}

// TranslationHighlight is the per entry part of a TranslationPayload.
type TranslationHighlight struct {
	ID          string     `json:"id"`
	Title       SourceText `json:"title"`
	Description SourceText `json:"description"`
}

// TranslationPayload is the existing content handed to the model for translation.
// It carries source language text only; empty fields are empty objects.
type TranslationPayload struct {
	Title            SourceText             `json:"title"`
	Subtitle         SourceText             `json:"subtitle"`
	ExecutiveSummary SourceText             `json:"executiveSummary"`
	Conclusion       SourceText             `json:"conclusion"`
	KeyTakeaways     []SourceText           `json:"keyTakeaways"`
	Highlights       []TranslationHighlight `json:"highlights"`
}

// NewTranslationPayload collects the source language fields of draft and entries.
// Highlight text comes from each entry's aiTitle and aiCopy.
func NewTranslationPayload(entries []core.TripEntry, draft *core.ReportDraft, source core.Language) TranslationPayload {
	var d core.ReportDraft
	if draft != nil {
		d = *draft
	}
	p := TranslationPayload{
		Title:            sourceOnly(d.Title, source),
		Subtitle:         sourceOnly(d.Subtitle, source),
		ExecutiveSummary: sourceOnly(d.ExecutiveSummary, source),
		Conclusion:       sourceOnly(d.Conclusion, source),
		KeyTakeaways:     make([]SourceText, 0, len(d.KeyTakeaways)),
		Highlights:       make([]TranslationHighlight, 0, len(entries)),
	}
	for _, k := range d.KeyTakeaways {
		p.KeyTakeaways = append(p.KeyTakeaways, sourceOnly(k, source))
	}
	for _, e := range entries {
		h := TranslationHighlight{ID: e.ID, Title: SourceText{}, Description: SourceText{}}
		if e.AITitle != "" {
			h.Title[source] = e.AITitle
		}
		if e.AICopy != "" {
			h.Description[source] = e.AICopy
		}
		p.Highlights = append(p.Highlights, h)
	}
	return p
}

// Translation asks for a strict translation of payload from source to target.
func Translation(payload TranslationPayload, source, target core.Language) llm.Request {
	var b strings.Builder
	b.WriteString("**TASK: STRICT JSON TRANSLATION**\n")
	b.WriteString("You are a professional translator for an event PR team.\n\n")

	b.WriteString("**INPUT:**\n")
	b.WriteString(compactJSON(payload))
	b.WriteString("\n\n")

	b.WriteString("**INSTRUCTIONS:**\n")
	fmt.Fprintf(&b, "1. Translate ALL fields from %q (source) to %q (target).\n", source, target)
	b.WriteString("2. DO NOT change the source content. Copy it exactly as is.\n")
	b.WriteString("3. DO NOT generate new content. Only translate what is provided.\n")
	b.WriteString("4. If a field is missing in the source, leave the target empty. Only the report title may be inferred from context.\n")
	b.WriteString("5. Keep the highlights in the same order and carry each \"id\" over as \"relatedEntryId\".\n")
	b.WriteString("6. Return the same structure with both \"en\" and \"zh\" keys for every text field.\n\n")

	b.WriteString("**OUTPUT FORMAT:**\n")
	b.WriteString("Strict JSON only, matching this schema:\n")
	b.WriteString(SchemaFor[reportShape]())

	return llm.Request{
		Operation:   llm.OpTranslateReport,
		Prompt:      b.String(),
		JSON:        true,
		Schema:      ReportSchema(),
		Temperature: 0.2,
	}
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
