// Package prompts builds the model requests for every report and entry operation.
// Builders are pure: the same inputs always produce the same request.
package prompts

import (
	"fmt"
	"strings"

	"tripreport/internal/core"
	"tripreport/internal/llm"
)

const (
	maxReferenceChars = 3000
	maxPageChars      = 8000
)

// Section names a draft field that can be generated on its own.
type Section string

const (
	SectionTitle            Section = "title"
	SectionExecutiveSummary Section = "executiveSummary"
	SectionConclusion       Section = "conclusion"
)

// ParseSection validates a section name.
func ParseSection(s string) (Section, error) {
	switch Section(s) {
	case SectionTitle, SectionExecutiveSummary, SectionConclusion:
		return Section(s), nil
	}
	return "", fmt.Errorf("unknown section %q (want title, executiveSummary or conclusion)", s)
}

func (s Section) describe() string {
	switch s {
	case SectionTitle:
		return "a report title and subtitle"
	case SectionExecutiveSummary:
		return "an executive summary of two to four sentences"
	default:
		return "a closing conclusion paragraph"
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

// writeContext appends the brand and event context shared by most prompts.
func writeContext(b *strings.Builder, settings core.ContextSettings) {
	if settings.Persona != "" {
		fmt.Fprintf(b, "**PERSONA:** %s\n", settings.Persona)
	}
	if settings.Tone != "" {
		fmt.Fprintf(b, "**TONE:** %s\n", settings.Tone)
	}
	if settings.BrandName != "" {
		fmt.Fprintf(b, "**BRAND:** %s", settings.BrandName)
		if settings.BrandLocation != "" {
			fmt.Fprintf(b, " (%s)", settings.BrandLocation)
		}
		b.WriteString("\n")
	}
	if len(settings.EventContexts) > 0 {
		b.WriteString("**EVENT CONTEXT:**\n")
		for _, c := range settings.EventContexts {
			fmt.Fprintf(b, "- %s\n", c)
		}
	}
	if settings.KeyThemes != "" {
		fmt.Fprintf(b, "**STRATEGIC THEMES:** %s\n", settings.KeyThemes)
	}
	if settings.ReferenceContent != "" {
		fmt.Fprintf(b, "**REFERENCE MATERIAL:**\n%s\n", truncate(settings.ReferenceContent, maxReferenceChars))
	}
	if settings.ReferenceStyle != "" {
		fmt.Fprintf(b, "**REFERENCE STYLE:** %s\n", truncate(settings.ReferenceStyle, maxReferenceChars))
	}
	b.WriteString("\n")
}

func writeEntries(b *strings.Builder, entries []core.TripEntry) {
	for i, e := range entries {
		fmt.Fprintf(b, "Entry %d (ID: %s):\n", i+1, e.ID)
		fmt.Fprintf(b, "- User Note: %s\n", orNA(e.Note))
		fmt.Fprintf(b, "- Visual Analysis: %s\n", orNA(e.AICaption))
		fmt.Fprintf(b, "- PR Copy Draft: %s\n", orNA(e.AICopy))
		fmt.Fprintf(b, "- AI Title: %s\n\n", orNA(e.AITitle))
	}
}

// URLAnalysis asks for a structured extraction of a reference page. When the
// page text could be fetched it is embedded and a schema enforced; otherwise
// the model is allowed to look the URL up with web search.
func URLAnalysis(url, pageText string, lang core.Language) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this URL or topic for an event PR team: %s\n\n", url)
	if pageText != "" {
		fmt.Fprintf(&b, "**PAGE TEXT:**\n%s\n\n", truncate(pageText, maxPageChars))
	} else {
		b.WriteString("Search the web for this URL or topic before answering.\n\n")
	}
	fmt.Fprintf(&b, "Write the analysis in %s.\n", lang.DisplayName())
	b.WriteString("- content: the key facts a reporter would reuse\n")
	b.WriteString("- style: how the source writes (tone, structure, vocabulary)\n")
	b.WriteString("- suggestedContexts: short event context lines\n")
	b.WriteString("- suggestedThemes: strategic themes as one line\n\n")
	b.WriteString("**OUTPUT FORMAT:** JSON only, matching this schema:\n")
	b.WriteString(SchemaFor[URLAnalysisResult]())

	req := llm.Request{
		Operation: llm.OpURLAnalysis,
		Prompt:    b.String(),
	}
	if pageText != "" {
		req.JSON = true
		req.Schema = URLAnalysisSchema()
	} else {
		// Gemini rejects response schemas combined with the search tool.
		req.WebSearch = true
	}
	return req
}

// RefineContexts asks for a cleaned up list of event contexts.
func RefineContexts(settings core.ContextSettings, lang core.Language) llm.Request {
	var b strings.Builder
	b.WriteString("Refine these event contexts so each is one clear, factual line. ")
	b.WriteString("Merge duplicates and keep names, dates and places exact.\n\n")
	for _, c := range settings.EventContexts {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if settings.KeyThemes != "" {
		fmt.Fprintf(&b, "\nThemes for reference: %s\n", settings.KeyThemes)
	}
	fmt.Fprintf(&b, "\nWrite in %s. Return a JSON array of strings only.\n", lang.DisplayName())

	return llm.Request{
		Operation: llm.OpRefineContexts,
		Prompt:    b.String(),
		JSON:      true,
		Schema:    StringListSchema(),
	}
}

// RefineThemes asks for a sharper strategic themes line.
func RefineThemes(settings core.ContextSettings, lang core.Language) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Refine these strategic themes into one concise line: %s\n", orNA(settings.KeyThemes))
	if len(settings.EventContexts) > 0 {
		fmt.Fprintf(&b, "Context: %s\n", strings.Join(settings.EventContexts, ", "))
	}
	fmt.Fprintf(&b, "Write in %s. Return plain text only, no quotes or markdown.\n", lang.DisplayName())

	return llm.Request{Operation: llm.OpRefineThemes, Prompt: b.String()}
}

// Caption asks for a factual description of the entry photos.
func Caption(images []llm.Image, lang core.Language, settings core.ContextSettings) llm.Request {
	var b strings.Builder
	b.WriteString("Describe these images factually: people, setting, signage, activity and mood. ")
	b.WriteString("Do not speculate beyond what is visible.\n")
	if len(settings.EventContexts) > 0 {
		fmt.Fprintf(&b, "The photos were taken at: %s\n", strings.Join(settings.EventContexts, ", "))
	}
	fmt.Fprintf(&b, "Write in %s. Plain text only.\n", lang.DisplayName())

	return llm.Request{
		Operation: llm.OpCaption,
		Prompt:    b.String(),
		Images:    images,
	}
}

// PRCopy asks for persuasive prose about one entry.
func PRCopy(note, caption, title string, lang core.Language, settings core.ContextSettings) llm.Request {
	var b strings.Builder
	b.WriteString("Write PR copy for one moment of an event, two short paragraphs at most.\n\n")
	writeContext(&b, settings)
	fmt.Fprintf(&b, "**NOTE:** %s\n", orNA(note))
	fmt.Fprintf(&b, "**VISUAL:** %s\n", orNA(caption))
	if title != "" {
		fmt.Fprintf(&b, "**TITLE:** %s\n", title)
	}
	fmt.Fprintf(&b, "\nWrite in %s. Follow any instructions in the note. Plain text only.\n", lang.DisplayName())

	return llm.Request{Operation: llm.OpPRCopy, Prompt: b.String(), Temperature: 0.8}
}

// EntryTitle asks for a short headline for one entry.
func EntryTitle(entry core.TripEntry, lang core.Language, settings core.ContextSettings) llm.Request {
	var b strings.Builder
	b.WriteString("Write a short headline (under 12 words) for this event moment.\n\n")
	if settings.KeyThemes != "" {
		fmt.Fprintf(&b, "**STRATEGIC THEMES:** %s\n", settings.KeyThemes)
	}
	fmt.Fprintf(&b, "**NOTE:** %s\n", orNA(entry.Note))
	fmt.Fprintf(&b, "**VISUAL:** %s\n", orNA(entry.AICaption))
	fmt.Fprintf(&b, "**COPY:** %s\n", orNA(entry.AICopy))
	fmt.Fprintf(&b, "\nWrite in %s. Return the headline only.\n", lang.DisplayName())

	return llm.Request{Operation: llm.OpEntryTitle, Prompt: b.String()}
}

// SectionDraft asks for one draft section. Title responses use the
// TITLE:/SUBTITLE: line convention.
func SectionDraft(section Section, entries []core.TripEntry, lang core.Language, settings core.ContextSettings) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %s for an event PR report.\n\n", section.describe())
	writeContext(&b, settings)
	if len(entries) > 0 {
		b.WriteString("**SOURCE MATERIAL:**\n")
		writeEntries(&b, entries)
	}
	fmt.Fprintf(&b, "Write in %s.\n", lang.DisplayName())
	if section == SectionTitle {
		b.WriteString("Answer with exactly two lines:\nTITLE: <title>\nSUBTITLE: <subtitle>\n")
	} else {
		b.WriteString("Return plain text only, no headings.\n")
	}

	return llm.Request{Operation: llm.OpSectionDraft, Prompt: b.String()}
}

// EntryImage asks the image model for an illustrative event photo.
func EntryImage(description string, settings core.ContextSettings) llm.Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a realistic 16:9 event photo: %s", description)
	if settings.BrandName != "" {
		fmt.Fprintf(&b, "\nThe event is hosted by %s.", settings.BrandName)
	}
	return llm.Request{
		Operation: llm.OpEntryImage,
		Prompt:    b.String(),
		WantImage: true,
	}
}
