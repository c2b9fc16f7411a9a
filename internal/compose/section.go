package compose

import (
	"strings"

	"tripreport/internal/core"
	"tripreport/internal/prompts"
)

const longTitleChars = 50

// ParseTitleSubtitle splits a title section answer. TITLE: and SUBTITLE:
// line prefixes win (any case). Without them, a long multi-line answer is
// split into a first line title and the remaining lines joined by a space as
// subtitle; anything else is all title.
func ParseTitleSubtitle(text string) (title, subtitle string) {
	text = strings.TrimSpace(text)
	lines := strings.Split(text, "\n")

	found := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "SUBTITLE:"):
			subtitle = strings.TrimSpace(line[len("SUBTITLE:"):])
			found = true
		case strings.HasPrefix(upper, "TITLE:"):
			title = strings.TrimSpace(line[len("TITLE:"):])
			found = true
		}
	}
	if found {
		return title, subtitle
	}

	if len([]rune(text)) > longTitleChars && len(lines) > 1 {
		rest := make([]string, 0, len(lines)-1)
		for _, l := range lines[1:] {
			if l = strings.TrimSpace(l); l != "" {
				rest = append(rest, l)
			}
		}
		return strings.TrimSpace(lines[0]), strings.Join(rest, " ")
	}
	return text, ""
}

// ApplySection returns draft with a generated section written into lang. The
// title section also writes the subtitle, clearing it when the answer has
// none.
func ApplySection(draft core.ReportDraft, section prompts.Section, text string, lang core.Language) core.ReportDraft {
	out := draft.Clone()
	switch section {
	case prompts.SectionTitle:
		title, subtitle := ParseTitleSubtitle(text)
		out.Title = out.Title.With(lang, title)
		out.Subtitle = out.Subtitle.With(lang, subtitle)
	case prompts.SectionExecutiveSummary:
		out.ExecutiveSummary = out.ExecutiveSummary.With(lang, strings.TrimSpace(text))
	case prompts.SectionConclusion:
		out.Conclusion = out.Conclusion.With(lang, strings.TrimSpace(text))
	}
	return out
}
