package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tripreport/internal/core"
	"tripreport/internal/logger"
)

// ErrEmptyPattern rejects a find/replace without anything to find.
var ErrEmptyPattern = errors.New("find pattern is empty")

// ReplaceResult reports what a find/replace changed.
type ReplaceResult struct {
	Settings core.ContextSettings `json:"settings"`
	Entries  int                  `json:"entries"` // entries with at least one changed field
	Fields   int                  `json:"fields"`  // changed text fields across settings, entries and draft
}

type replacer struct {
	re     *regexp.Regexp
	repl   string
	fields int
}

func (r *replacer) apply(s string) string {
	if s == "" {
		return s
	}
	out := r.re.ReplaceAllString(s, r.repl)
	if out != s {
		r.fields++
	}
	return out
}

func (r *replacer) bilingual(b core.BilingualText) core.BilingualText {
	return core.BilingualText{En: r.apply(b.En), Zh: r.apply(b.Zh)}
}

func (r *replacer) settings(s core.ContextSettings) core.ContextSettings {
	out := s.Clone()
	for i, c := range out.EventContexts {
		out.EventContexts[i] = r.apply(c)
	}
	out.KeyThemes = r.apply(out.KeyThemes)
	out.Tone = r.apply(out.Tone)
	out.Persona = r.apply(out.Persona)
	out.ReferenceContent = r.apply(out.ReferenceContent)
	out.ReferenceStyle = r.apply(out.ReferenceStyle)
	out.AuthorName = r.apply(out.AuthorName)
	out.AuthorRole = r.apply(out.AuthorRole)
	out.BrandName = r.apply(out.BrandName)
	out.BrandLocation = r.apply(out.BrandLocation)
	return out
}

func (r *replacer) entry(e core.TripEntry) core.TripEntry {
	out := e.Clone()
	out.AITitle = r.apply(out.AITitle)
	out.Note = r.apply(out.Note)
	out.AICaption = r.apply(out.AICaption)
	out.AICopy = r.apply(out.AICopy)
	return out
}

func (r *replacer) draft(d core.ReportDraft) core.ReportDraft {
	out := d.Clone()
	out.Title = r.bilingual(out.Title)
	out.Subtitle = r.bilingual(out.Subtitle)
	out.ExecutiveSummary = r.bilingual(out.ExecutiveSummary)
	out.Conclusion = r.bilingual(out.Conclusion)
	for i, t := range out.KeyTakeaways {
		out.KeyTakeaways[i] = r.bilingual(t)
	}
	return out
}

// Replace runs a regular expression replacement over the text of the
// settings, every entry and the draft. The replacement may refer to groups
// as $1 or ${name}. URLs, images and the generated report are not touched.
// Settings, entries and draft are each replaced as a whole.
func (s *Session) Replace(pattern, replacement string) (ReplaceResult, error) {
	if pattern == "" {
		return ReplaceResult{}, ErrEmptyPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ReplaceResult{}, fmt.Errorf("invalid find pattern: %w", err)
	}
	r := &replacer{re: re, repl: replacement}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings := r.settings(s.settings)

	entries := make([]core.TripEntry, len(s.entries))
	changed := 0
	for i, e := range s.entries {
		before := r.fields
		entries[i] = r.entry(e)
		if r.fields > before {
			changed++
		}
	}

	draft := r.draft(s.draft)

	s.settings = settings
	s.entries = entries
	s.draft = draft

	logger.Info("Find/replace applied", "fields", r.fields, "entries", changed)
	return ReplaceResult{Settings: settings.Clone(), Entries: changed, Fields: r.fields}, nil
}

// ImportThemesToDraft appends the key themes to the executive summary in
// both languages, separated by a blank line. A language whose summary already
// contains the themes is left alone; an empty one is set to the themes. With
// no themes nothing changes.
func (s *Session) ImportThemesToDraft() core.ReportDraft {
	s.mu.Lock()
	defer s.mu.Unlock()

	themes := s.settings.KeyThemes
	if themes == "" {
		return s.draft.Clone()
	}
	appendThemes := func(current string) string {
		switch {
		case current == "":
			return themes
		case strings.Contains(current, themes):
			return current
		default:
			return current + "\n\n" + themes
		}
	}

	d := s.draft.Clone()
	d.ExecutiveSummary = core.BilingualText{
		En: appendThemes(d.ExecutiveSummary.En),
		Zh: appendThemes(d.ExecutiveSummary.Zh),
	}
	s.draft = d
	return d.Clone()
}
