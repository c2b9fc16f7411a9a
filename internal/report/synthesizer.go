// Package report synthesizes bilingual PR reports from trip entries.
package report

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"tripreport/internal/core"
	"tripreport/internal/llm"
	"tripreport/internal/logger"
	"tripreport/internal/metrics"
	"tripreport/internal/prompts"
)

// State is the lifecycle of a generation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequesting:
		return "requesting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "idle"
}

// Request is the input of one generation.
type Request struct {
	Entries  []core.TripEntry
	Language core.Language // Primary language in creative mode, ignored by translation modes
	Settings core.ContextSettings
	Draft    *core.ReportDraft // Optional existing draft
	Mode     core.GenerationMode
}

// Synthesizer turns a Request into a GeneratedReport through the model.
type Synthesizer struct {
	gen   llm.Generator
	retry llm.RetryPolicy

	mu    sync.Mutex
	state State
}

// NewSynthesizer creates a Synthesizer calling gen under the retry policy.
func NewSynthesizer(gen llm.Generator, retry llm.RetryPolicy) *Synthesizer {
	return &Synthesizer{gen: gen, retry: retry}
}

// State returns the state of the most recent generation.
func (s *Synthesizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synthesizer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// HasInput reports whether there is anything to generate from.
func HasInput(entries []core.TripEntry, settings core.ContextSettings) bool {
	if len(entries) > 0 {
		return true
	}
	for _, c := range settings.EventContexts {
		if strings.TrimSpace(c) != "" {
			return true
		}
	}
	return false
}

// Generate runs one synthesis. Input is validated before any model call; on
// failure no partial report is returned.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (*core.GeneratedReport, error) {
	mode := req.Mode
	if mode == "" {
		mode = core.ModeCreative
	}
	if mode != core.ModeCreative && !mode.IsTranslation() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
	if !HasInput(req.Entries, req.Settings) {
		metrics.Generations.WithLabelValues(string(mode), "rejected").Inc()
		return nil, ErrNoInput
	}

	s.setState(StateRequesting)
	logger.Info("Generating report",
		"mode", mode,
		"language", req.Language,
		"entries", len(req.Entries),
		"has_draft", req.Draft != nil,
	)

	var (
		out *core.GeneratedReport
		err error
	)
	if mode.IsTranslation() {
		out, err = s.translate(ctx, req, mode)
	} else {
		out, err = s.create(ctx, req)
	}

	if err != nil {
		s.setState(StateFailed)
		metrics.Generations.WithLabelValues(string(mode), "failed").Inc()
		return nil, err
	}
	s.setState(StateSucceeded)
	metrics.Generations.WithLabelValues(string(mode), "succeeded").Inc()
	logger.Info("Report generated", "mode", mode, "highlights", len(out.Highlights), "entries", len(req.Entries))
	return out, nil
}

func (s *Synthesizer) call(ctx context.Context, req llm.Request) (*rawReport, error) {
	resp, err := llm.Call(ctx, s.gen, s.retry, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}
	raw, err := decodeReport(resp.Text)
	if err != nil {
		logger.Error("AI returned invalid report JSON", err, "operation", req.Operation, "response_chars", len(resp.Text))
		logger.Debug("Invalid report response", "operation", req.Operation, "raw", resp.Text)
		return nil, err
	}
	return raw, nil
}

func (s *Synthesizer) create(ctx context.Context, req Request) (*core.GeneratedReport, error) {
	lang := req.Language.Primary()
	raw, err := s.call(ctx, prompts.CreativeReport(req.Entries, req.Settings, req.Draft, lang))
	if err != nil {
		return nil, err
	}

	out := &core.GeneratedReport{
		ReportDraft: core.ReportDraft{
			Title:            raw.text("title", lang),
			Subtitle:         raw.text("subtitle", lang),
			ExecutiveSummary: raw.text("executiveSummary", lang),
			KeyTakeaways:     core.NormalizeList(raw.keyTakeaways, lang),
			Conclusion:       raw.text("conclusion", lang),
		},
	}

	highlights := make([]core.Highlight, 0, len(raw.highlights))
	for _, h := range raw.highlights {
		highlights = append(highlights, core.Highlight{
			Title:          h.text("title", lang),
			Description:    h.text("description", lang),
			Location:       h.text("location", lang),
			RelatedEntryID: h.str("relatedEntryId", "id"),
		})
	}
	out.Highlights = alignHighlights(highlights, req.Entries)

	if len(out.Highlights) != len(req.Entries) {
		logger.Warn("Highlight count does not match entries",
			"highlights", len(out.Highlights),
			"entries", len(req.Entries),
		)
	}
	return out, nil
}

// alignHighlights orders highlights by the position of their related entry.
// A highlight with a missing or unknown id takes the id of the entry at its
// own position unless another highlight already names that entry. Highlights
// that still match no entry keep their relative order after the known ones and
// are dropped first when there are more highlights than entries. Missing
// highlights are not fabricated.
func alignHighlights(highlights []core.Highlight, entries []core.TripEntry) []core.Highlight {
	pos := make(map[string]int, len(entries))
	for i, e := range entries {
		if _, dup := pos[e.ID]; !dup {
			pos[e.ID] = i
		}
	}

	claimed := make(map[string]bool, len(highlights))
	for _, h := range highlights {
		if _, ok := pos[h.RelatedEntryID]; ok {
			claimed[h.RelatedEntryID] = true
		}
	}
	for i := range highlights {
		if _, ok := pos[highlights[i].RelatedEntryID]; ok || i >= len(entries) {
			continue
		}
		id := entries[i].ID
		if claimed[id] {
			continue
		}
		if highlights[i].RelatedEntryID != "" {
			logger.Debug("Highlight names an unknown entry, using its position",
				"related_entry_id", highlights[i].RelatedEntryID,
				"entry_id", id,
			)
		}
		highlights[i].RelatedEntryID = id
		claimed[id] = true
	}
	rank := func(h core.Highlight) int {
		if i, ok := pos[h.RelatedEntryID]; ok {
			return i
		}
		return len(entries)
	}

	slices.SortStableFunc(highlights, func(a, b core.Highlight) int {
		return rank(a) - rank(b)
	})
	if len(entries) > 0 && len(highlights) > len(entries) {
		highlights = highlights[:len(entries)]
	}
	return highlights
}

func (s *Synthesizer) translate(ctx context.Context, req Request, mode core.GenerationMode) (*core.GeneratedReport, error) {
	source, target := mode.Languages()
	payload := prompts.NewTranslationPayload(req.Entries, req.Draft, source)
	raw, err := s.call(ctx, prompts.Translation(payload, source, target))
	if err != nil {
		return nil, err
	}

	var draft core.ReportDraft
	if req.Draft != nil {
		draft = *req.Draft
	}
	keep := func(translated, original core.BilingualText) core.BilingualText {
		if text := original.Get(source); text != "" {
			return translated.With(source, text)
		}
		return translated
	}

	out := &core.GeneratedReport{
		ReportDraft: core.ReportDraft{
			Title:            keep(raw.text("title", target), draft.Title),
			Subtitle:         keep(raw.text("subtitle", target), draft.Subtitle),
			ExecutiveSummary: keep(raw.text("executiveSummary", target), draft.ExecutiveSummary),
			Conclusion:       keep(raw.text("conclusion", target), draft.Conclusion),
		},
	}

	translated := core.NormalizeList(raw.keyTakeaways, target)
	n := max(len(translated), len(draft.KeyTakeaways))
	out.KeyTakeaways = make([]core.BilingualText, n)
	for i := range n {
		var t, o core.BilingualText
		if i < len(translated) {
			t = translated[i]
		}
		if i < len(draft.KeyTakeaways) {
			o = draft.KeyTakeaways[i]
		}
		out.KeyTakeaways[i] = keep(t, o)
	}

	brand := core.BilingualText{En: req.Settings.BrandLocation, Zh: req.Settings.BrandLocation}
	out.Highlights = make([]core.Highlight, len(req.Entries))
	for i, e := range req.Entries {
		h := pickHighlight(raw.highlights, i, e.ID)
		hl := core.Highlight{
			Title:          keep(h.text("title", target), core.BilingualText{}.With(source, e.AITitle)),
			Description:    keep(h.text("description", target), core.BilingualText{}.With(source, e.AICopy)),
			Location:       h.text("location", target),
			RelatedEntryID: e.ID,
		}
		if hl.Location.IsEmpty() {
			hl.Location = brand
		}
		out.Highlights[i] = hl
	}
	return out, nil
}

// pickHighlight prefers the highlight naming id and falls back to position i.
func pickHighlight(highlights []rawHighlight, i int, id string) rawHighlight {
	if id != "" {
		for _, h := range highlights {
			if h.str("relatedEntryId", "id") == id {
				return h
			}
		}
	}
	if i < len(highlights) {
		return highlights[i]
	}
	return rawHighlight{}
}
