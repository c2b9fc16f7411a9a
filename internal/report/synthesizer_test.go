package report

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"tripreport/internal/core"
	"tripreport/internal/llm"
)

// mockGenerator implements llm.Generator for testing
type mockGenerator struct {
	responses []string
	errs      []error
	callCount int
	requests  []llm.Request
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	i := m.callCount
	m.callCount++
	m.requests = append(m.requests, req)
	if i < len(m.errs) && m.errs[i] != nil {
		return llm.Response{}, m.errs[i]
	}
	if i < len(m.responses) {
		return llm.Response{Text: m.responses[i]}, nil
	}
	if len(m.responses) > 0 {
		return llm.Response{Text: m.responses[len(m.responses)-1]}, nil
	}
	return llm.Response{}, nil
}

func noWaitPolicy() llm.RetryPolicy {
	p := llm.DefaultRetryPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func newTestSynthesizer(m *mockGenerator) *Synthesizer {
	return NewSynthesizer(m, noWaitPolicy())
}

func TestGenerate_ScenarioA_SingleEntryCreative(t *testing.T) {
	m := &mockGenerator{responses: []string{"```json\n" + `{
		"title": {"en": "Keynote Day", "zh": "主题演讲日"},
		"subtitle": {"en": "A big stage", "zh": "大舞台"},
		"executiveSummary": {"en": "Summary", "zh": "摘要"},
		"keyTakeaways": [{"en": "One", "zh": "一"}],
		"highlights": [{"title": {"en": "Keynote", "zh": "主题演讲"}, "description": {"en": "d", "zh": "描述"}, "location": {"en": "Hall A", "zh": "A厅"}, "relatedEntryId": "entry-1"}],
		"conclusion": {"en": "End", "zh": "结束"}
	}` + "\n```"}}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{
		Entries:  []core.TripEntry{{ID: "entry-1", Note: "Keynote speech"}},
		Language: core.English,
		Mode:     core.ModeCreative,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(out.Highlights) != 1 {
		t.Fatalf("expected 1 highlight, got %d", len(out.Highlights))
	}
	if out.Highlights[0].RelatedEntryID != "entry-1" {
		t.Errorf("expected relatedEntryId entry-1, got %q", out.Highlights[0].RelatedEntryID)
	}
	if out.Title.En == "" || out.Title.Zh == "" {
		t.Errorf("title should be bilingual, got %+v", out.Title)
	}
	if s.State() != StateSucceeded {
		t.Errorf("expected succeeded state, got %s", s.State())
	}
	if m.requests[0].Operation != llm.OpCreativeReport || !m.requests[0].JSON {
		t.Errorf("unexpected request %+v", m.requests[0])
	}
}

func TestGenerate_ScenarioB_MalformedJSON(t *testing.T) {
	m := &mockGenerator{responses: []string{"Here is your report: {title: oops"}}
	s := newTestSynthesizer(m)

	entries := []core.TripEntry{{ID: "e1", Note: "note", Images: []string{"data:image/png;base64,AA=="}}}
	draft := &core.ReportDraft{Title: core.BilingualText{En: "Old", Zh: "旧"}, KeyTakeaways: []core.BilingualText{{En: "k"}}}
	entriesBefore := []core.TripEntry{entries[0].Clone()}
	draftBefore := draft.Clone()

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.Chinese, Draft: draft})
	if out != nil {
		t.Error("no report should be returned on failure")
	}
	if !errors.Is(err, ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
	var ire *InvalidResponseError
	if !errors.As(err, &ire) || !strings.Contains(ire.Raw, "{title: oops") {
		t.Errorf("raw text should be kept for debugging, got %+v", ire)
	}
	if m.callCount != 1 {
		t.Errorf("invalid responses must not be retried, got %d calls", m.callCount)
	}
	if !reflect.DeepEqual(entries, entriesBefore) || !reflect.DeepEqual(*draft, draftBefore) {
		t.Error("inputs must be left untouched")
	}
	if s.State() != StateFailed {
		t.Errorf("expected failed state, got %s", s.State())
	}
}

func TestGenerate_ScenarioC_NoInput(t *testing.T) {
	for _, mode := range []core.GenerationMode{core.ModeCreative, core.ModeZhToEn, core.ModeEnToZh} {
		m := &mockGenerator{responses: []string{"{}"}}
		s := newTestSynthesizer(m)

		_, err := s.Generate(context.Background(), Request{
			Language: core.English,
			Settings: core.ContextSettings{EventContexts: []string{"  "}},
			Mode:     mode,
		})
		if !errors.Is(err, ErrNoInput) {
			t.Errorf("%s: expected ErrNoInput, got %v", mode, err)
		}
		if m.callCount != 0 {
			t.Errorf("%s: expected no model calls, got %d", mode, m.callCount)
		}
		if s.State() != StateIdle {
			t.Errorf("%s: rejected input should not change state, got %s", mode, s.State())
		}
	}
}

func TestGenerate_ContextOnlyIsAllowed(t *testing.T) {
	m := &mockGenerator{responses: []string{`{"title": {"en": "T", "zh": "标题"}, "highlights": []}`}}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{
		Language: core.English,
		Settings: core.ContextSettings{EventContexts: []string{"Token2049"}},
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Highlights) != 0 {
		t.Errorf("expected no highlights, got %d", len(out.Highlights))
	}
}

func TestGenerate_HighlightAlignment(t *testing.T) {
	m := &mockGenerator{responses: []string{`{
		"highlights": [
			{"title": {"en": "A", "zh": "甲"}, "relatedEntryId": "a"},
			{"title": {"en": "B", "zh": "乙"}, "relatedEntryId": "b"},
			{"title": {"en": "C", "zh": "丙"}, "relatedEntryId": "c"}
		]
	}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.Chinese})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Highlights) != len(entries) {
		t.Fatalf("expected %d highlights, got %d", len(entries), len(out.Highlights))
	}
	for i, h := range out.Highlights {
		if h.RelatedEntryID != entries[i].ID {
			t.Errorf("highlight %d: expected %q, got %q", i, entries[i].ID, h.RelatedEntryID)
		}
	}
}

func TestGenerate_HighlightsReorderedByEntryID(t *testing.T) {
	m := &mockGenerator{responses: []string{`{
		"highlights": [
			{"title": {"en": "C"}, "relatedEntryId": "c"},
			{"title": {"en": "X"}, "relatedEntryId": "unknown"},
			{"title": {"en": "A"}, "relatedEntryId": "a"}
		]
	}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.English})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	got := make([]string, len(out.Highlights))
	for i, h := range out.Highlights {
		got[i] = h.Title.En
	}
	// X sits at the position of the unclaimed entry b and takes its id.
	if want := []string{"A", "X", "C"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected order %v, got %v", want, got)
	}
	if out.Highlights[1].RelatedEntryID != "b" {
		t.Errorf("expected X to be related to b, got %q", out.Highlights[1].RelatedEntryID)
	}
}

func TestGenerate_UnknownIDInOrderedResponse(t *testing.T) {
	m := &mockGenerator{responses: []string{`{
		"highlights": [
			{"title": {"en": "A"}, "relatedEntryId": "Entry 1"},
			{"title": {"en": "B"}, "relatedEntryId": "b"},
			{"title": {"en": "C"}, "relatedEntryId": "c"}
		]
	}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.English})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Highlights) != len(entries) {
		t.Fatalf("expected %d highlights, got %d", len(entries), len(out.Highlights))
	}
	for i, want := range []string{"A", "B", "C"} {
		h := out.Highlights[i]
		if h.Title.En != want || h.RelatedEntryID != entries[i].ID {
			t.Errorf("highlight %d: got title %q id %q, want %q id %q", i, h.Title.En, h.RelatedEntryID, want, entries[i].ID)
		}
	}
}

func TestGenerate_UnknownIDKeepsClaimedEntry(t *testing.T) {
	m := &mockGenerator{responses: []string{`{
		"highlights": [
			{"title": {"en": "X"}, "relatedEntryId": "bogus"},
			{"title": {"en": "A"}, "relatedEntryId": "a"}
		]
	}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "a"}, {ID: "b"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.English})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	// Position 0 belongs to a, which A already names, so X cannot take it.
	if out.Highlights[0].Title.En != "A" || out.Highlights[0].RelatedEntryID != "a" {
		t.Errorf("unexpected first highlight %+v", out.Highlights[0])
	}
	if out.Highlights[1].Title.En != "X" || out.Highlights[1].RelatedEntryID != "bogus" {
		t.Errorf("unexpected second highlight %+v", out.Highlights[1])
	}
}

func TestGenerate_MissingHighlightIsNotFabricated(t *testing.T) {
	m := &mockGenerator{responses: []string{`{
		"highlights": [
			{"title": {"en": "A", "zh": "甲"}, "relatedEntryId": "a"},
			{"title": {"en": "B", "zh": "乙"}, "relatedEntryId": "b"}
		]
	}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Language: core.English})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Highlights) != 2 {
		t.Errorf("expected N-1 highlights, got %d", len(out.Highlights))
	}
}

func TestGenerate_MissingRelatedIDFilledPositionally(t *testing.T) {
	m := &mockGenerator{responses: []string{`{"highlights": [{"title": "Only english"}, {"title": {"zh": "乙"}}]}`}}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{
		Entries:  []core.TripEntry{{ID: "a"}, {ID: "b"}},
		Language: core.English,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Highlights[0].RelatedEntryID != "a" || out.Highlights[1].RelatedEntryID != "b" {
		t.Errorf("unexpected ids %q %q", out.Highlights[0].RelatedEntryID, out.Highlights[1].RelatedEntryID)
	}
	if out.Highlights[0].Title != (core.BilingualText{En: "Only english"}) {
		t.Errorf("bare string should land in the selected language, got %+v", out.Highlights[0].Title)
	}
}

func TestGenerate_BareStringFallback(t *testing.T) {
	m := &mockGenerator{responses: []string{`{"title": "只有中文", "keyTakeaways": ["要点", {"en": "point"}], "conclusion": null}`}}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{
		Entries:  []core.TripEntry{{ID: "a"}},
		Language: core.Chinese,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out.Title != (core.BilingualText{Zh: "只有中文"}) {
		t.Errorf("unexpected title %+v", out.Title)
	}
	want := []core.BilingualText{{Zh: "要点"}, {En: "point"}}
	if !reflect.DeepEqual(out.KeyTakeaways, want) {
		t.Errorf("expected takeaways %+v, got %+v", want, out.KeyTakeaways)
	}
	if out.Conclusion != (core.BilingualText{}) {
		t.Errorf("null conclusion should normalize to empty, got %+v", out.Conclusion)
	}
}

func TestGenerate_InvalidShapes(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"array", `[{"title": "x"}]`},
		{"null", `null`},
		{"highlights object", `{"highlights": {"title": "x"}}`},
		{"takeaways string", `{"keyTakeaways": "one"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockGenerator{responses: []string{tt.text}}
			_, err := newTestSynthesizer(m).Generate(context.Background(), Request{
				Entries:  []core.TripEntry{{ID: "a"}},
				Language: core.English,
			})
			if !errors.Is(err, ErrInvalidResponse) {
				t.Errorf("expected ErrInvalidResponse, got %v", err)
			}
		})
	}
}

func TestGenerate_RetriesRateLimits(t *testing.T) {
	m := &mockGenerator{
		errs:      []error{errors.New("429 Too Many Requests"), errors.New("quota exceeded")},
		responses: []string{"", "", `{"title": {"en": "T", "zh": "标"}}`},
	}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{Entries: []core.TripEntry{{ID: "a"}}, Language: core.English})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if m.callCount != 3 {
		t.Errorf("expected 3 calls, got %d", m.callCount)
	}
	if out.Title.En != "T" {
		t.Errorf("unexpected title %+v", out.Title)
	}
}

func TestGenerate_UpstreamFailureSurfaces(t *testing.T) {
	boom := errors.New("permission denied")
	m := &mockGenerator{errs: []error{boom}}
	s := newTestSynthesizer(m)

	_, err := s.Generate(context.Background(), Request{Entries: []core.TripEntry{{ID: "a"}}})
	if !errors.Is(err, boom) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if errors.Is(err, ErrInvalidResponse) {
		t.Error("upstream failures are not invalid responses")
	}
	if m.callCount != 1 {
		t.Errorf("expected 1 call, got %d", m.callCount)
	}
}

func TestGenerate_UnknownMode(t *testing.T) {
	m := &mockGenerator{}
	_, err := newTestSynthesizer(m).Generate(context.Background(), Request{
		Entries: []core.TripEntry{{ID: "a"}},
		Mode:    "poetry",
	})
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("expected ErrUnknownMode, got %v", err)
	}
	if m.callCount != 0 {
		t.Error("unknown mode must not call the model")
	}
}

func TestGenerate_TranslationFidelity(t *testing.T) {
	draft := &core.ReportDraft{
		Title:            core.BilingualText{Zh: "区块链峰会"},
		Subtitle:         core.BilingualText{Zh: "副标题"},
		ExecutiveSummary: core.BilingualText{Zh: "摘要"},
		KeyTakeaways:     []core.BilingualText{{Zh: "要点一"}, {Zh: "要点二"}},
		Conclusion:       core.BilingualText{Zh: "结论"},
	}
	entries := []core.TripEntry{
		{ID: "e1", AITitle: "主题演讲", AICopy: "演讲文案"},
		{ID: "e2", AITitle: "展台", AICopy: "展台文案"},
	}
	// The model alters the source text and drops one takeaway; source text must survive.
	m := &mockGenerator{responses: []string{`{
		"title": {"zh": "区块链峰会!!", "en": "Blockchain Summit"},
		"subtitle": {"zh": "副标题", "en": "Subtitle"},
		"executiveSummary": {"zh": "摘要", "en": "Summary"},
		"keyTakeaways": [{"zh": "要点一", "en": "Point one"}],
		"conclusion": "Conclusion",
		"highlights": [
			{"id": "e2", "title": {"zh": "展台", "en": "Booth"}, "description": {"zh": "展台文案", "en": "Booth copy"}},
			{"id": "e1", "title": {"zh": "主题演讲", "en": "Keynote"}, "description": {"zh": "演讲文案", "en": "Keynote copy"}, "location": {"en": "Hall A", "zh": "A厅"}}
		]
	}`}}
	s := newTestSynthesizer(m)

	out, err := s.Generate(context.Background(), Request{
		Entries:  entries,
		Language: core.English,
		Settings: core.ContextSettings{BrandLocation: "Singapore"},
		Draft:    draft,
		Mode:     core.ModeZhToEn,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if m.requests[0].Operation != llm.OpTranslateReport {
		t.Errorf("expected translation request, got %q", m.requests[0].Operation)
	}
	_, input, _ := strings.Cut(m.requests[0].Prompt, "**INPUT:**\n")
	input, _, _ = strings.Cut(input, "\n")
	if strings.Contains(input, `"en":`) || !strings.Contains(input, "区块链峰会") {
		t.Errorf("translation payload should carry source language text only: %s", input)
	}

	fields := map[string][2]core.BilingualText{
		"title":            {draft.Title, out.Title},
		"subtitle":         {draft.Subtitle, out.Subtitle},
		"executiveSummary": {draft.ExecutiveSummary, out.ExecutiveSummary},
		"conclusion":       {draft.Conclusion, out.Conclusion},
	}
	for name, pair := range fields {
		if pair[1].Zh != pair[0].Zh {
			t.Errorf("%s: zh changed from %q to %q", name, pair[0].Zh, pair[1].Zh)
		}
		if pair[1].En == "" {
			t.Errorf("%s: expected en translation", name)
		}
	}

	if len(out.KeyTakeaways) != 2 {
		t.Fatalf("expected 2 takeaways, got %d", len(out.KeyTakeaways))
	}
	if out.KeyTakeaways[0].En != "Point one" || out.KeyTakeaways[1].Zh != "要点二" {
		t.Errorf("unexpected takeaways %+v", out.KeyTakeaways)
	}

	if len(out.Highlights) != 2 {
		t.Fatalf("expected 2 highlights, got %d", len(out.Highlights))
	}
	for i, h := range out.Highlights {
		if h.RelatedEntryID != entries[i].ID {
			t.Errorf("highlight %d: expected id %q, got %q", i, entries[i].ID, h.RelatedEntryID)
		}
		if h.Title.Zh != entries[i].AITitle || h.Description.Zh != entries[i].AICopy {
			t.Errorf("highlight %d: source text changed: %+v", i, h)
		}
	}
	if out.Highlights[0].Title.En != "Keynote" {
		t.Errorf("highlights should be matched by id, got %+v", out.Highlights[0].Title)
	}
	if out.Highlights[0].Location.En != "Hall A" {
		t.Errorf("model location should be kept, got %+v", out.Highlights[0].Location)
	}
	if out.Highlights[1].Location != (core.BilingualText{En: "Singapore", Zh: "Singapore"}) {
		t.Errorf("missing location should default to brand location, got %+v", out.Highlights[1].Location)
	}
}

func TestGenerate_TranslationPositionalFallback(t *testing.T) {
	m := &mockGenerator{responses: []string{`{"highlights": [{"title": {"en": "Keynote", "zh": "主题演讲"}}]}`}}
	s := newTestSynthesizer(m)
	entries := []core.TripEntry{{ID: "e1", AITitle: "Keynote"}, {ID: "e2", AITitle: "Booth"}}

	out, err := s.Generate(context.Background(), Request{Entries: entries, Mode: core.ModeEnToZh})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(out.Highlights) != 2 {
		t.Fatalf("translation keeps one highlight per entry, got %d", len(out.Highlights))
	}
	if out.Highlights[0].Title.Zh != "主题演讲" {
		t.Errorf("expected positional match, got %+v", out.Highlights[0].Title)
	}
	if out.Highlights[1].Title != (core.BilingualText{En: "Booth"}) {
		t.Errorf("missing highlight should keep the source title only, got %+v", out.Highlights[1].Title)
	}
	if out.Highlights[1].RelatedEntryID != "e2" {
		t.Errorf("expected e2, got %q", out.Highlights[1].RelatedEntryID)
	}
}

func TestGenerate_TranslationInvalidJSON(t *testing.T) {
	m := &mockGenerator{responses: []string{"not json"}}
	_, err := newTestSynthesizer(m).Generate(context.Background(), Request{
		Entries: []core.TripEntry{{ID: "e1"}},
		Mode:    core.ModeZhToEn,
	})
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	if StateIdle.String() != "idle" || StateRequesting.String() != "requesting" {
		t.Error("unexpected state names")
	}
}
