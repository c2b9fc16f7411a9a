package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tripreport/internal/compose"
	"tripreport/internal/config"
	"tripreport/internal/core"
	"tripreport/internal/llm"
	"tripreport/internal/report"
	"tripreport/internal/session"
	"tripreport/internal/store"
)

const testAdminKey = "secret-key"

const creativeAnswer = `{
	"title": {"en": "Expo Week", "zh": "展会周"},
	"subtitle": {"en": "Field notes", "zh": "现场笔记"},
	"executiveSummary": {"en": "A productive week.", "zh": "收获满满的一周。"},
	"keyTakeaways": [{"en": "Demand is real", "zh": "需求真实存在"}],
	"highlights": [{"title": {"en": "Booth", "zh": "展台"}, "description": {"en": "Busy booth.", "zh": "展台很忙。"}, "location": {"en": "Hall 1", "zh": "一号馆"}}],
	"conclusion": {"en": "Onwards.", "zh": "继续前进。"}
}`

// mockGenerator answers by operation and counts calls.
type mockGenerator struct {
	mu        sync.Mutex
	callCount int
	answers   map[string]string
	prompts   map[string]string // last prompt per operation
}

func (m *mockGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if m.prompts == nil {
		m.prompts = make(map[string]string)
	}
	m.prompts[req.Operation] = req.Prompt
	if req.WantImage {
		return llm.Response{Images: []llm.Image{{MIMEType: "image/png", Data: []byte{1, 2, 3}}}}, nil
	}
	if text, ok := m.answers[req.Operation]; ok {
		return llm.Response{Text: text}, nil
	}
	return llm.Response{Text: "ok"}, nil
}

func (m *mockGenerator) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockGenerator) lastPrompt(op string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prompts[op]
}

type testEnv struct {
	srv   *Server
	gen   *mockGenerator
	store *store.Store
	sess  *session.Session
}

func newTestEnv(t *testing.T, answers map[string]string) *testEnv {
	t.Helper()

	st, err := store.Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "tripreport.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	gen := &mockGenerator{answers: answers}
	retry := llm.DefaultRetryPolicy()
	retry.Sleep = func(ctx context.Context, d time.Duration) error { return nil }

	sess := session.New(core.ContextSettings{Persona: "PR lead"})
	srv := New(Deps{
		Store:     st,
		Session:   sess,
		Generator: report.NewSynthesizer(gen, retry),
		Composer:  compose.NewComposer(gen, retry, compose.Options{Concurrency: 2}),
	}, config.Server{Host: "127.0.0.1", Port: 0, AdminAPIKey: testAdminKey})

	return &testEnv{srv: srv, gen: gen, store: st, sess: sess}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer "+testAdminKey)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/health", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[HealthResponse](t, rec); got.Status != "ok" || got.Checks["database"] != "ok" {
		t.Errorf("health = %+v", got)
	}
}

func TestAdminAuth(t *testing.T) {
	e := newTestEnv(t, nil)

	if rec := e.do(t, http.MethodGet, "/api/entries", nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", rec.Code)
	}

	if rec := e.do(t, http.MethodGet, "/api/entries", nil, true); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d", rec.Code)
	}

	// Public endpoints need no key.
	if rec := e.do(t, http.MethodGet, "/api/reports", nil, false); rec.Code != http.StatusOK {
		t.Errorf("public list: status = %d", rec.Code)
	}
}

func TestAdminDisabledWithoutKey(t *testing.T) {
	e := newTestEnv(t, nil)
	e.srv.config.AdminAPIKey = ""

	if rec := e.do(t, http.MethodGet, "/api/entries", nil, true); rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestEntryCRUD(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/entries", core.TripEntry{Note: "first", Images: []string{"data:image/png;base64,AAAA"}}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body)
	}
	first := decode[core.TripEntry](t, rec)
	if first.ID == "" || first.Timestamp == 0 {
		t.Errorf("expected id and timestamp to be assigned: %+v", first)
	}
	if len(first.HeroImageIndices) != 1 || first.HeroImageIndices[0] != 0 {
		t.Errorf("single image should be the hero: %+v", first.HeroImageIndices)
	}

	second := decode[core.TripEntry](t, e.do(t, http.MethodPost, "/api/entries", core.TripEntry{Note: "second"}, true))

	rec = e.do(t, http.MethodPost, "/api/entries/reorder", map[string]any{"ids": []string{second.ID, first.ID}}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder status = %d", rec.Code)
	}
	if got := decode[[]core.TripEntry](t, rec); got[0].ID != second.ID {
		t.Errorf("reorder did not apply: %+v", got)
	}

	if rec := e.do(t, http.MethodPost, "/api/entries/reorder", map[string]any{"ids": []string{first.ID}}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("partial reorder: status = %d", rec.Code)
	}

	first.Note = "edited"
	rec = e.do(t, http.MethodPut, "/api/entries/"+first.ID, first, true)
	if rec.Code != http.StatusOK || decode[core.TripEntry](t, rec).Note != "edited" {
		t.Errorf("update failed: %d %s", rec.Code, rec.Body)
	}

	if rec := e.do(t, http.MethodDelete, "/api/entries/"+first.ID, nil, true); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/entries/"+first.ID, nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d", rec.Code)
	}
}

func TestEntryAssistants(t *testing.T) {
	e := newTestEnv(t, map[string]string{
		llm.OpCaption:    "A crowded booth with a blue banner.",
		llm.OpPRCopy:     "The booth drew crowds all day.",
		llm.OpEntryTitle: "\"Crowds at the Booth\"\nextra line",
	})
	entry := e.sess.AddEntry(core.TripEntry{Note: "booth", Images: []string{"data:image/png;base64,AAAA"}})
	base := "/api/entries/" + entry.ID

	rec := e.do(t, http.MethodPost, base+"/caption", languageRequest{Language: "en"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("caption status = %d, body %s", rec.Code, rec.Body)
	}
	if got := decode[core.TripEntry](t, rec); got.AICaption != "A crowded booth with a blue banner." {
		t.Errorf("caption = %q", got.AICaption)
	}

	rec = e.do(t, http.MethodPost, base+"/copy", languageRequest{Language: "en"}, true)
	if got := decode[core.TripEntry](t, rec); got.AICopy != "The booth drew crowds all day." {
		t.Errorf("copy = %q", got.AICopy)
	}

	rec = e.do(t, http.MethodPost, base+"/title", languageRequest{Language: "en"}, true)
	if got := decode[core.TripEntry](t, rec); got.AITitle != "Crowds at the Booth" {
		t.Errorf("title = %q", got.AITitle)
	}

	rec = e.do(t, http.MethodPost, base+"/image", map[string]string{"description": "a booth"}, true)
	if got := decode[core.TripEntry](t, rec); len(got.Images) != 2 || !strings.HasPrefix(got.Images[1], "data:image/png;base64,") {
		t.Errorf("image not appended: %v", got.Images)
	}

	rec = e.do(t, http.MethodGet, base+"/status", nil, true)
	if got := decode[EntryStatus](t, rec); got.ID != entry.ID || len(got.Active) != 0 {
		t.Errorf("status = %+v", got)
	}

	if rec := e.do(t, http.MethodPost, "/api/entries/missing/caption", languageRequest{Language: "en"}, true); rec.Code != http.StatusNotFound {
		t.Errorf("unknown entry: status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodPost, base+"/caption", languageRequest{Language: "fr"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("bad language: status = %d", rec.Code)
	}
}

func TestEntryImageDescriptionFallback(t *testing.T) {
	e := newTestEnv(t, nil)

	tests := []struct {
		name  string
		entry core.TripEntry
		want  string
	}{
		{"copy first", core.TripEntry{AICopy: "polished copy", Note: "raw note", AICaption: "caption"}, "polished copy"},
		{"then note", core.TripEntry{Note: "raw note", AICaption: "caption"}, "raw note"},
		{"then caption", core.TripEntry{AICaption: "caption"}, "caption"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := e.sess.AddEntry(tt.entry)
			rec := e.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/image", nil, true)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}
			if got := e.gen.lastPrompt(llm.OpEntryImage); !strings.Contains(got, ": "+tt.want) {
				t.Errorf("prompt %q does not describe %q", got, tt.want)
			}
		})
	}

	entry := e.sess.AddEntry(core.TripEntry{})
	if rec := e.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/image", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("entry without text: status = %d, want 400", rec.Code)
	}
}

func TestReplace(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sess.SetSettings(core.ContextSettings{Persona: "Host Dr Bruce", BrandName: "Acme"})
	entry := e.sess.AddEntry(core.TripEntry{Note: "Dr Bruce on stage"})
	e.sess.SetDraft(core.ReportDraft{Conclusion: core.BilingualText{Zh: "感谢 Dr Bruce"}})

	rec := e.do(t, http.MethodPost, "/api/replace", replaceRequest{Find: "Dr Bruce", Replace: "Dr. Bruce"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[session.ReplaceResult](t, rec)
	if got.Fields != 3 || got.Entries != 1 {
		t.Errorf("result = %+v", got)
	}

	if saved, err := e.store.LoadSettings(context.Background()); err != nil || saved == nil || saved.Persona != "Host Dr. Bruce" {
		t.Errorf("settings not persisted: %+v, %v", saved, err)
	}
	if en, _ := e.sess.Entry(entry.ID); en.Note != "Dr. Bruce on stage" {
		t.Errorf("entry note = %q", en.Note)
	}
	if d := e.sess.Draft(); d.Conclusion.Zh != "感谢 Dr. Bruce" {
		t.Errorf("draft conclusion = %+v", d.Conclusion)
	}

	for _, body := range []replaceRequest{{Find: ""}, {Find: "("}} {
		if rec := e.do(t, http.MethodPost, "/api/replace", body, true); rec.Code != http.StatusBadRequest {
			t.Errorf("find %q: status = %d, want 400", body.Find, rec.Code)
		}
	}
	if rec := e.do(t, http.MethodPost, "/api/replace", replaceRequest{Find: "x"}, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("without admin key: status = %d", rec.Code)
	}
}

func TestImportThemesToDraft(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sess.SetSettings(core.ContextSettings{KeyThemes: "AI adoption"})
	e.sess.SetDraft(core.ReportDraft{ExecutiveSummary: core.BilingualText{En: "Busy week."}})

	for range 2 {
		rec := e.do(t, http.MethodPost, "/api/draft/import-themes", nil, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
		}
		got := decode[core.ReportDraft](t, rec)
		want := core.BilingualText{En: "Busy week.\n\nAI adoption", Zh: "AI adoption"}
		if got.ExecutiveSummary != want {
			t.Errorf("summary = %+v, want %+v", got.ExecutiveSummary, want)
		}
	}
}

func TestEntryCopyRequiresInput(t *testing.T) {
	e := newTestEnv(t, nil)
	entry := e.sess.AddEntry(core.TripEntry{})

	rec := e.do(t, http.MethodPost, "/api/entries/"+entry.ID+"/copy", languageRequest{Language: "zh"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if e.gen.calls() != 0 {
		t.Errorf("expected no model call, got %d", e.gen.calls())
	}
}

func TestCaptionAll(t *testing.T) {
	e := newTestEnv(t, map[string]string{llm.OpCaption: "caption"})
	a := e.sess.AddEntry(core.TripEntry{Images: []string{"data:image/png;base64,AAAA"}})
	b := e.sess.AddEntry(core.TripEntry{Note: "no photo"})

	rec := e.do(t, http.MethodPost, "/api/entries/caption-all", languageRequest{Language: "zh"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got, _ := e.sess.Entry(a.ID); got.AICaption != "caption" {
		t.Errorf("entry with image not captioned: %q", got.AICaption)
	}
	if got, _ := e.sess.Entry(b.ID); got.AICaption != "" {
		t.Errorf("entry without image should be skipped: %q", got.AICaption)
	}
}

func TestSettingsUpdateMergesAndPersists(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPut, "/api/settings", `{"tone": "Playful", "eventContexts": ["Expo"]}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[core.ContextSettings](t, rec)
	if got.Persona != "PR lead" || got.Tone != "Playful" || len(got.EventContexts) != 1 {
		t.Errorf("merged settings = %+v", got)
	}

	saved, err := e.store.LoadSettings(context.Background())
	if err != nil || saved == nil || saved.Tone != "Playful" {
		t.Errorf("settings not persisted: %+v, %v", saved, err)
	}

	if rec := e.do(t, http.MethodPut, "/api/settings", `{"tone":`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid body: status = %d", rec.Code)
	}
}

func TestSettingsExportImport(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sess.SetSettings(core.ContextSettings{Persona: "Analyst", BrandName: "Acme", EventContexts: []string{"Expo"}})

	rec := e.do(t, http.MethodGet, "/api/settings/export", nil, true)
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "ai-context.json") {
		t.Errorf("missing attachment header: %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), `"aiContext"`) || strings.Contains(rec.Body.String(), "eventContexts") {
		t.Errorf("unexpected export: %s", rec.Body)
	}

	rec = e.do(t, http.MethodPost, "/api/settings/import", `{"aiContext": {"persona": "Founder"}}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d", rec.Code)
	}
	got := decode[core.ContextSettings](t, rec)
	if got.Persona != "Founder" || got.BrandName != "Acme" || len(got.EventContexts) != 1 {
		t.Errorf("imported settings = %+v", got)
	}

	if rec := e.do(t, http.MethodPost, "/api/settings/import", `{"other": {}}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown bundle: status = %d", rec.Code)
	}
}

func TestAnalyzeURL(t *testing.T) {
	e := newTestEnv(t, map[string]string{
		llm.OpURLAnalysis: `{"content": "Expo facts", "style": "Crisp", "suggestedContexts": ["Expo 2025"], "suggestedThemes": "AI"}`,
	})

	rec := e.do(t, http.MethodPost, "/api/settings/analyze", analyzeRequest{URL: "https://example.com/expo", Language: "en"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[AnalyzeResponse](t, rec)
	if got.Analysis.Content != "Expo facts" {
		t.Errorf("analysis = %+v", got.Analysis)
	}
	if len(got.Settings.ReferenceURLs) != 1 || !strings.Contains(got.Settings.ReferenceContent, "[Source: https://example.com/expo]") {
		t.Errorf("settings not merged: %+v", got.Settings)
	}

	if rec := e.do(t, http.MethodPost, "/api/settings/analyze", analyzeRequest{Language: "en"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("missing url: status = %d", rec.Code)
	}
}

func TestDraftSection(t *testing.T) {
	e := newTestEnv(t, map[string]string{llm.OpSectionDraft: "TITLE: Expo Week\nSUBTITLE: Notes"})
	e.sess.AddEntry(core.TripEntry{Note: "booth"})

	rec := e.do(t, http.MethodPost, "/api/draft/section", sectionRequest{Section: "title", Language: "en"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	draft := decode[core.ReportDraft](t, rec)
	if draft.Title.En != "Expo Week" || draft.Subtitle.En != "Notes" {
		t.Errorf("draft = %+v", draft)
	}
	if e.sess.Draft().Title.En != "Expo Week" {
		t.Error("draft not stored in session")
	}

	if rec := e.do(t, http.MethodPost, "/api/draft/section", sectionRequest{Section: "intro", Language: "en"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("unknown section: status = %d", rec.Code)
	}
}

func TestGenerate_RejectsEmptyInput(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/generate", generateRequest{Language: "zh", Mode: "creative"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if e.gen.calls() != 0 {
		t.Errorf("expected no model call, got %d", e.gen.calls())
	}
}

func TestGenerate_BadMode(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sess.AddEntry(core.TripEntry{Note: "x"})

	if rec := e.do(t, http.MethodPost, "/api/generate", generateRequest{Language: "zh", Mode: "poetry"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGenerate_InvalidModelOutputIsGeneric(t *testing.T) {
	e := newTestEnv(t, map[string]string{llm.OpCreativeReport: "Sorry, I cannot help with that."})
	e.sess.AddEntry(core.TripEntry{Note: "x"})

	rec := e.do(t, http.MethodPost, "/api/generate", generateRequest{Language: "en"}, true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "Sorry") {
		t.Errorf("raw model text leaked: %s", rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "Failed to generate report.") {
		t.Errorf("expected generic message, got %s", rec.Body)
	}
	if e.sess.Report() != nil {
		t.Error("failed generation must not store a report")
	}
}

func TestGeneratePublishLoadFlow(t *testing.T) {
	e := newTestEnv(t, map[string]string{llm.OpCreativeReport: creativeAnswer})
	entry := e.sess.AddEntry(core.TripEntry{Note: "booth", Images: []string{"data:image/png;base64,AAAA"}})

	if rec := e.do(t, http.MethodPost, "/api/publish", nil, true); rec.Code != http.StatusConflict {
		t.Errorf("publish before generate: status = %d", rec.Code)
	}

	rec := e.do(t, http.MethodPost, "/api/generate", generateRequest{Language: "en", Mode: "creative"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body)
	}
	gen := decode[core.GeneratedReport](t, rec)
	if gen.Title.En != "Expo Week" || len(gen.Highlights) != 1 || gen.Highlights[0].RelatedEntryID != entry.ID {
		t.Errorf("generated = %+v", gen)
	}
	if e.sess.Draft().Title.Zh != "展会周" {
		t.Error("draft should be overwritten by the generated report")
	}

	rec = e.do(t, http.MethodPost, "/api/publish", nil, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("publish status = %d, body %s", rec.Code, rec.Body)
	}
	pub := decode[core.PublishedReport](t, rec)
	if pub.CoverImage != "data:image/png;base64,AAAA" || len(pub.Highlights[0].EmbeddedImages) != 1 {
		t.Errorf("published = %+v", pub)
	}

	list := decode[ReportListResponse](t, e.do(t, http.MethodGet, "/api/reports", nil, false))
	if list.Total != 1 || list.Reports[0].ID != pub.ID {
		t.Errorf("list = %+v", list)
	}

	rec = e.do(t, http.MethodGet, "/reports/"+pub.ID+"?lang=en", nil, false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Expo Week") {
		t.Errorf("report page: %d %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "展会周") {
		t.Error("English page should not contain the Chinese title")
	}

	if rec := e.do(t, http.MethodGet, "/", nil, false); !strings.Contains(rec.Body.String(), "/reports/"+pub.ID) {
		t.Errorf("gallery should link the report: %s", rec.Body)
	}

	e.sess.SetEntries(nil)
	if rec := e.do(t, http.MethodPost, "/api/reports/"+pub.ID+"/load", loadRequest{}, true); rec.Code != http.StatusConflict {
		t.Errorf("load without confirm: status = %d", rec.Code)
	}
	if len(e.sess.Entries()) != 0 {
		t.Error("unconfirmed load must not change entries")
	}

	rec = e.do(t, http.MethodPost, "/api/reports/"+pub.ID+"/load", loadRequest{Confirm: true}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("load status = %d", rec.Code)
	}
	loaded := decode[LoadResponse](t, rec)
	if len(loaded.Entries) != 1 || loaded.Entries[0].ID != entry.ID || loaded.Entries[0].AITitle != "Booth" || loaded.Entries[0].Note != "" {
		t.Errorf("loaded entries = %+v", loaded.Entries)
	}

	if rec := e.do(t, http.MethodDelete, "/api/reports/"+pub.ID, nil, true); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodGet, "/api/reports/"+pub.ID, nil, false); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted: status = %d", rec.Code)
	}
	if rec := e.do(t, http.MethodDelete, "/api/reports/"+pub.ID, nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("delete needs admin: status = %d", rec.Code)
	}
}

func TestReportDataExportImport(t *testing.T) {
	e := newTestEnv(t, nil)
	e.sess.AddEntry(core.TripEntry{ID: "e1", Note: "booth"})
	e.sess.SetDraft(core.ReportDraft{Title: core.BilingualText{En: "T", Zh: "标"}})

	rec := e.do(t, http.MethodGet, "/api/report-data/export", nil, true)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"reportData"`) {
		t.Fatalf("export: %d %s", rec.Code, rec.Body)
	}
	exported := rec.Body.String()

	other := newTestEnv(t, nil)
	rec = other.do(t, http.MethodPost, "/api/report-data/import", exported, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body %s", rec.Code, rec.Body)
	}
	got := decode[LoadResponse](t, rec)
	if len(got.Entries) != 1 || got.Entries[0].ID != "e1" || got.Draft.Title.Zh != "标" {
		t.Errorf("imported = %+v", got)
	}

	if rec := other.do(t, http.MethodPost, "/api/report-data/import", `{"aiContext": {}}`, true); rec.Code != http.StatusBadRequest {
		t.Errorf("wrong bundle: status = %d", rec.Code)
	}
}

func TestCurrentReportEdit(t *testing.T) {
	e := newTestEnv(t, nil)

	if rec := e.do(t, http.MethodGet, "/api/report", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("no report: status = %d", rec.Code)
	}

	edited := core.GeneratedReport{ReportDraft: core.ReportDraft{Title: core.BilingualText{En: "Edited", Zh: "编辑"}}}
	if rec := e.do(t, http.MethodPut, "/api/report", edited, true); rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d", rec.Code)
	}
	if got := e.sess.Report(); got == nil || got.Title.En != "Edited" {
		t.Errorf("report = %+v", got)
	}
}
