package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"tripreport/internal/config"
	"tripreport/internal/core"
	"tripreport/internal/llm"
)

const reportAnswer = `{
	"title": {"en": "Expo Week", "zh": "展会周"},
	"subtitle": {"en": "Field notes", "zh": "现场笔记"},
	"executiveSummary": {"en": "A productive week.", "zh": "收获满满的一周。"},
	"keyTakeaways": [{"en": "Demand is real", "zh": "需求真实存在"}],
	"highlights": [{"title": {"en": "Booth", "zh": "展台"}, "description": {"en": "Busy booth.", "zh": "展台很忙。"}, "location": {"en": "Hall 1", "zh": "一号馆"}}],
	"conclusion": {"en": "Onwards.", "zh": "继续前进。"}
}`

const bundleWithEntry = `{
	"reportData": {
		"entries": [{"id": "e1", "note": "Our booth was packed", "images": ["data:image/png;base64,AAAA"], "timestamp": 1}],
		"settings": {"eventContexts": ["Expo 2025"]},
		"draft": {}
	}
}`

// fakeGenerator implements llm.Generator for testing
type fakeGenerator struct {
	mu        sync.Mutex
	text      string
	callCount int
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callCount++
	return llm.Response{Text: f.text}, nil
}

type cliEnv struct {
	dir     string
	cfgPath string
	gen     *fakeGenerator
}

func newCLIEnv(t *testing.T, answer string) *cliEnv {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)

	dir := t.TempDir()
	t.Chdir(dir)

	cfgPath := filepath.Join(dir, "config.yaml")
	content := "app:\n  data_dir: " + filepath.Join(dir, "data") + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	gen := &fakeGenerator{text: answer}
	orig := newGenerator
	newGenerator = func(ctx context.Context, cfg config.AI) (llm.Generator, error) { return gen, nil }
	t.Cleanup(func() { newGenerator = orig })

	return &cliEnv{dir: dir, cfgPath: cfgPath, gen: gen}
}

func (e *cliEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerate_Markdown(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", bundleWithEntry)

	out, err := e.run(t, "generate", "--bundle", bundle, "--lang", "en")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(out, "# Expo Week") || !strings.Contains(out, "### 1. Booth") {
		t.Errorf("unexpected markdown:\n%s", out)
	}
	if e.gen.callCount != 1 {
		t.Errorf("expected 1 model call, got %d", e.gen.callCount)
	}
}

func TestGenerate_JSONToFile(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", bundleWithEntry)
	outPath := filepath.Join(e.dir, "out", "report.json")

	if _, err := e.run(t, "generate", "-b", bundle, "--format", "json", "-o", outPath); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var r core.GeneratedReport
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if r.Title.Zh != "展会周" || len(r.Highlights) != 1 || r.Highlights[0].RelatedEntryID != "e1" {
		t.Errorf("report = %+v", r)
	}
}

func TestGenerate_SaveBundle(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", bundleWithEntry)

	if _, err := e.run(t, "generate", "-b", bundle, "--save-bundle"); err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	data, _ := os.ReadFile(bundle)
	if !strings.Contains(string(data), "展会周") {
		t.Errorf("bundle draft not updated:\n%s", data)
	}
}

func TestGenerate_NoInput(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", `{"reportData": {"entries": []}}`)

	_, err := e.run(t, "generate", "--bundle", bundle)
	if err == nil || !strings.Contains(err.Error(), "nothing to report") {
		t.Errorf("expected no-input error, got %v", err)
	}
	if e.gen.callCount != 0 {
		t.Errorf("expected no model call, got %d", e.gen.callCount)
	}
}

func TestGenerate_BadFlags(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", bundleWithEntry)

	for _, args := range [][]string{
		{"generate", "--bundle", bundle, "--mode", "poetry"},
		{"generate", "--bundle", bundle, "--lang", "fr"},
		{"generate", "--bundle", bundle, "--format", "pdf"},
		{"generate"},
	} {
		if _, err := e.run(t, args...); err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}

func TestPublishAndManageReports(t *testing.T) {
	e := newCLIEnv(t, reportAnswer)
	bundle := e.writeFile(t, "bundle.json", bundleWithEntry)

	out, err := e.run(t, "publish", "--bundle", bundle, "--lang", "en")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("expected the published id on stdout")
	}

	out, err = e.run(t, "reports", "list", "--lang", "en")
	if err != nil || !strings.Contains(out, id) || !strings.Contains(out, "Expo Week") {
		t.Errorf("list: %v\n%s", err, out)
	}

	out, err = e.run(t, "reports", "show", id, "--lang", "zh")
	if err != nil || !strings.Contains(out, "# 展会周") {
		t.Errorf("show: %v\n%s", err, out)
	}

	if _, err := e.run(t, "reports", "load", id); err == nil || !strings.Contains(err.Error(), "--yes") {
		t.Errorf("load without --yes: %v", err)
	}

	loaded := filepath.Join(e.dir, "loaded.json")
	if _, err := e.run(t, "reports", "load", id, "--yes", "-o", loaded); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	data, _ := os.ReadFile(loaded)
	if !strings.Contains(string(data), `"reportData"`) || !strings.Contains(string(data), `"e1"`) {
		t.Errorf("loaded bundle:\n%s", data)
	}

	if _, err := e.run(t, "reports", "delete", id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := e.run(t, "reports", "show", id); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("show deleted: %v", err)
	}
}

func TestSettingsImportExport(t *testing.T) {
	e := newCLIEnv(t, "")
	file := e.writeFile(t, "ai-context.json", `{"aiContext": {"persona": "Founder", "brandName": "Acme"}}`)

	if _, err := e.run(t, "settings", "import", file); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	out, err := e.run(t, "settings", "show")
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	var settings core.ContextSettings
	if err := json.Unmarshal([]byte(out), &settings); err != nil {
		t.Fatalf("decode settings: %v\n%s", err, out)
	}
	if settings.Persona != "Founder" || settings.BrandName != "Acme" {
		t.Errorf("settings = %+v", settings)
	}
	// Tone comes from the configured defaults and survives the merge.
	if settings.Tone == "" {
		t.Error("expected default tone to be kept")
	}

	out, err = e.run(t, "settings", "export")
	if err != nil || !strings.Contains(out, `"aiContext"`) || !strings.Contains(out, "Founder") {
		t.Errorf("export: %v\n%s", err, out)
	}

	bad := e.writeFile(t, "bad.json", `{"nothing": true}`)
	if _, err := e.run(t, "settings", "import", bad); err == nil {
		t.Error("expected error for a file without aiContext")
	}
}

func TestAnalyzeURL_DryRun(t *testing.T) {
	e := newCLIEnv(t, `{"content": "Facts", "style": "Crisp", "suggestedContexts": ["Expo"], "suggestedThemes": "AI"}`)

	// The fetcher cannot reach this host; analysis falls back to web search.
	out, err := e.run(t, "analyze-url", "http://127.0.0.1:1/event", "--dry-run")
	if err != nil {
		t.Fatalf("analyze-url failed: %v", err)
	}
	if !strings.Contains(out, `"content": "Facts"`) {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, _ = e.run(t, "settings", "show")
	if strings.Contains(out, "Facts") {
		t.Error("dry run must not save settings")
	}
}
