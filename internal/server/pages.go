package server

import (
	"bytes"
	"html/template"
	"net/http"
	"time"

	"tripreport/internal/core"
	"tripreport/internal/render"
)

const baseStyle = `
body { font-family: -apple-system, "PingFang SC", "Helvetica Neue", sans-serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; line-height: 1.6; color: #1f2933; }
img { max-width: 100%; border-radius: 8px; }
a { color: #2563eb; text-decoration: none; }
.card { display: block; border: 1px solid #e5e7eb; border-radius: 12px; padding: 1rem; margin-bottom: 1rem; color: inherit; }
.meta { color: #6b7280; font-size: 0.9rem; }
nav a { margin-right: 0.75rem; }
`

const galleryTemplate = `<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Reports</title>
<style>` + baseStyle + `</style>
</head>
<body>
<h1>Reports</h1>
{{if not .Reports}}<p class="meta">Nothing published yet.</p>{{end}}
{{range .Reports}}
<a class="card" href="/reports/{{.ID}}">
  {{if .CoverImage}}<img src="{{safeURL .CoverImage}}" alt="">{{end}}
  <h2>{{either .Title}}</h2>
  {{with either .Subtitle}}<p>{{.}}</p>{{end}}
  <p class="meta">{{if .AuthorName}}{{.AuthorName}} · {{end}}{{formatDate .PublishDate}}</p>
</a>
{{end}}
</body>
</html>`

const reportTemplate = `<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>` + baseStyle + `</style>
</head>
<body>
<nav><a href="/">←</a> <a href="?lang=zh">中文</a> <a href="?lang=en">English</a> <a href="?lang=both">双语</a></nav>
<article>{{.Body}}</article>
</body>
</html>`

type pageRenderer struct {
	gallery *template.Template
	report  *template.Template
}

func newPageRenderer() *pageRenderer {
	funcMap := template.FuncMap{
		"either":     func(b core.BilingualText) string { return b.Either() },
		"formatDate": formatDate,
		// Covers are data URLs produced by this service.
		"safeURL": func(s string) template.URL { return template.URL(s) },
	}
	return &pageRenderer{
		gallery: template.Must(template.New("gallery").Funcs(funcMap).Parse(galleryTemplate)),
		report:  template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplate)),
	}
}

func formatDate(millis int64) string {
	if millis <= 0 {
		return ""
	}
	return time.UnixMilli(millis).UTC().Format("January 2, 2006")
}

func (s *Server) renderPage(w http.ResponseWriter, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		s.log.Error("Failed to render page", "error", err, "template", t.Name())
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleGalleryPage handles GET /
func (s *Server) handleGalleryPage(w http.ResponseWriter, r *http.Request) {
	reports, err := s.store.LoadAll(r.Context())
	if err != nil {
		s.log.Error("Failed to list reports", "error", err)
		http.Error(w, "Failed to retrieve reports", http.StatusInternalServerError)
		return
	}
	s.renderPage(w, s.pages.gallery, map[string]any{"Reports": reports})
}

// handleReportPage handles GET /reports/{id}?lang=en|zh|both
func (s *Server) handleReportPage(w http.ResponseWriter, r *http.Request) {
	p, ok := s.loadReport(w, r)
	if !ok {
		return
	}

	lang := core.Both
	if q := r.URL.Query().Get("lang"); q != "" {
		parsed, err := core.ParseLanguage(q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lang = parsed
	}

	md := render.Published(*p, render.Options{Language: lang, Images: true})
	htmlLang := "zh"
	if lang == core.English {
		htmlLang = "en"
	}
	title := p.Title.Get(lang)
	if title == "" {
		title = p.Title.Either()
	}

	s.renderPage(w, s.pages.report, map[string]any{
		"Lang":  htmlLang,
		"Title": title,
		"Body":  template.HTML(render.HTML(md)),
	})
}
