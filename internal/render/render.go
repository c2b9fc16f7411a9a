// Package render turns reports into markdown and HTML.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"tripreport/internal/core"
)

// Options controls what the markdown output includes.
type Options struct {
	Language core.Language // en, zh or both
	Images   bool          // Embed cover and highlight images as data URL images
}

// texts returns the pieces of b to show for lang. Both shows Chinese first,
// then English when it differs.
func texts(b core.BilingualText, lang core.Language) []string {
	if lang != core.Both {
		if t := strings.TrimSpace(b.Get(lang)); t != "" {
			return []string{t}
		}
		return nil
	}
	var out []string
	if t := strings.TrimSpace(b.Zh); t != "" {
		out = append(out, t)
	}
	if t := strings.TrimSpace(b.En); t != "" && t != strings.TrimSpace(b.Zh) {
		out = append(out, t)
	}
	return out
}

func inline(b core.BilingualText, lang core.Language) string {
	return strings.Join(texts(b, lang), " / ")
}

func block(b core.BilingualText, lang core.Language) string {
	return strings.Join(texts(b, lang), "\n\n")
}

func heading(lang core.Language, en, zh string) string {
	switch lang {
	case core.English:
		return en
	case core.Chinese:
		return zh
	}
	return zh + " / " + en
}

// Markdown renders a generated report.
func Markdown(r core.GeneratedReport, opts Options) string {
	var sb strings.Builder
	writeReport(&sb, r, opts)
	return sb.String()
}

// Published renders a published report with its byline, date and cover.
func Published(p core.PublishedReport, opts Options) string {
	var sb strings.Builder

	if opts.Images && p.CoverImage != "" {
		sb.WriteString(fmt.Sprintf("![cover](%s)\n\n", p.CoverImage))
	}
	writeReport(&sb, p.GeneratedReport, opts)

	var meta []string
	if p.AuthorName != "" {
		author := p.AuthorName
		if p.AuthorRole != "" {
			author += ", " + p.AuthorRole
		}
		meta = append(meta, author)
	}
	if p.PublishDate > 0 {
		meta = append(meta, time.UnixMilli(p.PublishDate).UTC().Format("2006-01-02"))
	}
	if len(meta) > 0 {
		sb.WriteString("---\n\n")
		sb.WriteString("*" + strings.Join(meta, " · ") + "*\n")
	}
	return sb.String()
}

func writeReport(sb *strings.Builder, r core.GeneratedReport, opts Options) {
	lang := opts.Language

	if t := inline(r.Title, lang); t != "" {
		sb.WriteString("# " + t + "\n\n")
	}
	if t := inline(r.Subtitle, lang); t != "" {
		sb.WriteString("*" + t + "*\n\n")
	}

	if t := block(r.ExecutiveSummary, lang); t != "" {
		sb.WriteString("## " + heading(lang, "Executive Summary", "执行摘要") + "\n\n")
		sb.WriteString(t + "\n\n")
	}

	var takeaways []string
	for _, k := range r.KeyTakeaways {
		if t := inline(k, lang); t != "" {
			takeaways = append(takeaways, t)
		}
	}
	if len(takeaways) > 0 {
		sb.WriteString("## " + heading(lang, "Key Takeaways", "核心要点") + "\n\n")
		for _, t := range takeaways {
			sb.WriteString("- " + t + "\n")
		}
		sb.WriteString("\n")
	}

	if len(r.Highlights) > 0 {
		sb.WriteString("## " + heading(lang, "Highlights", "精彩瞬间") + "\n\n")
		for i, h := range r.Highlights {
			title := inline(h.Title, lang)
			if title == "" {
				title = fmt.Sprintf("%d", i+1)
			}
			sb.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, title))
			if loc := inline(h.Location, lang); loc != "" {
				sb.WriteString("📍 " + loc + "\n\n")
			}
			if opts.Images {
				for _, img := range h.EmbeddedImages {
					sb.WriteString(fmt.Sprintf("![%s](%s)\n\n", title, img))
				}
			}
			if d := block(h.Description, lang); d != "" {
				sb.WriteString(d + "\n\n")
			}
		}
	}

	if t := block(r.Conclusion, lang); t != "" {
		sb.WriteString("## " + heading(lang, "Conclusion", "结语") + "\n\n")
		sb.WriteString(t + "\n\n")
	}
}

// HTML converts markdown to an HTML fragment. Raw HTML in the source is
// dropped and links open in a new tab.
func HTML(md string) string {
	if md == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank | html.SkipHTML,
	})
	return string(markdown.ToHTML([]byte(md), p, renderer))
}

// WriteFile writes content to outputDir/filename, creating the directory.
func WriteFile(content, outputDir, filename string) (string, error) {
	if outputDir == "" {
		outputDir = "reports"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	filePath := filepath.Join(outputDir, filename)
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write report file %s: %w", filePath, err)
	}
	return filePath, nil
}
