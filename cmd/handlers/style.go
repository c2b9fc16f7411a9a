package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"tripreport/internal/core"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// summaryBox renders a short overview of a generated report.
func summaryBox(r core.GeneratedReport, lang core.Language) string {
	title := r.Title.Get(lang)
	if title == "" {
		title = r.Title.Either()
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	if sub := r.Subtitle.Get(lang); sub != "" {
		b.WriteString("\n" + subtleStyle.Render(sub))
	}
	b.WriteString(fmt.Sprintf("\n\n%d takeaways · %d highlights", len(r.KeyTakeaways), len(r.Highlights)))

	var missing []string
	for _, f := range []struct {
		name string
		text core.BilingualText
	}{
		{"title", r.Title},
		{"executiveSummary", r.ExecutiveSummary},
		{"conclusion", r.Conclusion},
	} {
		if f.text.En == "" || f.text.Zh == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		b.WriteString("\n" + warnStyle.Render("missing a translation: "+strings.Join(missing, ", ")))
	}
	return boxStyle.Render(b.String())
}

func formatDate(millis int64) string {
	return time.UnixMilli(millis).Local().Format("2006-01-02 15:04")
}
