// Package compose implements the per-entry and settings assistants: URL
// analysis, context refinement, captions, PR copy, titles, section drafts and
// illustrative images.
package compose

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"tripreport/internal/core"
	"tripreport/internal/fetch"
	"tripreport/internal/llm"
	"tripreport/internal/logger"
	"tripreport/internal/prompts"
	"tripreport/internal/report"
)

// ErrNoImage is returned when the image model answers without a picture.
var ErrNoImage = errors.New("model returned no image")

// URLAnalysis is the structured extraction of a reference URL.
type URLAnalysis = prompts.URLAnalysisResult

// PageFetcher downloads reference pages.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Page, error)
}

// Composer runs the assistant operations against a model.
type Composer struct {
	gen         llm.Generator
	retry       llm.RetryPolicy
	fetcher     PageFetcher
	tracker     *Tracker
	concurrency int
}

// Options configures a Composer.
type Options struct {
	Fetcher     PageFetcher // Optional; URL analysis falls back to web search without it
	Concurrency int         // Batch fan-out limit, defaults to 3
}

// NewComposer creates a Composer.
func NewComposer(gen llm.Generator, retry llm.RetryPolicy, opts Options) *Composer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &Composer{
		gen:         gen,
		retry:       retry,
		fetcher:     opts.Fetcher,
		tracker:     NewTracker(),
		concurrency: opts.Concurrency,
	}
}

// Tracker returns the in-flight operation tracker.
func (c *Composer) Tracker() *Tracker {
	return c.tracker
}

func (c *Composer) text(ctx context.Context, req llm.Request) (string, error) {
	resp, err := llm.Call(ctx, c.gen, c.retry, req)
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", req.Operation, err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// AnalyzeURL extracts content, style, contexts and themes from a reference
// URL. An empty url yields a zero result without a model call. When the model
// does not answer in JSON, its whole answer becomes Content.
func (c *Composer) AnalyzeURL(ctx context.Context, url string, lang core.Language) (URLAnalysis, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return URLAnalysis{}, nil
	}

	var pageText string
	if c.fetcher != nil {
		page, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			logger.Warn("Reference page fetch failed, using web search", "url", url, "error", err.Error())
		} else {
			pageText = page.Text
			if page.Title != "" {
				pageText = page.Title + "\n\n" + pageText
			}
		}
	}

	text, err := c.text(ctx, prompts.URLAnalysis(url, pageText, lang))
	if err != nil {
		return URLAnalysis{}, err
	}
	if text == "" {
		return URLAnalysis{}, nil
	}

	var out URLAnalysis
	if err := llm.DecodeJSON(text, &out); err != nil {
		logger.Debug("URL analysis was not JSON, keeping raw text", "url", url, "error", err.Error())
		return URLAnalysis{Content: text}, nil
	}
	return out, nil
}

// MergeURLAnalysis returns settings with an analysis folded in. Suggested
// contexts are added once each, in first seen order.
func MergeURLAnalysis(settings core.ContextSettings, url string, a URLAnalysis) core.ContextSettings {
	out := settings.Clone()
	if url != "" {
		out.ReferenceURLs = append(out.ReferenceURLs, url)
	}
	if a.Content != "" {
		out.ReferenceContent = joinBlock(out.ReferenceContent, fmt.Sprintf("[Source: %s]\n%s", url, a.Content))
	}
	if a.Style != "" {
		out.ReferenceStyle = joinBlock(out.ReferenceStyle, a.Style)
	}

	seen := make(map[string]bool, len(out.EventContexts)+len(a.SuggestedContexts))
	contexts := make([]string, 0, len(out.EventContexts)+len(a.SuggestedContexts))
	for _, item := range slices.Concat(out.EventContexts, a.SuggestedContexts) {
		if seen[item] {
			continue
		}
		seen[item] = true
		contexts = append(contexts, item)
	}
	out.EventContexts = contexts

	if themes := strings.TrimSpace(a.SuggestedThemes); themes != "" {
		out.KeyThemes = strings.TrimSpace(out.KeyThemes + " " + themes)
	}
	return out
}

func joinBlock(existing, block string) string {
	if existing == "" {
		return block
	}
	return existing + "\n\n" + block
}

// RefineContexts asks for a cleaned up context list. An empty result means
// the caller should keep its current contexts.
func (c *Composer) RefineContexts(ctx context.Context, settings core.ContextSettings, lang core.Language) ([]string, error) {
	if len(settings.EventContexts) == 0 {
		return nil, nil
	}
	text, err := c.text(ctx, prompts.RefineContexts(settings, lang))
	if err != nil {
		return nil, err
	}

	var refined []string
	if err := llm.DecodeJSON(text, &refined); err != nil {
		return nil, &report.InvalidResponseError{Raw: text, Err: fmt.Errorf("decode contexts: %w", err)}
	}
	out := refined[:0]
	for _, r := range refined {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out, nil
}

// RefineThemes asks for a sharper key themes line.
func (c *Composer) RefineThemes(ctx context.Context, settings core.ContextSettings, lang core.Language) (string, error) {
	text, err := c.text(ctx, prompts.RefineThemes(settings, lang))
	if err != nil {
		return "", err
	}
	return trimQuotes(text), nil
}

// Caption describes the images of an entry. Images are data URLs or raw
// base64 (JPEG assumed). No images yields "" without a model call.
func (c *Composer) Caption(ctx context.Context, images []string, lang core.Language, settings core.ContextSettings) (string, error) {
	if len(images) == 0 {
		return "", nil
	}
	parsed := make([]llm.Image, 0, len(images))
	for i, img := range images {
		p, err := llm.ParseImage(img)
		if err != nil {
			return "", fmt.Errorf("image %d: %w", i, err)
		}
		parsed = append(parsed, p)
	}
	return c.text(ctx, prompts.Caption(parsed, lang, settings))
}

// PRCopy writes persuasive prose for one entry. It needs a note or a caption.
func (c *Composer) PRCopy(ctx context.Context, note, caption, title string, lang core.Language, settings core.ContextSettings) (string, error) {
	if strings.TrimSpace(note) == "" && strings.TrimSpace(caption) == "" {
		return "", report.ErrNoInput
	}
	return c.text(ctx, prompts.PRCopy(note, caption, title, lang, settings))
}

// EntryTitle writes a short headline for one entry.
func (c *Composer) EntryTitle(ctx context.Context, entry core.TripEntry, lang core.Language, settings core.ContextSettings) (string, error) {
	if strings.TrimSpace(entry.Note) == "" && entry.AICaption == "" && entry.AICopy == "" {
		return "", report.ErrNoInput
	}
	text, err := c.text(ctx, prompts.EntryTitle(entry, lang, settings))
	if err != nil {
		return "", err
	}
	return trimQuotes(firstLine(text)), nil
}

// Section drafts one draft section from entries and context.
func (c *Composer) Section(ctx context.Context, section prompts.Section, entries []core.TripEntry, lang core.Language, settings core.ContextSettings) (string, error) {
	if !report.HasInput(entries, settings) {
		return "", report.ErrNoInput
	}
	return c.text(ctx, prompts.SectionDraft(section, entries, lang.Primary(), settings))
}

// GenerateImage asks the image model for an event photo and returns it as a
// data URL. An empty description yields "" without a model call.
func (c *Composer) GenerateImage(ctx context.Context, description string, settings core.ContextSettings) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", nil
	}
	resp, err := llm.Call(ctx, c.gen, c.retry, prompts.EntryImage(description, settings))
	if err != nil {
		return "", fmt.Errorf("%s failed: %w", llm.OpEntryImage, err)
	}
	if len(resp.Images) == 0 {
		return "", ErrNoImage
	}
	img := resp.Images[0]
	if img.MIMEType == "" {
		img.MIMEType = "image/png"
	}
	return img.DataURL(), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"`, "'", "“", "「"} {
		s = strings.TrimPrefix(s, q)
	}
	for _, q := range []string{`"`, "'", "”", "」"} {
		s = strings.TrimSuffix(s, q)
	}
	return strings.TrimSpace(s)
}
