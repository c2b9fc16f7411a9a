// Package fetch downloads reference pages and extracts their readable text.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultMaxChars bounds the extracted text handed to the model.
	DefaultMaxChars = 12000
	maxBodyBytes    = 5 << 20
	userAgent       = "tripreport/1.0 (+reference fetcher)"
)

// Page is the readable content of one fetched URL.
type Page struct {
	URL   string
	Title string
	Text  string
}

// Fetcher downloads pages over HTTP.
type Fetcher struct {
	Client   *http.Client
	MaxChars int
}

// NewFetcher returns a Fetcher with a bounded timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxChars: DefaultMaxChars,
	}
}

// Fetch downloads url and extracts its title and main text.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch URL %s: status code %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}

	page, err := Parse(string(body))
	if err != nil {
		return nil, err
	}
	page.URL = url
	if f.MaxChars > 0 {
		page.Text = truncate(page.Text, f.MaxChars)
	}
	return page, nil
}

var mainContentSelectors = []string{
	"article", "main", ".main-content", ".entry-content", ".post-content", ".post-body", ".article-body",
	"[role='main']",
	".content", "#content",
}

var blankLines = regexp.MustCompile(`(\n\s*){2,}`)

// Parse extracts the title and main text of an HTML document.
func Parse(html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	page := &Page{Title: extractTitle(doc)}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript, .sidebar, #sidebar, .ad, .advertisement, .popup, .modal, .cookie-banner").Remove()

	var text strings.Builder
	collect := func(s *goquery.Selection) {
		s.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
			if t := strings.TrimSpace(item.Text()); t != "" {
				text.WriteString(t)
				text.WriteString("\n\n")
			}
		})
	}

	for _, selector := range mainContentSelectors {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) { collect(s) })
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		collect(doc.Find("body"))
	}
	if text.Len() == 0 {
		text.WriteString(strings.TrimSpace(doc.Find("body").Text()))
	}

	page.Text = strings.TrimSpace(blankLines.ReplaceAllString(text.String(), "\n"))
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("head title").First().Text()); title != "" {
		return title
	}
	if og, _ := doc.Find("meta[property='og:title']").Attr("content"); strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
