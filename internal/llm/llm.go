package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Operation names label every model call in logs and metrics.
const (
	OpURLAnalysis     = "url_analysis"
	OpRefineContexts  = "refine_contexts"
	OpRefineThemes    = "refine_themes"
	OpCaption         = "entry_caption"
	OpPRCopy          = "entry_pr_copy"
	OpEntryTitle      = "entry_title"
	OpSectionDraft    = "section_draft"
	OpEntryImage      = "entry_image"
	OpCreativeReport  = "creative_report"
	OpTranslateReport = "translate_report"
)

// Image is an inline image attachment or a generated image.
type Image struct {
	MIMEType string
	Data     []byte
}

// DataURL encodes the image as a data URL.
func (i Image) DataURL() string {
	mime := i.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// ParseImage decodes a data URL ("data:image/png;base64,....") or a bare
// base64 payload, which is assumed to be JPEG.
func ParseImage(s string) (Image, error) {
	mime := "image/jpeg"
	payload := strings.TrimSpace(s)
	if strings.HasPrefix(payload, "data:") {
		header, data, ok := strings.Cut(payload, ",")
		if !ok {
			return Image{}, fmt.Errorf("malformed data URL")
		}
		header = strings.TrimPrefix(header, "data:")
		if !strings.HasSuffix(header, ";base64") {
			return Image{}, fmt.Errorf("data URL is not base64 encoded")
		}
		if m := strings.TrimSuffix(header, ";base64"); m != "" {
			mime = m
		}
		payload = data
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// Request is one prompt sent to the model.
type Request struct {
	Operation   string        // One of the Op* constants
	Prompt      string        // Instruction text
	Images      []Image       // Optional attachments, sent before the text
	JSON        bool          // Ask for a JSON response
	Schema      *genai.Schema // Optional structured output schema (requires JSON)
	WebSearch   bool          // Allow the model to ground the answer with web search
	WantImage   bool          // Ask the image model for a picture
	Temperature float32       // Zero keeps the provider default
}

// Response is the model output.
type Response struct {
	Text   string
	Images []Image
}

// Generator is implemented by every model provider.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// CleanJSON strips the code fence markers models like to wrap JSON in.
func CleanJSON(text string) string {
	clean := strings.TrimSpace(text)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```JSON")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	}
	return strings.TrimSpace(clean)
}

// DecodeJSON strips code fences from text and unmarshals it into v.
func DecodeJSON(text string, v any) error {
	clean := CleanJSON(text)
	if clean == "" {
		return fmt.Errorf("empty JSON document")
	}
	return json.Unmarshal([]byte(clean), v)
}
