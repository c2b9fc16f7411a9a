package llm

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model for text and JSON generation.
	DefaultModel = "gemini-2.5-flash"
	// DefaultImageModel is the default Gemini model for image generation.
	DefaultImageModel = "gemini-2.5-flash-image"
)

// GeminiClient talks to the Gemini API through the genai SDK.
type GeminiClient struct {
	gClient     *genai.Client
	modelName   string
	imageModel  string
	temperature float32
	timeout     time.Duration
}

// GeminiOptions configures a GeminiClient.
type GeminiOptions struct {
	APIKey      string
	Model       string
	ImageModel  string
	Temperature float32
	Timeout     time.Duration
}

// NewGeminiClient creates a Gemini backed Generator.
func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file.\nGet your API key from: https://aistudio.google.com/app/apikey")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.ImageModel == "" {
		opts.ImageModel = DefaultImageModel
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		gClient:     gClient,
		modelName:   opts.Model,
		imageModel:  opts.ImageModel,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}, nil
}

// Model returns the text model name.
func (c *GeminiClient) Model() string {
	return c.modelName
}

// Generate sends one request to Gemini.
func (c *GeminiClient) Generate(ctx context.Context, req Request) (Response, error) {
	if req.Prompt == "" && len(req.Images) == 0 {
		return Response{}, fmt.Errorf("prompt cannot be empty")
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}})
	}
	if req.Prompt != "" {
		parts = append(parts, &genai.Part{Text: req.Prompt})
	}
	contents := []*genai.Content{{Parts: parts, Role: "user"}}

	modelName := c.modelName
	config := &genai.GenerateContentConfig{}
	if temp := req.Temperature; temp > 0 {
		config.Temperature = &temp
	} else if c.temperature > 0 {
		temp := c.temperature
		config.Temperature = &temp
	}
	if req.JSON {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}
	if req.WebSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	if req.WantImage {
		modelName = c.imageModel
		config.ResponseModalities = []string{"IMAGE", "TEXT"}
	}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("failed to generate content: %w", err)
	}

	out := Response{Text: resp.Text()}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				out.Images = append(out.Images, Image{MIMEType: part.InlineData.MIMEType, Data: part.InlineData.Data})
			}
		}
		break
	}

	return out, nil
}
