package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"civic-issues/models"

	"github.com/go-playground/validator/v10"
	"github.com/go-resty/resty/v2"
)

type GeminiConfig struct {
	APIKey  string `validate:"required"`
	Model   string `validate:"required"`
	BaseURL string `validate:"required,url"`
}

func (c *GeminiConfig) Validate() error {
	return validator.New().Struct(c)
}

// GeminiService calls the generateContent endpoint of the Gemini API.
type GeminiService struct {
	client *resty.Client
	model  string
}

func NewGeminiService(config GeminiConfig) (*GeminiService, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", config.APIKey)

	return &GeminiService{client: client, model: config.Model}, nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

const classifyPrompt = `You are an AI assistant helping to assess civic issue reports. The user has already categorized the issue. Based on the description, location, category, and photo provided, determine the severity of the issue as one of "low", "medium" or "high". Also provide a two-word "imageHint" that describes the main subject of the photo.

Category: %s
Description: %s
Location: %s

Respond with JSON only: {"severity": "...", "imageHint": "..."}`

func (s *GeminiService) Classify(ctx context.Context, req Request) (Result, error) {
	parts := []geminiPart{{
		Text: fmt.Sprintf(classifyPrompt, req.Category, req.Description, req.Location),
	}}
	if mimeType, data, ok := parseDataURI(req.MediaPayload); ok {
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mimeType, Data: data}})
	}

	text, err := s.generate(ctx, geminiRequest{
		Contents:         []geminiContent{{Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return Result{}, err
	}

	var answer struct {
		Severity  string `json:"severity"`
		ImageHint string `json:"imageHint"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &answer); err != nil {
		return Result{}, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return Result{Severity: models.Severity(answer.Severity), Hint: answer.ImageHint}, nil
}

const summarizePrompt = "Summarize the following issue report details in a concise manner:\n\n%s"

func (s *GeminiService) Summarize(ctx context.Context, details string) (string, error) {
	text, err := s.generate(ctx, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(summarizePrompt, details)}}}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *GeminiService) generate(ctx context.Context, body geminiRequest) (string, error) {
	var out geminiResponse

	resp, err := s.client.R().
		SetContext(ctx).
		SetPathParam("model", s.model).
		SetBody(body).
		SetResult(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("s.client.Post: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("gemini: unexpected status %d", resp.StatusCode())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
