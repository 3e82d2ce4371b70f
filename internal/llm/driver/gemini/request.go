package gemini

import (
	"fmt"
	"strings"

	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/driver"
)

type generateContentRequest struct {
	SystemInstruction *contentPart      `json:"systemInstruction,omitempty"`
	Contents          []contentPart     `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type contentPart struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  *int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string   `json:"responseMimeType,omitempty"`
}

func buildGenerateRequest(req *driver.Request) (*generateContentRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	payload := &generateContentRequest{}

	for _, msg := range req.Messages {
		parts, err := convertParts(msg.Content)
		if err != nil {
			return nil, err
		}

		// Gemini carries the system prompt out of band.
		if msg.Role == "system" {
			payload.SystemInstruction = &contentPart{Parts: parts}
			continue
		}

		role := msg.Role
		if role == "assistant" {
			role = "model"
		}
		payload.Contents = append(payload.Contents, contentPart{Role: role, Parts: parts})
	}

	if len(payload.Contents) == 0 {
		return nil, fmt.Errorf("at least one non-system message is required")
	}

	if req.Temperature != nil || req.MaxTokens != nil || req.ResponseFormat != nil {
		cfg := &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		}
		if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
			cfg.ResponseMimeType = "application/json"
		}
		payload.GenerationConfig = cfg
	}

	return payload, nil
}

func convertParts(blocks []content.ContentBlock) ([]part, error) {
	parts := make([]part, 0, len(blocks))
	for _, block := range blocks {
		if block.Type != content.ContentTypeText {
			return nil, fmt.Errorf("unsupported content type: %s", block.Type)
		}
		parts = append(parts, part{Text: block.Text})
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("message has no content")
	}
	return parts, nil
}
