package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/storyloom/storyloom/internal/llm/content"
	"github.com/storyloom/storyloom/internal/llm/driver"
	"github.com/storyloom/storyloom/internal/llm/encode"
)

type imagePredictRequest struct {
	Instances  []imageInstance  `json:"instances"`
	Parameters *imageParameters `json:"parameters,omitempty"`
}

type imageInstance struct {
	Prompt string `json:"prompt"`
}

type imageParameters struct {
	SampleCount int `json:"sampleCount,omitempty"`
}

type imagePredictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
		MimeType           string `json:"mimeType,omitempty"`
	} `json:"predictions"`
}

// Render generates images through the predict endpoint.
func (c *Client) Render(ctx context.Context, req *driver.ImageRequest) (*driver.ImageResponse, error) {
	if c == nil {
		return nil, fmt.Errorf("gemini client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}
	if count > 4 {
		return nil, fmt.Errorf("count must be between 1 and 4")
	}

	model := normalizeModel(req.Model)
	if model == "" {
		model = "imagen-3.0-generate-002"
	}

	payload := imagePredictRequest{
		Instances:  []imageInstance{{Prompt: req.Prompt}},
		Parameters: &imageParameters{SampleCount: count},
	}

	url := fmt.Sprintf("%s/models/%s:predict", strings.TrimRight(c.BaseURL, "/"), model)

	respBody, status, err := c.post(ctx, url, model, payload)
	if err != nil {
		return nil, err
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &driver.ProviderError{Provider: "gemini", StatusCode: status, Message: strings.TrimSpace(string(respBody)), RawResponse: respBody}
	}

	var parsed imagePredictResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	blocks := make([]content.ContentBlock, 0, len(parsed.Predictions))
	for _, item := range parsed.Predictions {
		b64 := strings.TrimSpace(item.BytesBase64Encoded)
		if b64 == "" {
			continue
		}
		decoded, err := encode.DecodeBase64String(b64)
		if err != nil {
			return nil, fmt.Errorf("decode image data: %w", err)
		}
		blocks = append(blocks, content.ContentBlock{Type: content.ContentTypePNG, Data: decoded})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("response contained no image data")
	}

	return &driver.ImageResponse{Created: time.Now().Unix(), Images: blocks}, nil
}
