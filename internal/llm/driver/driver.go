package driver

import (
	"context"

	"github.com/storyloom/storyloom/internal/llm/content"
)

// Driver defines the interface for LLM completion providers.
type Driver interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *Request) (*Response, error)
	// Name returns the driver identifier (e.g., "openrouter").
	Name() string
	// Capabilities returns what this driver supports.
	Capabilities() Capabilities
}

// ImageDriver is implemented by drivers that can render binary results.
type ImageDriver interface {
	// Render generates an image from a prompt.
	Render(ctx context.Context, req *ImageRequest) (*ImageResponse, error)
}

// Capabilities describes driver features.
type Capabilities struct {
	SupportsImages    bool
	SupportsStreaming bool
	SupportedModels   []string
}

// ResponseFormat specifies the expected response format.
type ResponseFormat struct {
	Type string `json:"type"` // "text", "json_object"
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model          string
	Messages       []content.Message
	ResponseFormat *ResponseFormat
	Temperature    *float64
	MaxTokens      *int
	PromptSlug     string
	Metadata       map[string]string
}

// Response is a provider-agnostic completion response.
type Response struct {
	Content      []content.ContentBlock
	FinishReason string
	Usage        *Usage
}

// ImageRequest is a provider-agnostic image generation request.
type ImageRequest struct {
	Model  string
	Prompt string
	Count  int
}

// ImageResponse carries generated images as binary content blocks.
type ImageResponse struct {
	Created int64
	Images  []content.ContentBlock
}
