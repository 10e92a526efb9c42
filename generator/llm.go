package generator

import "context"

// LLMClient covers text and vision chat completions.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (Completion, error)
}

// ImageClient covers image generation and image edits.
type ImageClient interface {
	Generate(ctx context.Context, req ImageRequest) (Image, error)
	Edit(ctx context.Context, req ImageEditRequest) (Image, error)
}

// Provider is the remote AI service as a whole.
type Provider interface {
	LLMClient
	ImageClient
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
