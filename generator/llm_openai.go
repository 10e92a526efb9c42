package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider implements Provider using the official openai-go SDK
// (chat completions, vision input, images generate/edit).
type OpenAIProvider struct {
	Model  string
	client openai.Client
}

func NewOpenAIProviderFromConfig(cfg *LLMSettings, httpClient *http.Client) (*OpenAIProvider, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAIProvider{Model: cfg.Model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAIProvider) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if prompt.System != "" {
		msgs = append(msgs, openai.SystemMessage(prompt.System))
	}
	if len(prompt.Images) == 0 {
		msgs = append(msgs, openai.UserMessage(prompt.User))
	} else {
		parts := []openai.ChatCompletionContentPartUnionParam{openai.TextContentPart(prompt.User)}
		for _, img := range prompt.Images {
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL:    DataURL(img.MimeType, img.Data),
				Detail: img.Detail,
			}))
		}
		msgs = append(msgs, openai.UserMessage(parts))
	}

	model := prompt.Model
	if model == "" {
		model = o.Model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(prompt.MaxTokens)
	}
	if prompt.Temperature > 0 {
		params.Temperature = openai.Float(prompt.Temperature)
	}
	if prompt.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   prompt.Schema.Name,
					Strict: openai.Bool(true),
					Schema: prompt.Schema.Schema,
				},
			},
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, errors.New("openai: empty choices")
	}
	return Completion{
		Text: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (o *OpenAIProvider) Generate(ctx context.Context, req ImageRequest) (Image, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:  req.Prompt,
		Model:   openai.ImageModel(req.Model),
		N:       openai.Int(1),
		Size:    openai.ImageGenerateParamsSize(req.Size),
		Quality: openai.ImageGenerateParamsQuality(req.Quality),
	})
	if err != nil {
		return Image{}, fmt.Errorf("openai image generate: %w", err)
	}
	return firstImage(resp)
}

func (o *OpenAIProvider) Edit(ctx context.Context, req ImageEditRequest) (Image, error) {
	if len(req.Image) == 0 {
		return Image{}, errors.New("openai image edit: source image is empty")
	}
	mime := req.MimeType
	if mime == "" {
		mime = "image/png"
	}
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(req.Image), "image.png", mime),
		},
		Prompt:  req.Prompt,
		Model:   openai.ImageModel(req.Model),
		N:       openai.Int(1),
		Size:    openai.ImageEditParamsSize(req.Size),
		Quality: openai.ImageEditParamsQuality(req.Quality),
	})
	if err != nil {
		return Image{}, fmt.Errorf("openai image edit: %w", err)
	}
	return firstImage(resp)
}

func firstImage(resp *openai.ImagesResponse) (Image, error) {
	if resp == nil || len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return Image{}, errors.New("openai: no image data in response")
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return Image{}, fmt.Errorf("openai: decode image: %w", err)
	}
	return Image{Data: data, MimeType: "image/png"}, nil
}
