package generator

import "time"

// Prompt is a single chat completion request. Images turn it into a vision call.
type Prompt struct {
	Model       string
	System      string
	User        string
	Images      []ImageInput
	MaxTokens   int64
	Temperature float64
	// Schema requests structured JSON output when set.
	Schema *JSONSchema
}

// ImageInput is an image attached to a prompt.
type ImageInput struct {
	Data     []byte
	MimeType string
	// Detail is "low", "high" or empty for the provider default.
	Detail string
}

// JSONSchema names a response schema for structured output.
type JSONSchema struct {
	Name   string
	Schema map[string]any
}

// Usage is the token accounting of one completion.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
}

// Completion is the text answer of a chat completion.
type Completion struct {
	Text  string
	Usage Usage
}

type ImageRequest struct {
	Model   string
	Prompt  string
	Size    string
	Quality string
}

type ImageEditRequest struct {
	Model    string
	Prompt   string
	Size     string
	Quality  string
	Image    []byte
	MimeType string
}

// Image is a decoded image returned by the provider.
type Image struct {
	Data     []byte
	MimeType string
}

// GenerationAttempt is one generate-or-edit plus evaluate round.
// Attempts are recorded once and never modified afterwards.
type GenerationAttempt struct {
	Step       int
	Image      Image
	Feedback   string
	Approved   bool
	RecordedAt time.Time
}
