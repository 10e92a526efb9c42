package generator

import (
	"bytes"
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
)

// MockProvider 一个简单的占位实现，便于本地调试，不调用外部模型。
// The first evaluation asks for a fix, later ones approve, so a local run
// walks through one improve cycle.
type MockProvider struct {
	evaluations atomic.Int64
}

const mockAnalysisJSON = `{"overallBlurb":"Clear promise, bold visual hierarchy and a single call to action.",` +
	`"elements":[` +
	`{"text":"Work smarter, not longer","type":"Headline","whyItWorks":"Short benefit-led promise that names the outcome."},` +
	`{"text":"Try it free for 14 days","type":"CTA","whyItWorks":"Low-risk offer with a concrete time frame."}]}`

func (m *MockProvider) Complete(_ context.Context, prompt Prompt) (Completion, error) {
	usage := Usage{PromptTokens: int64(len(prompt.User) / 4), CompletionTokens: 40}
	switch {
	case prompt.Schema != nil:
		return Completion{Text: mockAnalysisJSON, Usage: usage}, nil
	case prompt.User == imageEvaluationInstruction:
		if m.evaluations.Add(1) == 1 {
			return Completion{Text: "The headline text is slightly cut off at the top edge. Move it down so it is fully in frame.", Usage: usage}, nil
		}
		return Completion{Text: "APPROVED", Usage: usage}, nil
	case strings.HasPrefix(prompt.User, "You are an expert marketer."):
		return Completion{Text: `"Ship faster with fewer distractions"`, Usage: usage}, nil
	}
	var sb strings.Builder
	sb.WriteString("1. **Focus**: fewer interruptions during deep work.\n")
	sb.WriteString("2. **Speed**: results in minutes, not hours.\n")
	sb.WriteString("3. **Trust**: proven by teams like theirs.\n")
	return Completion{Text: sb.String(), Usage: usage}, nil
}

func (m *MockProvider) Generate(_ context.Context, req ImageRequest) (Image, error) {
	return mockImage(req.Prompt)
}

func (m *MockProvider) Edit(_ context.Context, req ImageEditRequest) (Image, error) {
	return mockImage(req.Prompt)
}

// mockImage renders a small solid PNG whose colour depends on the prompt.
func mockImage(prompt string) (Image, error) {
	h := fnv.New32a()
	h.Write([]byte(prompt))
	sum := h.Sum32()
	c := color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 0xff}

	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Image{}, err
	}
	return Image{Data: buf.Bytes(), MimeType: "image/png"}, nil
}
