package persona

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"persona_ad_studio/generator"
	"persona_ad_studio/render"
)

var ErrNoDescription = errors.New("product description is required")

const (
	analysisCacheTTL     = 30 * time.Minute
	analysisCacheCleanup = time.Hour

	personaMaxTokens = 500
	rewriteMaxTokens = 200
	textTemperature  = 0.7
)

type PipelineOptions struct {
	AnalysisModel string
	TextModel     string
	// Cache holds ad analyses keyed by image hash. Nil creates a private one.
	Cache  *cache.Cache
	Logger *slog.Logger
}

// Pipeline analyses an ad once, then tailors every copy element to each
// persona in parallel.
type Pipeline struct {
	llm   generator.LLMClient
	opts  PipelineOptions
	cache *cache.Cache
	log   *slog.Logger
}

// CopyRequest is one copy-variation run.
type CopyRequest struct {
	Personas           []Persona
	ProductDescription string
	AdImage            generator.Image
}

// CopyResult keeps Results in the order of the requested personas.
type CopyResult struct {
	Analysis AdAnalysis
	Results  []Variation
}

func NewPipeline(llm generator.LLMClient, opts PipelineOptions) (*Pipeline, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	c := opts.Cache
	if c == nil {
		c = cache.New(analysisCacheTTL, analysisCacheCleanup)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{llm: llm, opts: opts, cache: c, log: logger}, nil
}

// Run validates the request before any provider call. A failed rewrite
// fails the whole run.
func (p *Pipeline) Run(ctx context.Context, req CopyRequest) (*CopyResult, error) {
	if len(req.AdImage.Data) == 0 {
		return nil, ErrNoAdImage
	}
	if err := ValidatePersonas(req.Personas, nil); err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(req.ProductDescription)
	if desc == "" {
		return nil, ErrNoDescription
	}

	analysis, err := p.AnalyzeAd(ctx, req.AdImage)
	if err != nil {
		return nil, err
	}

	results := make([]Variation, len(req.Personas))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, persona := range req.Personas {
		i, persona := i, persona
		eg.Go(func() error {
			logger := p.log.With("persona_id", persona.ID)
			text, err := p.AnalyzePersona(egCtx, persona, desc)
			if err != nil {
				return fmt.Errorf("persona %s analysis: %w", persona.ID, err)
			}
			rewrites, err := p.rewriteElements(egCtx, analysis.Elements, desc, text)
			if err != nil {
				return fmt.Errorf("persona %s rewrite: %w", persona.ID, err)
			}
			html, err := render.Markdown(text)
			if err != nil {
				logger.Warn("render analysis failed", "err", err)
			}
			results[i] = Variation{
				Persona:      persona,
				Analysis:     text,
				AnalysisHTML: html,
				Variations:   rewrites,
			}
			logger.Info("persona variations completed", "elements", len(rewrites))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &CopyResult{Analysis: analysis, Results: results}, nil
}

// AnalyzeAd extracts the copy elements of an ad image. Results are cached by
// image content.
func (p *Pipeline) AnalyzeAd(ctx context.Context, img generator.Image) (AdAnalysis, error) {
	if len(img.Data) == 0 {
		return AdAnalysis{}, ErrNoAdImage
	}
	sum := sha256.Sum256(img.Data)
	key := hex.EncodeToString(sum[:])
	if cached, ok := p.cache.Get(key); ok {
		p.log.Debug("ad analysis cache hit", "key", key[:12])
		return cached.(AdAnalysis), nil
	}

	resp, err := p.llm.Complete(ctx, generator.Prompt{
		Model: p.opts.AnalysisModel,
		User:  adAnalysisInstruction,
		Images: []generator.ImageInput{{
			Data:     img.Data,
			MimeType: img.MimeType,
			Detail:   "high",
		}},
		Schema: &generator.JSONSchema{Name: "adAnalysis", Schema: adAnalysisSchema},
	})
	if err != nil {
		return AdAnalysis{}, fmt.Errorf("ad analysis: %w", err)
	}
	analysis, err := ParseAdAnalysis(resp.Text)
	if err != nil {
		return AdAnalysis{}, err
	}
	p.cache.SetDefault(key, analysis)
	p.log.Info("ad analysed", "elements", len(analysis.Elements))
	return analysis, nil
}

// ParseAdAnalysis validates structured output and assigns element IDs
// element_1..element_K in extraction order.
func ParseAdAnalysis(raw string) (AdAnalysis, error) {
	raw = strings.TrimSpace(raw)
	if !gjson.Valid(raw) {
		return AdAnalysis{}, fmt.Errorf("%w: response is not valid JSON", ErrAnalysisInvalid)
	}
	doc := gjson.Parse(raw)
	if doc.Get("overallBlurb").Type != gjson.String {
		return AdAnalysis{}, fmt.Errorf("%w: overallBlurb missing", ErrAnalysisInvalid)
	}
	elements := doc.Get("elements")
	if !elements.IsArray() {
		return AdAnalysis{}, fmt.Errorf("%w: elements is not an array", ErrAnalysisInvalid)
	}
	var bad error
	elements.ForEach(func(idx, el gjson.Result) bool {
		for _, field := range []string{"text", "type", "whyItWorks"} {
			if el.Get(field).Type != gjson.String {
				bad = fmt.Errorf("%w: element %d has no %s", ErrAnalysisInvalid, idx.Int()+1, field)
				return false
			}
		}
		return true
	})
	if bad != nil {
		return AdAnalysis{}, bad
	}

	var analysis AdAnalysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return AdAnalysis{}, fmt.Errorf("%w: %v", ErrAnalysisInvalid, err)
	}
	for i := range analysis.Elements {
		analysis.Elements[i].ID = fmt.Sprintf("element_%d", i+1)
	}
	return analysis, nil
}

// AnalyzePersona describes how the product resonates with one persona.
func (p *Pipeline) AnalyzePersona(ctx context.Context, persona Persona, productDescription string) (string, error) {
	resp, err := p.llm.Complete(ctx, generator.Prompt{
		Model:       p.opts.TextModel,
		User:        buildPersonaAnalysisPrompt(persona, productDescription),
		Temperature: textTemperature,
		MaxTokens:   personaMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (p *Pipeline) rewriteElements(ctx context.Context, elements []AdElement, desc, analysis string) ([]ElementVariation, error) {
	out := make([]ElementVariation, len(elements))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, el := range elements {
		i, el := i, el
		eg.Go(func() error {
			resp, err := p.llm.Complete(egCtx, generator.Prompt{
				Model:       p.opts.TextModel,
				User:        buildRewritePrompt(el, desc, analysis),
				Temperature: textTemperature,
				MaxTokens:   rewriteMaxTokens,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", el.ID, err)
			}
			out[i] = ElementVariation{
				ID:     el.ID,
				Type:   el.Type,
				Before: el.Text,
				After:  generator.CleanRewrite(resp.Text),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
