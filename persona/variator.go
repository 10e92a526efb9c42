package persona

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"persona_ad_studio/generator"
)

const (
	MaxVisualPersonas  = 3
	visualEditParallel = 3
)

type VariatorOptions struct {
	ImageModel     string
	Size           string
	DefaultQuality string
	CostPerEdit    float64
	Logger         *slog.Logger
}

// Variator produces one persona-adapted edit of an approved image per
// persona. A failed edit never affects the other personas.
type Variator struct {
	images generator.ImageClient
	opts   VariatorOptions
	log    *slog.Logger
}

// VisualRequest carries the approved image both decoded and as sent by the
// client, so failures can hand back the original unchanged.
type VisualRequest struct {
	Image         generator.Image
	OriginalImage string
	Prompt        string
	Personas      []Persona
	Quality       string
}

type VisualVariation struct {
	PersonaID   string `json:"personaId"`
	PersonaName string `json:"personaName"`
	Image       string `json:"image"`
	Error       string `json:"error,omitempty"`
}

type VisualResult struct {
	Variations []VisualVariation
	Cost       float64
}

func NewVariator(images generator.ImageClient, opts VariatorOptions) (*Variator, error) {
	if images == nil {
		return nil, errors.New("image client is required")
	}
	if opts.Size == "" {
		opts.Size = "1024x1024"
	}
	if opts.DefaultQuality == "" {
		opts.DefaultQuality = "medium"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Variator{images: images, opts: opts, log: logger}, nil
}

// Run edits the image for at most MaxVisualPersonas personas. Only
// successful edits are charged.
func (v *Variator) Run(ctx context.Context, req VisualRequest) (*VisualResult, error) {
	if len(req.Image.Data) == 0 {
		return nil, errors.New("original image is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, generator.ErrEmptyPrompt
	}
	personas := req.Personas
	if len(personas) > MaxVisualPersonas {
		personas = personas[:MaxVisualPersonas]
	}
	if err := ValidatePersonas(personas, nil); err != nil {
		return nil, err
	}
	quality := req.Quality
	if quality == "" {
		quality = v.opts.DefaultQuality
	}
	original := req.OriginalImage
	if original == "" {
		original = generator.DataURL(req.Image.MimeType, req.Image.Data)
	}

	var cost generator.CostAccumulator
	out := make([]VisualVariation, len(personas))
	var eg errgroup.Group
	eg.SetLimit(visualEditParallel)
	for i, p := range personas {
		i, p := i, p
		eg.Go(func() error {
			entry := VisualVariation{PersonaID: p.ID, PersonaName: p.Name}
			img, err := v.images.Edit(ctx, generator.ImageEditRequest{
				Model:    v.opts.ImageModel,
				Prompt:   buildVisualPrompt(p, req.Prompt),
				Size:     v.opts.Size,
				Quality:  quality,
				Image:    req.Image.Data,
				MimeType: req.Image.MimeType,
			})
			if err != nil {
				v.log.Warn("persona variation failed", "persona_id", p.ID, "err", err)
				entry.Image = original
				entry.Error = err.Error()
				if entry.Error == "" {
					entry.Error = "Failed to generate persona variation"
				}
			} else {
				cost.Add(v.opts.CostPerEdit)
				entry.Image = generator.DataURL(img.MimeType, img.Data)
				v.log.Info("persona variation generated", "persona_id", p.ID)
			}
			out[i] = entry
			return nil
		})
	}
	// per-persona failures are recorded in out, so branches only fail on a bug
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return &VisualResult{Variations: out, Cost: cost.Total()}, nil
}
