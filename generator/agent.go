package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

var ErrEmptyPrompt = errors.New("prompt is required")

// RefinerOptions configures the generate, evaluate and edit loop.
type RefinerOptions struct {
	ImageModel     string
	EvalModel      string
	Size           string
	InitialQuality string
	EditQuality    string
	MaxAttempts    int
	Pricing        Pricing
	Approval       ApprovalClassifier
	Logger         *slog.Logger
}

// RefineRequest is one submission. Zero values fall back to the options.
type RefineRequest struct {
	Prompt      string
	Quality     string
	MaxAttempts int
}

// Refiner 负责生成图片、评审并根据反馈修改，直到通过或次数用尽。
type Refiner struct {
	provider Provider
	opts     RefinerOptions
	log      *slog.Logger
}

func NewRefiner(provider Provider, opts RefinerOptions) (*Refiner, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if opts.MaxAttempts < 1 {
		return nil, errors.New("max attempts must be at least 1")
	}
	if opts.Approval == nil {
		opts.Approval = SubstringApproval{Token: "APPROVED"}
	}
	if opts.Pricing == (Pricing{}) {
		opts.Pricing = DefaultPricing()
	}
	if opts.Size == "" {
		opts.Size = "1024x1024"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Refiner{provider: provider, opts: opts, log: logger}, nil
}

// Run drives one submission to completion, passing every event to emit in
// order. It emits exactly one terminal event unless the prompt is empty, in
// which case it returns ErrEmptyPrompt before emitting anything.
func (r *Refiner) Run(ctx context.Context, req RefineRequest, emit func(Event)) (*Session, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	maxAttempts := r.opts.MaxAttempts
	if req.MaxAttempts > 0 {
		maxAttempts = req.MaxAttempts
	}
	initialQuality, editQuality := r.opts.InitialQuality, r.opts.EditQuality
	if req.Quality != "" {
		initialQuality, editQuality = req.Quality, req.Quality
	}

	s := NewSession(uuid.NewString(), prompt, initialQuality, maxAttempts)
	s.EditQuality = editQuality
	log := r.log.With("session_id", s.ID)
	log.Info("refine started", "max_attempts", maxAttempts)

	fail := func(err error) (*Session, error) {
		log.Error("refine failed", "step", s.Evaluations(), "err", err)
		emit(errorEvent(err))
		return s, err
	}

	emit(statusEvent(msgGenerating))
	img, err := r.provider.Generate(ctx, ImageRequest{
		Model:   r.opts.ImageModel,
		Prompt:  BuildInitialImagePrompt(prompt),
		Size:    r.opts.Size,
		Quality: initialQuality,
	})
	if err != nil {
		return fail(err)
	}
	s.Cost.AddImage(r.opts.Pricing)
	s.Current = img
	emit(imageEvent(0, img, msgInitialImage))

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		emit(statusEvent(evaluatingMessage(attempt)))
		eval, err := r.provider.Complete(ctx, BuildEvaluationPrompt(r.opts.EvalModel, s.Current))
		if err != nil {
			return fail(err)
		}
		s.Cost.AddUsage(r.opts.Pricing, eval.Usage)

		approved := r.opts.Approval.Approved(eval.Text)
		if err := s.record(attempt-1, s.Current, eval.Text, approved); err != nil {
			return fail(err)
		}
		emit(evaluationEvent(attempt, eval.Text))
		log.Info("image evaluated", "step", attempt, "approved", approved)
		if approved || attempt == maxAttempts {
			break
		}

		emit(statusEvent(improvingMessage(attempt)))
		edited, err := r.provider.Edit(ctx, ImageEditRequest{
			Model:    r.opts.ImageModel,
			Prompt:   BuildImprovementPrompt(prompt, eval.Text),
			Size:     r.opts.Size,
			Quality:  editQuality,
			Image:    s.Current.Data,
			MimeType: s.Current.MimeType,
		})
		if err != nil {
			return fail(err)
		}
		s.Cost.AddImage(r.opts.Pricing)
		s.Current = edited
		emit(imageEvent(attempt, edited, improvedMessage(attempt)))
	}

	log.Info("refine finished", "approved", s.Approved, "evaluations", s.Evaluations(), "cost", FormatCost(s.Cost.Total()))
	emit(completeEvent(s.Current, s.Approved, s.Cost.Total()))
	return s, nil
}

// Stream runs the loop in its own goroutine. The channel is closed after the
// terminal event; events are dropped once ctx is done.
func (r *Refiner) Stream(ctx context.Context, req RefineRequest) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		send := func(ev Event) {
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}
		if _, err := r.Run(ctx, req, send); errors.Is(err, ErrEmptyPrompt) {
			send(errorEvent(err))
		}
	}()
	return ch
}
