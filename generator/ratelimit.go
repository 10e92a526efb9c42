package generator

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited throttles every provider call through a shared token bucket.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited wraps p. rps <= 0 returns p unchanged.
func NewRateLimited(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Complete(ctx context.Context, prompt Prompt) (Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Completion{}, err
	}
	return r.next.Complete(ctx, prompt)
}

func (r *RateLimited) Generate(ctx context.Context, req ImageRequest) (Image, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Image{}, err
	}
	return r.next.Generate(ctx, req)
}

func (r *RateLimited) Edit(ctx context.Context, req ImageEditRequest) (Image, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Image{}, err
	}
	return r.next.Edit(ctx, req)
}
