package generator

import (
	"fmt"
	"sync"
)

// Pricing holds the USD estimates used for cost accounting.
type Pricing struct {
	ImageOperation  float64
	PromptPer1K     float64
	CompletionPer1K float64
}

func DefaultPricing() Pricing {
	return Pricing{ImageOperation: 0.040, PromptPer1K: 0.005, CompletionPer1K: 0.015}
}

// CostAccumulator is a running total that only grows.
type CostAccumulator struct {
	mu    sync.Mutex
	total float64
}

// Add ignores negative amounts.
func (c *CostAccumulator) Add(amount float64) {
	if amount <= 0 {
		return
	}
	c.mu.Lock()
	c.total += amount
	c.mu.Unlock()
}

func (c *CostAccumulator) AddImage(p Pricing) {
	c.Add(p.ImageOperation)
}

func (c *CostAccumulator) AddUsage(p Pricing, u Usage) {
	c.Add(float64(u.PromptTokens)/1000*p.PromptPer1K + float64(u.CompletionTokens)/1000*p.CompletionPer1K)
}

func (c *CostAccumulator) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// FormatCost renders a USD amount with four decimals, as sent to clients.
func FormatCost(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
