package generator

import (
	"fmt"
	"time"
)

// Session 持有一次提交的多轮生成/评审上下文。每次提交都会新建。
type Session struct {
	ID          string
	Prompt      string
	Quality     string // tier of the initial generation
	EditQuality string
	MaxAttempts int
	Attempts    []GenerationAttempt
	Cost        CostAccumulator
	Approved    bool
	Current     Image
}

// NewSession 创建 session，尚未生成图片。
func NewSession(id, prompt, quality string, maxAttempts int) *Session {
	return &Session{
		ID:          id,
		Prompt:      prompt,
		Quality:     quality,
		MaxAttempts: maxAttempts,
	}
}

// record appends an evaluated attempt. Steps must strictly increase and at
// most one attempt may be approved.
func (s *Session) record(step int, img Image, feedback string, approved bool) error {
	if n := len(s.Attempts); n > 0 && s.Attempts[n-1].Step >= step {
		return fmt.Errorf("attempt step %d does not follow %d", step, s.Attempts[n-1].Step)
	}
	if approved && s.Approved {
		return fmt.Errorf("attempt %d approved after session already approved", step)
	}
	s.Attempts = append(s.Attempts, GenerationAttempt{
		Step:       step,
		Image:      img,
		Feedback:   feedback,
		Approved:   approved,
		RecordedAt: time.Now(),
	})
	if approved {
		s.Approved = true
	}
	return nil
}

// Evaluations is the number of evaluation rounds run so far.
func (s *Session) Evaluations() int {
	return len(s.Attempts)
}
