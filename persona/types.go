package persona

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoAdImage       = errors.New("no ad image provided")
	ErrNoPersonas      = errors.New("personas array is required")
	ErrAnalysisInvalid = errors.New("image analysis parsing failed")
)

// Persona is a named audience archetype.
type Persona struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Image string `json:"image" yaml:"image"`
	Bio   string `json:"bio" yaml:"bio"`
}

// AdElement is one copy element extracted from an ad image.
type AdElement struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Type       string `json:"type"`
	WhyItWorks string `json:"whyItWorks"`
}

// AdAnalysis is the structured reading of an ad image.
type AdAnalysis struct {
	OverallBlurb string      `json:"overallBlurb"`
	Elements     []AdElement `json:"elements"`
}

// ElementVariation pairs an original element text with its rewrite.
type ElementVariation struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Variation is the result for one persona.
type Variation struct {
	Persona      Persona            `json:"persona"`
	Analysis     string             `json:"analysis"`
	AnalysisHTML string             `json:"analysisHtml,omitempty"`
	Variations   []ElementVariation `json:"variations"`
}

// ValidatePersonas checks that personas is non-empty, IDs are unique and,
// when active is non-nil, every persona belongs to the active set.
func ValidatePersonas(personas []Persona, active []Persona) error {
	if len(personas) == 0 {
		return ErrNoPersonas
	}
	var allowed map[string]bool
	if active != nil {
		allowed = make(map[string]bool, len(active))
		for _, p := range active {
			allowed[p.ID] = true
		}
	}
	seen := make(map[string]bool, len(personas))
	for _, p := range personas {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return errors.New("persona id is required")
		}
		if seen[id] {
			return fmt.Errorf("duplicate persona id %q", id)
		}
		seen[id] = true
		if allowed != nil && !allowed[id] {
			return fmt.Errorf("persona %q is not in the active persona set", id)
		}
	}
	return nil
}

// Find returns the persona with id.
func Find(personas []Persona, id string) (Persona, bool) {
	for _, p := range personas {
		if p.ID == id {
			return p, true
		}
	}
	return Persona{}, false
}
