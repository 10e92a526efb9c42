package generator

import (
	"strings"
	"unicode"
)

// ApprovalClassifier decides whether evaluator feedback approves an image.
// Feedback that does not mention the token is never approval.
type ApprovalClassifier interface {
	Approved(feedback string) bool
}

// SubstringApproval approves when Token appears anywhere in the feedback,
// including inside other words.
type SubstringApproval struct {
	Token string
}

func (s SubstringApproval) Approved(feedback string) bool {
	return s.Token != "" && strings.Contains(feedback, s.Token)
}

// WordApproval approves only when Token appears as a whole word.
type WordApproval struct {
	Token string
}

func (w WordApproval) Approved(feedback string) bool {
	if w.Token == "" {
		return false
	}
	words := strings.FieldsFunc(feedback, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, word := range words {
		if word == w.Token {
			return true
		}
	}
	return false
}

// NewApprovalClassifier maps the configured match mode to a classifier.
func NewApprovalClassifier(mode, token string) ApprovalClassifier {
	if mode == "word" {
		return WordApproval{Token: token}
	}
	return SubstringApproval{Token: token}
}
