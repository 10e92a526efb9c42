package generator

import "fmt"

// EventType tags a progress event of the refinement loop.
type EventType string

const (
	EventStatus     EventType = "status"
	EventImage      EventType = "image"
	EventEvaluation EventType = "evaluation"
	EventComplete   EventType = "complete"
	EventError      EventType = "error"
)

const (
	msgGenerating      = "Generating initial image..."
	msgInitialImage    = "Initial image generated. Evaluating quality..."
	msgApproved        = "Image approved! Process complete."
	msgAttemptsReached = "Reached maximum attempts. Using best generated image."
)

func evaluatingMessage(attempt int) string {
	return fmt.Sprintf("Evaluating image quality (attempt %d)...", attempt)
}

func improvingMessage(attempt int) string {
	return fmt.Sprintf("Improving image based on feedback (attempt %d)...", attempt)
}

func improvedMessage(attempt int) string {
	return fmt.Sprintf("Image improved (attempt %d). Re-evaluating...", attempt)
}

// Event is one frame of the progress stream. Step and IsApproved are
// pointers so that zero values are still sent.
type Event struct {
	Type       EventType `json:"type"`
	Message    string    `json:"message,omitempty"`
	Step       *int      `json:"step,omitempty"`
	ImageData  string    `json:"imageData,omitempty"`
	Feedback   string    `json:"feedback,omitempty"`
	FinalImage string    `json:"finalImage,omitempty"`
	IsApproved *bool     `json:"isApproved,omitempty"`
	TotalCost  string    `json:"totalCost,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Terminal reports whether no further events follow e.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

func statusEvent(msg string) Event {
	return Event{Type: EventStatus, Message: msg}
}

func imageEvent(step int, img Image, msg string) Event {
	return Event{Type: EventImage, Step: &step, ImageData: DataURL(img.MimeType, img.Data), Message: msg}
}

func evaluationEvent(step int, feedback string) Event {
	return Event{Type: EventEvaluation, Step: &step, Feedback: feedback}
}

func completeEvent(img Image, approved bool, cost float64) Event {
	msg := msgAttemptsReached
	if approved {
		msg = msgApproved
	}
	return Event{
		Type:       EventComplete,
		FinalImage: DataURL(img.MimeType, img.Data),
		IsApproved: &approved,
		Message:    msg,
		TotalCost:  FormatCost(cost),
	}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Error: err.Error()}
}
