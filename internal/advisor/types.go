// Package advisor is the adapter between the rule session and the window:
// it reads the current state fact and feeds answers back into the engine.
package advisor

import (
	"errors"
	"strings"
)

var (
	// ErrNoState means evaluation produced no gui_state fact.
	ErrNoState = errors.New("rules produced no state to display")
	// ErrUnknownOption means the submitted label is not offered by the displayed state.
	ErrUnknownOption = errors.New("option is not offered by the current question")
	// ErrStaleState means the displayed state is no longer the engine's current state.
	ErrStaleState = errors.New("displayed question is out of date")
	// ErrFinished means an answer was submitted for a finished state.
	ErrFinished = errors.New("questionnaire is already finished")
	// ErrNothingToUndo means no answer has been given yet.
	ErrNothingToUndo = errors.New("no answer to undo")
)

// Topic is a coarse classifier: the first question versus every later one.
type Topic string

const (
	TopicRoot     Topic = "root"
	TopicFollowup Topic = "followup"
)

// rootMarker is the phrase that identifies the first question when a state
// carries no stage identifier.
const rootMarker = "What type"

// GuiState is what the window displays.
type GuiState struct {
	Stage          string
	Message        string
	Options        []string
	Recommendation string
	Finished       bool
	ImageKey       string
}

// Consistent reports whether the options/finished invariant holds:
// options are empty exactly when the state is finished.
func (s GuiState) Consistent() bool {
	return (len(s.Options) == 0) == s.Finished
}

// Offers reports whether label is one of the state's options.
func (s GuiState) Offers(label string) bool {
	for _, o := range s.Options {
		if o == label {
			return true
		}
	}
	return false
}

// UserAnswer is the fact asserted for every choice.
type UserAnswer struct {
	Stage          string
	QuestionTopic  Topic
	SelectedOption string
}

// TopicFromText classifies a question by its text alone.
func TopicFromText(question string) Topic {
	if strings.Contains(question, rootMarker) {
		return TopicRoot
	}
	return TopicFollowup
}

// DeriveTopic classifies the state an answer is given from. The stage
// identifier wins when present; the text check is the fallback.
func DeriveTopic(s GuiState, rootStage string) Topic {
	if s.Stage != "" {
		if s.Stage == rootStage {
			return TopicRoot
		}
		return TopicFollowup
	}
	return TopicFromText(s.Message)
}
