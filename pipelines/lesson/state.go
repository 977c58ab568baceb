package lesson

import (
	"encoding/json"
	"fmt"
)

// ProfileValue is a student-profile attribute value: either a single string
// or a list of strings in the incoming JSON.
type ProfileValue []string

func (v *ProfileValue) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*v = ProfileValue{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("profile value must be a string or list of strings")
	}
	*v = ProfileValue(many)
	return nil
}

func (v ProfileValue) MarshalJSON() ([]byte, error) {
	if len(v) == 1 {
		return json.Marshal(v[0])
	}
	return json.Marshal([]string(v))
}

// StudentProfile maps attribute names ("learning_style", "language") to one
// or more values. Immutable input, supplied once per pipeline invocation.
type StudentProfile map[string]ProfileValue

// KnowledgeBase maps attribute name -> attribute value -> rules. Loaded once
// at startup and never mutated.
type KnowledgeBase map[string]map[string][]string

// State is the record threaded through the pipeline. Each stage receives it
// by value and returns a copy with its own fields filled in, so concurrent
// invocations are isolated for free.
//
// Nil slices mean "stage never ran"; empty non-nil slices mean "stage ran
// and produced nothing". Stages rely on that distinction.
type State struct {
	Profile StudentProfile
	Rules   []string

	LessonURL  string
	LessonPath string
	LessonText string

	AdaptedText string

	AudioPaths []string
	ImagePaths []string

	FinalTextPath     string
	FinalJSONPath     string
	FinalMarkdownPath string
}
