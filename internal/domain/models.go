package domain

import (
	"fmt"
	"strings"
)

// Difficulty is the difficulty tag carried by every question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulties.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// DifficultyFilter selects the subset of the pool a session samples from.
type DifficultyFilter string

const (
	FilterAll    DifficultyFilter = "all"
	FilterEasy   DifficultyFilter = DifficultyFilter(DifficultyEasy)
	FilterMedium DifficultyFilter = DifficultyFilter(DifficultyMedium)
	FilterHard   DifficultyFilter = DifficultyFilter(DifficultyHard)
)

// Filters lists the selectable filters in display order.
var Filters = []DifficultyFilter{FilterAll, FilterEasy, FilterMedium, FilterHard}

// ParseDifficultyFilter normalizes user input; empty input means "all".
func ParseDifficultyFilter(raw string) (DifficultyFilter, error) {
	f := DifficultyFilter(strings.ToLower(strings.TrimSpace(raw)))
	if f == "" {
		return FilterAll, nil
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, raw)
	}
	return f, nil
}

// Valid reports whether f is a known filter.
func (f DifficultyFilter) Valid() bool {
	return f == FilterAll || Difficulty(f).Valid()
}

// Matches reports whether a question of difficulty d passes the filter.
func (f DifficultyFilter) Matches(d Difficulty) bool {
	return f == FilterAll || Difficulty(f) == d
}

// Question models a single-correct multiple choice question.
type Question struct {
	ID            string     `json:"id" bson:"id"`
	Prompt        string     `json:"question" bson:"question"`
	Options       []string   `json:"options" bson:"options"`
	CorrectAnswer string     `json:"correct_answer" bson:"correct_answer"`
	Category      string     `json:"category" bson:"category"`
	Difficulty    Difficulty `json:"difficulty" bson:"difficulty"`
}

// HasOption reports whether option is one of the question's options.
func (q Question) HasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Validate checks the structural invariants of a question.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: %q has %d options", ErrInvalidQuestion, q.Prompt, len(q.Options))
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if _, dup := seen[o]; dup {
			return fmt.Errorf("%w: %q repeats option %q", ErrInvalidQuestion, q.Prompt, o)
		}
		seen[o] = struct{}{}
	}
	if !q.HasOption(q.CorrectAnswer) {
		return fmt.Errorf("%w: %q correct answer %q is not an option", ErrInvalidQuestion, q.Prompt, q.CorrectAnswer)
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("%w: %q has difficulty %q", ErrInvalidQuestion, q.Prompt, q.Difficulty)
	}
	return nil
}

// Clone returns a copy that shares no slices with q.
func (q Question) Clone() Question {
	c := q
	c.Options = append([]string(nil), q.Options...)
	return c
}

// State is the lifecycle phase of a quiz session.
type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateErrored    State = "errored"
)

// Snapshot is the read-only view of a session handed to presentation layers.
type Snapshot struct {
	State            State            `json:"state"`
	Questions        []Question       `json:"questions"`
	CurrentIndex     int              `json:"currentIndex"`
	Answers          map[int]string   `json:"answers"`
	AnsweredCount    int              `json:"answeredCount"`
	Score            int              `json:"score"`
	BestScore        int              `json:"bestScore"`
	NewRecord        bool             `json:"newRecord"`
	Completed        bool             `json:"completed"`
	Error            string           `json:"error,omitempty"`
	Loading          bool             `json:"loading"`
	TimeRemaining    int              `json:"timeRemaining"`
	TimerActive      bool             `json:"timerActive"`
	DifficultyFilter DifficultyFilter `json:"difficultyFilter"`
}

// Current returns the question at CurrentIndex, if any.
func (s Snapshot) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Answer returns the recorded answer for index i.
func (s Snapshot) Answer(i int) (string, bool) {
	a, ok := s.Answers[i]
	return a, ok
}

// ReviewItem summarizes one question of a completed session.
type ReviewItem struct {
	Index         int        `json:"index"`
	Prompt        string     `json:"question"`
	Category      string     `json:"category"`
	Difficulty    Difficulty `json:"difficulty"`
	Answer        string     `json:"answer,omitempty"`
	CorrectAnswer string     `json:"correctAnswer"`
	Answered      bool       `json:"answered"`
	Correct       bool       `json:"correct"`
}
