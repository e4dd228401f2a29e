package domain

import "errors"

var (
	// ErrLoadFailure is returned when the question pool cannot be read or nothing matches the filter.
	ErrLoadFailure = errors.New("failed to load questions")
	// ErrInsufficientQuestions indicates the filtered pool has no questions to sample from.
	ErrInsufficientQuestions = errors.New("not enough questions for the selected difficulty")
	// ErrInvalidOption is returned when a submitted option is not one of the current question's options.
	ErrInvalidOption = errors.New("option is not part of the current question")
	// ErrAlreadyAnswered is returned when the current question already has a recorded answer.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrAnswerRequired is returned when advancing past an unanswered question.
	ErrAnswerRequired = errors.New("answer required before moving on")
	// ErrAtFirstQuestion is returned when retreating from the first question.
	ErrAtFirstQuestion = errors.New("already at the first question")
	// ErrNotInProgress is returned when a quiz operation is invoked outside an active session.
	ErrNotInProgress = errors.New("quiz session is not in progress")
	// ErrNothingToRetry is returned by a retry while the last load did not fail.
	ErrNothingToRetry = errors.New("no failed load to retry")
	// ErrInvalidDifficulty is returned for an unknown difficulty filter.
	ErrInvalidDifficulty = errors.New("invalid difficulty")
	// ErrInvalidQuestion marks malformed question bank entries.
	ErrInvalidQuestion = errors.New("invalid question")
)
