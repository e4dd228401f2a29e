package app

import (
	"context"

	"quiz-runner/internal/domain"
)

// QuestionStore supplies the full candidate pool (embedded bank, file, Postgres, Mongo, cache).
type QuestionStore interface {
	GetAll(ctx context.Context) ([]domain.Question, error)
}

// KVStore is the scalar key/value persistence used for the best score (file, Redis, Postgres, memory).
// Get reports ok=false when the key is absent.
//
// SetIfGreater writes value only if it exceeds the stored integer, as one atomic step.
// An absent or non-numeric stored value counts as 0. It returns the value held
// afterwards and whether the write happened.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	SetIfGreater(ctx context.Context, key string, value int) (stored int, updated bool, err error)
	Remove(ctx context.Context, key string) error
}

// Timer is driven by the session on every arm/disarm path.
// Arm receives a generation number; ticks from an older generation must be ignored.
type Timer interface {
	Arm(gen uint64)
	Disarm()
}

// Rand is the subset of *math/rand.Rand the session needs; tests inject a seeded one.
type Rand interface {
	Intn(n int) int
	Shuffle(n int, swap func(i, j int))
}

// Recorder receives session events for metrics.
type Recorder interface {
	SessionStarted(filter domain.DifficultyFilter, questions int)
	LoadFailed(filter domain.DifficultyFilter)
	AnswerRecorded(auto bool, correct bool)
	SessionCompleted(score, total int, newRecord bool)
}

type nopTimer struct{}

func (nopTimer) Arm(uint64) {}
func (nopTimer) Disarm()    {}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(domain.DifficultyFilter, int) {}
func (nopRecorder) LoadFailed(domain.DifficultyFilter)          {}
func (nopRecorder) AnswerRecorded(bool, bool)                   {}
func (nopRecorder) SessionCompleted(int, int, bool)             {}
