package app_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quiz-runner/internal/app"
	"quiz-runner/internal/domain"
	"quiz-runner/internal/infra/memory"
)

func buildPool(easy, medium, hard int) []domain.Question {
	var pool []domain.Question
	add := func(d domain.Difficulty, n int) {
		for i := 0; i < n; i++ {
			pool = append(pool, domain.Question{
				ID:            fmt.Sprintf("%s-%d", d, i),
				Prompt:        fmt.Sprintf("%s question %d", d, i),
				Options:       []string{"A", "B", "C", "D"},
				CorrectAnswer: "B",
				Category:      "General",
				Difficulty:    d,
			})
		}
	}
	add(domain.DifficultyEasy, easy)
	add(domain.DifficultyMedium, medium)
	add(domain.DifficultyHard, hard)
	return pool
}

func newSession(store app.QuestionStore, kv app.KVStore, opts app.Options) *app.Session {
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(7))
	}
	return app.NewSession(store, app.NewScoreKeeper(kv), opts)
}

func staticStore(pool []domain.Question) app.QuestionStore {
	return memory.NewStaticQuestionLoader(pool)
}

// flakyStore fails until healed.
type flakyStore struct {
	mu     sync.Mutex
	pool   []domain.Question
	broken bool
}

func (s *flakyStore) GetAll(context.Context) ([]domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errors.New("connection refused")
	}
	return s.pool, nil
}

func (s *flakyStore) heal() {
	s.mu.Lock()
	s.broken = false
	s.mu.Unlock()
}

// faultyKV wraps a memory store and fails the selected operations.
type faultyKV struct {
	*memory.KVStore
	failGet bool
	failSet bool
}

func (f *faultyKV) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errors.New("disk unavailable")
	}
	return f.KVStore.Get(ctx, key)
}

func (f *faultyKV) Set(ctx context.Context, key, value string) error {
	if f.failSet {
		return errors.New("disk full")
	}
	return f.KVStore.Set(ctx, key, value)
}

func (f *faultyKV) SetIfGreater(ctx context.Context, key string, value int) (int, bool, error) {
	if f.failSet {
		return 0, false, errors.New("disk full")
	}
	return f.KVStore.SetIfGreater(ctx, key, value)
}

// lockstepKV lets every reader see the same stored value before anyone writes, and
// holds the write of late until the write of early has finished.
type lockstepKV struct {
	*memory.KVStore
	readers   sync.WaitGroup
	early     int
	late      int
	earlyDone chan struct{}
}

func (k *lockstepKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := k.KVStore.Get(ctx, key)
	k.readers.Done()
	k.readers.Wait()
	return v, ok, err
}

func (k *lockstepKV) SetIfGreater(ctx context.Context, key string, value int) (int, bool, error) {
	if value == k.late {
		<-k.earlyDone
	}
	stored, updated, err := k.KVStore.SetIfGreater(ctx, key, value)
	if value == k.early {
		close(k.earlyDone)
	}
	return stored, updated, err
}

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) SessionStarted(filter domain.DifficultyFilter, questions int) {
	m.Called(filter, questions)
}

func (m *mockRecorder) LoadFailed(filter domain.DifficultyFilter) {
	m.Called(filter)
}

func (m *mockRecorder) AnswerRecorded(auto, correct bool) {
	m.Called(auto, correct)
}

func (m *mockRecorder) SessionCompleted(score, total int, newRecord bool) {
	m.Called(score, total, newRecord)
}

// wrongOption returns any option other than the correct one.
func wrongOption(q domain.Question) string {
	for _, o := range q.Options {
		if o != q.CorrectAnswer {
			return o
		}
	}
	return ""
}

func current(t *testing.T, s *app.Session) domain.Question {
	t.Helper()
	q, ok := s.Snapshot().Current()
	require.True(t, ok, "no current question")
	return q
}
