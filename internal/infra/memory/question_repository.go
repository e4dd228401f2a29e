package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-runner/internal/domain"
)

// QuestionLoader fetches the question pool from a backing source (bank file, Postgres, Mongo).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the pool with a TTL so restarts do not hit the source every time.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	pool      []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetAll returns the cached pool, loading it once per expiry even under concurrent callers.
func (r *QuestionRepository) GetAll(ctx context.Context) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.pool != nil && r.expiresAt.After(now) {
		pool := r.pool
		r.mu.RUnlock()
		return pool, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("pool", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.pool != nil && r.expiresAt.After(now) {
			pool := r.pool
			r.mu.RUnlock()
			return pool, nil
		}
		r.mu.RUnlock()

		pool, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.pool = pool
		r.expiresAt = expiresAt
		r.mu.Unlock()
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached pool.
func (r *QuestionRepository) Invalidate() {
	r.mu.Lock()
	r.pool = nil
	r.mu.Unlock()
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader serves a fixed pool (tests, demos).
type StaticQuestionLoader struct {
	questions []domain.Question
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return l.questions, nil
}

// GetAll lets a static loader act as a question store without caching.
func (l *StaticQuestionLoader) GetAll(ctx context.Context) ([]domain.Question, error) {
	return l.LoadQuestions(ctx)
}
