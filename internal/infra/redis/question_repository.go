package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-runner/internal/domain"
)

const poolKey = "quiz:questions:pool"

// QuestionLoader fetches the question pool from a backing store (bank file, Postgres, Mongo).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the whole pool in Redis as one JSON document and falls back to a loader on miss.
// Cached as: SET quiz:questions:pool <json> EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetAll(ctx context.Context) ([]domain.Question, error) {
	if pool, ok := r.cached(ctx); ok {
		return pool, nil
	}

	result, err, _ := r.sf.Do(poolKey, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if pool, ok := r.cached(ctx); ok {
			return pool, nil
		}

		pool, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(pool)
		if err == nil {
			// cache failures only cost a reload next time
			_ = r.client.Set(ctx, poolKey, payload, r.ttlWithJitter()).Err()
		}
		return pool, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached pool so the next GetAll reloads from the source.
func (r *QuestionRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, poolKey).Err()
}

func (r *QuestionRepository) cached(ctx context.Context) ([]domain.Question, bool) {
	raw, err := r.client.Get(ctx, poolKey).Bytes()
	if err != nil {
		return nil, false
	}
	var pool []domain.Question
	if err := json.Unmarshal(raw, &pool); err != nil || len(pool) == 0 {
		return nil, false
	}
	// a pool cached by an older build or written by hand is reloaded from the source
	if err := domain.PreparePool(pool); err != nil {
		return nil, false
	}
	return pool, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// IsMiss reports whether err is a plain cache miss.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
