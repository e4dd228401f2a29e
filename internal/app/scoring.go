package app

import (
	"context"
	"errors"
	"fmt"

	"quiz-runner/internal/domain"
)

// BestScoreKey is the KV key holding the best score.
const BestScoreKey = "quizHighScore"

var errMalformedScore = errors.New("malformed best score")

// FinalizeScore counts the indices whose recorded answer equals the correct answer.
func FinalizeScore(questions []domain.Question, answers map[int]string) int {
	score := 0
	for i, q := range questions {
		if a, ok := answers[i]; ok && a == q.CorrectAnswer {
			score++
		}
	}
	return score
}

// ScoreKeeper reads and writes the best score through a KVStore.
type ScoreKeeper struct {
	store KVStore
	key   string
}

func NewScoreKeeper(store KVStore) *ScoreKeeper {
	return &ScoreKeeper{store: store, key: BestScoreKey}
}

// Load returns the stored best score; absent means 0.
func (k *ScoreKeeper) Load(ctx context.Context) (int, error) {
	raw, ok, err := k.store.Get(ctx, k.key)
	if err != nil {
		return 0, fmt.Errorf("read best score: %w", err)
	}
	if !ok {
		return 0, nil
	}
	v, valid := domain.ParseScore(raw)
	if !valid {
		return 0, fmt.Errorf("%w %q", errMalformedScore, raw)
	}
	return v, nil
}

// Update stores score only when it strictly exceeds the stored value.
// It returns the resulting best score and whether score set a new record.
// The comparison is repeated inside the store, so a concurrent session that
// wrote a higher score in between is never overwritten.
func (k *ScoreKeeper) Update(ctx context.Context, score int) (int, bool, error) {
	current, err := k.Load(ctx)
	if err != nil && !errors.Is(err, errMalformedScore) {
		return 0, false, err
	}
	if score <= current {
		return current, false, nil
	}
	best, updated, err := k.store.SetIfGreater(ctx, k.key, score)
	if err != nil {
		return current, false, fmt.Errorf("write best score: %w", err)
	}
	return best, updated, nil
}

// Clear resets the best score by removing the key.
func (k *ScoreKeeper) Clear(ctx context.Context) error {
	if err := k.store.Remove(ctx, k.key); err != nil {
		return fmt.Errorf("clear best score: %w", err)
	}
	return nil
}
