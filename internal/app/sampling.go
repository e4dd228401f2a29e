package app

import (
	"fmt"

	"quiz-runner/internal/domain"
)

// Sample draws min(size, matching) questions uniformly without replacement from the
// filtered pool and shuffles each drawn question's options independently.
// The returned questions are copies; pool is never modified.
func Sample(rnd Rand, pool []domain.Question, filter domain.DifficultyFilter, size int) ([]domain.Question, error) {
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidDifficulty, filter)
	}

	matching := make([]int, 0, len(pool))
	for i := range pool {
		if filter.Matches(pool[i].Difficulty) {
			matching = append(matching, i)
		}
	}
	if len(matching) == 0 || size <= 0 {
		return nil, fmt.Errorf("%w: %w: 0 %s questions", domain.ErrLoadFailure, domain.ErrInsufficientQuestions, filter)
	}
	if size > len(matching) {
		size = len(matching)
	}

	// partial Fisher-Yates: the first size slots end up a uniform sample
	for i := 0; i < size; i++ {
		j := i + rnd.Intn(len(matching)-i)
		matching[i], matching[j] = matching[j], matching[i]
	}

	out := make([]domain.Question, size)
	for i := 0; i < size; i++ {
		q := pool[matching[i]].Clone()
		rnd.Shuffle(len(q.Options), func(a, b int) {
			q.Options[a], q.Options[b] = q.Options[b], q.Options[a]
		})
		out[i] = q
	}
	return out, nil
}
