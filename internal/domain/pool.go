package domain

import "fmt"

// PreparePool assigns missing ids, validates every question and rejects duplicate ids.
// Every question source runs its result through it before the pool reaches a session.
func PreparePool(questions []Question) error {
	seen := make(map[string]int, len(questions))
	for i := range questions {
		q := &questions[i]
		q.EnsureID()
		if err := q.Validate(); err != nil {
			return fmt.Errorf("question %d (%s): %w", i, q.ID, err)
		}
		if prev, dup := seen[q.ID]; dup {
			return fmt.Errorf("question %d: %w: duplicate id %s (first at %d)", i, ErrInvalidQuestion, q.ID, prev)
		}
		seen[q.ID] = i
	}
	return nil
}
