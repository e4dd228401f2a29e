package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-runner/internal/domain"
)

// Importer upserts a question bank into the questions table.
type Importer struct {
	pool *pgxpool.Pool
}

func NewImporter(pool *pgxpool.Pool) *Importer {
	return &Importer{pool: pool}
}

// Import writes every question in one transaction and returns how many rows were upserted.
// Questions are validated before anything is written.
func (i *Importer) Import(ctx context.Context, questions []domain.Question) (int, error) {
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return 0, fmt.Errorf("question %s: %w", q.ID, err)
		}
	}

	tx, err := i.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`
			INSERT INTO questions (id, prompt, options, correct_answer, category, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				prompt=EXCLUDED.prompt,
				options=EXCLUDED.options,
				correct_answer=EXCLUDED.correct_answer,
				category=EXCLUDED.category,
				difficulty=EXCLUDED.difficulty`,
			q.ID, q.Prompt, q.Options, q.CorrectAnswer, q.Category, string(q.Difficulty))
	}

	results := tx.SendBatch(ctx, batch)
	for range questions {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("upsert question: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("upsert questions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return len(questions), nil
}
