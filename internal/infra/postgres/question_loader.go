package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-runner/internal/domain"
)

// QuestionLoader loads the question pool from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, prompt, options, correct_answer, category, difficulty FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q          domain.Question
			difficulty string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &q.Options, &q.CorrectAnswer, &q.Category, &difficulty); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Difficulty = domain.Difficulty(difficulty)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if err := domain.PreparePool(questions); err != nil {
		return nil, fmt.Errorf("questions table: %w", err)
	}
	return questions, nil
}
