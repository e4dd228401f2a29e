package memory

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"quiz-runner/internal/domain"
)

//go:embed questions.json
var defaultBank []byte

type bankFile struct {
	Questions []domain.Question `json:"questions"`
}

// ParseBank decodes a question bank document ({"questions": [...]}) and validates every entry.
func ParseBank(data []byte) ([]domain.Question, error) {
	var bank bankFile
	if err := json.Unmarshal(data, &bank); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	if err := domain.PreparePool(bank.Questions); err != nil {
		return nil, fmt.Errorf("question bank: %w", err)
	}
	return bank.Questions, nil
}

// DefaultBank returns the bundled question bank.
func DefaultBank() ([]domain.Question, error) {
	return ParseBank(defaultBank)
}

// EmbeddedQuestionLoader serves the bundled bank.
type EmbeddedQuestionLoader struct{}

func (EmbeddedQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	return DefaultBank()
}

// FileQuestionLoader reads a bank document from disk on every load.
type FileQuestionLoader struct {
	path string
}

func NewFileQuestionLoader(path string) *FileQuestionLoader {
	return &FileQuestionLoader{path: path}
}

func (l *FileQuestionLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseBank(data)
}
