package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"quiz-runner/internal/domain"
)

// QuestionLoader reads the question pool from a MongoDB collection.
// Documents use the bank field names (question, options, correct_answer, category, difficulty).
type QuestionLoader struct {
	collection *mongo.Collection
}

func NewQuestionLoader(client *mongo.Client, database, collection string) *QuestionLoader {
	return &QuestionLoader{
		collection: client.Database(database).Collection(collection),
	}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	cursor, err := l.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer cursor.Close(ctx)

	var questions []domain.Question
	if err := cursor.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	if err := domain.PreparePool(questions); err != nil {
		return nil, fmt.Errorf("collection %s: %w", l.collection.Name(), err)
	}
	return questions, nil
}
