package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"classroom-assessment-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionLoader reads bank questions straight from Postgres; it sits behind a cache.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestion(ctx context.Context, id string) (domain.Question, error) {
	var (
		q       domain.Question
		options []byte
	)
	err := l.pool.QueryRow(ctx,
		`SELECT id, prompt, options, correct_option, topic, difficulty, author_id, created_at
		   FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.Prompt, &options, &q.CorrectOption, &q.Topic, &q.Difficulty, &q.AuthorID, &q.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal options: %w", err)
	}
	q.CreatedAt = q.CreatedAt.UTC()
	return q, nil
}
