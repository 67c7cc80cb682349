package pg_reviewer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

type ReviewerRepo struct {
	db *sql.DB
}

func New(db *sql.DB) *ReviewerRepo {
	return &ReviewerRepo{db: db}
}

func (r *ReviewerRepo) ListAll(ctx context.Context) ([]domain.Reviewer, error) {
	query := "SELECT user_id, languages, last_reviewed_at FROM reviewers"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error executing ListAll reviewers query: %w", err)
	}
	defer rows.Close()

	reviewers := make([]domain.Reviewer, 0)
	for rows.Next() {
		var rv domain.Reviewer
		var lastReviewedAt sql.NullTime
		if err := rows.Scan(&rv.ID, pq.Array(&rv.Languages), &lastReviewedAt); err != nil {
			return nil, fmt.Errorf("error scanning reviewer row: %w", err)
		}
		if lastReviewedAt.Valid {
			rv.LastReviewedAt = &lastReviewedAt.Time
		}
		reviewers = append(reviewers, rv)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows iteration error in ListAll reviewers: %w", rows.Err())
	}

	return reviewers, nil
}
