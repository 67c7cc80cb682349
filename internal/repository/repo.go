package repository

import (
	"database/sql"

	pg_review "github.com/3eLLenKa/review-rotation/internal/repository/postgres/review"
	pg_reviewer "github.com/3eLLenKa/review-rotation/internal/repository/postgres/reviewer"
)

type Repositories struct {
	Review   *pg_review.ReviewRepo
	Reviewer *pg_reviewer.ReviewerRepo
}

func New(db *sql.DB) *Repositories {
	return &Repositories{
		Review:   pg_review.New(db),
		Reviewer: pg_reviewer.New(db),
	}
}
