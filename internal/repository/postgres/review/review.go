package pg_review

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

const uniqueViolation = "23505"

const selectColumns = `
	SELECT thread_id, requestor_id, languages, requested_at, due_by, reviewers_needed_count,
	       pending_reviewers, accepted_reviewers, declined_reviewers
	FROM active_reviews
`

type ReviewRepo struct {
	db *sql.DB
}

func New(db *sql.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (*domain.Review, error) {
	review := &domain.Review{}
	var dueBy string
	var pending, accepted, declined []byte

	err := row.Scan(
		&review.ThreadID,
		&review.RequestorID,
		pq.Array(&review.Languages),
		&review.RequestedAt,
		&dueBy,
		&review.ReviewersNeededCount,
		&pending,
		&accepted,
		&declined,
	)
	if err != nil {
		return nil, err
	}
	review.DueBy = domain.Deadline(dueBy)

	if err := decodeReviewers(review, pending, accepted, declined); err != nil {
		return nil, fmt.Errorf("decode reviewers of %s: %w", review.ThreadID, err)
	}
	return review, nil
}

func decodeReviewers(review *domain.Review, pending, accepted, declined []byte) error {
	if err := json.Unmarshal(pending, &review.PendingReviewers); err != nil {
		return fmt.Errorf("pending reviewers: %w", err)
	}
	if err := json.Unmarshal(accepted, &review.AcceptedReviewers); err != nil {
		return fmt.Errorf("accepted reviewers: %w", err)
	}
	if err := json.Unmarshal(declined, &review.DeclinedReviewers); err != nil {
		return fmt.Errorf("declined reviewers: %w", err)
	}
	return nil
}

// encodeReviewers renders the three reviewer lists as JSON arrays; nil
// slices become [] so the columns never hold null.
func encodeReviewers(review *domain.Review) (pending, accepted, declined []byte, err error) {
	pendingList := review.PendingReviewers
	if pendingList == nil {
		pendingList = []domain.PendingReviewer{}
	}
	if pending, err = json.Marshal(pendingList); err != nil {
		return nil, nil, nil, err
	}
	if accepted, err = json.Marshal(nonNil(review.AcceptedReviewers)); err != nil {
		return nil, nil, nil, err
	}
	if declined, err = json.Marshal(nonNil(review.DeclinedReviewers)); err != nil {
		return nil, nil, nil, err
	}
	return pending, accepted, declined, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (r *ReviewRepo) ListAll(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY requested_at")
	if err != nil {
		return nil, fmt.Errorf("error executing ListAll query: %w", err)
	}
	defer rows.Close()

	reviews := make([]domain.Review, 0)
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning review row: %w", err)
		}
		reviews = append(reviews, *review)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("rows iteration error in ListAll: %w", rows.Err())
	}

	return reviews, nil
}

func (r *ReviewRepo) GetByThreadID(ctx context.Context, threadID string) (*domain.Review, error) {
	review, err := scanReview(r.db.QueryRowContext(ctx, selectColumns+" WHERE thread_id = $1", threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("review %s: %w", threadID, domain.ErrReviewNotFound)
	}
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (r *ReviewRepo) Create(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if err := review.Validate(); err != nil {
		return nil, err
	}

	pending, accepted, declined, err := encodeReviewers(review)
	if err != nil {
		return nil, fmt.Errorf("encode reviewers: %w", err)
	}

	query := `
		INSERT INTO active_reviews (thread_id, requestor_id, languages, requested_at, due_by, reviewers_needed_count,
		                            pending_reviewers, accepted_reviewers, declined_reviewers)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		review.ThreadID,
		review.RequestorID,
		pq.Array(review.Languages),
		review.RequestedAt,
		string(review.DueBy),
		review.ReviewersNeededCount,
		pending,
		accepted,
		declined,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return nil, domain.ErrReviewExists
	}
	if err != nil {
		return nil, err
	}

	return r.GetByThreadID(ctx, review.ThreadID)
}

// Update rewrites the mutable part of a review: its reviewer lists.
// The requested reviewer count is never touched after creation.
func (r *ReviewRepo) Update(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	pending, accepted, declined, err := encodeReviewers(review)
	if err != nil {
		return nil, fmt.Errorf("encode reviewers: %w", err)
	}

	query := `
		UPDATE active_reviews
		SET pending_reviewers = $1, accepted_reviewers = $2, declined_reviewers = $3
		WHERE thread_id = $4
	`
	res, err := r.db.ExecContext(ctx, query, pending, accepted, declined, review.ThreadID)
	if err != nil {
		return nil, err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("update review %s: %w", review.ThreadID, domain.ErrReviewNotFound)
	}

	return review, nil
}

func (r *ReviewRepo) Remove(ctx context.Context, threadID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM active_reviews WHERE thread_id = $1", threadID)
	if err != nil {
		return err
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("remove review %s: %w", threadID, domain.ErrReviewNotFound)
	}
	return nil
}
