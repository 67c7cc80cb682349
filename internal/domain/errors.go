package domain

import "errors"

var (
	ErrReviewNotFound = errors.New("NOT_FOUND: review not found")
	ErrReviewExists   = errors.New("REVIEW_EXISTS: review for this thread already exists")
	ErrNotPending     = errors.New("NOT_PENDING: user is not a pending reviewer of this review")
	ErrInvalidReview  = errors.New("INVALID_REVIEW: review violates its invariants")
)
