package domain

import (
	"fmt"
	"slices"
)

// ExcludedIDs returns every user already involved with the review: pending,
// accepted or declined. None of them may be offered the review again.
func (r *Review) ExcludedIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(r.PendingReviewers)+len(r.AcceptedReviewers)+len(r.DeclinedReviewers))
	for _, p := range r.PendingReviewers {
		ids[p.UserID] = struct{}{}
	}
	for _, id := range r.AcceptedReviewers {
		ids[id] = struct{}{}
	}
	for _, id := range r.DeclinedReviewers {
		ids[id] = struct{}{}
	}
	return ids
}

func (r *Review) PendingReviewer(userID string) (PendingReviewer, bool) {
	for _, p := range r.PendingReviewers {
		if p.UserID == userID {
			return p, true
		}
	}
	return PendingReviewer{}, false
}

func (r *Review) removePending(userID string) {
	r.PendingReviewers = slices.DeleteFunc(r.PendingReviewers, func(p PendingReviewer) bool {
		return p.UserID == userID
	})
}

// Decline moves a pending user to the declined list. It reports false when
// the user was not pending.
func (r *Review) Decline(userID string) (PendingReviewer, bool) {
	prior, ok := r.PendingReviewer(userID)
	if !ok {
		return PendingReviewer{}, false
	}
	r.removePending(userID)
	r.DeclinedReviewers = append(r.DeclinedReviewers, userID)
	return prior, true
}

// Accept moves a pending user to the accepted list.
func (r *Review) Accept(userID string) (PendingReviewer, error) {
	prior, ok := r.PendingReviewer(userID)
	if !ok {
		return PendingReviewer{}, fmt.Errorf("%s on %s: %w", userID, r.ThreadID, ErrNotPending)
	}
	r.removePending(userID)
	r.AcceptedReviewers = append(r.AcceptedReviewers, userID)
	return prior, nil
}

func (r *Review) Fulfilled() bool {
	return len(r.AcceptedReviewers) >= r.ReviewersNeededCount
}

func (r *Review) Clone() *Review {
	c := *r
	c.Languages = slices.Clone(r.Languages)
	c.PendingReviewers = slices.Clone(r.PendingReviewers)
	c.AcceptedReviewers = slices.Clone(r.AcceptedReviewers)
	c.DeclinedReviewers = slices.Clone(r.DeclinedReviewers)
	return &c
}

func (r *Review) Validate() error {
	switch {
	case r.ThreadID == "":
		return fmt.Errorf("%w: thread id is empty", ErrInvalidReview)
	case r.RequestorID == "":
		return fmt.Errorf("%w: requestor id is empty", ErrInvalidReview)
	case len(r.Languages) == 0:
		return fmt.Errorf("%w: no languages requested", ErrInvalidReview)
	case r.ReviewersNeededCount < 1:
		return fmt.Errorf("%w: reviewers needed count %d is below 1", ErrInvalidReview, r.ReviewersNeededCount)
	}

	seen := make(map[string]struct{})
	check := func(id string) error {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: user %s appears more than once", ErrInvalidReview, id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, p := range r.PendingReviewers {
		if err := check(p.UserID); err != nil {
			return err
		}
	}
	for _, id := range r.AcceptedReviewers {
		if err := check(id); err != nil {
			return err
		}
	}
	for _, id := range r.DeclinedReviewers {
		if err := check(id); err != nil {
			return err
		}
	}
	return nil
}
