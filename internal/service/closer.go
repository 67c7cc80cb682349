package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

// CloseIfComplete re-reads the review and closes it when nobody is pending
// anymore. It takes the review lock, so it must not be called from inside a
// transition.
func (s *Service) CloseIfComplete(ctx context.Context, threadID string) error {
	unlock := s.locks.Lock(threadID)
	defer unlock()

	review, err := s.reviews.GetByThreadID(ctx, threadID)
	if err != nil {
		s.log.Error("service.CloseIfComplete: failed to get review", slog.String("thread_id", threadID), slog.Any("error", err))
		return err
	}
	return s.closeIfComplete(ctx, review)
}

// closeIfComplete decides on a review that was just persisted. While anyone
// is pending the review stays open no matter how late it is. Otherwise it is
// either fulfilled or exhausted, the requestor is told which, and the review
// is removed.
func (s *Service) closeIfComplete(ctx context.Context, review *domain.Review) error {
	if len(review.PendingReviewers) > 0 {
		return nil
	}

	text := exhaustedText(review)
	if review.Fulfilled() {
		text = fulfilledText(review)
	}

	if err := s.notifier.PostToThread(ctx, review.ThreadID, text); err != nil {
		s.log.Error("service.closeIfComplete: failed to post closing message", slog.String("thread_id", review.ThreadID), slog.Any("error", err))
		return fmt.Errorf("post closing message: %w", err)
	}

	if err := s.reviews.Remove(ctx, review.ThreadID); err != nil {
		s.log.Error("service.closeIfComplete: failed to remove review", slog.String("thread_id", review.ThreadID), slog.Any("error", err))
		return fmt.Errorf("remove review: %w", err)
	}

	s.log.Info("service.closeIfComplete: review closed",
		slog.String("thread_id", review.ThreadID),
		slog.Bool("fulfilled", review.Fulfilled()),
		slog.Int("accepted", len(review.AcceptedReviewers)),
		slog.Int("needed", review.ReviewersNeededCount))
	return nil
}
