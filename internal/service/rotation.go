package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

func (s *Service) DeclineRequest(ctx context.Context, threadID, userID string) error {
	return s.moveOntoNextPerson(ctx, threadID, userID, ReasonDeclined)
}

func (s *Service) ExpireRequest(ctx context.Context, threadID, userID string) error {
	return s.moveOntoNextPerson(ctx, threadID, userID, ReasonExpired)
}

// moveOntoNextPerson takes userID off the pending list, backfills the slot
// with the next candidate and persists the result in a single update. Users
// that are not pending are ignored so repeated declines and expirations are
// harmless.
func (s *Service) moveOntoNextPerson(ctx context.Context, threadID, userID string, reason Reason) error {
	unlock := s.locks.Lock(threadID)
	defer unlock()

	review, err := s.reviews.GetByThreadID(ctx, threadID)
	if err != nil {
		s.log.Error("service.moveOntoNextPerson: failed to get review", slog.String("thread_id", threadID), slog.Any("error", err))
		return err
	}

	updated := review.Clone()
	prior, ok := updated.Decline(userID)
	if !ok {
		s.log.Info("service.moveOntoNextPerson: user is not pending, skipping",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.String("reason", reason.String()))
		return nil
	}

	requested, err := s.requestNext(ctx, updated)
	if err != nil {
		s.log.Error("service.moveOntoNextPerson: failed to request next reviewer",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	if _, err := s.reviews.Update(ctx, updated); err != nil {
		s.log.Error("service.moveOntoNextPerson: failed to update review",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
		if requested != nil {
			s.withdrawRequest(ctx, updated, *requested)
		}
		return err
	}

	s.log.Info("service.moveOntoNextPerson: request closed",
		slog.String("thread_id", threadID), slog.String("user_id", userID), slog.String("reason", reason.String()),
		slog.Int("pending", len(updated.PendingReviewers)))

	var notifyErr error
	closeMsg := domain.Message{Context: requestContext(updated), Text: reason.closeMessage()}
	if err := s.notifier.UpdateDirect(ctx, prior.UserID, prior.MessageTimestamp, closeMsg); err != nil {
		s.log.Error("service.moveOntoNextPerson: failed to update request message",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
		notifyErr = fmt.Errorf("update request message of %s: %w", userID, err)
	}

	return errors.Join(notifyErr, s.closeIfComplete(ctx, updated))
}

// requestNext offers the review to the next candidate and appends them to
// the pending list. The caller persists. With no candidate left the slot
// stays vacant and nil is returned.
func (s *Service) requestNext(ctx context.Context, review *domain.Review) (*domain.PendingReviewer, error) {
	next, err := s.selector.SelectNext(ctx, review, review.ExcludedIDs())
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, nil
	}

	expiresAt := s.now().Add(s.requestTimeout)
	messageTS, err := s.notifier.SendDirect(ctx, next.ID, requestMessage(review))
	if err != nil {
		return nil, fmt.Errorf("send review request to %s: %w", next.ID, err)
	}

	requested := domain.PendingReviewer{
		UserID:           next.ID,
		ExpiresAt:        expiresAt,
		MessageTimestamp: messageTS,
	}
	review.PendingReviewers = append(review.PendingReviewers, requested)

	s.log.Debug("service.requestNext: next reviewer requested",
		slog.String("thread_id", review.ThreadID), slog.String("user_id", next.ID), slog.Time("expires_at", expiresAt))
	return &requested, nil
}

// withdrawRequest replaces the buttons of a request that was sent but never
// saved, so the candidate cannot act on a slot that does not exist.
func (s *Service) withdrawRequest(ctx context.Context, review *domain.Review, requested domain.PendingReviewer) {
	msg := domain.Message{Context: requestContext(review), Text: withdrawnText}
	if err := s.notifier.UpdateDirect(ctx, requested.UserID, requested.MessageTimestamp, msg); err != nil {
		s.log.Error("service.withdrawRequest: failed to withdraw unsaved request",
			slog.String("thread_id", review.ThreadID), slog.String("user_id", requested.UserID), slog.Any("error", err))
	}
}

// AcceptRequest moves userID from pending to accepted. An accepted slot is
// never refilled.
func (s *Service) AcceptRequest(ctx context.Context, threadID, userID string) error {
	unlock := s.locks.Lock(threadID)
	defer unlock()

	review, err := s.reviews.GetByThreadID(ctx, threadID)
	if err != nil {
		s.log.Error("service.AcceptRequest: failed to get review", slog.String("thread_id", threadID), slog.Any("error", err))
		return err
	}

	updated := review.Clone()
	prior, err := updated.Accept(userID)
	if err != nil {
		s.log.Warn("service.AcceptRequest: user attempted to accept but was not pending",
			slog.String("thread_id", threadID), slog.String("user_id", userID))
		return err
	}

	if _, err := s.reviews.Update(ctx, updated); err != nil {
		s.log.Error("service.AcceptRequest: failed to update review",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
		return err
	}

	if err := s.notifier.UpdateDirect(ctx, userID, prior.MessageTimestamp, acceptedMessage(updated)); err != nil {
		s.log.Warn("service.AcceptRequest: failed to update request message",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
	}
	if err := s.notifier.PostToThread(ctx, threadID, mention(userID)+" will review this request."); err != nil {
		s.log.Warn("service.AcceptRequest: failed to announce reviewer in thread",
			slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
	}

	return s.closeIfComplete(ctx, updated)
}
