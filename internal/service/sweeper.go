package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

type ReviewLister interface {
	ListAll(ctx context.Context) ([]domain.Review, error)
}

type Expirer interface {
	ExpireRequest(ctx context.Context, threadID, userID string) error
	CloseIfComplete(ctx context.Context, threadID string) error
}

// Sweeper periodically expires pending requests whose deadline passed.
// Every expired request is an independent unit of work: a failing unit is
// reported and the rest of the sweep carries on. Failed units are picked up
// again by the next sweep since their deadline is still in the past.
// Reviews left with nobody pending, because closing them failed after the
// last transition, are handed back to the completion check.
type Sweeper struct {
	log      *slog.Logger
	reviews  ReviewLister
	expirer  Expirer
	reporter Reporter

	interval time.Duration
	workers  int
	now      func() time.Time
}

type SweepResult struct {
	Reviews int
	Expired int
	Closed  int
	Failed  int
}

func NewSweeper(log *slog.Logger, reviews ReviewLister, expirer Expirer, reporter Reporter, interval time.Duration, workers int) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		log:      log,
		reviews:  reviews,
		expirer:  expirer,
		reporter: reporter,
		interval: interval,
		workers:  workers,
		now:      time.Now,
	}
}

// Run sweeps once right away and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started", slog.Duration("interval", s.interval), slog.Int("workers", s.workers))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.report(ctx, "Review sweep failed:\n"+codeBlock(err.Error()))
		}

		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	log := s.log.With(slog.String("sweep_id", uuid.NewString()))

	reviews, err := s.reviews.ListAll(ctx)
	if err != nil {
		log.Error("sweeper.Sweep: failed to list reviews", slog.Any("error", err))
		return SweepResult{}, fmt.Errorf("list reviews: %w", err)
	}

	now := s.now()
	var expired, closed, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, review := range reviews {
		if len(review.PendingReviewers) == 0 {
			threadID := review.ThreadID
			g.Go(func() error {
				err := s.expirer.CloseIfComplete(ctx, threadID)
				switch {
				case err == nil:
					closed.Add(1)
				case errors.Is(err, domain.ErrReviewNotFound):
					log.Info("sweeper.Sweep: review already closed", slog.String("thread_id", threadID))
				default:
					failed.Add(1)
					log.Error("sweeper.Sweep: failed to close review",
						slog.String("thread_id", threadID), slog.Any("error", err))
					s.report(ctx, closeFailureText(threadID, err))
				}
				return nil
			})
			continue
		}

		for _, pending := range review.PendingReviewers {
			if !pending.Expired(now) {
				continue
			}

			threadID, userID := review.ThreadID, pending.UserID
			g.Go(func() error {
				err := s.expirer.ExpireRequest(ctx, threadID, userID)
				switch {
				case err == nil:
					expired.Add(1)
				case errors.Is(err, domain.ErrReviewNotFound):
					log.Info("sweeper.Sweep: review closed before its request could expire",
						slog.String("thread_id", threadID), slog.String("user_id", userID))
				default:
					failed.Add(1)
					log.Error("sweeper.Sweep: failed to expire request",
						slog.String("thread_id", threadID), slog.String("user_id", userID), slog.Any("error", err))
					s.report(ctx, expireFailureText(threadID, userID, err))
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	res := SweepResult{
		Reviews: len(reviews),
		Expired: int(expired.Load()),
		Closed:  int(closed.Load()),
		Failed:  int(failed.Load()),
	}
	log.Info("sweeper.Sweep: done",
		slog.Int("reviews", res.Reviews), slog.Int("expired", res.Expired),
		slog.Int("closed", res.Closed), slog.Int("failed", res.Failed))
	return res, nil
}

func (s *Sweeper) report(ctx context.Context, text string) {
	if err := s.reporter.Report(ctx, text); err != nil {
		s.log.Error("sweeper: failed to notify operators", slog.String("text", text), slog.Any("error", err))
	}
}
