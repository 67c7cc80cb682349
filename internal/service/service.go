package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

type ReviewStore interface {
	ListAll(ctx context.Context) ([]domain.Review, error)
	GetByThreadID(ctx context.Context, threadID string) (*domain.Review, error)
	Create(ctx context.Context, review *domain.Review) (*domain.Review, error)
	Update(ctx context.Context, review *domain.Review) (*domain.Review, error)
	Remove(ctx context.Context, threadID string) error
}

type Directory interface {
	ListAll(ctx context.Context) ([]domain.Reviewer, error)
}

type Notifier interface {
	SendDirect(ctx context.Context, userID string, msg domain.Message) (string, error)
	UpdateDirect(ctx context.Context, userID, messageTS string, msg domain.Message) error
	PostToThread(ctx context.Context, threadID, text string) error
}

// Reporter delivers failures to the operators.
type Reporter interface {
	Report(ctx context.Context, text string) error
}

// Service drives the review rotation: accept, decline and expire
// transitions plus closing finished reviews. It holds no review state of its
// own; the store is the only source of truth.
type Service struct {
	log      *slog.Logger
	reviews  ReviewStore
	selector *Selector
	notifier Notifier
	locks    *KeyedLocker

	requestTimeout time.Duration
	now            func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(log *slog.Logger, reviews ReviewStore, selector *Selector, notifier Notifier, requestTimeout time.Duration, opts ...Option) *Service {
	s := &Service{
		log:            log,
		reviews:        reviews,
		selector:       selector,
		notifier:       notifier,
		locks:          NewKeyedLocker(),
		requestTimeout: requestTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListReviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.reviews.ListAll(ctx)
	if err != nil {
		s.log.Error("service.ListReviews: failed to list reviews", slog.Any("error", err))
		return nil, err
	}
	return reviews, nil
}

func (s *Service) GetReview(ctx context.Context, threadID string) (*domain.Review, error) {
	review, err := s.reviews.GetByThreadID(ctx, threadID)
	if err != nil {
		s.log.Error("service.GetReview: failed to get review", slog.String("thread_id", threadID), slog.Any("error", err))
		return nil, err
	}
	return review, nil
}

// CreateReview stores a review produced by the request flow. The review must
// already carry its initial pending reviewers.
func (s *Service) CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error) {
	if err := review.Validate(); err != nil {
		s.log.Warn("service.CreateReview: invalid review", slog.String("thread_id", review.ThreadID), slog.Any("error", err))
		return nil, err
	}

	created, err := s.reviews.Create(ctx, review)
	if err != nil {
		s.log.Error("service.CreateReview: failed to create review", slog.String("thread_id", review.ThreadID), slog.Any("error", err))
		return nil, err
	}

	s.log.Info("service.CreateReview: review created",
		slog.String("thread_id", created.ThreadID), slog.Int("pending", len(created.PendingReviewers)))
	return created, nil
}
