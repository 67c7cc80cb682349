package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

var testNow = time.UnixMilli(1000000)

const testTimeout = 30 * time.Minute

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeStore struct {
	mu        sync.Mutex
	reviews   map[string]*domain.Review
	updates   int
	removed   []string
	updateErr error
	removeErr error
}

func newFakeStore(reviews ...*domain.Review) *fakeStore {
	s := &fakeStore{reviews: make(map[string]*domain.Review)}
	for _, r := range reviews {
		s.reviews[r.ThreadID] = r.Clone()
	}
	return s
}

func (s *fakeStore) ListAll(_ context.Context) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]domain.Review, 0, len(s.reviews))
	for _, r := range s.reviews {
		res = append(res, *r.Clone())
	}
	return res, nil
}

func (s *fakeStore) GetByThreadID(_ context.Context, threadID string) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[threadID]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return r.Clone(), nil
}

func (s *fakeStore) Create(_ context.Context, review *domain.Review) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[review.ThreadID]; ok {
		return nil, domain.ErrReviewExists
	}
	s.reviews[review.ThreadID] = review.Clone()
	return review.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, review *domain.Review) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	if _, ok := s.reviews[review.ThreadID]; !ok {
		return nil, domain.ErrReviewNotFound
	}
	s.updates++
	s.reviews[review.ThreadID] = review.Clone()
	return review.Clone(), nil
}

func (s *fakeStore) Remove(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeErr != nil {
		return s.removeErr
	}
	delete(s.reviews, threadID)
	s.removed = append(s.removed, threadID)
	return nil
}

func (s *fakeStore) get(t *testing.T, threadID string) *domain.Review {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[threadID]
	if !ok {
		t.Fatalf("review %s not in store", threadID)
	}
	return r.Clone()
}

type fakeDirectory struct {
	reviewers []domain.Reviewer
	err       error
}

func (d *fakeDirectory) ListAll(_ context.Context) ([]domain.Reviewer, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.reviewers, nil
}

type sentMessage struct {
	UserID string
	TS     string
	Msg    domain.Message
}

type threadPost struct {
	ThreadID string
	Text     string
}

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []sentMessage
	updated  []sentMessage
	posts    []threadPost
	sendErr  error
	postErr  error
	sequence int
}

func (n *fakeNotifier) SendDirect(_ context.Context, userID string, msg domain.Message) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sendErr != nil {
		return "", n.sendErr
	}
	n.sequence++
	ts := fmt.Sprintf("ts-%d", n.sequence)
	n.sent = append(n.sent, sentMessage{UserID: userID, TS: ts, Msg: msg})
	return ts, nil
}

func (n *fakeNotifier) UpdateDirect(_ context.Context, userID, messageTS string, msg domain.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.updated = append(n.updated, sentMessage{UserID: userID, TS: messageTS, Msg: msg})
	return nil
}

func (n *fakeNotifier) PostToThread(_ context.Context, threadID, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.postErr != nil {
		return n.postErr
	}
	n.posts = append(n.posts, threadPost{ThreadID: threadID, Text: text})
	return nil
}

type fakeReporter struct {
	mu      sync.Mutex
	reports []string
}

func (r *fakeReporter) Report(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, text)
	return nil
}

type fixture struct {
	store    *fakeStore
	dir      *fakeDirectory
	notifier *fakeNotifier
	svc      *Service
}

func newFixture(reviewers []domain.Reviewer, reviews ...*domain.Review) *fixture {
	f := &fixture{
		store:    newFakeStore(reviews...),
		dir:      &fakeDirectory{reviewers: reviewers},
		notifier: &fakeNotifier{},
	}
	selector := NewSelector(discardLogger(), f.dir, rand.New(rand.NewPCG(1, 2)))
	f.svc = New(discardLogger(), f.store, selector, f.notifier, testTimeout, WithClock(func() time.Time { return testNow }))
	return f
}

func pending(userID string, expiresIn time.Duration) domain.PendingReviewer {
	return domain.PendingReviewer{
		UserID:           userID,
		ExpiresAt:        testNow.Add(expiresIn),
		MessageTimestamp: "msg-" + userID,
	}
}

func javaReview(threadID string, pendings ...domain.PendingReviewer) *domain.Review {
	return &domain.Review{
		ThreadID:             threadID,
		RequestorID:          "123",
		Languages:            []string{"Java"},
		RequestedAt:          testNow.Add(-time.Hour),
		DueBy:                domain.DeadlineMonday,
		ReviewersNeededCount: 2,
		PendingReviewers:     pendings,
	}
}

func assertDisjoint(t *testing.T, r *domain.Review) {
	t.Helper()
	seen := map[string]string{}
	mark := func(id, set string) {
		if prev, ok := seen[id]; ok {
			t.Errorf("user %s is both %s and %s", id, prev, set)
		}
		seen[id] = set
	}
	for _, p := range r.PendingReviewers {
		mark(p.UserID, "pending")
	}
	for _, id := range r.AcceptedReviewers {
		mark(id, "accepted")
	}
	for _, id := range r.DeclinedReviewers {
		mark(id, "declined")
	}
}
