package service

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

// Selector picks the next reviewer to offer a review to. Reviewers who never
// reviewed go first, then the ones whose last review is the oldest. Exact
// ties are broken by a uniform random pick that is redrawn on every call.
type Selector struct {
	log       *slog.Logger
	directory Directory

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSelector(log *slog.Logger, directory Directory, rnd *rand.Rand) *Selector {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{
		log:       log,
		directory: directory,
		rnd:       rnd,
	}
}

// SelectNext returns the best eligible reviewer for review, or nil when the
// pool is exhausted.
func (s *Selector) SelectNext(ctx context.Context, review *domain.Review, excluded map[string]struct{}) (*domain.Reviewer, error) {
	reviewers, err := s.directory.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviewers: %w", err)
	}

	candidates := eligible(reviewers, review.Languages, excluded)
	if len(candidates) == 0 {
		s.log.Debug("service.SelectNext: next reviewer not found", slog.String("thread_id", review.ThreadID))
		return nil, nil
	}

	best := leastRecent(candidates)

	s.mu.Lock()
	pick := best[s.rnd.IntN(len(best))]
	s.mu.Unlock()

	return &pick, nil
}

func eligible(reviewers []domain.Reviewer, languages []string, excluded map[string]struct{}) []domain.Reviewer {
	res := make([]domain.Reviewer, 0, len(reviewers))
	for _, r := range reviewers {
		if _, skip := excluded[r.ID]; skip {
			continue
		}
		if !containsAny(r.Languages, languages) {
			continue
		}
		res = append(res, r)
	}
	return res
}

// leastRecent returns every candidate sharing the highest priority rank.
func leastRecent(candidates []domain.Reviewer) []domain.Reviewer {
	best := []domain.Reviewer{candidates[0]}
	for _, c := range candidates[1:] {
		switch cmp := compareLastReviewed(c, best[0]); {
		case cmp < 0:
			best = []domain.Reviewer{c}
		case cmp == 0:
			best = append(best, c)
		}
	}
	return best
}

func compareLastReviewed(l, r domain.Reviewer) int {
	switch {
	case l.LastReviewedAt == nil && r.LastReviewedAt == nil:
		return 0
	case l.LastReviewedAt == nil:
		return -1
	case r.LastReviewedAt == nil:
		return 1
	default:
		return l.LastReviewedAt.Compare(*r.LastReviewedAt)
	}
}

func containsAny(have, want []string) bool {
	for _, w := range want {
		if slices.Contains(have, w) {
			return true
		}
	}
	return false
}
