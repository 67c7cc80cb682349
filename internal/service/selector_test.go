package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

func at(minutes int) *time.Time {
	t := testNow.Add(time.Duration(minutes) * time.Minute)
	return &t
}

func newTestSelector(reviewers ...domain.Reviewer) *Selector {
	return NewSelector(discardLogger(), &fakeDirectory{reviewers: reviewers}, rand.New(rand.NewPCG(7, 7)))
}

func TestSelectNext_FiltersExcludedAndLanguages(t *testing.T) {
	s := newTestSelector(
		domain.Reviewer{ID: "A", Languages: []string{"Java"}},
		domain.Reviewer{ID: "B", Languages: []string{"Go"}},
		domain.Reviewer{ID: "C", Languages: []string{"Python", "Java"}, LastReviewedAt: at(-10)},
	)
	review := javaReview("1")

	next, err := s.SelectNext(context.Background(), review, map[string]struct{}{"A": {}})
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "C", next.ID)
}

func TestSelectNext_NeverReviewedFirst(t *testing.T) {
	s := newTestSelector(
		domain.Reviewer{ID: "old", Languages: []string{"Java"}, LastReviewedAt: at(-1000)},
		domain.Reviewer{ID: "never", Languages: []string{"Java"}},
		domain.Reviewer{ID: "recent", Languages: []string{"Java"}, LastReviewedAt: at(-1)},
	)

	for range 20 {
		next, err := s.SelectNext(context.Background(), javaReview("1"), nil)
		require.NoError(t, err)
		assert.Equal(t, "never", next.ID)
	}
}

func TestSelectNext_OldestReviewFirst(t *testing.T) {
	s := newTestSelector(
		domain.Reviewer{ID: "recent", Languages: []string{"Java"}, LastReviewedAt: at(-1)},
		domain.Reviewer{ID: "old", Languages: []string{"Java"}, LastReviewedAt: at(-1000)},
		domain.Reviewer{ID: "middle", Languages: []string{"Java"}, LastReviewedAt: at(-100)},
	)

	next, err := s.SelectNext(context.Background(), javaReview("1"), nil)
	require.NoError(t, err)
	assert.Equal(t, "old", next.ID)
}

func TestSelectNext_TiesAreRandomized(t *testing.T) {
	s := newTestSelector(
		domain.Reviewer{ID: "A", Languages: []string{"Java"}},
		domain.Reviewer{ID: "B", Languages: []string{"Java"}},
		domain.Reviewer{ID: "C", Languages: []string{"Java"}, LastReviewedAt: at(-1)},
	)

	picked := map[string]int{}
	for range 200 {
		next, err := s.SelectNext(context.Background(), javaReview("1"), nil)
		require.NoError(t, err)
		picked[next.ID]++
	}

	assert.Positive(t, picked["A"])
	assert.Positive(t, picked["B"])
	assert.Zero(t, picked["C"])
}

func TestSelectNext_SameSeedSameChoices(t *testing.T) {
	reviewers := []domain.Reviewer{
		{ID: "A", Languages: []string{"Java"}},
		{ID: "B", Languages: []string{"Java"}},
		{ID: "C", Languages: []string{"Java"}},
	}
	first := newTestSelector(reviewers...)
	second := newTestSelector(reviewers...)

	for range 10 {
		a, err := first.SelectNext(context.Background(), javaReview("1"), nil)
		require.NoError(t, err)
		b, err := second.SelectNext(context.Background(), javaReview("1"), nil)
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)
	}
}

func TestSelectNext_Exhausted(t *testing.T) {
	s := newTestSelector(
		domain.Reviewer{ID: "A", Languages: []string{"Java"}},
		domain.Reviewer{ID: "B", Languages: []string{"Go"}},
	)

	next, err := s.SelectNext(context.Background(), javaReview("1"), map[string]struct{}{"A": {}})
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestSelectNext_DirectoryFailure(t *testing.T) {
	boom := errors.New("directory down")
	s := NewSelector(discardLogger(), &fakeDirectory{err: boom}, nil)

	_, err := s.SelectNext(context.Background(), javaReview("1"), nil)
	assert.ErrorIs(t, err, boom)
}
