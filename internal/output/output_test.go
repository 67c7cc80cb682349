package output

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

func init() {
	color.NoColor = true
}

func TestReviews_Empty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Reviews(&out, nil, time.Now()))
	assert.Equal(t, "No reviews in flight.\n", out.String())
}

func TestReviews_Rows(t *testing.T) {
	now := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	reviews := []domain.Review{{
		ThreadID:             "1700.0001",
		RequestorID:          "U-REQ",
		Languages:            []string{"Java", "Go"},
		DueBy:                domain.DeadlineTomorrow,
		ReviewersNeededCount: 2,
		PendingReviewers: []domain.PendingReviewer{
			{UserID: "U-A", ExpiresAt: now.Add(12 * time.Minute)},
			{UserID: "U-B", ExpiresAt: now.Add(-time.Minute)},
		},
		AcceptedReviewers: []string{"U-C"},
		DeclinedReviewers: []string{"U-D"},
	}}

	var out bytes.Buffer
	require.NoError(t, Reviews(&out, reviews, now))

	s := out.String()
	assert.Contains(t, s, "1700.0001")
	assert.Contains(t, s, "Java, Go")
	assert.Contains(t, s, "Tomorrow")
	assert.Contains(t, s, "1/2")
	assert.Contains(t, s, "U-A (12m0s left)")
	assert.Contains(t, s, "U-B (expired)")
	assert.Contains(t, s, "U-D")
}

func TestSweep(t *testing.T) {
	var out bytes.Buffer
	Sweep(&out, 4, 2, 0, 1)
	assert.Equal(t, "Swept 4 reviews: 2 expired, 1 failed\n", out.String())

	out.Reset()
	Sweep(&out, 5, 1, 2, 0)
	assert.Equal(t, "Swept 5 reviews: 1 expired, 2 closed\n", out.String())

	out.Reset()
	Sweep(&out, 3, 0, 0, 0)
	assert.Equal(t, "Swept 3 reviews: 0 expired\n", out.String())
}
