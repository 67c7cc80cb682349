// Package output renders review state for the command line.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

var (
	cyan   = color.New(color.FgHiCyan).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
)

func table(w io.Writer, headers []string) *tablewriter.Table {
	t := tablewriter.NewTable(w,
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Lines:      tw.LinesNone,
				Separators: tw.SeparatorsNone,
			},
		}),
		tablewriter.WithPadding(tw.Padding{Left: "", Right: "  "}),
	)
	t.Header(headers)
	return t
}

// Reviews prints one row per in-flight review.
func Reviews(w io.Writer, reviews []domain.Review, now time.Time) error {
	if len(reviews) == 0 {
		_, err := fmt.Fprintln(w, "No reviews in flight.")
		return err
	}

	t := table(w, []string{"Thread", "Requestor", "Languages", "Due", "Accepted", "Pending", "Declined"})
	for _, r := range reviews {
		_ = t.Append([]string{
			cyan(r.ThreadID),
			r.RequestorID,
			strings.Join(r.Languages, ", "),
			r.DueBy.Label(),
			progress(len(r.AcceptedReviewers), r.ReviewersNeededCount),
			pending(r.PendingReviewers, now),
			strings.Join(r.DeclinedReviewers, ", "),
		})
	}
	return t.Render()
}

func progress(accepted, needed int) string {
	s := fmt.Sprintf("%d/%d", accepted, needed)
	if accepted >= needed {
		return green(s)
	}
	return yellow(s)
}

func pending(reviewers []domain.PendingReviewer, now time.Time) string {
	parts := make([]string, 0, len(reviewers))
	for _, p := range reviewers {
		if p.Expired(now) {
			parts = append(parts, red(p.UserID+" (expired)"))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s left)", p.UserID, p.ExpiresAt.Sub(now).Round(time.Minute)))
	}
	return strings.Join(parts, ", ")
}

// Sweep summarizes a single sweep run.
func Sweep(w io.Writer, reviews, expired, closed, failed int) {
	summary := fmt.Sprintf("Swept %d reviews: %s expired", reviews, cyan(expired))
	if closed > 0 {
		summary += fmt.Sprintf(", %s closed", cyan(closed))
	}
	if failed > 0 {
		summary += ", " + red(fmt.Sprintf("%d failed", failed))
	}
	fmt.Fprintln(w, summary)
}
