package service

import (
	"fmt"
	"strings"

	"github.com/3eLLenKa/review-rotation/internal/domain"
)

type Reason int

const (
	ReasonDeclined Reason = iota
	ReasonExpired
)

func (r Reason) String() string {
	if r == ReasonExpired {
		return "expired"
	}
	return "declined"
}

func (r Reason) closeMessage() string {
	if r == ReasonExpired {
		return "The request has expired. You will keep your spot in the queue."
	}
	return "Thanks! You will keep your spot in the queue."
}

const withdrawnText = "This request is no longer needed. You will keep your spot in the queue."

func mention(userID string) string {
	return fmt.Sprintf("<@%s>", userID)
}

func codeBlock(text string) string {
	return "```" + text + "```"
}

func requestContext(review *domain.Review) string {
	return fmt.Sprintf("Requested by %s | Languages: %s | Due: %s",
		mention(review.RequestorID),
		strings.Join(review.Languages, ", "),
		review.DueBy.Label(),
	)
}

func requestMessage(review *domain.Review) domain.Message {
	return domain.Message{
		Context:  requestContext(review),
		Text:     fmt.Sprintf("%s has requested a code review. Can you take it?", mention(review.RequestorID)),
		ThreadID: review.ThreadID,
		Actions:  true,
	}
}

func acceptedMessage(review *domain.Review) domain.Message {
	return domain.Message{
		Context: requestContext(review),
		Text:    "Thanks for accepting! Details are in the review thread.",
	}
}

func fulfilledText(review *domain.Review) string {
	return fmt.Sprintf("%s all %d reviewers have been found!", mention(review.RequestorID), review.ReviewersNeededCount)
}

func exhaustedText(review *domain.Review) string {
	return fmt.Sprintf("%s %d of %d needed reviewers found. No more potential reviewers are available.",
		mention(review.RequestorID), len(review.AcceptedReviewers), review.ReviewersNeededCount)
}

func expireFailureText(threadID, userID string, err error) string {
	return fmt.Sprintf("Failed to expire the review request of %s on thread %s:\n%s", mention(userID), threadID, codeBlock(err.Error()))
}

func closeFailureText(threadID string, err error) string {
	return fmt.Sprintf("Failed to close the review on thread %s:\n%s", threadID, codeBlock(err.Error()))
}

// FailureText is sent back to a user whose action could not be processed.
func FailureText(err error) string {
	return "Something went wrong :/\n" + codeBlock(err.Error())
}
