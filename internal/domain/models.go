package domain

import "time"

type Deadline string

const (
	DeadlineEndOfDay  Deadline = "END_OF_DAY"
	DeadlineTomorrow  Deadline = "TOMORROW"
	DeadlineEndOfWeek Deadline = "END_OF_WEEK"
	DeadlineMonday    Deadline = "MONDAY"
	DeadlineNone      Deadline = "NONE"
)

var deadlineLabels = map[Deadline]string{
	DeadlineEndOfDay:  "End of day",
	DeadlineTomorrow:  "Tomorrow",
	DeadlineEndOfWeek: "End of week",
	DeadlineMonday:    "Monday",
	DeadlineNone:      "Other",
}

// Label is the human readable form of the deadline, "Unknown" for values
// that were never defined.
func (d Deadline) Label() string {
	if label, ok := deadlineLabels[d]; ok {
		return label
	}
	return "Unknown"
}

type Reviewer struct {
	ID             string
	Languages      []string
	LastReviewedAt *time.Time
}

type PendingReviewer struct {
	UserID           string    `json:"userId"`
	ExpiresAt        time.Time `json:"expiresAt"`
	MessageTimestamp string    `json:"messageTimestamp"`
}

// Expired reports whether the request ran out before now. A request expiring
// at exactly now is still alive.
func (p PendingReviewer) Expired(now time.Time) bool {
	return p.ExpiresAt.Before(now)
}

type Review struct {
	ThreadID             string
	RequestorID          string
	Languages            []string
	RequestedAt          time.Time
	DueBy                Deadline
	ReviewersNeededCount int
	PendingReviewers     []PendingReviewer
	AcceptedReviewers    []string
	DeclinedReviewers    []string
}

// Message is the content of a direct message or a thread reply.
// ThreadID set together with Actions renders accept/decline buttons bound to
// that review.
type Message struct {
	Context  string
	Text     string
	ThreadID string
	Actions  bool
}
