package notification

import "time"

// MaxPerUser caps how many notifications are retained per recipient; sending
// past the cap evicts the oldest surviving entries.
const MaxPerUser = 10

// Kind enumerates the events a Notification may describe.
type Kind int

const (
	KindCheckerError Kind = iota + 1 // automated checks failed or could not run
	KindSolutionChecked
	KindLinterError
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"` // UTC
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	RelatedID string    `json:"related_id,omitempty"`
	ActionURL string    `json:"action_url,omitempty"`
	Viewed    bool      `json:"viewed"`
}
