package comment

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// CommentText is a shared, de-duplicated annotation body. Frequently used
// texts (including linter findings keyed by LinterKey) are reused across
// comments instead of being stored again.
type CommentText struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	LinterKey null.String `json:"linter_key,omitempty"`
}

// Comment is one line-anchored annotation on a solution.
type Comment struct {
	ID          string    `json:"id"`
	CommenterID string    `json:"-"`
	AuthorName  string    `json:"author_name"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	LineNumber  int       `json:"line_number"`
	TextID      string    `json:"text_id"`
	Text        string    `json:"text"`
	SolutionID  string    `json:"-"`
	IsAuto      bool      `json:"is_auto"`
}

// NewComment contains information needed to create a new Comment.
type NewComment struct {
	SolutionID string `json:"solution_id" validate:"required"`
	LineNumber int    `json:"line_number" validate:"required,min=1"`
	Text       string `json:"text" validate:"required"`
	IsAuto     bool   `json:"-"`
}
