package exercise

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Exercise is a unit of coursework. The catalog is administered outside the
// review pipeline; the pipeline only ever reads it.
type Exercise struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	IsArchived bool      `json:"is_archived"`
	DueDate    null.Time `json:"due_date"`
	Order      int       `json:"order"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// OpenForNewSolutions reports whether the exercise still accepts submissions.
func (e Exercise) OpenForNewSolutions(now time.Time) bool {
	if e.IsArchived {
		return false
	}
	if !e.DueDate.Valid {
		return true
	}
	return now.Before(e.DueDate.Time)
}

// NewExercise contains information needed to create a new Exercise.
type NewExercise struct {
	Subject string    `json:"subject" validate:"required"`
	DueDate null.Time `json:"due_date"`
	Order   int       `json:"order"`
}
