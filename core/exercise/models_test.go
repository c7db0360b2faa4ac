package exercise

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"
)

func TestExercise_OpenForNewSolutions(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name string
		ex   Exercise
		want bool
	}{
		{"no due date", Exercise{}, true},
		{"before due date", Exercise{DueDate: null.TimeFrom(now.Add(time.Hour))}, true},
		{"past due date", Exercise{DueDate: null.TimeFrom(now.Add(-time.Hour))}, false},
		{"archived", Exercise{IsArchived: true}, false},
		{"archived before due date", Exercise{IsArchived: true, DueDate: null.TimeFrom(now.Add(time.Hour))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ex.OpenForNewSolutions(now))
		})
	}
}
