// Package dummydb provides in-memory repositories for tests and local hacking
// without a running database.
package dummydb

import (
	"sync"

	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/solution"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		user         *userTable
		exercise     *exerciseTable
		solution     *solutionTable
		notification *notificationTable
		comment      *commentTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	exerciseTable struct {
		sync.RWMutex
		table map[string]*exercise.Exercise
	}

	// solutionTable also owns execution results; the queue selector ranks
	// solutions by their result and comment counts so the rows live behind
	// one lock.
	solutionTable struct {
		sync.RWMutex
		table   map[string]*solution.Solution
		results map[string][]solution.ExecutionResult // keyed by solution ID
	}

	notificationTable struct {
		sync.RWMutex
		table map[string]*notification.Notification
	}

	commentTable struct {
		sync.RWMutex
		texts map[string]*comment.CommentText
		table map[string]*comment.Comment
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		exercise: &exerciseTable{table: make(map[string]*exercise.Exercise)},
		solution: &solutionTable{
			table:   make(map[string]*solution.Solution),
			results: make(map[string][]solution.ExecutionResult),
		},
		notification: &notificationTable{table: make(map[string]*notification.Notification)},
		comment: &commentTable{
			texts: make(map[string]*comment.CommentText),
			table: make(map[string]*comment.Comment),
		},
	}
	return db, nil
}
