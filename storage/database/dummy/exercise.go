package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/exercise"
)

type exerciseRepository struct {
	db *exerciseTable
}

var _ exercise.Repository = (*exerciseRepository)(nil) // interface compliance check

func NewExerciseRepository(db *DB) exercise.Repository {
	return &exerciseRepository{db: db.exercise}
}

func (repo *exerciseRepository) CreateExercise(ctx context.Context, ex exercise.Exercise) (exercise.Exercise, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ex.ID = uuid.New().String()
	repo.db.table[ex.ID] = &ex
	return ex, nil
}

func (repo *exerciseRepository) GetExerciseByID(ctx context.Context, id string) (exercise.Exercise, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ex, ok := repo.db.table[id]; ok {
		return *ex, nil
	}
	return exercise.Exercise{}, exercise.ErrNotFound
}

func (repo *exerciseRepository) QueryExercises(ctx context.Context, fetchArchived bool) ([]exercise.Exercise, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exercises := make([]exercise.Exercise, 0, len(repo.db.table))
	for _, ex := range repo.db.table {
		if ex.IsArchived && !fetchArchived {
			continue
		}
		exercises = append(exercises, *ex)
	}
	sort.Slice(exercises, func(i, j int) bool {
		if exercises[i].Order != exercises[j].Order {
			return exercises[i].Order < exercises[j].Order
		}
		return exercises[i].CreatedAt.Before(exercises[j].CreatedAt)
	})
	return exercises, nil
}
