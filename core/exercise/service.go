package exercise

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/darasa/core"
)

var ErrNotFound = errors.New("exercise not found")

type (
	Repository interface {
		CreateExercise(ctx context.Context, ex Exercise) (Exercise, error)
		GetExerciseByID(ctx context.Context, id string) (Exercise, error)
		// QueryExercises returns exercises ordered by display order; archived
		// ones are excluded unless fetchArchived is set.
		QueryExercises(ctx context.Context, fetchArchived bool) ([]Exercise, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ne NewExercise) (Exercise, error) {
	ne.Subject = core.CleanString(ne.Subject)
	if err := core.Validate.Struct(ne); err != nil {
		return Exercise{}, err
	}
	ex := Exercise{
		Subject:   ne.Subject,
		DueDate:   ne.DueDate,
		Order:     ne.Order,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateExercise(ctx, ex)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Exercise, error) {
	return svc.repo.GetExerciseByID(ctx, id)
}

func (svc *Service) QueryAll(ctx context.Context, fetchArchived ...bool) ([]Exercise, error) {
	var archived bool
	if len(fetchArchived) > 0 {
		archived = fetchArchived[0]
	}
	return svc.repo.QueryExercises(ctx, archived)
}
