package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/exercise"
)

type exerciseRepository struct {
	db core.DB
}

var _ exercise.Repository = (*exerciseRepository)(nil) // interface compliance check

func NewExerciseRepository(db core.DB) exercise.Repository {
	return &exerciseRepository{db: db}
}

type exerciseRow struct {
	ID         string    `db:"id"`
	Subject    string    `db:"subject"`
	IsArchived bool      `db:"is_archived"`
	DueDate    null.Time `db:"due_date"`
	Order      int       `db:"display_order"`
	CreatedAt  time.Time `db:"created_at"`
}

func (repo exerciseRepository) unrow(row exerciseRow) exercise.Exercise {
	return exercise.Exercise{
		ID:         row.ID,
		Subject:    row.Subject,
		IsArchived: row.IsArchived,
		DueDate:    row.DueDate,
		Order:      row.Order,
		CreatedAt:  row.CreatedAt,
	}
}

var exerciseColumns = []string{"id", "subject", "is_archived", "due_date", "display_order", "created_at"}

func (repo exerciseRepository) CreateExercise(ctx context.Context, ex exercise.Exercise) (exercise.Exercise, error) {
	ex.ID = uuid.New().String()
	query, args, err := psql.Insert("exercise").
		Columns(exerciseColumns...).
		Values(ex.ID, ex.Subject, ex.IsArchived, ex.DueDate, ex.Order, ex.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return exercise.Exercise{}, errors.Wrap(err, "building exercise insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return exercise.Exercise{}, errors.Wrap(err, "inserting exercise")
	}
	return ex, nil
}

func (repo exerciseRepository) GetExerciseByID(ctx context.Context, id string) (exercise.Exercise, error) {
	if _, err := uuid.Parse(id); err != nil {
		return exercise.Exercise{}, exercise.ErrNotFound
	}
	query, args, err := psql.Select(exerciseColumns...).From("exercise").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return exercise.Exercise{}, errors.Wrap(err, "building exercise query")
	}
	var row exerciseRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return exercise.Exercise{}, trapNoRowsErr(err, exercise.ErrNotFound, "finding exercise")
	}
	return repo.unrow(row), nil
}

func (repo exerciseRepository) QueryExercises(ctx context.Context, fetchArchived bool) ([]exercise.Exercise, error) {
	builder := psql.Select(exerciseColumns...).From("exercise").
		OrderBy("display_order ASC", "created_at ASC")
	if !fetchArchived {
		builder = builder.Where(sq.Eq{"is_archived": false})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building exercises query")
	}
	var rows []exerciseRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying exercises")
	}
	exercises := make([]exercise.Exercise, 0, len(rows))
	for _, row := range rows {
		exercises = append(exercises, repo.unrow(row))
	}
	return exercises, nil
}
