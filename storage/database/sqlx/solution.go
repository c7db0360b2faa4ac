package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/solution"
)

type solutionRepository struct {
	db core.DB
}

var _ solution.Repository = (*solutionRepository)(nil) // interface compliance check

func NewSolutionRepository(db core.DB) solution.Repository {
	return &solutionRepository{db: db}
}

type solutionRow struct {
	ID          string      `db:"id"`
	ExerciseID  string      `db:"exercise_id"`
	SolverID    string      `db:"solver_id"`
	CheckerID   null.String `db:"checker_id"`
	State       string      `db:"state"`
	Grade       int         `db:"grade"`
	SubmittedAt time.Time   `db:"submitted_at"`
	Code        string      `db:"code"`
}

func (repo solutionRepository) unrow(row solutionRow) solution.Solution {
	return solution.Solution{
		ID:          row.ID,
		ExerciseID:  row.ExerciseID,
		SolverID:    row.SolverID,
		CheckerID:   row.CheckerID.String,
		State:       solution.State(row.State),
		Grade:       row.Grade,
		SubmittedAt: row.SubmittedAt,
		Code:        row.Code,
	}
}

var solutionColumns = []string{
	"id", "exercise_id", "solver_id", "checker_id", "state", "grade", "submitted_at", "code",
}

// CreateSolution inserts the new version and supersedes prior non-terminal
// versions of the same (exercise, solver) pair in one transaction, so a
// crash cannot strand older versions in the review queue.
func (repo solutionRepository) CreateSolution(ctx context.Context, sol solution.Solution) (solution.Solution, int, error) {
	sol.ID = uuid.New().String()

	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "beginning solution insert")
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := psql.Insert("solution").
		Columns(solutionColumns...).
		Values(
			sol.ID, sol.ExerciseID, sol.SolverID,
			null.NewString(sol.CheckerID, sol.CheckerID != ""),
			string(sol.State), sol.Grade, sol.SubmittedAt.UTC(), sol.Code,
		).ToSql()
	if err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "building solution insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "inserting solution")
	}

	query, args, err = psql.Update("solution").
		Set("state", string(solution.StateOldSolution)).
		Where(sq.Eq{
			"exercise_id": sol.ExerciseID,
			"solver_id":   sol.SolverID,
			"state":       []string{string(solution.StateCreated), string(solution.StateInChecking)},
		}).
		Where(sq.NotEq{"id": sol.ID}).
		ToSql()
	if err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "building supersession update")
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "superseding old solutions")
	}
	superseded, err := res.RowsAffected()
	if err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "reading superseded count")
	}

	if err = tx.Commit(); err != nil {
		return solution.Solution{}, 0, errors.Wrap(err, "committing solution insert")
	}
	return sol, int(superseded), nil
}

func (repo solutionRepository) SolutionExists(ctx context.Context, exerciseID, solverID, code string) (bool, error) {
	query, args, err := psql.Select("1").From("solution").
		Where(sq.Eq{"exercise_id": exerciseID, "solver_id": solverID, "code": code}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building solution exists query")
	}
	var one int
	if err = repo.db.GetContext(ctx, &one, query, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, "checking solution existence")
	}
	return true, nil
}

func (repo solutionRepository) GetSolutionByID(ctx context.Context, id string) (solution.Solution, error) {
	if _, err := uuid.Parse(id); err != nil {
		return solution.Solution{}, solution.ErrNotFound
	}
	query, args, err := psql.Select(solutionColumns...).From("solution").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return solution.Solution{}, errors.Wrap(err, "building solution query")
	}
	var row solutionRow
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return solution.Solution{}, trapNoRowsErr(err, solution.ErrNotFound, "finding solution")
	}
	return repo.unrow(row), nil
}

func (repo solutionRepository) setState(ctx context.Context, pred interface{}, sets map[string]interface{}) (bool, error) {
	builder := psql.Update("solution").Where(pred)
	for col, val := range sets {
		builder = builder.Set(col, val)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building state update")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.Wrap(err, "updating solution state")
	}
	return oneRowChanged(res)
}

func (repo solutionRepository) SetSolutionState(ctx context.Context, id string, st solution.State) (bool, error) {
	return repo.setState(ctx, sq.Eq{"id": id}, map[string]interface{}{"state": string(st)})
}

func (repo solutionRepository) ClaimSolution(ctx context.Context, id string) (bool, error) {
	return repo.setState(ctx,
		sq.Eq{"id": id, "state": string(solution.StateCreated)},
		map[string]interface{}{"state": string(solution.StateInChecking)},
	)
}

func (repo solutionRepository) FinishSolution(ctx context.Context, id, checkerID string, grade int) (bool, error) {
	return repo.setState(ctx,
		sq.Eq{
			"id":    id,
			"state": []string{string(solution.StateCreated), string(solution.StateInChecking)},
		},
		map[string]interface{}{
			"state":      string(solution.StateDone),
			"checker_id": checkerID,
			"grade":      grade,
		},
	)
}

func (repo solutionRepository) NextUnchecked(ctx context.Context, exerciseID string) (solution.Solution, error) {
	builder := psql.Select(
		"s.id", "s.exercise_id", "s.solver_id", "s.checker_id",
		"s.state", "s.grade", "s.submitted_at", "s.code",
	).
		Column("COUNT(DISTINCT c.id) AS comments_count").
		Column("COUNT(DISTINCT r.id) AS failures").
		From("solution s").
		LeftJoin("comment c ON c.solution_id = s.id").
		LeftJoin("execution_result r ON r.solution_id = s.id").
		Where(sq.Eq{"s.state": string(solution.StateCreated)}).
		GroupBy("s.id").
		OrderBy("comments_count ASC", "failures ASC", "s.submitted_at ASC").
		Limit(1)
	if exerciseID != "" {
		builder = builder.Where(sq.Eq{"s.exercise_id": exerciseID})
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return solution.Solution{}, errors.Wrap(err, "building next-unchecked query")
	}

	var row struct {
		solutionRow
		CommentsCount int `db:"comments_count"`
		Failures      int `db:"failures"`
	}
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return solution.Solution{}, trapNoRowsErr(err, solution.ErrNotFound, "selecting next unchecked")
	}
	return repo.unrow(row.solutionRow), nil
}

func (repo solutionRepository) QueryVersions(ctx context.Context, exerciseID, solverID string) ([]solution.Solution, error) {
	query, args, err := psql.Select(solutionColumns...).From("solution").
		Where(sq.Eq{"exercise_id": exerciseID, "solver_id": solverID}).
		OrderBy(core.DBOrdering{Field: "submitted_at", Ascending: true}.String()).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building versions query")
	}
	var rows []solutionRow
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying versions")
	}
	versions := make([]solution.Solution, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, repo.unrow(row))
	}
	return versions, nil
}

func (repo solutionRepository) ExerciseStatus(ctx context.Context) ([]solution.ExerciseStatus, error) {
	query, args, err := psql.Select("e.id AS exercise_id", "e.subject").
		Column("COUNT(s.id) AS submitted").
		Column("COALESCE(SUM(CASE WHEN s.state = ? THEN 1 ELSE 0 END), 0) AS checked", string(solution.StateDone)).
		From("exercise e").
		LeftJoin(
			"solution s ON s.exercise_id = e.id AND s.state != ?",
			string(solution.StateOldSolution),
		).
		Where(sq.Eq{"e.is_archived": false}).
		GroupBy("e.id", "e.subject").
		OrderBy("e.display_order ASC", "e.id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building status query")
	}

	var rows []struct {
		ExerciseID string `db:"exercise_id"`
		Subject    string `db:"subject"`
		Submitted  int    `db:"submitted"`
		Checked    int    `db:"checked"`
	}
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying status")
	}
	statuses := make([]solution.ExerciseStatus, 0, len(rows))
	for _, row := range rows {
		statuses = append(statuses, solution.ExerciseStatus(row))
	}
	return statuses, nil
}

func (repo solutionRepository) CheckProgress(ctx context.Context, exerciseID string) (int, int, error) {
	query, args, err := psql.Select().
		Column("COUNT(id) AS submitted").
		Column("COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0) AS checked", string(solution.StateDone)).
		From("solution").
		Where(sq.Eq{"exercise_id": exerciseID}).
		Where(sq.NotEq{"state": string(solution.StateOldSolution)}).
		ToSql()
	if err != nil {
		return 0, 0, errors.Wrap(err, "building progress query")
	}

	var row struct {
		Submitted int `db:"submitted"`
		Checked   int `db:"checked"`
	}
	if err = repo.db.GetContext(ctx, &row, query, args...); err != nil {
		return 0, 0, errors.Wrap(err, "querying progress")
	}
	return row.Submitted, row.Checked, nil
}

func (repo solutionRepository) CreateExecutionResult(ctx context.Context, res solution.ExecutionResult) (solution.ExecutionResult, error) {
	res.ID = uuid.New().String()
	query, args, err := psql.Insert("execution_result").
		Columns("id", "solution_id", "test_name", "user_message", "staff_message", "created_at").
		Values(res.ID, res.SolutionID, res.TestName, res.UserMessage, res.StaffMessage, res.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return solution.ExecutionResult{}, errors.Wrap(err, "building execution result insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return solution.ExecutionResult{}, errors.Wrap(err, "inserting execution result")
	}
	return res, nil
}

func (repo solutionRepository) QueryExecutionResults(ctx context.Context, solutionID string) ([]solution.ExecutionResult, error) {
	query, args, err := psql.Select("id", "solution_id", "test_name", "user_message", "staff_message", "created_at").
		From("execution_result").
		Where(sq.Eq{"solution_id": solutionID}).
		OrderBy(core.DBOrdering{Field: "created_at", Ascending: true}.String()).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building execution results query")
	}

	var rows []struct {
		ID           string    `db:"id"`
		SolutionID   string    `db:"solution_id"`
		TestName     string    `db:"test_name"`
		UserMessage  string    `db:"user_message"`
		StaffMessage string    `db:"staff_message"`
		CreatedAt    time.Time `db:"created_at"`
	}
	if err = repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying execution results")
	}
	results := make([]solution.ExecutionResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, solution.ExecutionResult(row))
	}
	return results, nil
}
