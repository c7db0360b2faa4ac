package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/solution"
)

// solutionRepository ranks the review queue in memory; it reads the comment
// table for the comment counts the ranking needs.
type solutionRepository struct {
	db       *solutionTable
	comments *commentTable
	exs      *exerciseTable
}

var _ solution.Repository = (*solutionRepository)(nil) // interface compliance check

func NewSolutionRepository(db *DB) solution.Repository {
	return &solutionRepository{db: db.solution, comments: db.comment, exs: db.exercise}
}

func (repo *solutionRepository) query() []solution.Solution {
	sols := make([]solution.Solution, 0, len(repo.db.table))
	for _, sol := range repo.db.table {
		sols = append(sols, *sol)
	}
	sort.Slice(sols, func(i, j int) bool { return sols[i].SubmittedAt.Before(sols[j].SubmittedAt) })
	return sols
}

func (repo *solutionRepository) CreateSolution(ctx context.Context, sol solution.Solution) (solution.Solution, int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sol.ID = uuid.New().String()
	var superseded int
	for _, old := range repo.db.table {
		if old.ExerciseID == sol.ExerciseID && old.SolverID == sol.SolverID && !old.State.IsTerminal() {
			old.State = solution.StateOldSolution
			superseded++
		}
	}
	repo.db.table[sol.ID] = &sol
	return sol, superseded, nil
}

func (repo *solutionRepository) SolutionExists(ctx context.Context, exerciseID, solverID, code string) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sol := range repo.db.table {
		if sol.ExerciseID == exerciseID && sol.SolverID == solverID && sol.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (repo *solutionRepository) GetSolutionByID(ctx context.Context, id string) (solution.Solution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sol, ok := repo.db.table[id]; ok {
		return *sol, nil
	}
	return solution.Solution{}, solution.ErrNotFound
}

func (repo *solutionRepository) SetSolutionState(ctx context.Context, id string, st solution.State) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sol, ok := repo.db.table[id]
	if !ok {
		return false, nil
	}
	sol.State = st
	return true, nil
}

func (repo *solutionRepository) ClaimSolution(ctx context.Context, id string) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sol, ok := repo.db.table[id]
	if !ok || sol.State != solution.StateCreated {
		return false, nil
	}
	sol.State = solution.StateInChecking
	return true, nil
}

func (repo *solutionRepository) FinishSolution(ctx context.Context, id, checkerID string, grade int) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sol, ok := repo.db.table[id]
	if !ok || sol.State.IsTerminal() {
		return false, nil
	}
	sol.State = solution.StateDone
	sol.CheckerID = checkerID
	sol.Grade = grade
	return true, nil
}

func (repo *solutionRepository) NextUnchecked(ctx context.Context, exerciseID string) (solution.Solution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	repo.comments.RLock()
	defer repo.comments.RUnlock()

	commentCounts := make(map[string]int)
	for _, cmt := range repo.comments.table {
		commentCounts[cmt.SolutionID]++
	}

	type candidate struct {
		sol      solution.Solution
		comments int
		failures int
	}
	var candidates []candidate
	for _, sol := range repo.query() {
		if sol.State != solution.StateCreated {
			continue
		}
		if exerciseID != "" && sol.ExerciseID != exerciseID {
			continue
		}
		candidates = append(candidates, candidate{
			sol:      sol,
			comments: commentCounts[sol.ID],
			failures: len(repo.db.results[sol.ID]),
		})
	}
	if len(candidates) == 0 {
		return solution.Solution{}, solution.ErrNotFound
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].comments != candidates[j].comments {
			return candidates[i].comments < candidates[j].comments
		}
		if candidates[i].failures != candidates[j].failures {
			return candidates[i].failures < candidates[j].failures
		}
		return candidates[i].sol.SubmittedAt.Before(candidates[j].sol.SubmittedAt)
	})
	return candidates[0].sol, nil
}

func (repo *solutionRepository) QueryVersions(ctx context.Context, exerciseID, solverID string) ([]solution.Solution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var versions []solution.Solution
	for _, sol := range repo.query() {
		if sol.ExerciseID == exerciseID && sol.SolverID == solverID {
			versions = append(versions, sol)
		}
	}
	return versions, nil
}

func (repo *solutionRepository) ExerciseStatus(ctx context.Context) ([]solution.ExerciseStatus, error) {
	repo.exs.RLock()
	defer repo.exs.RUnlock()
	repo.db.RLock()
	defer repo.db.RUnlock()

	var exercises []exercise.Exercise
	for _, ex := range repo.exs.table {
		if !ex.IsArchived {
			exercises = append(exercises, *ex)
		}
	}
	sort.Slice(exercises, func(i, j int) bool {
		if exercises[i].Order != exercises[j].Order {
			return exercises[i].Order < exercises[j].Order
		}
		return exercises[i].CreatedAt.Before(exercises[j].CreatedAt)
	})

	statuses := make([]solution.ExerciseStatus, 0, len(exercises))
	for _, ex := range exercises {
		st := solution.ExerciseStatus{ExerciseID: ex.ID, Subject: ex.Subject}
		for _, sol := range repo.db.table {
			if sol.ExerciseID != ex.ID || sol.State == solution.StateOldSolution {
				continue
			}
			st.Submitted++
			if sol.IsChecked() {
				st.Checked++
			}
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (repo *solutionRepository) CheckProgress(ctx context.Context, exerciseID string) (int, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var submitted, checked int
	for _, sol := range repo.db.table {
		if sol.ExerciseID != exerciseID || sol.State == solution.StateOldSolution {
			continue
		}
		submitted++
		if sol.IsChecked() {
			checked++
		}
	}
	return submitted, checked, nil
}

func (repo *solutionRepository) CreateExecutionResult(ctx context.Context, res solution.ExecutionResult) (solution.ExecutionResult, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = uuid.New().String()
	repo.db.results[res.SolutionID] = append(repo.db.results[res.SolutionID], res)
	return res, nil
}

func (repo *solutionRepository) QueryExecutionResults(ctx context.Context, solutionID string) ([]solution.ExecutionResult, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := make([]solution.ExecutionResult, len(repo.db.results[solutionID]))
	copy(results, repo.db.results[solutionID])
	sort.Slice(results, func(i, j int) bool { return results[i].CreatedAt.Before(results[j].CreatedAt) })
	return results, nil
}
