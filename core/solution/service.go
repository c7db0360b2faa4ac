package solution

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("solution not found")
	// ErrInvalidTransition: a conditional state update matched no row; the
	// solution vanished or was claimed/updated concurrently. Callers retry
	// selection, they do not fail.
	ErrInvalidTransition = errors.New("solution was updated concurrently")
	// ErrQueueEmpty: no solution awaits review.
	ErrQueueEmpty = errors.New("no solutions awaiting review")
	// ErrExerciseClosed: the exercise is archived or past its due date.
	ErrExerciseClosed = errors.New("exercise is closed for new submissions")
)

// maxClaimAttempts bounds how many times StartChecking re-runs the selector
// after losing a claim race.
const maxClaimAttempts = 3

type (
	Repository interface {
		// CreateSolution inserts the solution and marks every other
		// non-terminal solution of the same (exercise, solver) pair
		// OLD_SOLUTION, as one atomic unit. It returns the created row and
		// the number of superseded versions.
		CreateSolution(ctx context.Context, sol Solution) (Solution, int, error)
		SolutionExists(ctx context.Context, exerciseID, solverID, code string) (bool, error)
		GetSolutionByID(ctx context.Context, id string) (Solution, error)
		// SetSolutionState updates the state scoped only by id and reports
		// whether exactly one row changed.
		SetSolutionState(ctx context.Context, id string, st State) (bool, error)
		// ClaimSolution is a compare-and-set: CREATED -> IN_CHECKING only
		// where the state is still CREATED.
		ClaimSolution(ctx context.Context, id string) (bool, error)
		// FinishSolution moves {CREATED, IN_CHECKING} -> DONE, recording the
		// checker and grade in the same conditional update.
		FinishSolution(ctx context.Context, id, checkerID string, grade int) (bool, error)
		// NextUnchecked returns the best CREATED candidate, ranked by fewest
		// comments, then fewest execution failures, then earliest submission.
		// An empty exerciseID means any exercise. ErrNotFound when none.
		NextUnchecked(ctx context.Context, exerciseID string) (Solution, error)
		// QueryVersions returns all solutions of the pair, oldest first.
		QueryVersions(ctx context.Context, exerciseID, solverID string) ([]Solution, error)
		// ExerciseStatus aggregates active/checked counts per non-archived
		// exercise.
		ExerciseStatus(ctx context.Context) ([]ExerciseStatus, error)
		// CheckProgress returns (active, checked) counts for one exercise.
		CheckProgress(ctx context.Context, exerciseID string) (int, int, error)
		CreateExecutionResult(ctx context.Context, res ExecutionResult) (ExecutionResult, error)
		QueryExecutionResults(ctx context.Context, solutionID string) ([]ExecutionResult, error)
	}

	Service struct {
		repo      Repository
		exercises *exercise.Service
		users     *user.Service
		notifs    *notification.Service
		mailSvc   core.EmailService
		conf      *core.Config
	}
)

func NewService(
	repo Repository,
	exSvc *exercise.Service,
	usrSvc *user.Service,
	notifSvc *notification.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{
		repo:      repo,
		exercises: exSvc,
		users:     usrSvc,
		notifs:    notifSvc,
		mailSvc:   mailSvc,
		conf:      conf,
	}
}

// Create submits a new solution version. Prior versions of the same
// (exercise, solver) pair are superseded so the review queue only ever
// surfaces the latest attempt; history is kept for audit.
func (svc *Service) Create(ctx context.Context, ns NewSolution) (Solution, error) {
	if err := core.Validate.Struct(ns); err != nil {
		return Solution{}, err
	}
	ex, err := svc.exercises.GetByID(ctx, ns.ExerciseID)
	if err != nil {
		return Solution{}, err
	}
	if !ex.OpenForNewSolutions(time.Now()) {
		return Solution{}, ErrExerciseClosed
	}

	sol := Solution{
		ExerciseID:  ns.ExerciseID,
		SolverID:    ns.SolverID,
		State:       StateCreated,
		SubmittedAt: time.Now().UTC(),
		Code:        ns.Code,
	}
	created, _, err := svc.repo.CreateSolution(ctx, sol)
	if err != nil {
		return Solution{}, pkgerrors.Wrap(err, "creating solution")
	}
	return created, nil
}

// Exists reports whether a byte-identical submission already exists for the
// pair; the upload flow uses it to short-circuit duplicate resubmissions.
func (svc *Service) Exists(ctx context.Context, exerciseID, solverID, code string) (bool, error) {
	return svc.repo.SolutionExists(ctx, exerciseID, solverID, code)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Solution, error) {
	return svc.repo.GetSolutionByID(ctx, id)
}

// SetState performs a single conditional update scoped by solution id and
// returns whether exactly one row changed. A false return means the solution
// vanished or was already updated concurrently; it is not an error.
func (svc *Service) SetState(ctx context.Context, id string, st State) (bool, error) {
	return svc.repo.SetSolutionState(ctx, id, st)
}

// StartChecking selects the next solution to review and claims it for the
// reviewer. The claim is a compare-and-set; when a concurrent reviewer wins
// the same queue head, the selection is re-run. An empty exerciseID, or a
// scoped queue that turns out empty, falls back to the global queue.
func (svc *Service) StartChecking(ctx context.Context, exerciseID string) (Solution, error) {
	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		sol, err := svc.nextUnchecked(ctx, exerciseID)
		if err != nil {
			return Solution{}, err
		}
		claimed, err := svc.repo.ClaimSolution(ctx, sol.ID)
		if err != nil {
			return Solution{}, pkgerrors.Wrap(err, "claiming solution")
		}
		if claimed {
			sol.State = StateInChecking
			return sol, nil
		}
		// lost the race; re-run the selector
	}
	return Solution{}, ErrInvalidTransition
}

func (svc *Service) nextUnchecked(ctx context.Context, exerciseID string) (Solution, error) {
	sol, err := svc.repo.NextUnchecked(ctx, exerciseID)
	if err == ErrNotFound && exerciseID != "" {
		sol, err = svc.repo.NextUnchecked(ctx, "")
	}
	if err == ErrNotFound {
		return Solution{}, ErrQueueEmpty
	}
	return sol, err
}

// DoneChecking finalizes grading: records the reviewer identity and grade and
// moves the solution to DONE. The solver is notified of the outcome.
func (svc *Service) DoneChecking(ctx context.Context, solutionID, checkerID string, grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return core.NewValidationError(nil, core.FieldError{
			Field: "grade",
			Error: fmt.Sprintf("grade must be between %d and %d", MinGrade, MaxGrade),
		})
	}
	sol, err := svc.repo.GetSolutionByID(ctx, solutionID)
	if err != nil {
		return err
	}
	done, err := svc.repo.FinishSolution(ctx, solutionID, checkerID, grade)
	if err != nil {
		return pkgerrors.Wrap(err, "finishing solution")
	}
	if !done {
		return ErrInvalidTransition
	}
	svc.notifyChecked(ctx, sol, grade)
	return nil
}

func (svc *Service) notifyChecked(ctx context.Context, sol Solution, grade int) {
	ex, err := svc.exercises.GetByID(ctx, sol.ExerciseID)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("Your solution for %q was checked. Grade: %d.", ex.Subject, grade)
	_, _ = svc.notifs.Send(ctx, sol.SolverID, notification.KindSolutionChecked, msg, notification.SendOptions{
		RelatedID: sol.ID,
		ActionURL: svc.SolutionURL(sol.ID),
	})

	if solver, err := svc.users.GetByID(ctx, sol.SolverID); err == nil && solver.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:      []mail.Address{{Name: solver.Name, Address: solver.Email}},
			Subject: fmt.Sprintf("%s was checked", ex.Subject),
			BodyStr: msg,
		})
	}
}

// SolutionURL is the learner-facing view of one solution.
func (svc *Service) SolutionURL(id string) string {
	return svc.conf.FrontendBaseURL + "/view/" + id
}

// OrderedVersions returns every submission of the pair oldest first, for
// audit and history display.
func (svc *Service) OrderedVersions(ctx context.Context, exerciseID, solverID string) ([]Solution, error) {
	return svc.repo.QueryVersions(ctx, exerciseID, solverID)
}

// Status aggregates review workload per non-archived exercise.
func (svc *Service) Status(ctx context.Context) ([]ExerciseStatus, error) {
	return svc.repo.ExerciseStatus(ctx)
}

// PercentChecked returns floor(checked*100/submitted) for one exercise, and 0
// when it has no active solutions.
func (svc *Service) PercentChecked(ctx context.Context, exerciseID string) (int, error) {
	submitted, checked, err := svc.repo.CheckProgress(ctx, exerciseID)
	if err != nil {
		return 0, err
	}
	if submitted == 0 {
		return 0, nil
	}
	return checked * 100 / submitted, nil
}

// CreateExecutionResult records one automated-check outcome.
func (svc *Service) CreateExecutionResult(ctx context.Context, solutionID, testName, userMessage, staffMessage string) (ExecutionResult, error) {
	res := ExecutionResult{
		SolutionID:   solutionID,
		TestName:     testName,
		UserMessage:  userMessage,
		StaffMessage: staffMessage,
		CreatedAt:    time.Now().UTC(),
	}
	return svc.repo.CreateExecutionResult(ctx, res)
}

// TestResults returns all execution results recorded against the solution.
func (svc *Service) TestResults(ctx context.Context, solutionID string) ([]ExecutionResult, error) {
	return svc.repo.QueryExecutionResults(ctx, solutionID)
}
