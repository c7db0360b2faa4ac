package solution_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/solution"
	"github.com/trezcool/darasa/core/user"
	dummymail "github.com/trezcool/darasa/services/email/dummy"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

type testEnv struct {
	db       *dummydb.DB
	users    *user.Service
	exs      *exercise.Service
	notifs   *notification.Service
	comments *comment.Service
	sols     *solution.Service
	mail     *dummymail.Service
	conf     *core.Config
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db, err := dummydb.Open()
	require.NoError(t, err)

	conf := &core.Config{
		AppName:          "Darasa",
		FrontendBaseURL:  "http://localhost:8080",
		DefaultFromEmail: "noreply@localhost",
	}
	mail := dummymail.NewService()
	usrSvc := user.NewService(dummydb.NewUserRepository(db))
	exSvc := exercise.NewService(dummydb.NewExerciseRepository(db))
	notifSvc := notification.NewService(dummydb.NewNotificationRepository(db))
	solSvc := solution.NewService(dummydb.NewSolutionRepository(db), exSvc, usrSvc, notifSvc, mail, conf)
	cmtSvc := comment.NewService(dummydb.NewCommentRepository(db))

	return &testEnv{
		db:       db,
		users:    usrSvc,
		exs:      exSvc,
		notifs:   notifSvc,
		comments: cmtSvc,
		sols:     solSvc,
		mail:     mail,
		conf:     conf,
	}
}

func (env *testEnv) newUser(t *testing.T, uname string, roles ...string) user.User {
	t.Helper()
	usr, err := env.users.Create(context.Background(), user.NewUser{
		Name:     uname,
		Username: uname,
		Email:    uname + "@test.local",
		Password: "S3cretPassw0rd!",
		Roles:    roles,
	})
	require.NoError(t, err)
	return usr
}

func (env *testEnv) newExercise(t *testing.T, subject string) exercise.Exercise {
	t.Helper()
	ex, err := env.exs.Create(context.Background(), exercise.NewExercise{Subject: subject})
	require.NoError(t, err)
	return ex
}

func (env *testEnv) submit(t *testing.T, ex exercise.Exercise, solver user.User, code string) solution.Solution {
	t.Helper()
	sol, err := env.sols.Create(context.Background(), solution.NewSolution{
		ExerciseID: ex.ID,
		SolverID:   solver.ID,
		Code:       code,
	})
	require.NoError(t, err)
	return sol
}

func TestService_Create_supersedesOlderVersions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Loops")
	solver := env.newUser(t, "asha")

	v1 := env.submit(t, ex, solver, "print(1)")
	v2 := env.submit(t, ex, solver, "print(2)")
	v3 := env.submit(t, ex, solver, "print(3)")

	for _, tt := range []struct {
		id   string
		want solution.State
	}{
		{v1.ID, solution.StateOldSolution},
		{v2.ID, solution.StateOldSolution},
		{v3.ID, solution.StateCreated},
	} {
		got, err := env.sols.GetByID(ctx, tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.State)
	}

	// a graded version keeps its grade and terminal state
	_, err := env.sols.StartChecking(ctx, ex.ID)
	require.NoError(t, err)
	checker := env.newUser(t, "staffer", user.RoleStaff)
	require.NoError(t, env.sols.DoneChecking(ctx, v3.ID, checker.ID, 90))

	v4 := env.submit(t, ex, solver, "print(4)")

	done, err := env.sols.GetByID(ctx, v3.ID)
	require.NoError(t, err)
	assert.Equal(t, solution.StateDone, done.State)
	assert.Equal(t, 90, done.Grade)

	latest, err := env.sols.GetByID(ctx, v4.ID)
	require.NoError(t, err)
	assert.Equal(t, solution.StateCreated, latest.State)
}

func TestService_Create_rejectsClosedExercise(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	solver := env.newUser(t, "juma")

	pastDue, err := env.exs.Create(ctx, exercise.NewExercise{
		Subject: "Old homework",
		DueDate: null.TimeFrom(time.Now().Add(-time.Hour).UTC()),
	})
	require.NoError(t, err)

	_, err = env.sols.Create(ctx, solution.NewSolution{
		ExerciseID: pastDue.ID,
		SolverID:   solver.ID,
		Code:       "too late",
	})
	assert.Equal(t, solution.ErrExerciseClosed, err)
}

func TestService_Exists(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Strings")
	solver := env.newUser(t, "neema")
	env.submit(t, ex, solver, "code A")

	exists, err := env.sols.Exists(ctx, ex.ID, solver.ID, "code A")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = env.sols.Exists(ctx, ex.ID, solver.ID, "code B")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestService_StartChecking_queueOrdering(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Recursion")
	staff := env.newUser(t, "mwalimu", user.RoleStaff)

	commented := env.submit(t, ex, env.newUser(t, "solver1"), "v1")
	failing := env.submit(t, ex, env.newUser(t, "solver2"), "v2")
	clean := env.submit(t, ex, env.newUser(t, "solver3"), "v3")

	// two comments on the first, one failing check on the second
	for i := 0; i < 2; i++ {
		_, err := env.comments.Create(ctx, staff.ID, comment.NewComment{
			SolutionID: commented.ID,
			LineNumber: i + 1,
			Text:       "needs work",
		})
		require.NoError(t, err)
	}
	_, err := env.sols.CreateExecutionResult(ctx, failing.ID, "test_sum", "wrong answer", "AssertionError")
	require.NoError(t, err)

	// fewest comments first, then fewest failures, then earliest submission
	wantOrder := []string{clean.ID, failing.ID, commented.ID}
	for _, wantID := range wantOrder {
		got, err := env.sols.StartChecking(ctx, ex.ID)
		require.NoError(t, err)
		assert.Equal(t, wantID, got.ID)
		assert.Equal(t, solution.StateInChecking, got.State)
	}

	_, err = env.sols.StartChecking(ctx, ex.ID)
	assert.Equal(t, solution.ErrQueueEmpty, err)
}

func TestService_StartChecking_scopedQueueFallsBackToGlobal(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	emptyEx := env.newExercise(t, "Untouched")
	busyEx := env.newExercise(t, "Busy")
	sol := env.submit(t, busyEx, env.newUser(t, "pendo"), "code")

	got, err := env.sols.StartChecking(ctx, emptyEx.ID)
	require.NoError(t, err)
	assert.Equal(t, sol.ID, got.ID)
}

func TestService_StartChecking_emptyQueue(t *testing.T) {
	env := setup(t)

	_, err := env.sols.StartChecking(context.Background(), "")
	assert.Equal(t, solution.ErrQueueEmpty, err)
}

func TestService_DoneChecking(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Maps")
	solver := env.newUser(t, "zuri")
	staff := env.newUser(t, "mkaguzi", user.RoleStaff)
	sol := env.submit(t, ex, solver, "code")

	claimed, err := env.sols.StartChecking(ctx, ex.ID)
	require.NoError(t, err)
	require.Equal(t, sol.ID, claimed.ID)

	require.NoError(t, env.sols.DoneChecking(ctx, sol.ID, staff.ID, 85))

	got, err := env.sols.GetByID(ctx, sol.ID)
	require.NoError(t, err)
	assert.Equal(t, solution.StateDone, got.State)
	assert.Equal(t, staff.ID, got.CheckerID)
	assert.Equal(t, 85, got.Grade)

	// solver was notified in-app and by email
	notifs, err := env.notifs.Fetch(ctx, solver.ID)
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, notification.KindSolutionChecked, notifs[0].Kind)
	assert.Equal(t, sol.ID, notifs[0].RelatedID)
	assert.Contains(t, notifs[0].ActionURL, "/view/"+sol.ID)

	sent := env.mail.SentMessages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Subject, ex.Subject)

	// grading a terminal solution is a lost race
	err = env.sols.DoneChecking(ctx, sol.ID, staff.ID, 70)
	assert.Equal(t, solution.ErrInvalidTransition, err)
}

func TestService_DoneChecking_gradeBounds(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Bounds")
	staff := env.newUser(t, "staff1", user.RoleStaff)
	sol := env.submit(t, ex, env.newUser(t, "solverx"), "code")

	for _, grade := range []int{-1, 101} {
		err := env.sols.DoneChecking(ctx, sol.ID, staff.ID, grade)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		require.Len(t, vErr.Fields, 1)
		assert.Equal(t, "grade", vErr.Fields[0].Field)
	}

	// bounds are inclusive
	require.NoError(t, env.sols.DoneChecking(ctx, sol.ID, staff.ID, 0))
}

func TestService_PercentChecked(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Progress")
	staff := env.newUser(t, "grader", user.RoleStaff)

	percent, err := env.sols.PercentChecked(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, percent)

	var sols []solution.Solution
	for _, uname := range []string{"a1", "a2", "a3", "a4"} {
		sols = append(sols, env.submit(t, ex, env.newUser(t, uname), uname+" code"))
	}
	require.NoError(t, env.sols.DoneChecking(ctx, sols[0].ID, staff.ID, 100))
	require.NoError(t, env.sols.DoneChecking(ctx, sols[1].ID, staff.ID, 60))

	percent, err = env.sols.PercentChecked(ctx, ex.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, percent)
}

func TestService_Status_excludesSupersededAndArchived(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "Visible")
	solver := env.newUser(t, "bahati")
	staff := env.newUser(t, "staff2", user.RoleStaff)

	env.submit(t, ex, solver, "v1")
	v2 := env.submit(t, ex, solver, "v2")
	require.NoError(t, env.sols.DoneChecking(ctx, v2.ID, staff.ID, 75))
	env.submit(t, ex, env.newUser(t, "imani"), "other")

	statuses, err := env.sols.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.Equal(t, ex.ID, statuses[0].ExerciseID)
	assert.Equal(t, ex.Subject, statuses[0].Subject)
	assert.Equal(t, 2, statuses[0].Submitted) // superseded v1 not counted
	assert.Equal(t, 1, statuses[0].Checked)
}

func TestService_OrderedVersions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "History")
	solver := env.newUser(t, "history-solver")

	v1 := env.submit(t, ex, solver, "v1")
	time.Sleep(time.Millisecond)
	v2 := env.submit(t, ex, solver, "v2")

	versions, err := env.sols.OrderedVersions(ctx, ex.ID, solver.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, v1.ID, versions[0].ID)
	assert.Equal(t, v2.ID, versions[1].ID)
}

func TestService_SetState(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	ex := env.newExercise(t, "States")
	sol := env.submit(t, ex, env.newUser(t, "state-solver"), "code")

	changed, err := env.sols.SetState(ctx, sol.ID, solution.StateInChecking)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = env.sols.SetState(ctx, "00000000-0000-0000-0000-000000000000", solution.StateDone)
	require.NoError(t, err)
	assert.False(t, changed)
}

// stealingRepo claims the queue head right after it is selected, standing in
// for a concurrent reviewer winning the compare-and-set first.
type stealingRepo struct {
	solution.Repository
	steals int
}

func (r *stealingRepo) NextUnchecked(ctx context.Context, exerciseID string) (solution.Solution, error) {
	sol, err := r.Repository.NextUnchecked(ctx, exerciseID)
	if err == nil && r.steals > 0 {
		r.steals--
		if _, cerr := r.Repository.ClaimSolution(ctx, sol.ID); cerr != nil {
			return solution.Solution{}, cerr
		}
	}
	return sol, err
}

func TestService_StartChecking_lostClaimReselects(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	solver1 := env.newUser(t, "solver1")
	solver2 := env.newUser(t, "solver2")
	ex := env.newExercise(t, "Sorting")
	env.submit(t, ex, solver1, "older")
	time.Sleep(time.Millisecond)
	second := env.submit(t, ex, solver2, "newer")

	repo := &stealingRepo{Repository: dummydb.NewSolutionRepository(env.db), steals: 1}
	svc := solution.NewService(repo, env.exs, env.users, env.notifs, env.mail, env.conf)

	// the head is claimed from under us; the selector re-runs and hands out
	// the next candidate
	sol, err := svc.StartChecking(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, sol.ID)
	assert.Equal(t, solution.StateInChecking, sol.State)
}

func TestService_StartChecking_lostClaimOnLastCandidate(t *testing.T) {
	env := setup(t)
	solver := env.newUser(t, "solver")
	ex := env.newExercise(t, "Sorting")
	env.submit(t, ex, solver, "code")

	repo := &stealingRepo{Repository: dummydb.NewSolutionRepository(env.db), steals: 1}
	svc := solution.NewService(repo, env.exs, env.users, env.notifs, env.mail, env.conf)

	_, err := svc.StartChecking(context.Background(), "")
	assert.Equal(t, solution.ErrQueueEmpty, err)
}

func TestService_StartChecking_concurrentClaimHasOneWinner(t *testing.T) {
	env := setup(t)
	solver := env.newUser(t, "solver")
	ex := env.newExercise(t, "Sorting")
	sol := env.submit(t, ex, solver, "code")

	const callers = 8
	results := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.sols.StartChecking(context.Background(), "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, empty int
	for err := range results {
		switch err {
		case nil:
			wins++
		case solution.ErrQueueEmpty:
			empty++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, empty)

	got, err := env.sols.GetByID(context.Background(), sol.ID)
	require.NoError(t, err)
	assert.Equal(t, solution.StateInChecking, got.State)
}
