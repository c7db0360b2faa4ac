package solution

import "time"

// State is the lifecycle state of a Solution.
type State string

const (
	// StateCreated: awaiting both automated and human review.
	StateCreated State = "CREATED"
	// StateInChecking: a reviewer has claimed it.
	StateInChecking State = "IN_CHECKING"
	// StateDone: reviewed and graded. Terminal.
	StateDone State = "DONE"
	// StateOldSolution: superseded by a newer submission for the same
	// exercise/solver pair, never to be reviewed. Terminal.
	StateOldSolution State = "OLD_SOLUTION"
)

// ActiveStates are the states of solutions that still count towards review
// workload; superseded versions are excluded.
func ActiveStates() []State {
	return []State{StateCreated, StateInChecking, StateDone}
}

func (s State) IsValid() bool {
	switch s {
	case StateCreated, StateInChecking, StateDone, StateOldSolution:
		return true
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateOldSolution
}

// Grade bounds; enforced on the update path and by a DB check constraint.
const (
	MinGrade = 0
	MaxGrade = 100
)

// Solution is one submission instance. ExerciseID and SolverID are immutable
// after creation; it is never deleted, only superseded.
type Solution struct {
	ID          string    `json:"id"`
	ExerciseID  string    `json:"exercise_id"`
	SolverID    string    `json:"solver_id"`
	CheckerID   string    `json:"checker_id,omitempty"`
	State       State     `json:"state"`
	Grade       int       `json:"grade"`
	SubmittedAt time.Time `json:"submitted_at"` // UTC
	Code        string    `json:"code"`
}

func (s Solution) IsChecked() bool { return s.State == StateDone }

// FatalTestName is the reserved synthetic check name recorded when the
// automated checker could not execute anything at all.
const FatalTestName = "fatal_test_failure"

// ExecutionResult is one automated-check outcome tied to a Solution. Reruns
// append rather than overwrite; rows are never mutated.
type ExecutionResult struct {
	ID           string    `json:"id"`
	SolutionID   string    `json:"-"`
	TestName     string    `json:"test_name"`
	UserMessage  string    `json:"user_message"`
	StaffMessage string    `json:"staff_message"`
	CreatedAt    time.Time `json:"created_at"` // UTC
}

// IsFatal reports whether this row records a fatal execution failure rather
// than a normal failing test.
func (r ExecutionResult) IsFatal() bool { return r.TestName == FatalTestName }

// NewSolution contains information needed to submit a new Solution.
type NewSolution struct {
	ExerciseID string `json:"exercise_id" validate:"required"`
	SolverID   string `json:"-" validate:"required"`
	Code       string `json:"code" validate:"required"`
}

// ExerciseStatus is the per-exercise review workload aggregate: active
// (non-superseded) submissions and how many of them reached DONE.
type ExerciseStatus struct {
	ExerciseID string `json:"exercise_id"`
	Subject    string `json:"name"`
	Submitted  int    `json:"submitted"`
	Checked    int    `json:"checked"`
}
