// Package checker ingests raw automated-check reports into structured
// per-test execution results and notifies learners of failures.
package checker

import (
	"context"
	"fmt"
	"strings"

	junit "github.com/joshdk/go-junit"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/exercise"
	"github.com/trezcool/darasa/core/notification"
	"github.com/trezcool/darasa/core/solution"
	"github.com/trezcool/darasa/core/user"
)

const (
	fatalUserMessage  = "The automated checker could not run your code."
	fatalStaffMessage = "The test harness produced no results at all; the code most likely failed to load."
)

type Ingestor struct {
	logger    core.Logger
	solutions *solution.Service
	exercises *exercise.Service
	notifs    *notification.Service
	users     *user.Service
	comments  *comment.Service
}

func NewIngestor(
	logger core.Logger,
	solSvc *solution.Service,
	exSvc *exercise.Service,
	notifSvc *notification.Service,
	usrSvc *user.Service,
	cmtSvc *comment.Service,
) *Ingestor {
	return &Ingestor{
		logger:    logger,
		solutions: solSvc,
		exercises: exSvc,
		notifs:    notifSvc,
		users:     usrSvc,
		comments:  cmtSvc,
	}
}

// PopulateResults parses a raw junit report and records one ExecutionResult
// per failing case. When nothing in the report executed at all (empty or
// unparseable report, or a harness crash) exactly one fatal result is
// recorded under the reserved check name instead, and the solver is notified.
// A clean pass records nothing and stays silent. Malformed reports never fail
// the caller.
func (ing *Ingestor) PopulateResults(ctx context.Context, solutionID string, report []byte) error {
	sol, err := ing.solutions.GetByID(ctx, solutionID)
	if err != nil {
		return err
	}

	suites, err := junit.Ingest(report)
	if err != nil {
		ing.logger.Info(fmt.Sprintf("unparseable check report on solution %s: %v", solutionID, err))
		suites = nil
	}

	var ran bool
	var failures int
	for _, suite := range suites {
		for _, test := range suite.Tests {
			ran = true
			if test.Error == nil {
				continue
			}
			failures++
			userMsg, staffMsg := renderMessages(test)
			if _, err = ing.solutions.CreateExecutionResult(ctx, solutionID, test.Name, userMsg, staffMsg); err != nil {
				return err
			}
		}
	}

	if !ran {
		return ing.handleFatalFailure(ctx, sol)
	}
	if failures == 0 {
		// clean pass stays silent
		return nil
	}
	return ing.notifyFailures(ctx, sol, failures)
}

// LinterFinding is one style or quality finding reported by an external
// linter run.
type LinterFinding struct {
	Key  string `json:"key"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// PopulateLinterComments records linter findings as automated comments on the
// solution, authored by the reserved checker account. Findings it cannot
// record are logged and skipped so one bad entry does not lose the rest.
func (ing *Ingestor) PopulateLinterComments(ctx context.Context, solutionID string, findings []LinterFinding) error {
	if len(findings) == 0 {
		return nil
	}
	sol, err := ing.solutions.GetByID(ctx, solutionID)
	if err != nil {
		return err
	}
	sysUsr, err := ing.users.System(ctx)
	if err != nil {
		return err
	}

	var recorded int
	for _, f := range findings {
		if _, err = ing.comments.CreateLinterComment(ctx, sysUsr.ID, solutionID, f.Line, f.Text, f.Key); err != nil {
			ing.logger.Info(fmt.Sprintf("skipping linter finding %q on solution %s: %v", f.Key, solutionID, err))
			continue
		}
		recorded++
	}
	if recorded == 0 {
		return nil
	}

	msg := fmt.Sprintf("The linter flagged %d issues in your solution.", recorded)
	if recorded == 1 {
		msg = "The linter flagged 1 issue in your solution."
	}
	_, err = ing.notifs.Send(ctx, sol.SolverID, notification.KindLinterError, msg, notification.SendOptions{
		RelatedID: sol.ID,
		ActionURL: ing.solutions.SolutionURL(sol.ID),
	})
	return err
}

// ReportCheckerFailure logs an infrastructure fault of the external checker
// process. Nothing is recorded; the run is lost and must be retried
// out-of-band by the caller.
func (ing *Ingestor) ReportCheckerFailure(solutionID string, err error) {
	ing.logger.Error(fmt.Sprintf("checker failed on solution %s: %v", solutionID, err), err)
}

func (ing *Ingestor) handleFatalFailure(ctx context.Context, sol solution.Solution) error {
	if _, err := ing.solutions.CreateExecutionResult(
		ctx, sol.ID, solution.FatalTestName, fatalUserMessage, fatalStaffMessage,
	); err != nil {
		return err
	}
	_, err := ing.notifs.Send(ctx, sol.SolverID, notification.KindCheckerError, fatalUserMessage, notification.SendOptions{
		RelatedID: sol.ID,
		ActionURL: ing.solutions.SolutionURL(sol.ID),
	})
	return err
}

func (ing *Ingestor) notifyFailures(ctx context.Context, sol solution.Solution, failures int) error {
	subject := sol.ExerciseID
	if ex, err := ing.exercises.GetByID(ctx, sol.ExerciseID); err == nil {
		subject = ex.Subject
	}
	msg := fmt.Sprintf("The automated checker failed %d tests in exercise %q.", failures, subject)
	_, err := ing.notifs.Send(ctx, sol.SolverID, notification.KindCheckerError, msg, notification.SendOptions{
		RelatedID: sol.ID,
		ActionURL: ing.solutions.SolutionURL(sol.ID),
	})
	return err
}

// renderMessages flattens a failed case into a learner-facing one-liner and a
// staff-facing raw diagnostic.
func renderMessages(test junit.Test) (string, string) {
	if jerr, ok := test.Error.(junit.Error); ok {
		parts := make([]string, 0, 2)
		if jerr.Message != "" {
			parts = append(parts, flatten(jerr.Message))
		}
		if jerr.Type != "" {
			parts = append(parts, flatten(jerr.Type))
		}
		userMsg := strings.Join(parts, " ")
		if userMsg == "" {
			userMsg = fmt.Sprintf("Test %s failed.", test.Name)
		}
		staffMsg := jerr.Body
		if staffMsg == "" {
			staffMsg = userMsg
		}
		return userMsg, staffMsg
	}
	msg := flatten(test.Error.Error())
	return msg, msg
}

func flatten(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
}
