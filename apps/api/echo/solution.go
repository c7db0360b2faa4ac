package echoapi

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/checker"
	"github.com/trezcool/darasa/core/comment"
	"github.com/trezcool/darasa/core/solution"
)

type solutionApi struct {
	srv *Server
}

func registerSolutionAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := solutionApi{srv: srv}

	sg := g.Group("/solutions", jwt)
	sg.POST("", api.submit)
	sg.GET("/status", api.status, managerMiddleware())
	sg.POST("/review/next", api.reviewNext, managerMiddleware())
	sg.GET("/:id", api.view)
	sg.POST("/:id/done", api.reviewDone, managerMiddleware())
	sg.POST("/:id/results", api.ingestResults, managerMiddleware())
	sg.POST("/:id/linter-results", api.ingestLinterResults, managerMiddleware())
}

type (
	SubmitRequest struct {
		ExerciseID string `json:"exercise_id"`
		Code       string `json:"code"`
	}

	ReviewNextRequest struct {
		ExerciseID string `json:"exercise_id"`
	}

	ReviewDoneRequest struct {
		Grade int `json:"grade"`
	}

	// SolutionView bundles everything the solution page shows.
	SolutionView struct {
		Solution solution.Solution          `json:"solution"`
		Versions []solution.Solution        `json:"versions"`
		Results  []solution.ExecutionResult `json:"results"`
		Comments []comment.Comment          `json:"comments"`
	}
)

// Handlers

// submit records a new solution version unless a byte-identical one already
// exists for the pair.
func (api *solutionApi) submit(ctx echo.Context) error {
	var data SubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	exists, err := api.srv.deps.SolutionSvc.Exists(rctx, data.ExerciseID, claims.Subject, data.Code)
	if err != nil {
		return errors.Wrap(err, "checking for duplicate solution")
	}
	if exists {
		return ctx.NoContent(http.StatusNoContent)
	}

	sol, err := api.srv.deps.SolutionSvc.Create(rctx, solution.NewSolution{
		ExerciseID: data.ExerciseID,
		SolverID:   claims.Subject,
		Code:       data.Code,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sol)
}

// view returns the solution with its version history, automated results and
// comments. When the owning learner opens it, related notifications are
// marked read.
func (api *solutionApi) view(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	sol, err := api.srv.deps.SolutionSvc.GetByID(rctx, ctx.Param("id"))
	if err != nil {
		return err
	}
	if sol.SolverID != claims.Subject && !claims.IsManager && !claims.IsAdmin {
		return errHttpNotFound
	}

	versions, err := api.srv.deps.SolutionSvc.OrderedVersions(rctx, sol.ExerciseID, sol.SolverID)
	if err != nil {
		return errors.Wrap(err, "querying versions")
	}
	results, err := api.srv.deps.SolutionSvc.TestResults(rctx, sol.ID)
	if err != nil {
		return errors.Wrap(err, "querying execution results")
	}
	comments, err := api.srv.deps.CommentSvc.BySolution(rctx, sol.ID)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}

	if sol.SolverID == claims.Subject {
		if err = api.srv.deps.NotificationSvc.ReadAllFor(rctx, claims.Subject, sol.ID); err != nil {
			return errors.Wrap(err, "marking notifications read")
		}
	}

	return ctx.JSON(http.StatusOK, SolutionView{
		Solution: sol,
		Versions: versions,
		Results:  results,
		Comments: comments,
	})
}

// reviewNext claims the best waiting solution for the reviewer.
func (api *solutionApi) reviewNext(ctx echo.Context) error {
	var data ReviewNextRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewNextRequest")
	}
	sol, err := api.srv.deps.SolutionSvc.StartChecking(ctx.Request().Context(), data.ExerciseID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sol)
}

// reviewDone grades the solution and notifies the solver.
func (api *solutionApi) reviewDone(ctx echo.Context) error {
	var data ReviewDoneRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ReviewDoneRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.srv.deps.SolutionSvc.DoneChecking(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.Grade); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *solutionApi) status(ctx echo.Context) error {
	statuses, err := api.srv.deps.SolutionSvc.Status(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying status")
	}
	return ctx.JSON(http.StatusOK, statuses)
}

// ingestResults receives a raw junit report for the solution; the checker
// pipeline posts here after running the submitted code.
func (api *solutionApi) ingestResults(ctx echo.Context) error {
	report, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading check report")
	}
	if err = api.srv.deps.Ingestor.PopulateResults(ctx.Request().Context(), ctx.Param("id"), report); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ingestLinterResults receives linter findings for the solution; they are
// recorded as automated comments under the checker account.
func (api *solutionApi) ingestLinterResults(ctx echo.Context) error {
	var findings []checker.LinterFinding
	if err := json.NewDecoder(ctx.Request().Body).Decode(&findings); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed linter findings")
	}
	if err := api.srv.deps.Ingestor.PopulateLinterComments(ctx.Request().Context(), ctx.Param("id"), findings); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
