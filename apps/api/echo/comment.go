package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/comment"
)

type commentApi struct {
	srv *Server
}

func registerCommentAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := commentApi{srv: srv}

	cg := g.Group("/solutions/:id/comments", jwt)
	cg.GET("", api.query)
	cg.POST("", api.create, managerMiddleware())

	g.DELETE("/comments/:id", api.destroy, jwt, managerMiddleware())
}

type CreateCommentRequest struct {
	LineNumber int    `json:"line_number"`
	Text       string `json:"text"`
}

// Handlers

func (api *commentApi) query(ctx echo.Context) error {
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

	comments, err := api.srv.deps.CommentSvc.BySolution(rctx, sol.ID)
	if err != nil {
		return errors.Wrap(err, "querying comments")
	}
	return ctx.JSON(http.StatusOK, comments)
}

func (api *commentApi) create(ctx echo.Context) error {
	var data CreateCommentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CreateCommentRequest")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cmt, err := api.srv.deps.CommentSvc.Create(ctx.Request().Context(), claims.Subject, comment.NewComment{
		SolutionID: ctx.Param("id"),
		LineNumber: data.LineNumber,
		Text:       data.Text,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, cmt)
}

func (api *commentApi) destroy(ctx echo.Context) error {
	if err := api.srv.deps.CommentSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
