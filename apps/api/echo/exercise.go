package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/exercise"
)

type exerciseApi struct {
	srv *Server
}

func registerExerciseAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := exerciseApi{srv: srv}

	eg := g.Group("/exercises", jwt)
	eg.GET("", api.query)
	eg.POST("", api.create, adminMiddleware())
	eg.GET("/:id", api.retrieve)
	eg.GET("/:id/percent-checked", api.percentChecked, managerMiddleware())
	eg.GET("/:id/common-comments", api.commonComments, managerMiddleware())
}

// Handlers

func (api *exerciseApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// staff also see archived exercises
	exercises, err := api.srv.deps.ExerciseSvc.QueryAll(ctx.Request().Context(), claims.IsManager)
	if err != nil {
		return errors.Wrap(err, "querying exercises")
	}
	return ctx.JSON(http.StatusOK, exercises)
}

func (api *exerciseApi) create(ctx echo.Context) error {
	var data exercise.NewExercise
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExercise")
	}
	ex, err := api.srv.deps.ExerciseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, ex)
}

func (api *exerciseApi) retrieve(ctx echo.Context) error {
	ex, err := api.srv.deps.ExerciseSvc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *exerciseApi) percentChecked(ctx echo.Context) error {
	percent, err := api.srv.deps.SolutionSvc.PercentChecked(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "computing percent checked")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"percent": percent})
}

func (api *exerciseApi) commonComments(ctx echo.Context) error {
	texts, err := api.srv.deps.CommentSvc.Common(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying common comments")
	}
	return ctx.JSON(http.StatusOK, texts)
}
