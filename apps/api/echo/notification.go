package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type notificationApi struct {
	srv *Server
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, srv *Server) {
	api := notificationApi{srv: srv}

	ng := g.Group("/notifications", jwt)
	ng.GET("", api.query)
	ng.POST("/read-all", api.readAll)
	ng.POST("/:id/read", api.read)
}

// Handlers

func (api *notificationApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	notifs, err := api.srv.deps.NotificationSvc.Fetch(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying notifications")
	}
	return ctx.JSON(http.StatusOK, notifs)
}

func (api *notificationApi) read(ctx echo.Context) error {
	if err := api.srv.deps.NotificationSvc.Read(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) readAll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.srv.deps.NotificationSvc.ReadAllFor(ctx.Request().Context(), claims.Subject, ""); err != nil {
		return errors.Wrap(err, "marking notifications read")
	}
	return ctx.NoContent(http.StatusNoContent)
}
