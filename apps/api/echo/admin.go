package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
)

type adminApi struct {
	svc     *progress.Service
	userSvc user.Service
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := adminApi{svc: deps.ProgressSvc, userSvc: deps.UserSvc}

	ag := g.Group("/admin", jwt, activeUserMiddleware(api.userSvc), adminMiddleware())
	ag.GET("/dashboard", api.dashboard)
	ag.POST("/checkpoints/:id", api.checkpointAction)
	ag.POST("/projects/:id", api.projectAction)
}

func (api *adminApi) dashboard(ctx echo.Context) error {
	stats, err := api.svc.Dashboard(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting dashboard")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) checkpointAction(ctx echo.Context) error {
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentGrade {
		return unknownIntent(req.Intent, intentGrade)
	}
	grade, err := req.grade()
	if err != nil {
		return err
	}
	cp, err := api.svc.GradeCheckpoint(ctx.Request().Context(), ctx.Param("id"), grade)
	if err != nil {
		return errors.Wrap(err, "grading checkpoint")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *adminApi) projectAction(ctx echo.Context) error {
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentGrade {
		return unknownIntent(req.Intent, intentGrade)
	}
	grade, err := req.grade()
	if err != nil {
		return err
	}
	p, err := api.svc.GradeProject(ctx.Request().Context(), ctx.Param("id"), grade)
	if err != nil {
		return errors.Wrap(err, "grading project")
	}
	return ctx.JSON(http.StatusOK, p)
}
