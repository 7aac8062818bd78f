package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/user"
)

type catalogApi struct {
	svc     *catalog.Service
	userSvc user.Service
}

func registerCatalogAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := catalogApi{svc: deps.CatalogSvc, userSvc: deps.UserSvc}

	cg := g.Group("/catalog", jwt, activeUserMiddleware(api.userSvc))
	cg.GET("/courses", api.queryCourses)
	cg.GET("/courses/:id", api.retrieveCourse)
	cg.GET("/modules", api.queryModules)

	// admin endpoints
	admin := adminMiddleware()
	cg.POST("/courses", api.createCourse, admin)
	cg.POST("/modules", api.createModule, admin)
	cg.PUT("/courses/:id/publish", api.publishCourse, admin)
	cg.DELETE("/courses/:id", api.destroyCourse, admin)
}

func (api *catalogApi) isAdmin(ctx echo.Context) bool {
	claims, err := getContextClaims(ctx)
	return err == nil && claims.IsAdmin
}

// queryCourses lists published courses; admins also see drafts.
func (api *catalogApi) queryCourses(ctx echo.Context) error {
	courses, err := api.svc.ListCourses(ctx.Request().Context(), !api.isAdmin(ctx))
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []catalog.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *catalogApi) retrieveCourse(ctx echo.Context) error {
	course, err := api.svc.GetCourse(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course")
	}
	if api.isAdmin(ctx) {
		return ctx.JSON(http.StatusOK, course)
	}
	if !course.Published {
		return catalog.ErrCourseNotFound
	}
	return ctx.JSON(http.StatusOK, course.Public())
}

func (api *catalogApi) queryModules(ctx echo.Context) error {
	modules, err := api.svc.ListStandaloneModules(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []catalog.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *catalogApi) createCourse(ctx echo.Context) error {
	var data catalog.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	course, err := api.svc.ImportCourse(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing course")
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *catalogApi) createModule(ctx echo.Context) error {
	var data catalog.NewModule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	module, err := api.svc.ImportModule(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "importing module")
	}
	return ctx.JSON(http.StatusCreated, module)
}

func (api *catalogApi) publishCourse(ctx echo.Context) error {
	var data PublishRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PublishRequest")
	}
	published := true
	if data.Published != nil {
		published = *data.Published
	}
	course, err := api.svc.Publish(ctx.Request().Context(), ctx.Param("id"), published)
	if err != nil {
		return errors.Wrap(err, "publishing course")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *catalogApi) destroyCourse(ctx echo.Context) error {
	if err := api.svc.DeleteCourse(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PublishRequest defaults to publishing when `published` is omitted.
type PublishRequest struct {
	Published *bool `json:"published"`
}
