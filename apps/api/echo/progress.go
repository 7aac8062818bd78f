package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
)

// Intents
const (
	intentEnrollCourse = "enroll-course"
	intentEnrollModule = "enroll-module"
	intentRemove       = "remove"
	intentComplete     = "complete"
	intentStart        = "start"
	intentSave         = "save"
	intentSubmit       = "submit"
	intentGrade        = "grade"
)

type progressApi struct {
	svc     *progress.Service
	userSvc user.Service
	content ContentSource
	logger  core.Logger
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := progressApi{
		svc:     deps.ProgressSvc,
		userSvc: deps.UserSvc,
		content: deps.Content,
		logger:  deps.Logger,
	}

	pg := g.Group("/progress", jwt, activeUserMiddleware(api.userSvc))
	pg.GET("", api.catalog)
	pg.POST("", api.enroll)
	pg.GET("/courses/:id", api.retrieveCourse)
	pg.POST("/courses/:id", api.courseAction)
	pg.GET("/modules/:id", api.retrieveModule)
	pg.POST("/modules/:id", api.moduleAction)
	pg.GET("/lessons/:id", api.retrieveLesson)
	pg.POST("/lessons/:id", api.lessonAction)
	pg.GET("/tests/:id", api.retrieveTest)
	pg.POST("/tests/:id", api.testAction)
	pg.POST("/checkpoints/:id", api.checkpointAction)
	pg.POST("/projects/:id", api.projectAction)
}

func contextUserID(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	return claims.Subject, nil
}

func (api *progressApi) catalog(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	cat, err := api.svc.ListCatalog(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing catalog")
	}
	if cat.Courses == nil {
		cat.Courses = []progress.CourseProgress{}
	}
	if cat.Modules == nil {
		cat.Modules = []progress.ModuleProgress{}
	}
	return ctx.JSON(http.StatusOK, cat)
}

func (api *progressApi) enroll(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	switch req.Intent {
	case intentEnrollCourse:
		if req.CourseID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "this field is required"})
		}
		course, err := api.svc.EnrollCourse(reqCtx, userID, req.CourseID)
		if err != nil {
			return errors.Wrap(err, "enrolling course")
		}
		return ctx.JSON(http.StatusCreated, course)
	case intentEnrollModule:
		if req.ModuleID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "module_id", Error: "this field is required"})
		}
		module, err := api.svc.EnrollModule(reqCtx, userID, req.ModuleID)
		if err != nil {
			return errors.Wrap(err, "enrolling module")
		}
		return ctx.JSON(http.StatusCreated, module)
	}
	return unknownIntent(req.Intent, intentEnrollCourse, intentEnrollModule)
}

func (api *progressApi) retrieveCourse(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourseProgress(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *progressApi) courseAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentRemove {
		return unknownIntent(req.Intent, intentRemove)
	}
	if err = api.svc.RemoveCourse(ctx.Request().Context(), userID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) retrieveModule(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	module, err := api.svc.GetModuleProgress(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting module progress")
	}
	return ctx.JSON(http.StatusOK, module)
}

func (api *progressApi) moduleAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentRemove {
		return unknownIntent(req.Intent, intentRemove)
	}
	if err = api.svc.RemoveModule(ctx.Request().Context(), userID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing module")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// retrieveLesson returns an unlocked lesson with its markdown.
// The lesson is still returned when the content host fails.
func (api *progressApi) retrieveLesson(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	reqCtx := ctx.Request().Context()
	lesson, err := api.svc.GetLesson(reqCtx, userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}

	view := LessonView{LessonProgress: lesson}
	if api.content != nil && lesson.ContentPath != "" {
		if view.Content, err = api.content.Markdown(reqCtx, lesson.ContentPath); err != nil {
			api.logger.Warn("fetching lesson content", err, map[string]interface{}{"path": lesson.ContentPath})
		}
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *progressApi) lessonAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentComplete {
		return unknownIntent(req.Intent, intentComplete)
	}
	lesson, err := api.svc.CompleteLesson(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, lesson)
}

func (api *progressApi) retrieveTest(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	view, err := api.svc.GetTest(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting test")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *progressApi) testAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}

	reqCtx := ctx.Request().Context()
	id := ctx.Param("id")
	switch req.Intent {
	case intentStart:
		view, err := api.svc.StartTest(reqCtx, userID, id)
		if err != nil {
			return errors.Wrap(err, "starting test")
		}
		return ctx.JSON(http.StatusOK, view)
	case intentSave:
		sess, err := api.svc.SaveAnswers(reqCtx, userID, id, req.Answers)
		if err != nil {
			return errors.Wrap(err, "saving answers")
		}
		return ctx.JSON(http.StatusOK, sess)
	case intentSubmit:
		res, err := api.svc.SubmitTest(reqCtx, userID, id, req.Answers)
		if err != nil {
			return errors.Wrap(err, "submitting test")
		}
		return ctx.JSON(http.StatusOK, res)
	}
	return unknownIntent(req.Intent, intentStart, intentSave, intentSubmit)
}

func (api *progressApi) checkpointAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentSubmit {
		return unknownIntent(req.Intent, intentSubmit)
	}
	cp, err := api.svc.SubmitCheckpoint(ctx.Request().Context(), userID, ctx.Param("id"), req.submission())
	if err != nil {
		return errors.Wrap(err, "submitting checkpoint")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *progressApi) projectAction(ctx echo.Context) error {
	userID, err := contextUserID(ctx)
	if err != nil {
		return err
	}
	req, err := bindIntent(ctx)
	if err != nil {
		return err
	}
	if req.Intent != intentSubmit {
		return unknownIntent(req.Intent, intentSubmit)
	}
	p, err := api.svc.SubmitProject(ctx.Request().Context(), userID, ctx.Param("id"), req.submission())
	if err != nil {
		return errors.Wrap(err, "submitting project")
	}
	return ctx.JSON(http.StatusOK, p)
}

type LessonView struct {
	progress.LessonProgress
	Content string `json:"content"`
}
