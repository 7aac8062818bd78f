package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
)

var NowFunc = time.Now // mockable

var (
	// errors
	ErrCourseNotFound     = core.NewNotFoundError("course")
	ErrModuleNotFound     = core.NewNotFoundError("module")
	ErrTestNotFound       = core.NewNotFoundError("test")
	ErrCheckpointNotFound = core.NewNotFoundError("checkpoint")
	ErrProjectNotFound    = core.NewNotFoundError("project")
)

type (
	Repository interface {
		// RunInTx runs fn against a Repository bound to a single transaction.
		// The transaction is rolled back when fn returns an error.
		RunInTx(ctx context.Context, fn func(Repository) error) error

		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		GetCourseBySlug(ctx context.Context, slug string) (Course, error)
		QueryCourses(ctx context.Context, publishedOnly bool) ([]Course, error)
		SetCoursePublished(ctx context.Context, id string, published bool) error
		DeleteCourse(ctx context.Context, id string) error

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, id string) (Module, error)
		GetModuleBySlug(ctx context.Context, slug string) (Module, error)
		// QueryModules returns the modules of a course by order; standalone modules when courseID is empty.
		QueryModules(ctx context.Context, courseID string) ([]Module, error)

		CreateSubModule(ctx context.Context, sm SubModule) (SubModule, error)
		QuerySubModules(ctx context.Context, moduleID string) ([]SubModule, error)

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		QueryLessons(ctx context.Context, subModuleID string) ([]Lesson, error)

		CreateTest(ctx context.Context, t Test) (Test, error)
		GetTest(ctx context.Context, id string) (Test, error)

		CreateCheckpoint(ctx context.Context, cp Checkpoint) (Checkpoint, error)
		GetCheckpoint(ctx context.Context, id string) (Checkpoint, error)

		CreateProject(ctx context.Context, p Project) (Project, error)
		GetProjectByCourse(ctx context.Context, courseID string) (Project, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
	}
)

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

// ImportCourse validates and stores a whole course tree in one transaction.
func (svc *Service) ImportCourse(ctx context.Context, nc NewCourse) (Course, error) {
	cleanCourse(&nc)
	if err := svc.validate.Struct(nc); err != nil {
		return Course{}, err
	}
	if err := svc.checkSlugs(ctx, nc.Slug, nc.Modules...); err != nil {
		return Course{}, err
	}

	var courseID string
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		now := NowFunc().UTC()
		c, err := repo.CreateCourse(ctx, Course{
			Slug:        nc.Slug,
			Title:       nc.Title,
			Description: nc.Description,
			Premium:     nc.Premium,
			Published:   nc.Published,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			return errors.Wrap(err, "creating course")
		}
		courseID = c.ID

		for i, nm := range nc.Modules {
			if _, err = createModule(ctx, repo, nm, c.ID, i+1, nc.Premium); err != nil {
				return err
			}
		}
		if nc.Project != nil {
			if _, err = repo.CreateProject(ctx, Project{
				CourseID:    c.ID,
				Title:       nc.Project.Title,
				Description: nc.Project.Description,
			}); err != nil {
				return errors.Wrap(err, "creating project")
			}
		}
		return nil
	})
	if err != nil {
		return Course{}, err
	}
	return svc.GetCourse(ctx, courseID)
}

// ImportModule validates and stores a standalone module tree in one transaction.
func (svc *Service) ImportModule(ctx context.Context, nm NewModule) (Module, error) {
	cleanModule(&nm)
	if err := svc.validate.Struct(nm); err != nil {
		return Module{}, err
	}
	if err := svc.checkSlugs(ctx, "", nm); err != nil {
		return Module{}, err
	}

	var moduleID string
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		m, err := createModule(ctx, repo, nm, "", 0, nm.Premium)
		moduleID = m.ID
		return err
	})
	if err != nil {
		return Module{}, err
	}
	return svc.GetModule(ctx, moduleID)
}

// Import stores every course and standalone module of a catalog File.
// It stops at the first invalid entry; entries imported before it are kept.
func (svc *Service) Import(ctx context.Context, file File) (courses, modules int, err error) {
	for _, nc := range file.Courses {
		if _, err = svc.ImportCourse(ctx, nc); err != nil {
			return courses, modules, errors.Wrapf(err, "importing course %q", nc.Slug)
		}
		courses++
	}
	for _, nm := range file.Modules {
		if _, err = svc.ImportModule(ctx, nm); err != nil {
			return courses, modules, errors.Wrapf(err, "importing module %q", nm.Slug)
		}
		modules++
	}
	return courses, modules, nil
}

func (svc *Service) checkSlugs(ctx context.Context, courseSlug string, modules ...NewModule) error {
	if courseSlug != "" {
		if _, err := svc.repo.GetCourseBySlug(ctx, courseSlug); err == nil {
			return core.NewValidationError(nil, core.FieldError{Field: "slug", Error: "a course with this slug already exists"})
		} else if err != ErrCourseNotFound {
			return errors.Wrap(err, "checking course slug")
		}
	}
	for _, nm := range modules {
		if _, err := svc.repo.GetModuleBySlug(ctx, nm.Slug); err == nil {
			return core.NewValidationError(nil, core.FieldError{
				Field: "slug",
				Error: fmt.Sprintf("a module with the slug %q already exists", nm.Slug),
			})
		} else if err != ErrModuleNotFound {
			return errors.Wrap(err, "checking module slug")
		}
	}
	return nil
}

func createModule(ctx context.Context, repo Repository, nm NewModule, courseID string, order int, premium bool) (Module, error) {
	m := Module{
		CourseID: courseID,
		Slug:     nm.Slug,
		Title:    nm.Title,
		Order:    order,
		Premium:  premium || nm.Premium,
	}
	var err error
	if m.TestID, err = createTest(ctx, repo, nm.Test); err != nil {
		return Module{}, err
	}
	if m.CheckpointID, err = createCheckpoint(ctx, repo, nm.Checkpoint); err != nil {
		return Module{}, err
	}
	if m, err = repo.CreateModule(ctx, m); err != nil {
		return Module{}, errors.Wrap(err, "creating module")
	}

	for i, nsm := range nm.SubModules {
		sm := SubModule{ModuleID: m.ID, Title: nsm.Title, Order: i + 1}
		if sm.TestID, err = createTest(ctx, repo, nsm.Test); err != nil {
			return Module{}, err
		}
		if sm.CheckpointID, err = createCheckpoint(ctx, repo, nsm.Checkpoint); err != nil {
			return Module{}, err
		}
		if sm, err = repo.CreateSubModule(ctx, sm); err != nil {
			return Module{}, errors.Wrap(err, "creating submodule")
		}
		for j, nl := range nsm.Lessons {
			if _, err = repo.CreateLesson(ctx, Lesson{
				SubModuleID: sm.ID,
				Title:       nl.Title,
				Order:       j + 1,
				ContentPath: nl.ContentPath,
			}); err != nil {
				return Module{}, errors.Wrap(err, "creating lesson")
			}
		}
	}
	return m, nil
}

func createTest(ctx context.Context, repo Repository, nt *NewTest) (string, error) {
	if nt == nil {
		return "", nil
	}
	t, err := repo.CreateTest(ctx, Test{Title: nt.Title, Questions: nt.Questions})
	if err != nil {
		return "", errors.Wrap(err, "creating test")
	}
	return t.ID, nil
}

func createCheckpoint(ctx context.Context, repo Repository, ncp *NewCheckpoint) (string, error) {
	if ncp == nil {
		return "", nil
	}
	cp, err := repo.CreateCheckpoint(ctx, Checkpoint{Title: ncp.Title, Instructions: ncp.Instructions})
	if err != nil {
		return "", errors.Wrap(err, "creating checkpoint")
	}
	return cp.ID, nil
}

func (svc *Service) ListCourses(ctx context.Context, publishedOnly bool) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, publishedOnly)
}

// GetCourse returns the full course tree.
func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	modules, err := svc.repo.QueryModules(ctx, c.ID)
	if err != nil {
		return Course{}, errors.Wrap(err, "querying modules")
	}
	for _, m := range modules {
		if m, err = svc.loadModule(ctx, m); err != nil {
			return Course{}, err
		}
		c.Modules = append(c.Modules, m)
	}

	p, err := svc.repo.GetProjectByCourse(ctx, c.ID)
	switch {
	case err == nil:
		c.Project = &p
	case err != ErrProjectNotFound:
		return Course{}, errors.Wrap(err, "getting project")
	}
	return c, nil
}

func (svc *Service) ListStandaloneModules(ctx context.Context) ([]Module, error) {
	return svc.repo.QueryModules(ctx, "")
}

// GetModule returns the full module tree.
func (svc *Service) GetModule(ctx context.Context, id string) (Module, error) {
	m, err := svc.repo.GetModule(ctx, id)
	if err != nil {
		return Module{}, err
	}
	return svc.loadModule(ctx, m)
}

func (svc *Service) loadModule(ctx context.Context, m Module) (Module, error) {
	var err error
	if m.Test, err = svc.getTest(ctx, m.TestID); err != nil {
		return Module{}, err
	}
	if m.Checkpoint, err = svc.getCheckpoint(ctx, m.CheckpointID); err != nil {
		return Module{}, err
	}

	subModules, err := svc.repo.QuerySubModules(ctx, m.ID)
	if err != nil {
		return Module{}, errors.Wrap(err, "querying submodules")
	}
	m.SubModules = make([]SubModule, 0, len(subModules))
	for _, sm := range subModules {
		if sm.Lessons, err = svc.repo.QueryLessons(ctx, sm.ID); err != nil {
			return Module{}, errors.Wrap(err, "querying lessons")
		}
		if sm.Test, err = svc.getTest(ctx, sm.TestID); err != nil {
			return Module{}, err
		}
		if sm.Checkpoint, err = svc.getCheckpoint(ctx, sm.CheckpointID); err != nil {
			return Module{}, err
		}
		m.SubModules = append(m.SubModules, sm)
	}
	return m, nil
}

func (svc *Service) getTest(ctx context.Context, id string) (*Test, error) {
	if id == "" {
		return nil, nil
	}
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "getting test")
	}
	return &t, nil
}

func (svc *Service) getCheckpoint(ctx context.Context, id string) (*Checkpoint, error) {
	if id == "" {
		return nil, nil
	}
	cp, err := svc.repo.GetCheckpoint(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "getting checkpoint")
	}
	return &cp, nil
}

// GetTest returns a test with its answers; callers must strip them (Test.Public) before showing it to students.
func (svc *Service) GetTest(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTest(ctx, id)
}

func (svc *Service) Publish(ctx context.Context, courseID string, published bool) (Course, error) {
	if err := svc.repo.SetCoursePublished(ctx, courseID, published); err != nil {
		return Course{}, err
	}
	return svc.repo.GetCourse(ctx, courseID)
}

// DeleteCourse removes a course template. Progress already copied from it is kept.
func (svc *Service) DeleteCourse(ctx context.Context, courseID string) error {
	return svc.repo.DeleteCourse(ctx, courseID)
}

func cleanCourse(nc *NewCourse) {
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	for i := range nc.Modules {
		cleanModule(&nc.Modules[i])
	}
	if nc.Project != nil {
		nc.Project.Title = core.CleanString(nc.Project.Title)
	}
}

func cleanModule(nm *NewModule) {
	nm.Slug = core.CleanString(nm.Slug, true /* lower */)
	nm.Title = core.CleanString(nm.Title)
	cleanTest(nm.Test)
	for i := range nm.SubModules {
		nsm := &nm.SubModules[i]
		nsm.Title = core.CleanString(nsm.Title)
		cleanTest(nsm.Test)
		for j := range nsm.Lessons {
			nsm.Lessons[j].Title = core.CleanString(nsm.Lessons[j].Title)
			nsm.Lessons[j].ContentPath = core.CleanString(nsm.Lessons[j].ContentPath)
		}
	}
}

// cleanTest assigns positional IDs to questions and options that have none.
func cleanTest(nt *NewTest) {
	if nt == nil {
		return
	}
	nt.Title = core.CleanString(nt.Title)
	for i := range nt.Questions {
		q := &nt.Questions[i]
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		for j := range q.Options {
			if q.Options[j].ID == "" {
				q.Options[j].ID = fmt.Sprintf("%s-o%d", q.ID, j+1)
			}
		}
	}
}
