package progress

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/user"
)

var NowFunc = time.Now // mockable

type (
	// Templates is the read side of the course catalog.
	Templates interface {
		GetCourse(ctx context.Context, id string) (catalog.Course, error)
		GetModule(ctx context.Context, id string) (catalog.Module, error)
		GetTest(ctx context.Context, id string) (catalog.Test, error)
	}

	Users interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		Query(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	Service struct {
		repo     Repository
		catalog  Templates
		users    Users
		locker   core.Locker
		mailSvc  core.EmailService
		logger   core.Logger
		validate *validator.Validate
		conf     core.ProgressConfig
	}
)

func NewService(
	repo Repository,
	catalog Templates,
	users Users,
	locker core.Locker,
	mailSvc core.EmailService,
	logger core.Logger,
	validate *validator.Validate,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		users:    users,
		locker:   locker,
		mailSvc:  mailSvc,
		logger:   logger,
		validate: validate,
		conf:     conf.Progress,
	}
}

// run executes fn and the score rollup in one transaction, then sends the emails it raised.
func (svc *Service) run(ctx context.Context, fn func(c *cascade) error) error {
	var events []event
	err := svc.repo.RunInTx(ctx, func(repo Repository) error {
		c := newCascade(ctx, repo, svc.conf)
		if err := fn(c); err != nil {
			return err
		}
		if err := c.rollup(); err != nil {
			return err
		}
		events = c.events
		return nil
	})
	if err != nil {
		return err
	}
	svc.notify(ctx, events)
	return nil
}

func (svc *Service) notify(ctx context.Context, events []event) {
	for _, ev := range events {
		usr, err := svc.users.GetByID(ctx, ev.userID)
		if err != nil {
			svc.logger.Error("progress.notify: getting user", err, map[string]interface{}{"user_id": ev.userID})
			continue
		}
		msg := &core.EmailMessage{To: []mail.Address{{Name: usr.Name, Address: usr.Email}}}
		switch ev.kind {
		case eventBadgeUnlocked:
			msg.Subject = "New badge unlocked"
			msg.TemplateName = "badge_unlocked"
			msg.TemplateData = map[string]string{
				"Name":     usr.Name,
				"Level":    string(ev.level),
				"Module":   ev.title,
				"ModuleID": ev.targetID,
			}
		case eventCourseCompleted:
			msg.Subject = "Course completed"
			msg.TemplateName = "course_completed"
			msg.TemplateData = map[string]interface{}{
				"Name":   usr.Name,
				"Course": ev.title,
				"Score":  ev.score,
			}
		}
		svc.mailSvc.SendMessages(msg)
	}
}

// owned returns ErrNotFound when a row does not belong to userID.
func owned(rowUserID, userID string) error {
	if rowUserID != userID {
		return ErrNotFound
	}
	return nil
}

// CompleteLesson marks a lesson completed and cascades the unlocks. Completing it twice is a no-op.
func (svc *Service) CompleteLesson(ctx context.Context, userID, lessonID string) (LessonProgress, error) {
	var l LessonProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if l, err = c.repo.GetLesson(ctx, lessonID); err != nil {
			return err
		}
		if err = owned(l.UserID, userID); err != nil {
			return err
		}
		if l.Status == StatusCompleted {
			return nil
		}
		if err = c.completeLesson(l); err != nil {
			return err
		}
		l, err = c.repo.GetLesson(ctx, lessonID)
		return err
	})
	if err != nil {
		return LessonProgress{}, err
	}
	return l, nil
}

func (svc *Service) SubmitCheckpoint(ctx context.Context, userID, checkpointID string, sub Submission) (CheckpointProgress, error) {
	if err := svc.validate.Struct(sub); err != nil {
		return CheckpointProgress{}, err
	}
	var cp CheckpointProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if cp, err = c.repo.GetCheckpoint(ctx, checkpointID); err != nil {
			return err
		}
		if err = owned(cp.UserID, userID); err != nil {
			return err
		}
		if err = cp.moveTo(CheckpointSubmitted); err != nil {
			return err
		}
		cp.SubmissionURL = sub.URL
		cp.SubmittedAt = c.now
		cp.UpdatedAt = c.now
		return c.repo.UpdateCheckpoint(ctx, cp)
	})
	if err != nil {
		return CheckpointProgress{}, err
	}
	return cp, nil
}

// GradeCheckpoint is done by an admin. A graded checkpoint lets its owner finish.
func (svc *Service) GradeCheckpoint(ctx context.Context, checkpointID string, grade Grade) (CheckpointProgress, error) {
	if err := svc.validate.Struct(grade); err != nil {
		return CheckpointProgress{}, err
	}
	var cp CheckpointProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if cp, err = c.repo.GetCheckpoint(ctx, checkpointID); err != nil {
			return err
		}
		if err = cp.moveTo(CheckpointGraded); err != nil {
			return err
		}
		cp.Score = grade.Score
		cp.Feedback = core.CleanString(grade.Feedback)
		cp.GradedAt = c.now
		cp.UpdatedAt = c.now
		if err = c.repo.UpdateCheckpoint(ctx, cp); err != nil {
			return errors.Wrap(err, "updating checkpoint")
		}
		return c.advanceOwner(cp.ModuleProgressID, cp.SubModuleProgressID)
	})
	if err != nil {
		return CheckpointProgress{}, err
	}
	return cp, nil
}

func (svc *Service) SubmitProject(ctx context.Context, userID, projectID string, sub Submission) (ProjectProgress, error) {
	if err := svc.validate.Struct(sub); err != nil {
		return ProjectProgress{}, err
	}
	var p ProjectProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if p, err = c.repo.GetProject(ctx, projectID); err != nil {
			return err
		}
		if err = owned(p.UserID, userID); err != nil {
			return err
		}
		if err = p.moveTo(ProjectSubmitted); err != nil {
			return err
		}
		p.SubmissionURL = sub.URL
		p.SubmittedAt = c.now
		p.UpdatedAt = c.now
		return c.repo.UpdateProject(ctx, p)
	})
	if err != nil {
		return ProjectProgress{}, err
	}
	return p, nil
}

// GradeProject is done by an admin and completes the course.
func (svc *Service) GradeProject(ctx context.Context, projectID string, grade Grade) (ProjectProgress, error) {
	if err := svc.validate.Struct(grade); err != nil {
		return ProjectProgress{}, err
	}
	var p ProjectProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if p, err = c.repo.GetProject(ctx, projectID); err != nil {
			return err
		}
		if err = p.moveTo(ProjectCompleted); err != nil {
			return err
		}
		p.Score = grade.Score
		p.Feedback = core.CleanString(grade.Feedback)
		p.GradedAt = c.now
		p.UpdatedAt = c.now
		if err = c.repo.UpdateProject(ctx, p); err != nil {
			return errors.Wrap(err, "updating project")
		}
		course, err := c.repo.GetCourse(ctx, p.CourseProgressID)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		c.touchCourse(course.ID)
		return c.advanceCourse(course)
	})
	if err != nil {
		return ProjectProgress{}, err
	}
	return p, nil
}

// ListCatalog returns the courses and standalone modules userID tracks.
func (svc *Service) ListCatalog(ctx context.Context, userID string) (Catalog, error) {
	courses, err := svc.repo.QueryCourses(ctx, userID)
	if err != nil {
		return Catalog{}, errors.Wrap(err, "querying courses")
	}
	modules, err := svc.repo.QueryModules(ctx, userID, "")
	if err != nil {
		return Catalog{}, errors.Wrap(err, "querying modules")
	}
	return Catalog{Courses: courses, Modules: modules}, nil
}

// GetCourseProgress returns the full tree of a course progress.
func (svc *Service) GetCourseProgress(ctx context.Context, userID, id string) (CourseProgress, error) {
	course, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return CourseProgress{}, err
	}
	if err = owned(course.UserID, userID); err != nil {
		return CourseProgress{}, err
	}
	return svc.loadCourse(ctx, svc.repo, course)
}

func (svc *Service) loadCourse(ctx context.Context, repo Repository, course CourseProgress) (CourseProgress, error) {
	modules, err := repo.QueryModules(ctx, course.UserID, course.ID)
	if err != nil {
		return CourseProgress{}, errors.Wrap(err, "querying modules")
	}
	course.Modules = make([]ModuleProgress, 0, len(modules))
	for _, m := range modules {
		if m, err = svc.loadModule(ctx, repo, m); err != nil {
			return CourseProgress{}, err
		}
		course.Modules = append(course.Modules, m)
	}

	p, err := repo.GetProjectByCourse(ctx, course.ID)
	switch {
	case err == nil:
		course.Project = &p
	case err != ErrNotFound:
		return CourseProgress{}, errors.Wrap(err, "getting project")
	}
	return course, nil
}

// GetModuleProgress returns the full tree of a module progress. Badges are re-evaluated first.
func (svc *Service) GetModuleProgress(ctx context.Context, userID, id string) (ModuleProgress, error) {
	var m ModuleProgress
	err := svc.run(ctx, func(c *cascade) error {
		var err error
		if m, err = c.repo.GetModule(ctx, id); err != nil {
			return err
		}
		if err = owned(m.UserID, userID); err != nil {
			return err
		}
		return c.evaluateBadges(m)
	})
	if err != nil {
		return ModuleProgress{}, err
	}
	return svc.loadModule(ctx, svc.repo, m)
}

func (svc *Service) loadModule(ctx context.Context, repo Repository, m ModuleProgress) (ModuleProgress, error) {
	c := newCascade(ctx, repo, svc.conf)
	var err error
	if m.Test, err = c.ownedTest(m.ID); err != nil {
		return ModuleProgress{}, err
	}
	if m.Checkpoint, err = c.ownedCheckpoint(m.ID); err != nil {
		return ModuleProgress{}, err
	}
	if m.Badges, err = repo.QueryBadges(ctx, m.ID); err != nil {
		return ModuleProgress{}, errors.Wrap(err, "querying badges")
	}

	subModules, err := repo.QuerySubModules(ctx, m.ID)
	if err != nil {
		return ModuleProgress{}, errors.Wrap(err, "querying submodules")
	}
	m.SubModules = make([]SubModuleProgress, 0, len(subModules))
	for _, sm := range subModules {
		if sm.Lessons, err = repo.QueryLessons(ctx, sm.ID); err != nil {
			return ModuleProgress{}, errors.Wrap(err, "querying lessons")
		}
		if sm.Test, err = c.ownedTest(sm.ID); err != nil {
			return ModuleProgress{}, err
		}
		if sm.Checkpoint, err = c.ownedCheckpoint(sm.ID); err != nil {
			return ModuleProgress{}, err
		}
		m.SubModules = append(m.SubModules, sm)
	}
	return m, nil
}

// GetLesson returns a lesson the user has unlocked.
func (svc *Service) GetLesson(ctx context.Context, userID, id string) (LessonProgress, error) {
	l, err := svc.repo.GetLesson(ctx, id)
	if err != nil {
		return LessonProgress{}, err
	}
	if err = owned(l.UserID, userID); err != nil {
		return LessonProgress{}, err
	}
	if l.Status == StatusLocked {
		return LessonProgress{}, ErrLessonLocked
	}
	return l, nil
}

// RemoveCourse deletes a user's course progress with every module linked to it.
func (svc *Service) RemoveCourse(ctx context.Context, userID, id string) error {
	return svc.repo.RunInTx(ctx, func(repo Repository) error {
		course, err := repo.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		if err = owned(course.UserID, userID); err != nil {
			return err
		}
		return repo.DeleteCourse(ctx, id)
	})
}

// RemoveModule deletes a standalone module progress. Modules linked to a course go with the course.
func (svc *Service) RemoveModule(ctx context.Context, userID, id string) error {
	return svc.repo.RunInTx(ctx, func(repo Repository) error {
		m, err := repo.GetModule(ctx, id)
		if err != nil {
			return err
		}
		if err = owned(m.UserID, userID); err != nil {
			return err
		}
		if m.CourseProgressID != "" {
			return core.NewValidationError(errors.New("module is part of an enrolled course; remove the course instead"))
		}
		return repo.DeleteModule(ctx, id)
	})
}

// Dashboard returns the platform counters shown to admins.
func (svc *Service) Dashboard(ctx context.Context) (Stats, error) {
	stats, err := svc.repo.Stats(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "getting progress stats")
	}
	users, err := svc.users.Query(ctx, nil, nil)
	if err != nil {
		return Stats{}, errors.Wrap(err, "querying users")
	}
	stats.Users = len(users)
	for _, usr := range users {
		if usr.IsSubscribed {
			stats.SubscribedUsers++
		}
	}
	return stats, nil
}
