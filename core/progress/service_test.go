package progress_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
	emailsvc "github.com/casbytes/lms-sub000/services/email"
	locksvc "github.com/casbytes/lms-sub000/services/lock"
	logsvc "github.com/casbytes/lms-sub000/services/logger"
	inmemdb "github.com/casbytes/lms-sub000/storage/database/inmem"
	sqlxrepos "github.com/casbytes/lms-sub000/storage/database/sqlx"
	"github.com/casbytes/lms-sub000/testutil"
)

type env struct {
	t       *testing.T
	ctx     context.Context
	svc     *progress.Service
	catalog *catalog.Service
	users   user.Repository
	locker  core.Locker
	now     time.Time
}

// backend builds the repositories a test runs against.
type backend struct {
	name string
	open func(t *testing.T) (user.Repository, catalog.Repository, progress.Repository)
}

var backends = []backend{
	{"inmem", func(t *testing.T) (user.Repository, catalog.Repository, progress.Repository) {
		db := inmemdb.NewDB()
		return inmemdb.NewUserRepository(db), inmemdb.NewCatalogRepository(db), inmemdb.NewProgressRepository(db)
	}},
	{"sqlx", func(t *testing.T) (user.Repository, catalog.Repository, progress.Repository) {
		db := testutil.OpenDB(t)
		return sqlxrepos.NewUserRepository(db), sqlxrepos.NewCatalogRepository(db), sqlxrepos.NewProgressRepository(db)
	}},
}

// forEachBackend runs fn once per repository backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, e *env)) {
	for _, b := range backends {
		b := b
		t.Run(b.name, func(t *testing.T) {
			fn(t, setup(t, b))
		})
	}
}

func setup(t *testing.T, b backend) *env {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger("PROGRESS", conf)
	validate := testutil.NewValidator()
	users, catRepo, progRepo := b.open(t)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	e := &env{
		t:       t,
		ctx:     context.Background(),
		catalog: catalog.NewService(catRepo, validate),
		users:   users,
		locker:  locksvc.NewMemoryLocker(),
		now:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	e.svc = progress.NewService(
		progRepo,
		e.catalog,
		user.NewServiceMock(e.users, mailSvc, conf),
		e.locker,
		mailSvc,
		logger,
		validate,
		conf,
	)

	progress.NowFunc = func() time.Time { return e.now }
	t.Cleanup(func() { progress.NowFunc = time.Now })
	emailsvc.ResetSentMessages()
	return e
}

func (e *env) tick(d time.Duration) {
	e.now = e.now.Add(d)
}

func (e *env) importCourse(nc catalog.NewCourse) catalog.Course {
	c, err := e.catalog.ImportCourse(e.ctx, nc)
	require.NoError(e.t, err)
	return c
}

func (e *env) importModule(nm catalog.NewModule) catalog.Module {
	m, err := e.catalog.ImportModule(e.ctx, nm)
	require.NoError(e.t, err)
	return m
}

func (e *env) course(userID, id string) progress.CourseProgress {
	cp, err := e.svc.GetCourseProgress(e.ctx, userID, id)
	require.NoError(e.t, err)
	return cp
}

func (e *env) module(userID, id string) progress.ModuleProgress {
	mp, err := e.svc.GetModuleProgress(e.ctx, userID, id)
	require.NoError(e.t, err)
	return mp
}

func (e *env) completeLessons(userID string, lessons ...progress.LessonProgress) {
	for _, l := range lessons {
		got, err := e.svc.CompleteLesson(e.ctx, userID, l.ID)
		require.NoError(e.t, err, l.Title)
		require.Equal(e.t, progress.StatusCompleted, got.Status, l.Title)
	}
}

// answers selects the right option for the first `right` of n questions and a wrong one for the rest.
func answers(n, right int) progress.Answers {
	ans := make(progress.Answers, n)
	for i := 1; i <= n; i++ {
		opt := "b"
		if i <= right {
			opt = "a"
		}
		ans[fmt.Sprintf("q%d", i)] = []string{opt}
	}
	return ans
}

func badgeStatuses(m progress.ModuleProgress) []progress.BadgeStatus {
	out := make([]progress.BadgeStatus, 0, len(m.Badges))
	for _, b := range m.Badges {
		out = append(out, b.Status)
	}
	return out
}

func sentTemplates() map[string]int {
	counts := make(map[string]int)
	for _, msg := range emailsvc.SentMessages() {
		counts[msg.TemplateName]++
	}
	return counts
}

var (
	locked   = progress.BadgeLocked
	unlocked = progress.BadgeUnlocked
)

func TestService_CourseWalkthrough(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		course := e.importCourse(testutil.CourseFixture("go", false))

		// enrollment unlocks the first module, submodule and lesson
		cp, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.StatusInProgress, cp.Status)
		require.Len(t, cp.Modules, 2)
		fund, conc := cp.Modules[0], cp.Modules[1]
		assert.Equal(t, progress.StatusInProgress, fund.Status)
		assert.Equal(t, progress.StatusLocked, conc.Status)
		assert.Equal(t, []progress.BadgeStatus{locked, locked, locked, locked}, badgeStatuses(fund))
		require.Len(t, fund.SubModules, 2)
		syntax, types := fund.SubModules[0], fund.SubModules[1]
		assert.Equal(t, progress.StatusInProgress, syntax.Status)
		assert.Equal(t, progress.StatusLocked, types.Status)
		require.Len(t, syntax.Lessons, 2)
		assert.Equal(t, progress.StatusInProgress, syntax.Lessons[0].Status)
		assert.Equal(t, progress.StatusLocked, syntax.Lessons[1].Status)
		require.NotNil(t, syntax.Test)
		assert.Equal(t, progress.TestLocked, syntax.Test.Status)
		require.NotNil(t, cp.Project)
		assert.Equal(t, progress.ProjectLocked, cp.Project.Status)

		_, err = e.svc.GetLesson(ctx, usr.ID, syntax.Lessons[1].ID)
		assert.Equal(t, progress.ErrLessonLocked, err)
		l, err := e.svc.GetLesson(ctx, usr.ID, syntax.Lessons[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "go/syntax/hello.md", l.ContentPath)

		// lessons, completing twice is a no-op
		e.completeLessons(usr.ID, syntax.Lessons[0])
		e.completeLessons(usr.ID, syntax.Lessons[0])
		syntax = e.course(usr.ID, cp.ID).Modules[0].SubModules[0]
		assert.Equal(t, 33, syntax.Score)
		assert.Equal(t, progress.StatusInProgress, syntax.Lessons[1].Status)

		e.completeLessons(usr.ID, syntax.Lessons[1])
		view, err := e.svc.GetTest(ctx, usr.ID, syntax.Test.ID)
		require.NoError(t, err)
		assert.Equal(t, progress.TestAvailable, view.Progress.Status)
		assert.Nil(t, view.Session)
		for _, q := range view.Test.Questions {
			for _, opt := range q.Options {
				assert.False(t, opt.Correct, "answers must be hidden")
			}
		}

		// failed attempt
		_, err = e.svc.SubmitTest(ctx, usr.ID, syntax.Test.ID, answers(2, 2))
		assert.Equal(t, progress.ErrNoSession, err)

		view, err = e.svc.StartTest(ctx, usr.ID, syntax.Test.ID)
		require.NoError(t, err)
		require.NotNil(t, view.Session)
		assert.Equal(t, e.now.Add(2*time.Minute), view.Session.Deadline)
		again, err := e.svc.StartTest(ctx, usr.ID, syntax.Test.ID)
		require.NoError(t, err)
		assert.Equal(t, view.Session.ID, again.Session.ID)

		res, err := e.svc.SubmitTest(ctx, usr.ID, syntax.Test.ID, answers(2, 1))
		require.NoError(t, err)
		assert.False(t, res.Passed)
		assert.Equal(t, 50, res.Score)
		assert.Equal(t, progress.TestLocked, res.Progress.Status)
		assert.Equal(t, 1, res.Progress.Attempts)
		assert.Equal(t, e.now.Add(24*time.Hour), res.Progress.NextAttemptAt)

		// cooldown
		e.tick(23 * time.Hour)
		_, err = e.svc.StartTest(ctx, usr.ID, syntax.Test.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, progress.ErrCoolingDown))
		var cdErr *progress.CooldownError
		require.True(t, errors.As(err, &cdErr))
		assert.Equal(t, res.Progress.NextAttemptAt, cdErr.NextAttemptAt)

		// passing attempt completes the submodule and unlocks the next one
		e.tick(time.Hour)
		_, err = e.svc.StartTest(ctx, usr.ID, syntax.Test.ID)
		require.NoError(t, err)
		res, err = e.svc.SubmitTest(ctx, usr.ID, syntax.Test.ID, answers(2, 2))
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, progress.TestCompleted, res.Progress.Status)
		assert.Equal(t, 2, res.Progress.Attempts)

		fund = e.course(usr.ID, cp.ID).Modules[0]
		syntax, types = fund.SubModules[0], fund.SubModules[1]
		assert.Equal(t, progress.StatusCompleted, syntax.Status)
		assert.Equal(t, 100, syntax.Score)
		assert.Equal(t, progress.StatusInProgress, types.Status)
		assert.Equal(t, progress.StatusInProgress, types.Lessons[0].Status)
		assert.Equal(t, []progress.BadgeStatus{unlocked, unlocked, locked, locked}, badgeStatuses(fund))

		// checkpoint
		e.completeLessons(usr.ID, types.Lessons...)
		types = e.course(usr.ID, cp.ID).Modules[0].SubModules[1]
		require.NotNil(t, types.Checkpoint)
		assert.Equal(t, progress.CheckpointInProgress, types.Checkpoint.Status)

		_, err = e.svc.GradeCheckpoint(ctx, types.Checkpoint.ID, progress.Grade{Score: 70})
		assert.True(t, errors.Is(err, progress.ErrInvalidTransition))
		_, err = e.svc.SubmitCheckpoint(ctx, usr.ID, types.Checkpoint.ID, progress.Submission{URL: "not a url"})
		assert.Error(t, err)

		cpt, err := e.svc.SubmitCheckpoint(ctx, usr.ID, types.Checkpoint.ID, progress.Submission{URL: "https://github.com/ada/library"})
		require.NoError(t, err)
		assert.Equal(t, progress.CheckpointSubmitted, cpt.Status)
		assert.Equal(t, e.now, cpt.SubmittedAt)
		cpt, err = e.svc.GradeCheckpoint(ctx, types.Checkpoint.ID, progress.Grade{Score: 70, Feedback: " Nice "})
		require.NoError(t, err)
		assert.Equal(t, progress.CheckpointGraded, cpt.Status)
		assert.Equal(t, "Nice", cpt.Feedback)

		// first module done, second one unlocked
		tree := e.course(usr.ID, cp.ID)
		fund, conc = tree.Modules[0], tree.Modules[1]
		assert.Equal(t, progress.StatusCompleted, fund.Status)
		assert.Equal(t, 85, fund.SubModules[1].Score)
		assert.Equal(t, 93, fund.Score)
		assert.Equal(t, []progress.BadgeStatus{unlocked, unlocked, unlocked, unlocked}, badgeStatuses(fund))
		assert.Equal(t, progress.StatusInProgress, conc.Status)
		assert.Equal(t, progress.StatusInProgress, conc.SubModules[0].Lessons[0].Status)

		// second module ends with a module checkpoint
		e.completeLessons(usr.ID, conc.SubModules[0].Lessons...)
		conc = e.course(usr.ID, cp.ID).Modules[1]
		assert.Equal(t, progress.StatusCompleted, conc.SubModules[0].Status)
		assert.Equal(t, progress.StatusInProgress, conc.Status)
		require.NotNil(t, conc.Checkpoint)
		assert.Equal(t, progress.CheckpointInProgress, conc.Checkpoint.Status)

		_, err = e.svc.SubmitCheckpoint(ctx, usr.ID, conc.Checkpoint.ID, progress.Submission{URL: "https://github.com/ada/pool"})
		require.NoError(t, err)
		_, err = e.svc.GradeCheckpoint(ctx, conc.Checkpoint.ID, progress.Grade{Score: 90})
		require.NoError(t, err)

		tree = e.course(usr.ID, cp.ID)
		assert.Equal(t, progress.StatusCompleted, tree.Modules[1].Status)
		assert.Equal(t, 95, tree.Modules[1].Score)
		assert.Equal(t, progress.StatusInProgress, tree.Status)
		assert.Equal(t, progress.ProjectInProgress, tree.Project.Status)

		// project
		_, err = e.svc.GradeProject(ctx, tree.Project.ID, progress.Grade{Score: 80})
		assert.True(t, errors.Is(err, progress.ErrInvalidTransition))
		_, err = e.svc.SubmitProject(ctx, usr.ID, tree.Project.ID, progress.Submission{URL: "https://github.com/ada/todo"})
		require.NoError(t, err)
		p, err := e.svc.GradeProject(ctx, tree.Project.ID, progress.Grade{Score: 80})
		require.NoError(t, err)
		assert.Equal(t, progress.ProjectCompleted, p.Status)

		tree = e.course(usr.ID, cp.ID)
		assert.Equal(t, progress.StatusCompleted, tree.Status)
		assert.Equal(t, 89, tree.Score)
		assert.Equal(t, e.now, tree.CompletedAt)

		assert.Equal(t, map[string]int{"badge_unlocked": 8, "course_completed": 1}, sentTemplates())
		for _, msg := range emailsvc.SentMessages() {
			require.Len(t, msg.To, 1)
			assert.Equal(t, usr.Email, msg.To[0].Address)
		}

		stats, err := e.svc.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, progress.Stats{
			Users:             1,
			CourseEnrollments: 1,
			CompletedCourses:  1,
			TestsPassed:       1,
			BadgesUnlocked:    8,
		}, stats)
	})
}

func TestService_EnrollCourse_Errors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		student := testutil.CreateStudent(t, e.users, "bob", false)
		subscriber := testutil.CreateStudent(t, e.users, "eve", true)

		goCourse := e.importCourse(testutil.CourseFixture("go", false))
		premium := e.importCourse(testutil.CourseFixture("pro", true))
		draft := testutil.CourseFixture("draft", false)
		draft.Published = false
		unpublished := e.importCourse(draft)
		clash := testutil.CourseFixture("rust", false)
		clash.Modules[1].Title = goCourse.Modules[0].Title
		clashing := e.importCourse(clash)

		_, err := e.svc.EnrollCourse(ctx, student.ID, "missing")
		assert.True(t, core.IsNotFound(err))

		_, err = e.svc.EnrollCourse(ctx, student.ID, unpublished.ID)
		assert.Equal(t, catalog.ErrCourseNotFound, err)

		_, err = e.svc.EnrollCourse(ctx, student.ID, premium.ID)
		assert.Equal(t, progress.ErrSubscriptionRequired, err)
		_, err = e.svc.EnrollCourse(ctx, subscriber.ID, premium.ID)
		assert.NoError(t, err)

		_, err = e.svc.EnrollCourse(ctx, student.ID, goCourse.ID)
		require.NoError(t, err)
		_, err = e.svc.EnrollCourse(ctx, student.ID, goCourse.ID)
		assert.Equal(t, progress.ErrAlreadyEnrolled, err)

		// a module title already tracked by another course rolls the enrollment back
		_, err = e.svc.EnrollCourse(ctx, student.ID, clashing.ID)
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr))

		cat, err := e.svc.ListCatalog(ctx, student.ID)
		require.NoError(t, err)
		require.Len(t, cat.Courses, 1)
		assert.Equal(t, goCourse.ID, cat.Courses[0].CourseID)
		assert.Empty(t, cat.Modules)
	})
}

func TestService_ModuleDedup(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		course := e.importCourse(testutil.CourseFixture("go", false))
		solo := e.importModule(testutil.ModuleFixture("fund-solo", course.Modules[0].Title))

		_, err := e.svc.EnrollModule(ctx, usr.ID, course.Modules[0].ID)
		var vErr *core.ValidationError
		assert.True(t, errors.As(err, &vErr), "course modules are enrolled through their course")

		mp, err := e.svc.EnrollModule(ctx, usr.ID, solo.ID)
		require.NoError(t, err)
		assert.Empty(t, mp.CourseProgressID)
		assert.Equal(t, progress.StatusInProgress, mp.Status)
		require.Len(t, mp.SubModules, 1)
		assert.Equal(t, progress.StatusInProgress, mp.SubModules[0].Lessons[0].Status)
		assert.Len(t, mp.Badges, 4)

		again, err := e.svc.EnrollModule(ctx, usr.ID, solo.ID)
		require.NoError(t, err)
		assert.Equal(t, mp.ID, again.ID)

		// the course adopts the standalone module instead of copying it
		cp, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		require.NoError(t, err)
		require.Len(t, cp.Modules, 2)
		assert.Equal(t, mp.ID, cp.Modules[0].ID)
		assert.Equal(t, cp.ID, cp.Modules[0].CourseProgressID)
		assert.Equal(t, 1, cp.Modules[0].Order)
		assert.Equal(t, progress.StatusInProgress, cp.Modules[0].Status)
		assert.Equal(t, progress.StatusLocked, cp.Modules[1].Status)

		cat, err := e.svc.ListCatalog(ctx, usr.ID)
		require.NoError(t, err)
		assert.Len(t, cat.Courses, 1)
		assert.Empty(t, cat.Modules)

		again, err = e.svc.EnrollModule(ctx, usr.ID, solo.ID)
		require.NoError(t, err)
		assert.Equal(t, mp.ID, again.ID)

		err = e.svc.RemoveModule(ctx, usr.ID, mp.ID)
		assert.True(t, errors.As(err, &vErr))

		require.NoError(t, e.svc.RemoveCourse(ctx, usr.ID, cp.ID))
		_, err = e.svc.GetModuleProgress(ctx, usr.ID, mp.ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.GetCourseProgress(ctx, usr.ID, cp.ID)
		assert.Equal(t, progress.ErrNotFound, err)
	})
}

func TestService_StandaloneModuleTest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		m := e.importModule(testutil.ModuleFixture("git", "Git 101"))

		mp, err := e.svc.EnrollModule(ctx, usr.ID, m.ID)
		require.NoError(t, err)
		e.completeLessons(usr.ID, mp.SubModules[0].Lessons...)

		mp = e.module(usr.ID, mp.ID)
		assert.Equal(t, progress.StatusCompleted, mp.SubModules[0].Status)
		assert.Equal(t, progress.StatusInProgress, mp.Status)
		assert.Equal(t, []progress.BadgeStatus{unlocked, unlocked, unlocked, unlocked}, badgeStatuses(mp))
		require.NotNil(t, mp.Test)
		testID := mp.Test.ID
		assert.Equal(t, progress.TestAvailable, mp.Test.Status)

		// an expired session is graded by the scheduler with its saved answers
		view, err := e.svc.StartTest(ctx, usr.ID, testID)
		require.NoError(t, err)
		assert.Equal(t, e.now.Add(4*time.Minute), view.Session.Deadline)
		_, err = e.svc.SaveAnswers(ctx, usr.ID, testID, answers(4, 3))
		require.NoError(t, err)

		e.tick(4*time.Minute + 31*time.Second)
		_, err = e.svc.SaveAnswers(ctx, usr.ID, testID, answers(4, 4))
		assert.Equal(t, progress.ErrSessionExpired, err)
		_, err = e.svc.SubmitTest(ctx, usr.ID, testID, answers(4, 4))
		assert.Equal(t, progress.ErrSessionExpired, err)

		n, err := e.svc.AutoSubmitExpiredSessions(ctx, e.now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		n, err = e.svc.AutoSubmitExpiredSessions(ctx, e.now)
		require.NoError(t, err)
		assert.Zero(t, n)

		mp = e.module(usr.ID, mp.ID)
		assert.Equal(t, progress.TestLocked, mp.Test.Status)
		assert.Equal(t, 75, mp.Test.Score)
		assert.Equal(t, 1, mp.Test.Attempts)

		// the cooldown grows with every failed attempt
		n, err = e.svc.ReopenCooledDownTests(ctx, e.now)
		require.NoError(t, err)
		assert.Zero(t, n)
		e.tick(24 * time.Hour)
		n, err = e.svc.ReopenCooledDownTests(ctx, e.now)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = e.svc.StartTest(ctx, usr.ID, testID)
		require.NoError(t, err)
		res, err := e.svc.SubmitTest(ctx, usr.ID, testID, answers(4, 0))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Score)
		assert.Equal(t, e.now.Add(48*time.Hour), res.Progress.NextAttemptAt)

		// a concurrent submission is rejected
		e.tick(48 * time.Hour)
		_, err = e.svc.StartTest(ctx, usr.ID, testID)
		require.NoError(t, err)
		release, err := e.locker.Obtain(ctx, "progress:test:"+testID, time.Minute)
		require.NoError(t, err)
		_, err = e.svc.SubmitTest(ctx, usr.ID, testID, answers(4, 4))
		assert.True(t, core.IsConflict(err))
		release()

		res, err = e.svc.SubmitTest(ctx, usr.ID, testID, answers(4, 4))
		require.NoError(t, err)
		assert.True(t, res.Passed)
		assert.Equal(t, 3, res.Progress.Attempts)

		mp = e.module(usr.ID, mp.ID)
		assert.Equal(t, progress.StatusCompleted, mp.Status)
		assert.Equal(t, 100, mp.Score)

		_, err = e.svc.StartTest(ctx, usr.ID, testID)
		assert.Equal(t, progress.ErrTestNotAvailable, err)

		stats, err := e.svc.Dashboard(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.ModuleEnrollments)
		assert.Equal(t, 1, stats.TestsPassed)
		assert.Zero(t, stats.CourseEnrollments)

		require.NoError(t, e.svc.RemoveModule(ctx, usr.ID, mp.ID))
		cat, err := e.svc.ListCatalog(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, cat.Modules)
	})
}

func TestService_Ownership(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		owner := testutil.CreateStudent(t, e.users, "ada", false)
		other := testutil.CreateStudent(t, e.users, "bob", false)
		course := e.importCourse(testutil.CourseFixture("go", false))

		cp, err := e.svc.EnrollCourse(ctx, owner.ID, course.ID)
		require.NoError(t, err)
		lesson := cp.Modules[0].SubModules[0].Lessons[0]
		testID := cp.Modules[0].SubModules[0].Test.ID

		_, err = e.svc.GetCourseProgress(ctx, other.ID, cp.ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.GetModuleProgress(ctx, other.ID, cp.Modules[0].ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.CompleteLesson(ctx, other.ID, lesson.ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.GetLesson(ctx, other.ID, lesson.ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.GetTest(ctx, other.ID, testID)
		assert.Equal(t, progress.ErrNotFound, err)
		assert.Equal(t, progress.ErrNotFound, e.svc.RemoveCourse(ctx, other.ID, cp.ID))

		// a locked test cannot be started
		_, err = e.svc.StartTest(ctx, owner.ID, testID)
		assert.Equal(t, progress.ErrTestNotAvailable, err)
	})
}

func TestService_DeletedUserProgress(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		course := e.importCourse(testutil.CourseFixture("go", false))

		cp, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		require.NoError(t, err)
		lesson := cp.Modules[0].SubModules[0].Lessons[0]

		n, err := e.users.DeleteUsersByID(ctx, []string{usr.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_, err = e.svc.GetCourseProgress(ctx, usr.ID, cp.ID)
		assert.Equal(t, progress.ErrNotFound, err)
		_, err = e.svc.GetLesson(ctx, usr.ID, lesson.ID)
		assert.Equal(t, progress.ErrNotFound, err)

		stats, err := e.svc.Dashboard(ctx)
		require.NoError(t, err)
		assert.Zero(t, stats.CourseEnrollments)
		assert.Zero(t, stats.ModuleEnrollments)
	})
}

func TestService_ModuleDedup_IgnoresCase(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		course := e.importCourse(testutil.CourseFixture("go", false))
		solo := e.importModule(testutil.ModuleFixture("fund-solo", "fundamentals GO"))
		require.Equal(t, "Fundamentals go", course.Modules[0].Title)

		mp, err := e.svc.EnrollModule(ctx, usr.ID, solo.ID)
		require.NoError(t, err)

		cp, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		require.NoError(t, err)
		require.Len(t, cp.Modules, 2)
		assert.Equal(t, mp.ID, cp.Modules[0].ID)
		assert.Equal(t, cp.ID, cp.Modules[0].CourseProgressID)

		cat, err := e.svc.ListCatalog(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, cat.Modules)

		again, err := e.svc.EnrollModule(ctx, usr.ID, solo.ID)
		require.NoError(t, err)
		assert.Equal(t, mp.ID, again.ID)
	})
}

func TestService_EnrollCourse_TwoModulesInProgress(t *testing.T) {
	forEachBackend(t, func(t *testing.T, e *env) {
		ctx := e.ctx
		usr := testutil.CreateStudent(t, e.users, "ada", false)
		course := e.importCourse(testutil.CourseFixture("go", false))
		fund := e.importModule(testutil.ModuleFixture("fund-solo", course.Modules[0].Title))
		conc := e.importModule(testutil.ModuleFixture("conc-solo", course.Modules[1].Title))

		for _, m := range []catalog.Module{fund, conc} {
			mp, err := e.svc.EnrollModule(ctx, usr.ID, m.ID)
			require.NoError(t, err)
			require.Equal(t, progress.StatusInProgress, mp.Status)
		}

		// a course keeps a single module in progress, so both cannot be adopted
		_, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		var vErr *core.ValidationError
		require.True(t, errors.As(err, &vErr))

		cat, err := e.svc.ListCatalog(ctx, usr.ID)
		require.NoError(t, err)
		assert.Empty(t, cat.Courses)
		require.Len(t, cat.Modules, 2)
		for _, m := range cat.Modules {
			assert.Empty(t, m.CourseProgressID, m.Title)
			assert.Equal(t, progress.StatusInProgress, m.Status, m.Title)
		}

		// once one of them is done the course adopts both
		mp := cat.Modules[0]
		if mp.Title != fund.Title {
			mp = cat.Modules[1]
		}
		mp = e.module(usr.ID, mp.ID)
		e.completeLessons(usr.ID, mp.SubModules[0].Lessons...)
		_, err = e.svc.StartTest(ctx, usr.ID, mp.Test.ID)
		require.NoError(t, err)
		res, err := e.svc.SubmitTest(ctx, usr.ID, mp.Test.ID, answers(4, 4))
		require.NoError(t, err)
		require.True(t, res.Passed)
		require.Equal(t, progress.StatusCompleted, e.module(usr.ID, mp.ID).Status)

		cp, err := e.svc.EnrollCourse(ctx, usr.ID, course.ID)
		require.NoError(t, err)
		require.Len(t, cp.Modules, 2)
		assert.Equal(t, progress.StatusCompleted, cp.Modules[0].Status)
		assert.Equal(t, progress.StatusInProgress, cp.Modules[1].Status)
	})
}
