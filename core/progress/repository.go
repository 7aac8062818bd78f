package progress

import (
	"context"
	"time"
)

// Repository persists per-user progress. Getters return ErrNotFound when no row matches.
type Repository interface {
	// RunInTx runs fn against a Repository bound to a single transaction.
	// The transaction is rolled back when fn returns an error.
	RunInTx(ctx context.Context, fn func(Repository) error) error

	CreateCourse(ctx context.Context, c CourseProgress) (CourseProgress, error)
	GetCourse(ctx context.Context, id string) (CourseProgress, error)
	GetCourseByCatalogID(ctx context.Context, userID, courseID string) (CourseProgress, error)
	QueryCourses(ctx context.Context, userID string) ([]CourseProgress, error)
	UpdateCourse(ctx context.Context, c CourseProgress) error
	// DeleteCourse removes the course progress and everything linked to it.
	DeleteCourse(ctx context.Context, id string) error

	CreateModule(ctx context.Context, m ModuleProgress) (ModuleProgress, error)
	GetModule(ctx context.Context, id string) (ModuleProgress, error)
	GetModuleByTitle(ctx context.Context, userID, title string) (ModuleProgress, error)
	// QueryModules returns the modules of a course progress by order; standalone modules when courseProgressID is empty.
	QueryModules(ctx context.Context, userID, courseProgressID string) ([]ModuleProgress, error)
	UpdateModule(ctx context.Context, m ModuleProgress) error
	// DeleteModule removes the module progress and everything below it.
	DeleteModule(ctx context.Context, id string) error

	CreateSubModule(ctx context.Context, sm SubModuleProgress) (SubModuleProgress, error)
	GetSubModule(ctx context.Context, id string) (SubModuleProgress, error)
	QuerySubModules(ctx context.Context, moduleProgressID string) ([]SubModuleProgress, error)
	UpdateSubModule(ctx context.Context, sm SubModuleProgress) error

	CreateLesson(ctx context.Context, l LessonProgress) (LessonProgress, error)
	GetLesson(ctx context.Context, id string) (LessonProgress, error)
	QueryLessons(ctx context.Context, subModuleProgressID string) ([]LessonProgress, error)
	UpdateLesson(ctx context.Context, l LessonProgress) error

	CreateTest(ctx context.Context, t TestProgress) (TestProgress, error)
	GetTest(ctx context.Context, id string) (TestProgress, error)
	// GetTestByOwner finds the test of a module or submodule progress.
	GetTestByOwner(ctx context.Context, ownerID string) (TestProgress, error)
	// QueryCooledDownTests returns failed tests whose NextAttemptAt is not after `now`.
	QueryCooledDownTests(ctx context.Context, now time.Time) ([]TestProgress, error)
	UpdateTest(ctx context.Context, t TestProgress) error

	CreateCheckpoint(ctx context.Context, cp CheckpointProgress) (CheckpointProgress, error)
	GetCheckpoint(ctx context.Context, id string) (CheckpointProgress, error)
	// GetCheckpointByOwner finds the checkpoint of a module or submodule progress.
	GetCheckpointByOwner(ctx context.Context, ownerID string) (CheckpointProgress, error)
	UpdateCheckpoint(ctx context.Context, cp CheckpointProgress) error

	CreateProject(ctx context.Context, p ProjectProgress) (ProjectProgress, error)
	GetProject(ctx context.Context, id string) (ProjectProgress, error)
	GetProjectByCourse(ctx context.Context, courseProgressID string) (ProjectProgress, error)
	UpdateProject(ctx context.Context, p ProjectProgress) error

	CreateBadge(ctx context.Context, b Badge) (Badge, error)
	QueryBadges(ctx context.Context, moduleProgressID string) ([]Badge, error)
	UpdateBadge(ctx context.Context, b Badge) error

	CreateSession(ctx context.Context, s TestSession) (TestSession, error)
	// GetOpenSession returns the session of a test that has not been submitted yet.
	GetOpenSession(ctx context.Context, testProgressID string) (TestSession, error)
	// QueryExpiredSessions returns open sessions whose deadline is before `before`.
	QueryExpiredSessions(ctx context.Context, before time.Time) ([]TestSession, error)
	UpdateSession(ctx context.Context, s TestSession) error

	// Stats fills the progress counters of the admin dashboard.
	Stats(ctx context.Context) (Stats, error)
}
