package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/user"
	"github.com/casbytes/lms-sub000/storage/database"
)

// truncated before every test that opens the test database
const tables = `"user", catalog_test, catalog_checkpoint, catalog_course, catalog_project,
	catalog_module, catalog_sub_module, catalog_lesson, course_progress, module_progress,
	sub_module_progress, lesson_progress, test_progress, checkpoint_progress, project_progress,
	badge, test_session`

// OpenDB connects to the postgres database named by databaseTestURL, migrates it and
// empties every table. The test is skipped when no test database is configured.
func OpenDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := core.NewConfig().Database.TestURL
	if url == "" {
		t.Skip("no test database configured")
	}

	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Fatalf("connect test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	if _, err := db.Exec("TRUNCATE " + tables + " CASCADE"); err != nil {
		t.Fatalf("truncate test database: %v", err)
	}
	return db
}

// NewValidator returns a validator with every custom rule of the app registered.
func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(t *testing.T, repo user.Repository, uname string, subscribed bool) user.User {
	usr := CreateUser(t, repo, "Student "+uname, uname, uname+"@lms.test", "Pa$$w0rd!", []string{user.RoleStudent}, true)
	if subscribed {
		usr.IsSubscribed = true
		var err error
		if usr, err = repo.UpdateUser(context.Background(), usr); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	return usr
}

// NewTest builds a test whose questions each have one correct option, "a".
func NewTest(title string, questions int) *catalog.NewTest {
	nt := &catalog.NewTest{Title: title}
	for i := 1; i <= questions; i++ {
		nt.Questions = append(nt.Questions, catalog.Question{
			ID:     fmt.Sprintf("q%d", i),
			Prompt: fmt.Sprintf("Question %d?", i),
			Options: []catalog.Option{
				{ID: "a", Text: "Right", Correct: true},
				{ID: "b", Text: "Wrong"},
			},
		})
	}
	return nt
}

// CourseFixture is a published course with a project and two modules:
//
//	fundamentals
//	  syntax: 2 lessons, test (2 questions)
//	  types: 1 lesson, checkpoint
//	concurrency
//	  goroutines: 1 lesson
//	  module checkpoint
func CourseFixture(slug string, premium bool) catalog.NewCourse {
	return catalog.NewCourse{
		Slug:      slug,
		Title:     "Course " + slug,
		Premium:   premium,
		Published: true,
		Modules: []catalog.NewModule{
			{
				Slug:  slug + "-fundamentals",
				Title: "Fundamentals " + slug,
				SubModules: []catalog.NewSubModule{
					{
						Title: "Syntax",
						Lessons: []catalog.NewLesson{
							{Title: "Hello", ContentPath: slug + "/syntax/hello.md"},
							{Title: "Variables", ContentPath: slug + "/syntax/variables.md"},
						},
						Test: NewTest("Syntax quiz", 2),
					},
					{
						Title:      "Types",
						Lessons:    []catalog.NewLesson{{Title: "Structs", ContentPath: slug + "/types/structs.md"}},
						Checkpoint: &catalog.NewCheckpoint{Title: "Model a library", Instructions: "Push it to a repo."},
					},
				},
			},
			{
				Slug:  slug + "-concurrency",
				Title: "Concurrency " + slug,
				SubModules: []catalog.NewSubModule{
					{
						Title:   "Goroutines",
						Lessons: []catalog.NewLesson{{Title: "Go statement", ContentPath: slug + "/concurrency/go.md"}},
					},
				},
				Checkpoint: &catalog.NewCheckpoint{Title: "Worker pool"},
			},
		},
		Project: &catalog.NewProject{Title: "Build a CLI", Description: "A todo CLI."},
	}
}

// ModuleFixture is a standalone module with one submodule of two lessons and a module test.
func ModuleFixture(slug, title string) catalog.NewModule {
	return catalog.NewModule{
		Slug:  slug,
		Title: title,
		SubModules: []catalog.NewSubModule{
			{
				Title: "Basics",
				Lessons: []catalog.NewLesson{
					{Title: "Init", ContentPath: slug + "/init.md"},
					{Title: "Commit", ContentPath: slug + "/commit.md"},
				},
			},
		},
		Test: NewTest(title+" quiz", 4),
	}
}
