package catalog_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	inmemdb "github.com/casbytes/lms-sub000/storage/database/inmem"
	"github.com/casbytes/lms-sub000/testutil"
)

func newService() *catalog.Service {
	return catalog.NewService(inmemdb.NewCatalogRepository(inmemdb.NewDB()), testutil.NewValidator())
}

func TestService_ImportCourse(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	nc := testutil.CourseFixture("go", true)
	nc.Slug = "  GO "
	nc.Title = "  Course go "
	c, err := svc.ImportCourse(ctx, nc)
	require.NoError(t, err)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "go", c.Slug)
	assert.Equal(t, "Course go", c.Title)
	assert.True(t, c.Published)
	require.NotNil(t, c.Project)
	assert.Equal(t, "Build a CLI", c.Project.Title)

	require.Len(t, c.Modules, 2)
	for i, m := range c.Modules {
		assert.Equal(t, i+1, m.Order)
		assert.Equal(t, c.ID, m.CourseID)
		assert.True(t, m.Premium, "modules of a premium course are premium")
	}

	fund := c.Modules[0]
	assert.Nil(t, fund.Test)
	assert.Nil(t, fund.Checkpoint)
	require.Len(t, fund.SubModules, 2)
	syntax := fund.SubModules[0]
	assert.Equal(t, "Syntax", syntax.Title)
	require.Len(t, syntax.Lessons, 2)
	assert.Equal(t, "Hello", syntax.Lessons[0].Title)
	assert.Equal(t, 2, syntax.Lessons[1].Order)
	require.NotNil(t, syntax.Test)
	assert.Len(t, syntax.Test.Questions, 2)
	assert.True(t, syntax.Test.Questions[0].Options[0].Correct)
	require.NotNil(t, fund.SubModules[1].Checkpoint)
	assert.Equal(t, "Model a library", fund.SubModules[1].Checkpoint.Title)
	require.NotNil(t, c.Modules[1].Checkpoint)

	got, err := svc.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	// slugs are unique across courses and modules
	_, err = svc.ImportCourse(ctx, testutil.CourseFixture("go", false))
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "slug", vErr.Fields[0].Field)

	_, err = svc.ImportModule(ctx, testutil.ModuleFixture("go-fundamentals", "Anything"))
	assert.True(t, errors.As(err, &vErr))

	_, err = svc.GetCourse(ctx, "missing")
	assert.True(t, core.IsNotFound(err))
}

func TestService_ImportCourse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(nc *catalog.NewCourse)
	}{
		{"bad slug", func(nc *catalog.NewCourse) { nc.Slug = "go_basics!" }},
		{"no title", func(nc *catalog.NewCourse) { nc.Title = " " }},
		{"no modules", func(nc *catalog.NewCourse) { nc.Modules = nil }},
		{"duplicate module titles", func(nc *catalog.NewCourse) { nc.Modules[1].Title = "FUNDAMENTALS go" }},
		{"duplicate submodule titles", func(nc *catalog.NewCourse) { nc.Modules[0].SubModules[1].Title = "syntax" }},
		{"lesson without content", func(nc *catalog.NewCourse) { nc.Modules[0].SubModules[0].Lessons[0].ContentPath = "" }},
		{"test without questions", func(nc *catalog.NewCourse) { nc.Modules[0].SubModules[0].Test.Questions = nil }},
		{"question without a correct option", func(nc *catalog.NewCourse) {
			nc.Modules[0].SubModules[0].Test.Questions[0].Options[0].Correct = false
		}},
		{"duplicate option ids", func(nc *catalog.NewCourse) {
			nc.Modules[0].SubModules[0].Test.Questions[1].Options[1].ID = "a"
		}},
		{"project without title", func(nc *catalog.NewCourse) { nc.Project.Title = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService()
			nc := testutil.CourseFixture("go", false)
			tt.modify(&nc)

			_, err := svc.ImportCourse(context.Background(), nc)
			require.Error(t, err)
			assert.IsType(t, validator.ValidationErrors{}, err)

			courses, err := svc.ListCourses(context.Background(), false)
			require.NoError(t, err)
			assert.Empty(t, courses)
		})
	}
}

func TestService_ImportModule(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	nm := testutil.ModuleFixture("git", "Git 101")
	for i := range nm.Test.Questions {
		q := &nm.Test.Questions[i]
		q.ID = ""
		for j := range q.Options {
			q.Options[j].ID = ""
		}
	}
	m, err := svc.ImportModule(ctx, nm)
	require.NoError(t, err)
	assert.Empty(t, m.CourseID)
	assert.Zero(t, m.Order)
	require.NotNil(t, m.Test)
	assert.Equal(t, "q1", m.Test.Questions[0].ID)
	assert.Equal(t, "q4-o2", m.Test.Questions[3].Options[1].ID)

	_, err = svc.ImportCourse(ctx, testutil.CourseFixture("go", false))
	require.NoError(t, err)
	modules, err := svc.ListStandaloneModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 1)
	assert.Equal(t, m.ID, modules[0].ID)

	test, err := svc.GetTest(ctx, m.Test.ID)
	require.NoError(t, err)
	assert.Equal(t, *m.Test, test)
	for _, q := range test.Public().Questions {
		for _, opt := range q.Options {
			assert.False(t, opt.Correct)
		}
	}
	assert.True(t, test.Questions[0].Options[0].Correct, "Public must not change the receiver")
}

func TestService_PublishAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	draft := testutil.CourseFixture("draft", false)
	draft.Published = false
	c, err := svc.ImportCourse(ctx, draft)
	require.NoError(t, err)
	_, err = svc.ImportCourse(ctx, testutil.CourseFixture("go", false))
	require.NoError(t, err)

	published, err := svc.ListCourses(ctx, true)
	require.NoError(t, err)
	require.Len(t, published, 1)
	assert.Equal(t, "go", published[0].Slug)

	c, err = svc.Publish(ctx, c.ID, true)
	require.NoError(t, err)
	assert.True(t, c.Published)
	published, err = svc.ListCourses(ctx, true)
	require.NoError(t, err)
	assert.Len(t, published, 2)

	_, err = svc.Publish(ctx, "missing", true)
	assert.True(t, core.IsNotFound(err))

	require.NoError(t, svc.DeleteCourse(ctx, c.ID))
	_, err = svc.GetCourse(ctx, c.ID)
	assert.Equal(t, catalog.ErrCourseNotFound, err)
	assert.Equal(t, catalog.ErrCourseNotFound, svc.DeleteCourse(ctx, c.ID))
}

const catalogYAML = `
courses:
  - slug: go-basics
    title: Go Basics
    published: true
    modules:
      - slug: go-syntax
        title: Syntax
        sub_modules:
          - title: Hello
            lessons:
              - title: Hello world
                content_path: go/hello.md
            test:
              title: Hello quiz
              questions:
                - prompt: What prints?
                  options:
                    - text: fmt.Println
                      correct: true
                    - text: echo
    project:
      title: Todo CLI
modules:
  - slug: git-101
    title: Git 101
    sub_modules:
      - title: Basics
        lessons:
          - title: Init
            content_path: git/init.md
`

func TestDecodeYAML(t *testing.T) {
	file, err := catalog.DecodeYAML(strings.NewReader(catalogYAML))
	require.NoError(t, err)
	require.Len(t, file.Courses, 1)
	require.Len(t, file.Modules, 1)
	q := file.Courses[0].Modules[0].SubModules[0].Test.Questions[0]
	assert.Equal(t, "What prints?", q.Prompt)
	assert.True(t, q.Options[0].Correct)
	assert.Equal(t, "git/init.md", file.Modules[0].SubModules[0].Lessons[0].ContentPath)

	svc := newService()
	courses, modules, err := svc.Import(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, 1, courses)
	assert.Equal(t, 1, modules)

	// a second import stops at the first existing slug
	courses, modules, err = svc.Import(context.Background(), file)
	assert.Error(t, err)
	assert.Zero(t, courses)
	assert.Zero(t, modules)

	tests := []struct {
		name, doc string
	}{
		{"empty", ""},
		{"nothing to import", "courses: []\n"},
		{"unknown field", "courses:\n  - slug: x\n    name: X\n"},
		{"not yaml", "courses: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := catalog.DecodeYAML(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}
