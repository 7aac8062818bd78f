package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/casbytes/lms-sub000/apps/api/echo"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
	"github.com/casbytes/lms-sub000/testutil"
)

func intent(name string, fields ...map[string]interface{}) map[string]interface{} {
	body := map[string]interface{}{"intent": name}
	for _, f := range fields {
		for k, v := range f {
			body[k] = v
		}
	}
	return body
}

func TestCatalogApi(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@lms.test", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "ada", false)
	adminToken, studentToken := e.getToken(t, admin), e.getToken(t, student)

	draft := testutil.CourseFixture("go", false)
	draft.Published = false

	rec := e.do(t, http.MethodPost, "/v1/catalog/courses", studentToken, draft)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/catalog/courses", adminToken, draft)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var course catalog.Course
	decode(t, rec, &course)

	rec = e.do(t, http.MethodPost, "/v1/catalog/courses", adminToken, draft)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate slug")

	rec = e.do(t, http.MethodPost, "/v1/catalog/modules", adminToken, testutil.ModuleFixture("git", "Git"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tests := []httpTest{
		{name: "auth required", path: "/v1/catalog/courses", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{name: "drafts hidden", path: "/v1/catalog/courses", token: studentToken, wantCode: http.StatusOK, wantData: []byte(`[]`)},
		{name: "draft not found", path: "/v1/catalog/courses/" + course.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "admin sees draft", path: "/v1/catalog/courses/" + course.ID, token: adminToken, wantCode: http.StatusOK},
		{name: "unknown course", path: "/v1/catalog/courses/nope", token: adminToken, wantCode: http.StatusNotFound},
	}
	runHTTPTests(t, e, tests)

	rec = e.do(t, http.MethodPut, "/v1/catalog/courses/"+course.ID+"/publish", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, "/v1/catalog/courses/"+course.ID, studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &course)
	require.NotNil(t, course.Modules[0].SubModules[0].Test)
	for _, q := range course.Modules[0].SubModules[0].Test.Questions {
		for _, opt := range q.Options {
			assert.False(t, opt.Correct, "answers must be hidden from students")
		}
	}

	var modules []catalog.Module
	rec = e.do(t, http.MethodGet, "/v1/catalog/modules", studentToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &modules)
	require.Len(t, modules, 1)
	assert.Equal(t, "git", modules[0].Slug)

	rec = e.do(t, http.MethodDelete, "/v1/catalog/courses/"+course.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/catalog/courses/"+course.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProgressApi_courseFlow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@lms.test", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "ada", false)
	other := testutil.CreateStudent(t, e.usrRepo, "bob", false)
	adminToken, token := e.getToken(t, admin), e.getToken(t, student)

	course, err := e.catalog.ImportCourse(ctx, testutil.CourseFixture("go", false))
	require.NoError(t, err)
	premium, err := e.catalog.ImportCourse(ctx, testutil.CourseFixture("rust", true))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", path: "/v1/progress", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "empty catalog", path: "/v1/progress", token: token,
			wantCode: http.StatusOK, wantData: []byte(`{"courses": [], "modules": []}`),
		},
		{
			name: "intent required", method: http.MethodPost, path: "/v1/progress", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"intent": "this field is required"}),
		},
		{
			name: "unknown intent", method: http.MethodPost, path: "/v1/progress", token: token,
			body: marshalObj(t, intent("enroll-everything")), wantCode: http.StatusBadRequest,
		},
		{
			name: "course id required", method: http.MethodPost, path: "/v1/progress", token: token,
			body: marshalObj(t, intent("enroll-course")), wantCode: http.StatusBadRequest,
		},
		{
			name: "premium course", method: http.MethodPost, path: "/v1/progress", token: token,
			body: marshalObj(t, intent("enroll-course", map[string]interface{}{"course_id": premium.ID})), wantCode: http.StatusForbidden,
		},
		{
			name: "unknown course", method: http.MethodPost, path: "/v1/progress", token: token,
			body: marshalObj(t, intent("enroll-course", map[string]interface{}{"course_id": "nope"})), wantCode: http.StatusNotFound,
		},
	}
	runHTTPTests(t, e, tests)

	enroll := intent("enroll-course", map[string]interface{}{"course_id": course.ID})
	rec := e.do(t, http.MethodPost, "/v1/progress", token, enroll)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cp progress.CourseProgress
	decode(t, rec, &cp)

	rec = e.do(t, http.MethodPost, "/v1/progress", token, enroll)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "already enrolled")

	rec = e.do(t, http.MethodGet, "/v1/progress/courses/"+cp.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &cp)
	syntax := cp.Modules[0].SubModules[0]
	hello, variables := syntax.Lessons[0], syntax.Lessons[1]

	rec = e.do(t, http.MethodGet, "/v1/progress/courses/"+cp.ID, e.getToken(t, other), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "progress of another user")

	// lessons
	rec = e.do(t, http.MethodGet, "/v1/progress/lessons/"+variables.ID, token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/progress/lessons/"+hello.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lesson echoapi.LessonView
	decode(t, rec, &lesson)
	assert.Equal(t, "# go/syntax/hello.md", lesson.Content)

	rec = e.do(t, http.MethodPost, "/v1/progress/lessons/"+hello.ID, token, intent("start"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, l := range syntax.Lessons {
		rec = e.do(t, http.MethodPost, "/v1/progress/lessons/"+l.ID, token, intent("complete"))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &lesson.LessonProgress)
		assert.Equal(t, progress.StatusCompleted, lesson.Status)
	}

	// test session
	testPath := "/v1/progress/tests/" + syntax.Test.ID
	rec = e.do(t, http.MethodPost, testPath, token, intent("submit"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no session")

	rec = e.do(t, http.MethodPost, testPath, token, intent("start"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view progress.TestView
	decode(t, rec, &view)
	require.NotNil(t, view.Session)
	assert.Len(t, view.Test.Questions, 2)

	rec = e.do(t, http.MethodPost, testPath, token, intent("save", map[string]interface{}{
		"answers": progress.Answers{"q1": {"a"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodGet, testPath, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &view)
	require.NotNil(t, view.Session)
	assert.Equal(t, []string{"a"}, view.Session.Answers["q1"])

	// failing submission locks the test and tells when to come back
	rec = e.do(t, http.MethodPost, testPath, token, intent("submit", map[string]interface{}{
		"answers": progress.Answers{"q1": {"a"}, "q2": {"b"}},
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res progress.TestResult
	decode(t, rec, &res)
	assert.False(t, res.Passed)
	assert.Equal(t, 50, res.Score)

	rec = e.do(t, http.MethodPost, testPath, token, intent("start"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var cooldown map[string]string
	decode(t, rec, &cooldown)
	assert.NotEmpty(t, cooldown["error"])
	assert.NotEmpty(t, cooldown["next_attempt_at"])

	// course removal
	rec = e.do(t, http.MethodPost, "/v1/progress/courses/"+cp.ID, token, intent("complete"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = e.do(t, http.MethodPost, "/v1/progress/modules/"+cp.Modules[0].ID, token, intent("remove"))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "course modules go with their course")
	rec = e.do(t, http.MethodPost, "/v1/progress/courses/"+cp.ID, token, intent("remove"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/progress/courses/"+cp.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// dashboard
	rec = e.do(t, http.MethodGet, "/v1/admin/dashboard", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats progress.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 3, stats.Users)
	assert.Equal(t, 0, stats.CourseEnrollments)
}

func TestProgressApi_gradingFlow(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@lms.test", "", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "ada", false)
	adminToken, token := e.getToken(t, admin), e.getToken(t, student)

	nc := testutil.CourseFixture("go", false)
	nc.Modules[0].SubModules[0].Test = nil // no quiz before the checkpoint
	course, err := e.catalog.ImportCourse(ctx, nc)
	require.NoError(t, err)

	rec := e.do(t, http.MethodPost, "/v1/progress", token, intent("enroll-course", map[string]interface{}{"course_id": course.ID}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var cp progress.CourseProgress
	decode(t, rec, &cp)

	complete := func(lessons []progress.LessonProgress) {
		for _, l := range lessons {
			rec := e.do(t, http.MethodPost, "/v1/progress/lessons/"+l.ID, token, intent("complete"))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		}
	}
	tree := func() progress.CourseProgress {
		rec := e.do(t, http.MethodGet, "/v1/progress/courses/"+cp.ID, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got progress.CourseProgress
		decode(t, rec, &got)
		return got
	}

	cp = tree()
	complete(cp.Modules[0].SubModules[0].Lessons)
	cp = tree()
	types := cp.Modules[0].SubModules[1]
	complete(types.Lessons)

	cpPath := "/v1/progress/checkpoints/" + types.Checkpoint.ID
	gradePath := "/v1/admin/checkpoints/" + types.Checkpoint.ID
	tests := []httpTest{
		{
			name: "invalid url", method: http.MethodPost, path: cpPath, token: token,
			body: marshalObj(t, intent("submit", map[string]interface{}{"url": "not a url"})), wantCode: http.StatusBadRequest,
		},
		{
			name: "grade before submission", method: http.MethodPost, path: gradePath, token: adminToken,
			body: marshalObj(t, intent("grade", map[string]interface{}{"score": 80})), wantCode: http.StatusBadRequest,
		},
		{
			name: "submit", method: http.MethodPost, path: cpPath, token: token,
			body: marshalObj(t, intent("submit", map[string]interface{}{"url": "https://github.com/ada/library"})), wantCode: http.StatusOK,
		},
		{
			name: "students cannot grade", method: http.MethodPost, path: gradePath, token: token,
			body: marshalObj(t, intent("grade", map[string]interface{}{"score": 100})), wantCode: http.StatusForbidden,
		},
		{
			name: "score required", method: http.MethodPost, path: gradePath, token: adminToken,
			body:     marshalObj(t, intent("grade")),
			wantCode: http.StatusBadRequest, wantData: marshalObj(t, map[string]string{"score": "this field is required"}),
		},
		{
			name: "score out of range", method: http.MethodPost, path: gradePath, token: adminToken,
			body: marshalObj(t, intent("grade", map[string]interface{}{"score": 101})), wantCode: http.StatusBadRequest,
		},
		{
			name: "grade", method: http.MethodPost, path: gradePath, token: adminToken,
			body: marshalObj(t, intent("grade", map[string]interface{}{"score": 80, "feedback": "Good"})), wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, e, tests)

	cp = tree()
	assert.Equal(t, progress.CheckpointGraded, cp.Modules[0].SubModules[1].Checkpoint.Status)
	assert.Equal(t, progress.StatusCompleted, cp.Modules[0].Status)
	assert.Equal(t, progress.StatusInProgress, cp.Modules[1].Status)

	rec = e.do(t, http.MethodGet, "/v1/admin/dashboard", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats progress.Stats
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.CourseEnrollments)
	assert.Equal(t, 0, stats.CheckpointsPending)
}
