package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/casbytes/lms-sub000/apps/api/echo"
	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/catalog"
	"github.com/casbytes/lms-sub000/core/progress"
	"github.com/casbytes/lms-sub000/core/user"
	contentsvc "github.com/casbytes/lms-sub000/services/content"
	emailsvc "github.com/casbytes/lms-sub000/services/email"
	locksvc "github.com/casbytes/lms-sub000/services/lock"
	logsvc "github.com/casbytes/lms-sub000/services/logger"
	inmemdb "github.com/casbytes/lms-sub000/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app     *echoapi.Server
	conf    *core.Config
	usrRepo user.Repository
	catalog *catalog.Service
}

func setup(t *testing.T) *env {
	conf := core.NewTestConfig()
	logger := logsvc.NewRollbarLogger("API", conf)

	// lesson markdown host
	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".md") {
			_, _ = w.Write([]byte("# " + strings.TrimPrefix(r.URL.Path, "/")))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(content.Close)
	conf.Content.BaseURL = content.URL

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	emailsvc.ResetSentMessages()
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)
	catalogSvc := catalog.NewService(inmemdb.NewCatalogRepository(db), validate)
	progressSvc := progress.NewService(
		inmemdb.NewProgressRepository(db),
		catalogSvc,
		usrSvc,
		locksvc.NewMemoryLocker(),
		mailSvc,
		logger,
		validate,
		conf,
	)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        conf,
		Logger:      logger,
		Validate:    validate,
		Translator:  translator,
		UserSvc:     usrSvc,
		CatalogSvc:  catalogSvc,
		ProgressSvc: progressSvc,
		Content:     contentsvc.NewClient(conf),
	})
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	return &env{app: app, conf: conf, usrRepo: usrRepo, catalog: catalogSvc}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (e *env) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var data []byte
	if body != nil {
		data = marshalObj(t, body)
	}
	req, rec := newAuthRequest(method, path, token, data)
	e.app.ServeHTTP(rec, req)
	return rec
}

func (e *env) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, e.conf), e.conf)
	require.NoError(t, err)
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), obj), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err) {
		assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, e *env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func TestServer_Home(t *testing.T) {
	e := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	e.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to LMS API!", rec.Body.String())
}
