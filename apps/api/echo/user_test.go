package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/casbytes/lms-sub000/apps/api/echo"
	"github.com/casbytes/lms-sub000/core/user"
	emailsvc "github.com/casbytes/lms-sub000/services/email"
	"github.com/casbytes/lms-sub000/testutil"
)

func TestUserApi_registerAndLogin(t *testing.T) {
	e := setup(t)

	rec := e.do(t, http.MethodPost, "/v1/users/register", "", map[string]interface{}{
		"name":             "Ada Lovelace",
		"username":         "Ada",
		"email":            "ada@lms.test",
		"password":         "K!wi-Tr33-Hut",
		"password_confirm": "K!wi-Tr33-Hut",
		"roles":            []string{user.RoleAdminOwner},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res echoapi.RegisterResponse
	decode(t, rec, &res)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "ada", res.User.Username)
	assert.Equal(t, []string{user.RoleStudent}, res.User.Roles, "sign-up cannot pick roles")
	assert.False(t, res.User.IsSubscribed)

	tests := []httpTest{
		{
			name: "register without email", method: http.MethodPost, path: "/v1/users/register",
			body: marshalObj(t, map[string]string{
				"name": "Bob", "username": "bob", "password": "K!wi-Tr33-Hut", "password_confirm": "K!wi-Tr33-Hut",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"email": "this field is required"}),
		},
		{
			name: "register taken username", method: http.MethodPost, path: "/v1/users/register",
			body: marshalObj(t, map[string]string{
				"name": "Ada", "username": "ADA", "email": "other@lms.test",
				"password": "K!wi-Tr33-Hut", "password_confirm": "K!wi-Tr33-Hut",
			}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "login wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marshalObj(t, echoapi.LoginRequest{Username: "ada", Password: "nope"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "login unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marshalObj(t, echoapi.LoginRequest{Username: "nobody", Password: "K!wi-Tr33-Hut"}),
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, httpErr{Error: "authentication failed"}),
		},
	}
	runHTTPTests(t, e, tests)

	for _, uname := range []string{"ADA", "ada@lms.test"} {
		rec = e.do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: uname, Password: "K!wi-Tr33-Hut"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var login echoapi.LoginResponse
		decode(t, rec, &login)
		assert.NotEmpty(t, login.Token)

		rec = e.do(t, http.MethodPost, "/v1/users/token-refresh", login.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestUserApi_adminEndpoints(t *testing.T) {
	e := setup(t)
	admin := testutil.CreateUser(t, e.usrRepo, "Admin", "admin", "admin@lms.test", "Pa$$w0rd!", []string{user.RoleAdmin}, true)
	student := testutil.CreateStudent(t, e.usrRepo, "ada", false)
	naughty := testutil.CreateUser(t, e.usrRepo, "N Dog", "ndog", "ndog@lms.test", "", []string{user.RoleStudent}, false)

	adminToken := e.getToken(t, admin)
	studentToken := e.getToken(t, student)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marshalObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "deactivated user", path: "/v1/users/" + naughty.ID, token: e.getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "own profile", path: "/v1/users/" + student.ID, token: studentToken, wantCode: http.StatusOK},
		{name: "other profile", path: "/v1/users/" + admin.ID, token: studentToken, wantCode: http.StatusNotFound},
		{name: "roles", path: "/v1/users/roles", token: adminToken, wantCode: http.StatusOK, wantData: marshalObj(t, user.Roles)},
		{
			name: "student cannot subscribe", method: http.MethodPut, path: "/v1/users/" + student.ID + "/subscription",
			token: studentToken, body: marshalObj(t, map[string]bool{"subscribed": true}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "subscription flag required", method: http.MethodPut, path: "/v1/users/" + student.ID + "/subscription",
			token: adminToken, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "students cannot change their roles", method: http.MethodPut, path: "/v1/users/" + student.ID,
			token: studentToken, body: marshalObj(t, map[string]interface{}{"roles": []string{user.RoleAdmin}}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden,
		},
	}
	runHTTPTests(t, e, tests)

	rec := e.do(t, http.MethodGet, "/v1/users?search=ada", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []user.User
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, student.ID, users[0].ID)

	rec = e.do(t, http.MethodPut, "/v1/users/"+student.ID+"/subscription", adminToken, map[string]bool{"subscribed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var usr user.User
	decode(t, rec, &usr)
	assert.True(t, usr.IsSubscribed)

	rec = e.do(t, http.MethodPut, "/v1/users/"+student.ID, studentToken, map[string]string{"name": "Ada L."})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &usr)
	assert.Equal(t, "Ada L.", usr.Name)
	assert.True(t, usr.IsSubscribed)

	rec = e.do(t, http.MethodDelete, "/v1/users?id="+naughty.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/v1/users/"+naughty.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserApi_passwordReset(t *testing.T) {
	e := setup(t)
	student := testutil.CreateStudent(t, e.usrRepo, "ada", false)

	// unknown emails get the same answer
	for _, email := range []string{"nobody@lms.test", student.Email} {
		rec := e.do(t, http.MethodPost, "/v1/users/password-reset", "", echoapi.PasswordResetRequest{Email: email})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	data, ok := sent[0].TemplateData.(map[string]string)
	require.True(t, ok)

	rec := e.do(t, http.MethodPost, "/v1/users/password-reset-confirm", "", user.ResetUserPassword{
		UID:             data["UID"],
		Token:           data["Token"],
		Password:        "n3w-Passw0rd!",
		PasswordConfirm: "n3w-Passw0rd!",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/v1/users/login", "", echoapi.LoginRequest{Username: "ada", Password: "n3w-Passw0rd!"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
