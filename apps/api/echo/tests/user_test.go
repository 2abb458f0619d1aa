package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/trezcool/masomo-academy/apps/api/echo"
	"github.com/trezcool/masomo-academy/core/user"
	"github.com/trezcool/masomo-academy/tests"
)

func Test_userApi_me(t *testing.T) {
	f := createUsers(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/me", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Student", path: "/v1/users/me", token: f.studentToken, wantData: marchallObj(t, f.student)},
		{name: "Admin", path: "/v1/users/me", token: f.adminToken, wantData: marchallObj(t, f.admin)},
	}
	runTests(t, tests)
}

func Test_userApi_query(t *testing.T) {
	f := createUsers(t)

	path := func(search, ordering, isActive string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != "" {
			v.Add("is_active", isActive)
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	empty := marchallList(t, []interface{}{}...)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", path: "/v1/users", token: f.teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Get all", path: "/v1/users", token: f.adminToken, wantData: marchallList(t, f.admin, f.student, f.naughty, f.teacher)},
		{name: "search (unknown)", path: path("lol", "", ""), token: f.adminToken, wantData: empty},
		{name: "search=HER", path: path("HER", "", ""), token: f.adminToken, wantData: marchallList(t, f.student, f.teacher)},
		{name: "role=teacher:", path: path("", "", "", user.RoleTeacher), token: f.adminToken, wantData: marchallList(t, f.teacher)},
		{
			name: "role=admin:,student:", path: path("", "", "", user.RoleAdmin, user.RoleStudent),
			token: f.adminToken, wantData: marchallList(t, f.admin, f.student, f.naughty),
		},
		{name: "is_active=false", path: path("", "", "false"), token: f.adminToken, wantData: marchallList(t, f.naughty)},
		{
			name: "is_active (invalid)", path: path("", "", "lol"), token: f.adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"is_active": "must be a boolean"}),
		},
		{name: "order by -name", path: path("", "-name", ""), token: f.adminToken, wantData: marchallList(t, f.teacher, f.naughty, f.student, f.admin)},
	}
	runTests(t, tests)
}

func Test_userApi_create(t *testing.T) {
	f := createUsers(t)
	principal := testutil.CreateUser(t, usrRepo, "Principal", "princip", "princip@test.cd", []string{user.RoleAdminPrincipal}, true)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users", wantCode: http.StatusUnauthorized},
		{name: "Admin required", method: http.MethodPost, path: "/v1/users", token: f.teacherToken, wantCode: http.StatusForbidden},
		{
			name: "Validation errors", method: http.MethodPost, path: "/v1/users", token: f.adminToken,
			body:     marchallObj(t, user.NewUser{Username: "ab", Email: "lol", Roles: []string{"lol"}}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Username taken", method: http.MethodPost, path: "/v1/users", token: f.adminToken,
			body:     marchallObj(t, user.NewUser{Name: "Hero 2", Username: "HERO", Email: "hero2@test.cd"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": user.ErrUsernameExists.Error()}),
		},
		{
			name: "Roles above own roles", method: http.MethodPost, path: "/v1/users", token: f.adminToken,
			body:     marchallObj(t, user.NewUser{Name: "Boss", Username: "boss", Email: "boss@test.cd", Roles: []string{user.RoleAdminOwner}}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "Student", method: http.MethodPost, path: "/v1/users", token: f.adminToken,
			body:     marchallObj(t, user.NewUser{Name: "Kid", Username: "kid", Email: "kid@test.cd", Roles: []string{user.RoleStudent}}),
			wantCode: http.StatusCreated,
		},
		{
			name: "Admin by a principal", method: http.MethodPost, path: "/v1/users", token: getToken(t, principal),
			body:     marchallObj(t, user.NewUser{Name: "Sub", Username: "sub", Email: "sub@test.cd", Roles: []string{user.RoleAdmin}}),
			wantCode: http.StatusCreated,
		},
	}
	runTests(t, tests)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users?search=kid", f.adminToken)
	app.ServeHTTP(rec, req)
	var users []user.User
	unmarshall(t, rec, &users)
	if len(users) != 1 || !users[0].IsActive || !users[0].IsStudent() {
		t.Errorf("created users = %v; want one active student", users)
	}
}

func Test_userApi_retrieve(t *testing.T) {
	f := createUsers(t)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users/" + f.student.ID, wantCode: http.StatusUnauthorized},
		{name: "Other user", path: "/v1/users/" + f.student.ID, token: f.teacherToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Self", path: "/v1/users/" + f.student.ID, token: f.studentToken, wantData: marchallObj(t, f.student)},
		{name: "Admin", path: "/v1/users/" + f.student.ID, token: f.adminToken, wantData: marchallObj(t, f.student)},
		{name: "Not found", path: "/v1/users/lol", token: f.adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: user.ErrNotFound.Error()})},
	}
	runTests(t, tests)
}

func Test_userApi_destroy(t *testing.T) {
	f := createUsers(t)

	tests := []httpTest{
		{name: "Self is not enough", method: http.MethodDelete, path: "/v1/users/" + f.student.ID, token: f.studentToken, wantCode: http.StatusForbidden},
		{name: "Not found", method: http.MethodDelete, path: "/v1/users/lol", token: f.adminToken, wantCode: http.StatusNotFound},
		{name: "Deleted", method: http.MethodDelete, path: "/v1/users/" + f.student.ID, token: f.adminToken, wantCode: http.StatusNoContent},
		{name: "Deleted user token", path: "/v1/users/me", token: f.studentToken, wantCode: http.StatusUnauthorized},
	}
	runTests(t, tests)
}

func Test_userApi_refreshToken(t *testing.T) {
	f := createUsers(t)

	tests := []httpTest{
		{name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", method: http.MethodPost, path: "/v1/users/token-refresh", token: f.naughtyToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "Token refreshed", method: http.MethodPost, path: "/v1/users/token-refresh", token: f.studentToken},
	}
	runTests(t, tests)

	req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", f.studentToken)
	app.ServeHTTP(rec, req)
	var resp echoapi.TokenResponse
	unmarshall(t, rec, &resp)
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/me", resp.Token)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, f.student)}, rec)
}

func Test_home(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "Welcome to Masomo Academy API!" {
		t.Errorf("failed! code = %v; body %q", rec.Code, rec.Body.String())
	}
}
