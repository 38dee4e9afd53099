package tests

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/arkofgod/ark/apps/api/echo"
	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/application"
	"github.com/arkofgod/ark/core/user"
	emailsvc "github.com/arkofgod/ark/services/email"
	"github.com/arkofgod/ark/tests"
)

func newApplication(uname, email string, track application.Track) application.NewApplication {
	return application.NewApplication{
		Name:            "John Doe",
		Email:           email,
		Phone:           "+243 900 000 000",
		Country:         "DRC",
		Motivation:      "I want to grow in faith",
		Track:           track,
		Username:        uname,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
}

func createAdmin(t *testing.T, env testEnv) (user.User, string) {
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@arkofgod.test", pwd, []string{user.RoleAdmin}, true)
	return admin, getToken(t, admin)
}

func Test_applicationApi_submit(t *testing.T) {
	env := setup(t)

	_ = testutil.CreateUser(t, env.usrRepo, "Staff", "staff", "staff@arkofgod.test", "", []string{user.RoleAdmin}, true)
	_ = testutil.CreateApplication(t, env.appRepo, "Jane", "jane", "jane@arkofgod.test", pwd, application.TrackMentorship)

	mismatch := newApplication("john", "john@arkofgod.test", application.TrackMentorship)
	mismatch.PasswordConfirm = "Gr@ce4ever!"
	badTrack := newApplication("john", "john@arkofgod.test", "choir")
	dupMsg := "an active application already exists for this email and track"

	tests := []httpTest{
		{
			name: "invalid fields", body: marchallObj(t, application.NewApplication{Email: "lol", Username: "john doe"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"name":             "this field is required",
				"email":            "email must be a valid email address",
				"phone":            "this field is required",
				"motivation":       "this field is required",
				"track":            "this field is required",
				"username":         "only alphanumeric characters and underscores are allowed",
				"password":         "this field is required",
				"password_confirm": "this field is required",
			}),
		},
		{
			name: "password mismatch", body: marchallObj(t, mismatch), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "unknown track", body: marchallObj(t, badTrack), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"track": "invalid track"}),
		},
		{
			name: "username of an application", body: marchallObj(t, newApplication("jane", "john@arkofgod.test", application.TrackMentorship)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "this username is already taken"}),
		},
		{
			name: "username of an account", body: marchallObj(t, newApplication("STAFF", "john@arkofgod.test", application.TrackMentorship)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"username": "this username is already taken"}),
		},
		{
			name: "active application for email & track", body: marchallObj(t, newApplication("jane2", " JANE@arkofgod.test ", application.TrackMentorship)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": dupMsg, "track": dupMsg}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/applications"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("submitted", func(t *testing.T) {
		body := marchallObj(t, newApplication(" John_D ", "John@ArkOfGod.test", application.TrackSonsOfJohnChi))
		req, rec := newRequest(http.MethodPost, "/v1/applications", body)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		assert.NotContains(t, rec.Body.String(), "password")
		var app application.Application
		decode(t, rec, &app)
		assert.True(t, core.IsValidID(app.ID))
		assert.Equal(t, "john_d", app.Username)
		assert.Equal(t, "john@arkofgod.test", app.Email)
		assert.Equal(t, application.StatusPending, app.Status)
		assert.Nil(t, app.ReviewedBy)
		assert.Nil(t, app.AccountID)
	})

	t.Run("same email on another track", func(t *testing.T) {
		body := marchallObj(t, newApplication("jane_mentor", "jane@arkofgod.test", application.TrackSonsOfJohnChi))
		req, rec := newRequest(http.MethodPost, "/v1/applications", body)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})
}

func Test_applicationApi_submit_rateLimited(t *testing.T) {
	env := setup(t, func(c *core.Config) { c.Server.SubmitRatePerMinute = 1 })

	req, rec := newRequest(http.MethodPost, "/v1/applications", marchallObj(t, newApplication("john", "john@arkofgod.test", application.TrackMentorship)))
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req, rec = newRequest(http.MethodPost, "/v1/applications", marchallObj(t, newApplication("jo", "jo@arkofgod.test", application.TrackMentorship)))
	env.app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusTooManyRequests,
		wantData: marchallObj(t, httpErr{Error: "too many requests, try again later"}),
	}, rec)
}

func Test_applicationApi_permissions(t *testing.T) {
	env := setup(t)

	member := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@arkofgod.test", "", []string{user.RoleMember}, true)
	memberToken := getToken(t, member, application.TrackMentorship)
	id := core.NewID()

	paths := []struct{ method, path string }{
		{http.MethodGet, "/v1/applications"},
		{http.MethodGet, "/v1/applications/" + id},
		{http.MethodPost, "/v1/applications/" + id + "/approve"},
		{http.MethodPost, "/v1/applications/" + id + "/reject"},
		{http.MethodPost, "/v1/applications/" + id + "/reopen"},
		{http.MethodPost, "/v1/applications/bulk-approve"},
		{http.MethodPost, "/v1/applications/bulk-reject"},
	}
	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			req, rec := newRequest(p.method, p.path)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)

			req, rec = newAuthRequest(p.method, p.path, memberToken)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
		})
	}
}

func Test_applicationApi_review(t *testing.T) {
	env := setup(t)
	_, adminToken := createAdmin(t, env)

	pending := testutil.CreateApplication(t, env.appRepo, "John Doe", "john", "john@arkofgod.test", pwd, application.TrackMentorship)
	unknownID := core.NewID()

	post := func(path string) (int, []byte) {
		req, rec := newAuthRequest(http.MethodPost, path, adminToken)
		env.app.ServeHTTP(rec, req)
		return rec.Code, rec.Body.Bytes()
	}

	tests := []httpTest{
		{
			name: "approve unknown", path: "/v1/applications/" + unknownID + "/approve",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "application not found"}),
		},
		{
			name: "approve invalid id", path: "/v1/applications/lol/approve",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "application not found"}),
		},
		{
			name: "reopen pending", path: "/v1/applications/" + pending.ID + "/reopen",
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "only rejected applications can be reopened"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, adminToken)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("approve", func(t *testing.T) {
		code, body := post("/v1/applications/" + pending.ID + "/approve")
		require.Equal(t, http.StatusOK, code, string(body))

		var app application.Application
		require.NoError(t, jsonUnmarshal(body, &app))
		assert.Equal(t, application.StatusApproved, app.Status)
		require.NotNil(t, app.ReviewedBy)
		assert.Equal(t, "admin", *app.ReviewedBy)
		assert.NotNil(t, app.ReviewedAt)
		require.NotNil(t, app.AccountID)

		account, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: *app.AccountID})
		require.NoError(t, err)
		assert.Equal(t, "john", account.Username)
		assert.True(t, account.IsMember())
		assert.NoError(t, account.CheckPassword(pwd), "the submitted password is kept")

		msgs := emailsvc.GetSentMessages()
		require.Len(t, msgs, 1)
		assert.Equal(t, "john@arkofgod.test", msgs[0].To[0].Address)
	})

	t.Run("approve twice", func(t *testing.T) {
		code, body := post("/v1/applications/" + pending.ID + "/approve")
		assert.Equal(t, http.StatusConflict, code)
		ok, err := jsonBytesEqual(t, body, marchallObj(t, httpErr{Error: "application is already approved"}))
		assert.NoError(t, err)
		assert.True(t, ok, string(body))
	})

	t.Run("reject approved", func(t *testing.T) {
		code, body := post("/v1/applications/" + pending.ID + "/reject")
		assert.Equal(t, http.StatusConflict, code)
		ok, err := jsonBytesEqual(t, body, marchallObj(t, httpErr{Error: "an approved application cannot be rejected"}))
		assert.NoError(t, err)
		assert.True(t, ok, string(body))
	})

	t.Run("reject then reopen", func(t *testing.T) {
		other := testutil.CreateApplication(t, env.appRepo, "Mary", "mary", "mary@arkofgod.test", pwd, application.TrackSonsOfJohnChi)

		code, body := post("/v1/applications/" + other.ID + "/reject")
		require.Equal(t, http.StatusOK, code, string(body))
		var rejected application.Application
		require.NoError(t, jsonUnmarshal(body, &rejected))
		assert.Equal(t, application.StatusRejected, rejected.Status)
		assert.Nil(t, rejected.AccountID)

		code, body = post("/v1/applications/" + other.ID + "/reopen")
		require.Equal(t, http.StatusCreated, code, string(body))
		var reopened application.Application
		require.NoError(t, jsonUnmarshal(body, &reopened))
		assert.NotEqual(t, other.ID, reopened.ID)
		assert.Equal(t, application.StatusPending, reopened.Status)
		require.NotNil(t, reopened.ReopenedFrom)
		assert.Equal(t, other.ID, *reopened.ReopenedFrom)
		assert.Nil(t, reopened.ReviewedBy)

		code, _ = post("/v1/applications/" + other.ID + "/reopen")
		assert.Equal(t, http.StatusConflict, code, "a record is reopened once")

		code, _ = post("/v1/applications/" + other.ID + "/approve")
		assert.Equal(t, http.StatusConflict, code, "the reopened record must be reviewed instead")

		req, rec := newAuthRequest(http.MethodGet, "/v1/applications/"+other.ID, adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var original application.Application
		decode(t, rec, &original)
		assert.Equal(t, application.StatusRejected, original.Status, "the original is left untouched")
	})
}

func Test_applicationApi_bulk(t *testing.T) {
	env := setup(t)
	_, adminToken := createAdmin(t, env)

	app1 := testutil.CreateApplication(t, env.appRepo, "One", "one", "one@arkofgod.test", pwd, application.TrackMentorship)
	app2 := testutil.CreateApplication(t, env.appRepo, "Two", "two", "two@arkofgod.test", pwd, application.TrackMentorship)
	app3 := testutil.CreateApplication(t, env.appRepo, "Three", "three", "three@arkofgod.test", pwd, application.TrackMentorship)
	unknownID := core.NewID()

	_, err := env.appSvc.Approve(ctx, app2.ID, "admin")
	require.NoError(t, err)

	tests := []httpTest{
		{
			name: "ids required", path: "/v1/applications/bulk-approve", body: marchallObj(t, echoapi.BulkRequest{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"ids": "this field is required"}),
		},
		{
			name: "bulk approve", path: "/v1/applications/bulk-approve",
			body:     marchallObj(t, echoapi.BulkRequest{IDs: []string{app1.ID, app2.ID, unknownID}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, application.BulkResult{
				Updated: []string{app1.ID},
				Skipped: []string{app2.ID},
				Failed:  []application.BulkFailure{{ID: unknownID, Error: "application not found"}},
			}),
		},
		{
			name: "bulk reject", path: "/v1/applications/bulk-reject",
			body:     marchallObj(t, echoapi.BulkRequest{IDs: []string{app1.ID, app3.ID}}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, application.BulkResult{
				Updated: []string{app3.ID},
				Skipped: []string{},
				Failed:  []application.BulkFailure{{ID: app1.ID, Error: "an approved application cannot be rejected"}},
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, adminToken, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_applicationApi_query(t *testing.T) {
	env := setup(t)
	_, adminToken := createAdmin(t, env)

	path := func(search, status, track, ordering string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if status != "" {
			v.Add("status", status)
		}
		if track != "" {
			v.Add("track", track)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		return "/v1/applications?" + v.Encode()
	}

	now := time.Now()
	app1 := testutil.CreateApplication(t, env.appRepo, "Alice", "alice", "alice@arkofgod.test", pwd, application.TrackMentorship, now.Add(time.Hour))
	app2 := testutil.CreateApplication(t, env.appRepo, "Bob", "bob", "bob@arkofgod.test", pwd, application.TrackSonsOfJohnChi, now.Add(2*time.Hour))
	app3 := testutil.CreateApplication(t, env.appRepo, "Carol", "carol", "carol@gmail.test", pwd, application.TrackMentorship, now.Add(3*time.Hour))

	app2, err := env.appSvc.Reject(ctx, app2.ID, "admin")
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Get all", path: "/v1/applications", wantData: marchallList(t, app3, app2, app1)},
		{name: "search (unknown)", path: path("lol", "", "", ""), wantData: marchallList(t)},
		{name: "search=ARKOFGOD", path: path("ARKOFGOD", "", "", ""), wantData: marchallList(t, app2, app1)},
		{name: "status=rejected", path: path("", "rejected", "", ""), wantData: marchallList(t, app2)},
		{name: "track=mentorship", path: path("", "", "mentorship", ""), wantData: marchallList(t, app3, app1)},
		{name: "all combo", path: path("car", "pending", "mentorship", ""), wantData: marchallList(t, app3)},
		{name: "order by name", path: path("", "", "", "name"), wantData: marchallList(t, app1, app2, app3)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.wantCode = http.StatusOK

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, adminToken)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ordering is applied", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path("", "", "", "-name"), adminToken)
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var apps []application.Application
		decode(t, rec, &apps)
		names := make([]string, 0, len(apps))
		for _, app := range apps {
			names = append(names, app.Name)
		}
		assert.Equal(t, "Carol,Bob,Alice", strings.Join(names, ","))
	})
}

func Test_applicationApi_login(t *testing.T) {
	env := setup(t)

	pending := testutil.CreateApplication(t, env.appRepo, "John Doe", "john", "john@arkofgod.test", pwd, application.TrackMentorship)
	rejected := testutil.CreateApplication(t, env.appRepo, "Mary", "mary", "mary@arkofgod.test", pwd, application.TrackMentorship)
	approved := testutil.CreateApplication(t, env.appRepo, "Paul", "paul", "paul@arkofgod.test", pwd, application.TrackSonsOfJohnChi)
	_, err := env.appSvc.Reject(ctx, rejected.ID, "admin")
	require.NoError(t, err)
	approved, err = env.appSvc.Approve(ctx, approved.ID, "admin")
	require.NoError(t, err)

	authErr := func(msg, reason string) []byte {
		return marchallObj(t, map[string]string{"error": msg, "reason": reason})
	}

	tests := []httpTest{
		{
			name: "unknown username", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: pwd}),
			wantCode: http.StatusUnauthorized, wantData: authErr("invalid credentials", core.AuthInvalidCredentials),
		},
		{
			name: "pending", body: marchallObj(t, echoapi.LoginRequest{Username: pending.Username, Password: pwd}),
			wantCode: http.StatusForbidden, wantData: authErr("your application is still pending review", core.AuthPendingReview),
		},
		{
			name: "rejected", body: marchallObj(t, echoapi.LoginRequest{Username: rejected.Username, Password: pwd}),
			wantCode: http.StatusForbidden, wantData: authErr("your application has been rejected", core.AuthRejected),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: approved.Username, Password: "lol"}),
			wantCode: http.StatusUnauthorized, wantData: authErr("invalid credentials", core.AuthInvalidCredentials),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/applications/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("approved", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/applications/login", marchallObj(t, echoapi.LoginRequest{Username: "PAUL", Password: pwd}))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotContains(t, rec.Body.String(), "password")

		var resp echoapi.ApplicationLoginResponse
		decode(t, rec, &resp)
		assert.Equal(t, application.TrackSonsOfJohnChi, resp.Track)
		assert.Equal(t, *approved.AccountID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLogin)
		assert.Equal(t, approved.ID, resp.Application.ID)

		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, application.TrackSonsOfJohnChi, claims.Track)
		assert.False(t, claims.IsAdmin)
	})
}
