package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/arkofgod/ark/apps/api/echo"
	"github.com/arkofgod/ark/core/user"
	"github.com/arkofgod/ark/tests"
)

func Test_authApi_login(t *testing.T) {
	env := setup(t)

	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin", "admin@arkofgod.test", pwd, []string{user.RoleAdmin}, true)
	_ = testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@arkofgod.test", pwd, []string{user.RoleMember}, false)

	tests := []httpTest{
		{
			name: "required fields", body: marchallObj(t, echoapi.LoginRequest{}), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: "this field is required", Password: "this field is required"}),
		},
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "lol", Password: pwd}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: "admin", Password: "lol"}),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "inactive account", body: marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "by username", body: marchallObj(t, echoapi.LoginRequest{Username: " ADMIN ", Password: pwd}), wantCode: http.StatusOK},
		{name: "by email", body: marchallObj(t, echoapi.LoginRequest{Username: admin.Email, Password: pwd}), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			// cannot guess the token.. just check that it's valid
			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				var resp echoapi.LoginResponse
				decode(t, rec, &resp)

				claims := new(echoapi.Claims)
				_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
					return []byte(conf.SecretKey), nil
				})
				require.NoError(t, err)
				assert.Equal(t, admin.ID, claims.Subject)
				assert.True(t, claims.IsAdmin)
				assert.Empty(t, claims.Track)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	usr, err := env.usrRepo.GetUser(ctx, user.GetFilter{ID: admin.ID})
	require.NoError(t, err)
	assert.NotNil(t, usr.LastLogin)
}

func Test_authApi_refreshToken(t *testing.T) {
	env := setup(t)

	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog", "ndog@arkofgod.test", "", []string{user.RoleMember}, false)
	member := testutil.CreateUser(t, env.usrRepo, "Hero", "hero", "hero@arkofgod.test", "", []string{user.RoleMember}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   member.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     member.Username,
		Roles:        member.Roles,
	}
	unrefreshableToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, unrefreshableClaims).SignedString([]byte(conf.SecretKey))
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "Token refreshed", token: getToken(t, member, "mentorship"), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/auth/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				var resp echoapi.LoginResponse
				decode(t, rec, &resp)

				claims := new(echoapi.Claims)
				_, err := jwt.ParseWithClaims(resp.Token, claims, func(*jwt.Token) (interface{}, error) {
					return []byte(conf.SecretKey), nil
				})
				require.NoError(t, err)
				assert.Equal(t, member.ID, claims.Subject)
				assert.EqualValues(t, "mentorship", claims.Track, "the track survives refreshes")
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_home(t *testing.T) {
	env := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	env.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to the Ark of God API!", rec.Body.String())
}
