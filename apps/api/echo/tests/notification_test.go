package tests

import (
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/arkofgod/ark/apps/api/echo"
	"github.com/arkofgod/ark/core/notification"
)

func Test_notificationApi_registerDevice(t *testing.T) {
	env := setup(t)

	tests := []struct {
		httpTest
		wantToken string
	}{
		{
			httpTest: httpTest{
				name: "token required", body: marchallObj(t, notification.NewDevice{Token: "  "}), wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"token": "this field is required"}),
			},
		},
		{httpTest: httpTest{name: "created", body: marchallObj(t, notification.NewDevice{Token: " ExponentPushToken[abc] "}), wantCode: http.StatusCreated}, wantToken: "ExponentPushToken[abc]"},
		{httpTest: httpTest{name: "already registered", body: marchallObj(t, notification.NewDevice{Token: "ExponentPushToken[abc]"}), wantCode: http.StatusOK}, wantToken: "ExponentPushToken[abc]"},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/devices"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			env.app.ServeHTTP(rec, req)

			if tt.wantToken != "" {
				require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				var dt notification.DeviceToken
				decode(t, rec, &dt)
				assert.Equal(t, tt.wantToken, dt.Token)
				assert.NotNil(t, dt.LastUsed)
				return
			}
			checkCodeAndData(t, tt.httpTest, rec)
		})
	}

	count, err := env.registry.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_notificationApi_sendTest(t *testing.T) {
	env := setup(t)
	_, adminToken := createAdmin(t, env)

	send := func(t *testing.T, data echoapi.TestNotificationRequest) notification.Result {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/test", adminToken, marchallObj(t, data))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res notification.Result
		decode(t, rec, &res)
		return res
	}

	t.Run("admin required", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/notifications/test")
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("required fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/test", adminToken, marchallObj(t, echoapi.TestNotificationRequest{}))
		env.app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "body": "this field is required"}),
		}, rec)
	})

	t.Run("no registered device", func(t *testing.T) {
		res := send(t, echoapi.TestNotificationRequest{Title: "Hello", Body: "World"})
		assert.Equal(t, notification.StatusError, res.Status)
		assert.True(t, res.NoRecipients)
		assert.Equal(t, "No device tokens available", res.Message)
		assert.Empty(t, env.gateway.sent)
	})

	t.Run("blank tokens", func(t *testing.T) {
		res := send(t, echoapi.TestNotificationRequest{Title: "Hello", Body: "World", Tokens: []string{"", "  "}})
		assert.True(t, res.NoRecipients)
		assert.Equal(t, "No valid device tokens available", res.Message)
	})

	t.Run("registered devices", func(t *testing.T) {
		for _, token := range []string{"ExponentPushToken[a]", "ExponentPushToken[b]", "ExponentPushToken[gone]"} {
			_, _, err := env.registry.Register(ctx, notification.NewDevice{Token: token})
			require.NoError(t, err)
		}
		env.gateway.unregistered["ExponentPushToken[gone]"] = true

		res := send(t, echoapi.TestNotificationRequest{Title: "Hello", Body: "World", Data: map[string]interface{}{"type": "test"}})
		assert.Equal(t, notification.StatusPartial, res.Status)
		assert.Equal(t, 2, res.SuccessCount)
		assert.Equal(t, 1, res.ErrorCount)
		assert.Equal(t, 3, res.TotalSent)
		assert.Equal(t, "Sent 2 notifications with 1 errors", res.Message)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "ExponentPushToken[gone]", res.Errors[0].Token)

		require.Len(t, env.gateway.sent, 3)
		assert.Equal(t, "default", env.gateway.sent[0].Sound)
		assert.Equal(t, "test", env.gateway.sent[0].Data["type"])

		tokens, err := env.registry.ListTokens(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ExponentPushToken[a]", "ExponentPushToken[b]"}, tokens, "unregistered devices are removed")
	})
}

func Test_metrics(t *testing.T) {
	env := setup(t)

	for i := 0; i < 2; i++ {
		req, rec := newRequest(http.MethodGet, "/v1/devotions")
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	req, rec := newRequest(http.MethodGet, "/v1/applications")
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	want := `
# HELP ark_http_requests_total Total number of HTTP requests by route and status code.
# TYPE ark_http_requests_total counter
ark_http_requests_total{code="200",method="GET",route="/v1/devotions"} 2
ark_http_requests_total{code="401",method="GET",route="/v1/applications"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(env.metrics, strings.NewReader(want), "ark_http_requests_total"))
}
