package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
	"github.com/arkofgod/ark/services/logger/logtest"
	inmemdb "github.com/arkofgod/ark/storage/database/inmem"
	"github.com/arkofgod/ark/tests"
)

const pwd = "Gr@ce4ever"

type gatewayMock struct {
	sent         []notification.Message
	unregistered map[string]bool
}

func (gw *gatewayMock) Send(_ context.Context, msgs []notification.Message) ([]notification.Ticket, error) {
	tickets := make([]notification.Ticket, len(msgs))
	for i, msg := range msgs {
		gw.sent = append(gw.sent, msg)
		if gw.unregistered[msg.To] {
			tickets[i] = notification.Ticket{
				Status:  notification.TicketError,
				Message: msg.To + " is not a registered push notification recipient",
				Details: map[string]interface{}{"error": notification.DeviceNotRegistered},
			}
			continue
		}
		tickets[i] = notification.Ticket{Status: notification.TicketOK, ID: "ticket-" + msg.To}
	}
	return tickets, nil
}

type cliEnv struct {
	cli      *commandLine
	usrRepo  user.Repository
	registry *notification.Registry
	gateway  *gatewayMock
	out      *bytes.Buffer
}

func setup(t *testing.T) cliEnv {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logtest.NewLogger(t)

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	registry := notification.NewRegistry(inmemdb.NewDeviceTokenRepository(db))
	gateway := &gatewayMock{unregistered: make(map[string]bool)}
	out := new(bytes.Buffer)

	return cliEnv{
		cli: &commandLine{
			usrSvc:     user.NewService(usrRepo),
			notifier:   notification.NewDispatcher(gateway, registry, logger, notification.NewDispatcherConfig(conf.Push)),
			validate:   validate,
			translator: translator,
			out:        out,
		},
		usrRepo:  usrRepo,
		registry: registry,
		gateway:  gateway,
		out:      out,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) bool {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		return assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		return assert.Error(t, err) && assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		return assert.NoError(t, err)
	}
}

// mockPasswords makes readPasswordFunc answer with pwds, in order.
func mockPasswords(pwds ...string) {
	i := 0
	readPasswordFunc = func(int) ([]byte, error) {
		if i >= len(pwds) {
			return nil, nil
		}
		i++
		return []byte(pwds[i-1]), nil
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.out.Reset()
			err := env.cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			assert.Contains(t, env.out.String(), "Usage:")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "prayer_requests", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	_ = testutil.CreateUser(t, env.usrRepo, "Existing", "existing", "existing@ark.com", pwd, nil, true)

	type extra struct {
		pwds    []string
		isAdmin bool
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "pastor"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "pastor", "-email", "pastor@ark.com"}, wantErr: errHelp},
		{
			name:       "passwords mismatch",
			args:       []string{"adduser", "-username", "pastor", "-email", "pastor@ark.com"},
			extra:      extra{pwds: []string{pwd, "other"}},
			wantErrStr: "password_confirm:",
		},
		{
			name:       "invalid email",
			args:       []string{"adduser", "-username", "pastor", "-email", "pastor"},
			extra:      extra{pwds: []string{pwd, pwd}},
			wantErrStr: "email:",
		},
		{
			name:       "weak password",
			args:       []string{"adduser", "-username", "pastor", "-email", "pastor@ark.com"},
			extra:      extra{pwds: []string{"123", "123"}},
			wantErrStr: "password:",
		},
		{
			name:       "username taken",
			args:       []string{"adduser", "-username", "Existing", "-email", "pastor@ark.com"},
			extra:      extra{pwds: []string{pwd, pwd}},
			wantErrStr: user.ErrUsernameExists.Error(),
		},
		{
			name:  "staff user",
			args:  []string{"adduser", "-name", "Deacon", "-username", "deacon", "-email", "deacon@ark.com"},
			extra: extra{pwds: []string{pwd, pwd}},
		},
		{
			name:  "admin user",
			args:  []string{"adduser", "-username", "Pastor", "-email", "Pastor@Ark.com", "-admin"},
			extra: extra{pwds: []string{pwd, pwd}, isAdmin: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xtra, _ := tt.extra.(extra)
			mockPasswords(xtra.pwds...)

			err := env.cli.run(append([]string{"admin"}, tt.args...))
			if !tt.check(t, err) || err != nil {
				return
			}

			uname := strings.ToLower(tt.args[len(tt.args)-3])
			if xtra.isAdmin {
				uname = strings.ToLower(tt.args[2])
			}
			usr, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{Username: uname})
			require.NoError(t, err)
			assert.True(t, usr.Active())
			assert.NoError(t, usr.CheckPassword(pwd))
			assert.Equal(t, xtra.isAdmin, usr.IsAdmin())
			assert.Contains(t, env.out.String(), fmt.Sprintf("user %q created", uname))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "User", "awe", "awe@ark.com", pwd, nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", strings.ToUpper(usr.Email)}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			xtra, _ := tt.extra.(extra)
			mockPasswords(xtra.pwd)

			err := env.cli.run(append([]string{"admin"}, tt.args...))
			if !tt.check(t, err) || err != nil {
				return
			}
			refreshed, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.NoError(t, refreshed.CheckPassword(xtra.pwd))
		})
	}
}

func Test_commandLine_notify(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("no registered device", func(t *testing.T) {
		err := env.cli.run([]string{"admin", "notify", "-title", "Service", "-body", "Starting soon"})
		assert.EqualError(t, err, "No device tokens available")
	})

	for _, tkn := range []string{"ExponentPushToken[a]", "ExponentPushToken[b]"} {
		_, _, err := env.registry.Register(ctx, notification.NewDevice{Token: tkn})
		require.NoError(t, err)
	}
	env.gateway.unregistered["ExponentPushToken[b]"] = true

	tests := []cliTest{
		{name: "no args", args: []string{"notify"}, wantErr: errHelp},
		{name: "no body", args: []string{"notify", "-title", "Service"}, wantErr: errHelp},
		{name: "blank title", args: []string{"notify", "-title", " ", "-body", "Starting soon"}, wantErr: errHelp},
		{
			name:       "blank tokens",
			args:       []string{"notify", "-title", "Service", "-body", "Starting soon", "-token", " "},
			wantErrStr: "No valid device tokens available",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	t.Run("explicit tokens", func(t *testing.T) {
		env.out.Reset()
		env.gateway.sent = nil
		err := env.cli.run([]string{"admin", "notify", "-title", "Service", "-body", "Starting soon", "-sound", "bell", "-token", "ExponentPushToken[a]"})
		require.NoError(t, err)
		require.Len(t, env.gateway.sent, 1)
		assert.Equal(t, "bell", env.gateway.sent[0].Sound)
		assert.Contains(t, env.out.String(), "Successfully sent 1 notifications: 1 sent, 0 failed")
	})

	t.Run("every registered device", func(t *testing.T) {
		env.out.Reset()
		env.gateway.sent = nil
		err := env.cli.run([]string{"admin", "notify", "-title", "Service", "-body", "Starting soon"})
		require.NoError(t, err)
		assert.Len(t, env.gateway.sent, 2)
		assert.Contains(t, env.out.String(), "1 sent, 1 failed")
		assert.Contains(t, env.out.String(), "ExponentPushToken[b]: ExponentPushToken[b] is not a registered push notification recipient")

		tokens, err := env.registry.ListTokens(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"ExponentPushToken[a]"}, tokens)
	})
}
