package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/arkofgod/ark/core/notification"
	"github.com/arkofgod/ark/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type notifier interface {
	Dispatch(ctx context.Context, n notification.Notification, tokens []string) (notification.Result, error)
}

type commandLine struct {
	db         *sql.DB
	usrSvc     user.Service
	notifier   notifier
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printf(format string, a ...interface{}) {
	w := cli.out
	if w == nil {
		w = os.Stdout
	}
	_, _ = fmt.Fprintf(w, format, a...)
}

func (cli *commandLine) printUsage() {
	cli.printf("Usage:\n")
	cli.printf("  migrate COMMAND [ARGS] - run database migrations (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)\n")
	cli.printf("  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create a staff user\n")
	cli.printf("  resetpassword -username USERNAME|EMAIL - reset user's password\n")
	cli.printf("  notify -title TITLE -body BODY [-sound SOUND] [-token TOKEN]... - send a push notification\n")
}

// promptPassword reads a password from the terminal, without echo.
func (cli *commandLine) promptPassword(label string) (string, error) {
	cli.printf("%s:", label)
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	notifyCmd := flag.NewFlagSet("notify", flag.ContinueOnError)
	notifyTitle := notifyCmd.String("title", "", "The notification title.")
	notifyBody := notifyCmd.String("body", "", "The notification body.")
	notifySound := notifyCmd.String("sound", "", "The notification sound.")
	var notifyTokens []string
	notifyCmd.Func("token", "A device token (repeatable). Every registered device by default.", func(s string) error {
		notifyTokens = append(notifyTokens, s)
		return nil
	})

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwdConfirm, err := cli.promptPassword("Confirm password")
		if err != nil {
			return err
		}
		nu := user.NewUser{
			Name:            *addUserName,
			Username:        *addUserUname,
			Email:           *addUserEmail,
			Password:        pwd,
			PasswordConfirm: pwdConfirm,
		}
		if *addUserAdmin {
			nu.Roles = user.AdminRoles
		}
		return cli.addUser(nu)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword("Enter password")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "notify":
		if err := notifyCmd.Parse(args[2:]); err != nil {
			return err
		}
		if strings.TrimSpace(*notifyTitle) == "" || strings.TrimSpace(*notifyBody) == "" {
			notifyCmd.Usage()
			return errHelp
		}
		n := notification.Notification{Title: *notifyTitle, Body: *notifyBody, Sound: *notifySound}
		return cli.notify(n, notifyTokens)

	default:
		cli.printUsage()
		return errHelp
	}
}
