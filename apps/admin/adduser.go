package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core"
	"github.com/arkofgod/ark/core/user"
)

// addUser creates a staff user.User
func (cli *commandLine) addUser(nu user.NewUser) error {
	nu.Clean()
	if err := cli.validate.Struct(nu); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errors.New(formatFieldErrors(core.TranslateErrors(verrs, cli.translator)))
		}
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	cli.printf("user %q created (id: %s)\n", usr.Username, usr.ID)
	return nil
}

func formatFieldErrors(fields map[string]string) string {
	msgs := make([]string, 0, len(fields))
	for field, msg := range fields {
		msgs = append(msgs, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}
