package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/arkofgod/ark/core/notification"
)

// notify fans n out to tokens, or to every registered device when none is given.
func (cli *commandLine) notify(n notification.Notification, tokens []string) error {
	res, err := cli.notifier.Dispatch(context.Background(), n, tokens)
	if err != nil {
		return err
	}
	if res.NoRecipients {
		return errors.New(res.Message)
	}
	cli.printf("%s: %d sent, %d failed\n", res.Message, res.SuccessCount, res.ErrorCount)
	for _, tknErr := range res.Errors {
		cli.printf("  %s: %s\n", tknErr.Token, tknErr.Message)
	}
	return nil
}
