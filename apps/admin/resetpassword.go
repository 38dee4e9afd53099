package main

import (
	"context"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	if err := cli.usrSvc.ResetPassword(context.Background(), uname, pwd); err != nil {
		return err
	}
	cli.printf("password updated\n")
	return nil
}
