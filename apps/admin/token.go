package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/masomo-academy/apps/api/echo"
)

func (cli *commandLine) token(uname string) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(context.Background(), uname)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateUserToken(cli.conf, usr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
