package main

import (
	"context"
	"fmt"

	"github.com/trezcool/masomo-academy/core/user"
)

// addUser creates an active user.User
func (cli *commandLine) addUser(name, uname, email string, isAdmin, isTeacher, isStudent bool) error {
	nu := user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
	}
	switch {
	case isAdmin:
		nu.Roles = user.AllRoles
	default:
		if isTeacher {
			nu.Roles = append(nu.Roles, user.RoleTeacher)
		}
		if isStudent {
			nu.Roles = append(nu.Roles, user.RoleStudent)
		}
	}
	if nu.Name == "" {
		nu.Name = uname
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s created: %s\n", usr.Username, usr.ID)
	return nil
}
