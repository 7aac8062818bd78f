package main

import (
	"context"

	"github.com/casbytes/lms-sub000/core"
	"github.com/casbytes/lms-sub000/core/user"
)

// addUser updates or creates a user.User. Admins get every role; others are students.
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	var usr user.User
	var err error
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name = core.CleanString(name); name == "" {
		name = uname
	}

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		now := user.NowFunc().UTC()
		usr = user.User{
			Name:      name,
			Username:  uname,
			Email:     email,
			Roles:     []string{user.RoleStudent},
			CreatedAt: now,
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.SetActive(true)
	usr.UpdatedAt = user.NowFunc().UTC()
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	return nil
}
