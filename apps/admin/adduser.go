package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
)

// addUser creates a user, or sets the password of an existing one, optionally granting the sub-admin role.
func (cli *commandLine) addUser(email, pwd string, subAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if err := cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
			return err
		}
	case errors.Is(err, core.ErrNotFound):
		if usr, err = cli.usrSvc.Create(ctx, email, pwd); err != nil {
			return err
		}
	default:
		return err
	}

	if !subAdmin || cli.adminSvc.IsMainAdmin(usr) {
		return nil
	}
	return cli.grantSubAdmin(ctx, usr.ID)
}
