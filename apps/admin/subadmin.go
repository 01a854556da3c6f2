package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
)

var errNoMainAdmin = errors.New("the main admin has no account yet; run adduser with the main admin email first")

// mainAdmin is the actor of every role change made from the command line.
func (cli *commandLine) mainAdmin(ctx context.Context) (user.User, error) {
	usr, err := cli.usrSvc.GetByEmail(ctx, cli.conf.MainAdminEmail)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return user.User{}, errNoMainAdmin
		}
		return user.User{}, err
	}
	return usr, nil
}

func (cli *commandLine) grantSubAdmin(ctx context.Context, userID string) error {
	actor, err := cli.mainAdmin(ctx)
	if err != nil {
		return err
	}
	_, err = cli.adminSvc.AddSubAdmin(ctx, actor, userID)
	if errors.Is(err, admin.ErrAlreadyExists) {
		return nil
	}
	return err
}

func (cli *commandLine) addSubAdmin(email string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	return cli.grantSubAdmin(ctx, usr.ID)
}

func (cli *commandLine) removeSubAdmin(email string) error {
	ctx := context.Background()
	actor, err := cli.mainAdmin(ctx)
	if err != nil {
		return err
	}
	usr, err := cli.usrSvc.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	return cli.adminSvc.RemoveSubAdmin(ctx, actor, usr.ID)
}

func (cli *commandLine) listSubAdmins() error {
	ctx := context.Background()
	actor, err := cli.mainAdmin(ctx)
	if err != nil {
		return err
	}
	roles, err := cli.adminSvc.ListSubAdmins(ctx, actor)
	if err != nil {
		return err
	}
	for _, r := range roles {
		fmt.Printf("%s\t%s\t%s\n", r.UserID, r.Email, r.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
