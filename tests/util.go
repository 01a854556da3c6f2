package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/learnsmart/core/user"
)

// CreateUser stores a User straight into repo, bypassing email verification.
// An empty pwd leaves the User without a usable password.
func CreateUser(t *testing.T, repo user.Repository, email, pwd string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Email:     email,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
