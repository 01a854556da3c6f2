package admin_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/admin"
	"github.com/trezcool/learnsmart/core/user"
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
)

type fixture struct {
	svc               *admin.Service
	roles             admin.Repository
	owner, alice, bob user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), nil)
	policy, err := admin.NewPolicy()
	require.NoError(t, err)

	f := &fixture{roles: inmemdb.NewRoleRepository(db)}
	f.svc = admin.NewService(conf, f.roles, usrSvc, policy)

	f.owner, err = usrSvc.Create(ctx, " Owner@LearnSmart.test ", "Pass-w0rd!")
	require.NoError(t, err)
	f.alice, err = usrSvc.Create(ctx, "alice@example.com", "Pass-w0rd!")
	require.NoError(t, err)
	f.bob, err = usrSvc.Create(ctx, "bob@example.com", "Pass-w0rd!")
	require.NoError(t, err)
	return f
}

func TestPolicy_Allowed(t *testing.T) {
	policy, err := admin.NewPolicy()
	require.NoError(t, err)

	tests := []struct {
		role, obj, act string
		want           bool
	}{
		{admin.RoleAdmin, admin.ObjContent, admin.ActWrite, true},
		{admin.RoleAdmin, admin.ObjUsers, admin.ActRead, true},
		{admin.RoleAdmin, admin.ObjUsers, admin.ActDelete, true},
		{admin.RoleAdmin, admin.ObjRoles, admin.ActWrite, true},
		{admin.RoleSubAdmin, admin.ObjContent, admin.ActWrite, true},
		{admin.RoleSubAdmin, admin.ObjUsers, admin.ActRead, true},
		{admin.RoleSubAdmin, admin.ObjUsers, admin.ActDelete, false},
		{admin.RoleSubAdmin, admin.ObjRoles, admin.ActWrite, false},
		{"", admin.ObjContent, admin.ActWrite, false},
		{"student", admin.ObjContent, admin.ActWrite, false},
	}
	for _, tc := range tests {
		t.Run(tc.role+":"+tc.obj+":"+tc.act, func(t *testing.T) {
			got, err := policy.Allowed(tc.role, tc.obj, tc.act)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestService_RoleOf(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	assert.True(t, f.svc.IsMainAdmin(f.owner))
	assert.False(t, f.svc.IsMainAdmin(f.alice))

	_, err := f.svc.AddSubAdmin(ctx, f.owner, f.alice.ID)
	require.NoError(t, err)

	tests := []struct {
		usr  user.User
		role string
	}{
		{f.owner, admin.RoleAdmin},
		{f.alice, admin.RoleSubAdmin},
		{f.bob, ""},
	}
	for _, tc := range tests {
		role, err := f.svc.RoleOf(ctx, tc.usr)
		require.NoError(t, err)
		assert.Equal(t, tc.role, role, tc.usr.Email)

		isAdmin, err := f.svc.IsAdmin(ctx, tc.usr)
		require.NoError(t, err)
		assert.Equal(t, tc.role != "", isAdmin)
	}

	assert.NoError(t, f.svc.Authorize(ctx, f.alice, admin.ObjContent, admin.ActWrite))
	err = f.svc.Authorize(ctx, f.bob, admin.ObjContent, admin.ActWrite)
	assert.True(t, errors.Is(err, core.ErrForbidden))
}

func TestService_AddSubAdmin(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	// only the main admin may grant
	_, err := f.svc.AddSubAdmin(ctx, f.alice, f.bob.ID)
	assert.Equal(t, admin.ErrForbidden, err)
	_, err = f.roles.GetRole(ctx, f.bob.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound), "no row is written")

	_, err = f.svc.AddSubAdmin(ctx, f.owner, "missing")
	assert.True(t, errors.Is(err, core.ErrNotFound))

	role, err := f.svc.AddSubAdmin(ctx, f.owner, f.bob.ID)
	require.NoError(t, err)
	assert.Equal(t, f.bob.ID, role.UserID)
	assert.Equal(t, f.bob.Email, role.Email)
	assert.Equal(t, admin.RoleSubAdmin, role.Role)
	assert.Equal(t, f.owner.ID, role.CreatedBy)

	_, err = f.svc.AddSubAdmin(ctx, f.owner, f.bob.ID)
	assert.True(t, errors.Is(err, core.ErrAlreadyExists))

	// a sub-admin still cannot grant
	_, err = f.svc.AddSubAdmin(ctx, f.bob, f.alice.ID)
	assert.Equal(t, admin.ErrForbidden, err)
}

func TestService_RemoveSubAdmin(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.AddSubAdmin(ctx, f.owner, f.alice.ID)
	require.NoError(t, err)

	assert.Equal(t, admin.ErrForbidden, f.svc.RemoveSubAdmin(ctx, f.alice, f.alice.ID))

	require.NoError(t, f.svc.RemoveSubAdmin(ctx, f.owner, f.alice.ID))
	require.NoError(t, f.svc.RemoveSubAdmin(ctx, f.owner, f.alice.ID))

	role, err := f.svc.RoleOf(ctx, f.alice)
	require.NoError(t, err)
	assert.Empty(t, role)
}

func TestService_ListSubAdmins(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.AddSubAdmin(ctx, f.owner, f.alice.ID)
	require.NoError(t, err)
	_, err = f.svc.AddSubAdmin(ctx, f.owner, f.bob.ID)
	require.NoError(t, err)

	roles, err := f.svc.ListSubAdmins(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	emails := []string{roles[0].Email, roles[1].Email}
	assert.ElementsMatch(t, []string{f.alice.Email, f.bob.Email}, emails)

	require.NoError(t, f.svc.RemoveSubAdmin(ctx, f.owner, f.bob.ID))
	_, err = f.svc.ListSubAdmins(ctx, f.bob)
	assert.True(t, errors.Is(err, core.ErrForbidden))
}
