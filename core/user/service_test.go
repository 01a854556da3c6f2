package user_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/otp"
	"github.com/trezcool/learnsmart/core/user"
	emailsvc "github.com/trezcool/learnsmart/services/email"
	kvsvc "github.com/trezcool/learnsmart/services/kv"
	inmemdb "github.com/trezcool/learnsmart/storage/database/inmem"
)

type fixture struct {
	svc    *user.Service
	otpSvc *otp.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	otpSvc := otp.NewService(conf, kvsvc.NewMemoryStore(), emailsvc.NewConsoleServiceMock(conf))
	return &fixture{
		svc:    user.NewService(inmemdb.NewUserRepository(inmemdb.Open()), otpSvc),
		otpSvc: otpSvc,
	}
}

func (f *fixture) verify(t *testing.T, email string, flow otp.Flow) {
	t.Helper()
	ctx := context.Background()
	code, err := f.otpSvc.Issue(ctx, email, flow)
	require.NoError(t, err)
	require.NoError(t, f.otpSvc.Verify(ctx, email, flow, code))
}

func TestService_Signup(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	nu := user.NewUser{Email: "new@example.com", Password: "Str0ng-Pass!", PasswordConfirm: "Str0ng-Pass!"}

	_, err := f.svc.Signup(ctx, nu)
	assert.Equal(t, user.ErrEmailNotVerified, err)

	f.verify(t, nu.Email, otp.FlowSignup)
	usr, err := f.svc.Signup(ctx, nu)
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.NoError(t, usr.CheckPassword(nu.Password))
	assert.False(t, usr.CreatedAt.IsZero())

	// the verification is spent and the email is taken
	f.verify(t, nu.Email, otp.FlowSignup)
	_, err = f.svc.Signup(ctx, nu)
	assert.True(t, errors.Is(err, core.ErrAlreadyExists))

	// a reset verification does not allow signup
	other := user.NewUser{Email: "other@example.com", Password: "Str0ng-Pass!", PasswordConfirm: "Str0ng-Pass!"}
	f.verify(t, other.Email, otp.FlowReset)
	_, err = f.svc.Signup(ctx, other)
	assert.Equal(t, user.ErrEmailNotVerified, err)
}

func TestService_ResetPassword(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	usr, err := f.svc.Create(ctx, " Reset@Example.com ", "0ld-Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, "reset@example.com", usr.Email)

	rp := user.ResetUserPassword{Email: usr.Email, Password: "N3w-Passw0rd!", PasswordConfirm: "N3w-Passw0rd!"}
	assert.Equal(t, user.ErrEmailNotVerified, f.svc.ResetPassword(ctx, rp))

	f.verify(t, usr.Email, otp.FlowReset)
	require.NoError(t, f.svc.ResetPassword(ctx, rp))

	got, err := f.svc.GetByEmail(ctx, "RESET@example.com")
	require.NoError(t, err)
	assert.NoError(t, got.CheckPassword(rp.Password))
	assert.Error(t, got.CheckPassword("0ld-Passw0rd!"))

	rp.Email = "ghost@example.com"
	assert.True(t, errors.Is(f.svc.ResetPassword(ctx, rp), core.ErrNotFound))
}

func TestService_QueryAllAndDelete(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	a, err := f.svc.Create(ctx, "a@example.com", "Pass-w0rd!")
	require.NoError(t, err)
	b, err := f.svc.Create(ctx, "b@example.com", "Pass-w0rd!")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, "a@example.com", "Pass-w0rd!")
	assert.Equal(t, user.ErrEmailExists, err)

	users, err := f.svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	usr, err := f.svc.SetLastLogin(ctx, a)
	require.NoError(t, err)
	assert.False(t, usr.LastLogin.IsZero())

	require.NoError(t, f.svc.Delete(ctx, a.ID))
	_, err = f.svc.GetByID(ctx, a.ID)
	assert.Equal(t, user.ErrNotFound, err)
	_, err = f.svc.GetByID(ctx, b.ID)
	assert.NoError(t, err)
}
