package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/otp"
)

var (
	// errors
	ErrNotFound         = core.NewError(core.ErrNotFound, "user not found")
	ErrEmailExists      = core.NewError(core.ErrAlreadyExists, "a user with this email already exists")
	ErrEmailNotVerified = core.NewError(core.ErrForbidden, "email has not been verified")
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryUsers(ctx context.Context, ordering []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	// EmailVerifier consumes the proof that an email address passed a one-time passcode check.
	EmailVerifier interface {
		ConsumeVerified(ctx context.Context, email string, flow otp.Flow) error
	}

	Service struct {
		repo     Repository
		verifier EmailVerifier
	}
)

// NowFunc is mockable.
var NowFunc = time.Now

func NewService(repo Repository, verifier EmailVerifier) *Service {
	return &Service{repo: repo, verifier: verifier}
}

// Signup creates a User for an email that has just been verified through the signup OTP flow.
func (svc *Service) Signup(ctx context.Context, nu NewUser) (User, error) {
	if _, err := svc.repo.GetUserByEmail(ctx, nu.Email); err == nil {
		return User{}, ErrEmailExists
	} else if !errors.Is(err, core.ErrNotFound) {
		return User{}, errors.Wrap(err, "checking email uniqueness")
	}

	if err := svc.verifier.ConsumeVerified(ctx, nu.Email, otp.FlowSignup); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, ErrEmailNotVerified
		}
		return User{}, errors.Wrap(err, "consuming email verification")
	}

	now := NowFunc().UTC()
	usr := User{
		Email:     nu.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Create adds a User without email verification; used by the admin CLI.
func (svc *Service) Create(ctx context.Context, email, pwd string) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Email:     core.CleanString(email, true /* lower */),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// ResetPassword sets a new password for a User whose email has just been verified through the reset OTP flow.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	usr, err := svc.GetByEmail(ctx, rp.Email)
	if err != nil {
		return err
	}
	if err := svc.verifier.ConsumeVerified(ctx, usr.Email, otp.FlowReset); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrEmailNotVerified
		}
		return errors.Wrap(err, "consuming email verification")
	}
	return svc.SetPassword(ctx, usr, rp.Password)
}

func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// QueryAll returns every User, newest first.
func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.Query(ctx, nil)
}

// Query returns every User sorted by ordering; unknown fields are ignored. Defaults to newest first.
func (svc *Service) Query(ctx context.Context, ordering []core.DBOrdering) ([]User, error) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	return svc.repo.QueryUsers(ctx, ordering)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}
