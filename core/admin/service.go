// Package admin manages the sub-admin role and decides what each role may do.
package admin

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsmart/core"
	"github.com/trezcool/learnsmart/core/user"
)

// roles
const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "sub_admin"
)

var (
	// errors
	ErrForbidden     = core.NewError(core.ErrForbidden, "Only main admin can manage sub-admins")
	ErrNotPermitted  = core.NewError(core.ErrForbidden, "You don't have permission to perform this action")
	ErrAlreadyExists = core.NewError(core.ErrAlreadyExists, "User is already a sub-admin")
	ErrNotFound      = core.NewError(core.ErrNotFound, "role not found")
)

var NowFunc = time.Now // mockable

type (
	// Role is a stored sub_admin grant. The main admin is never stored.
	Role struct {
		UserID    string    `json:"user_id"`
		Email     string    `json:"email,omitempty"`
		Role      string    `json:"role"`
		CreatedBy string    `json:"created_by"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	Repository interface {
		// CreateRole fails with ErrAlreadyExists if userID already has a role.
		CreateRole(ctx context.Context, role Role) (Role, error)
		GetRole(ctx context.Context, userID string) (Role, error)
		QueryRoles(ctx context.Context) ([]Role, error)
		// DeleteRole is a no-op when userID has no role.
		DeleteRole(ctx context.Context, userID string) error
	}

	UserGetter interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Service struct {
		mainAdminEmail string
		repo           Repository
		users          UserGetter
		policy         *Policy
	}
)

func NewService(conf *core.Config, repo Repository, users UserGetter, policy *Policy) *Service {
	return &Service{
		mainAdminEmail: core.CleanString(conf.MainAdminEmail, true /* lower */),
		repo:           repo,
		users:          users,
		policy:         policy,
	}
}

// IsMainAdmin reports whether usr's email is the configured main admin address.
func (svc *Service) IsMainAdmin(usr user.User) bool {
	return svc.mainAdminEmail != "" && core.CleanString(usr.Email, true /* lower */) == svc.mainAdminEmail
}

// RoleOf returns RoleAdmin for the main admin, RoleSubAdmin for a stored grant and "" otherwise.
func (svc *Service) RoleOf(ctx context.Context, usr user.User) (string, error) {
	if svc.IsMainAdmin(usr) {
		return RoleAdmin, nil
	}
	role, err := svc.repo.GetRole(ctx, usr.ID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return "", nil
		}
		return "", errors.Wrap(err, "loading role")
	}
	return role.Role, nil
}

func (svc *Service) IsAdmin(ctx context.Context, usr user.User) (bool, error) {
	role, err := svc.RoleOf(ctx, usr)
	return role != "", err
}

// Authorize fails with a Forbidden error unless usr's role may perform act on obj.
func (svc *Service) Authorize(ctx context.Context, usr user.User, obj, act string) error {
	role, err := svc.RoleOf(ctx, usr)
	if err != nil {
		return err
	}
	ok, err := svc.policy.Allowed(role, obj, act)
	if err != nil {
		return errors.Wrap(err, "enforcing policy")
	}
	if !ok {
		return ErrNotPermitted
	}
	return nil
}

// AddSubAdmin grants the sub_admin role to targetID. Only the main admin may do so.
func (svc *Service) AddSubAdmin(ctx context.Context, actor user.User, targetID string) (Role, error) {
	if !svc.IsMainAdmin(actor) {
		return Role{}, ErrForbidden
	}
	target, err := svc.users.GetByID(ctx, targetID)
	if err != nil {
		return Role{}, err
	}
	if _, err := svc.repo.GetRole(ctx, target.ID); err == nil {
		return Role{}, ErrAlreadyExists
	} else if !errors.Is(err, core.ErrNotFound) {
		return Role{}, errors.Wrap(err, "loading role")
	}

	role, err := svc.repo.CreateRole(ctx, Role{
		UserID:    target.ID,
		Role:      RoleSubAdmin,
		CreatedBy: actor.ID,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Role{}, err
	}
	role.Email = target.Email
	return role, nil
}

// RemoveSubAdmin revokes targetID's sub_admin role. Revoking a missing role is not an error.
func (svc *Service) RemoveSubAdmin(ctx context.Context, actor user.User, targetID string) error {
	if !svc.IsMainAdmin(actor) {
		return ErrForbidden
	}
	return svc.repo.DeleteRole(ctx, targetID)
}

// ListSubAdmins returns every sub_admin grant with the grantee's email.
func (svc *Service) ListSubAdmins(ctx context.Context, actor user.User) ([]Role, error) {
	if err := svc.Authorize(ctx, actor, ObjUsers, ActRead); err != nil {
		return nil, err
	}
	roles, err := svc.repo.QueryRoles(ctx)
	if err != nil {
		return nil, err
	}
	for i := range roles {
		usr, err := svc.users.GetByID(ctx, roles[i].UserID)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				continue
			}
			return nil, err
		}
		roles[i].Email = usr.Email
	}
	return roles, nil
}
