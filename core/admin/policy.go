package admin

import (
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/pkg/errors"
)

// permission objects and actions
const (
	ObjContent = "content"
	ObjUsers   = "users"
	ObjRoles   = "roles"

	ActRead   = "read"
	ActWrite  = "write"
	ActDelete = "delete"
)

const policyModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// admin inherits everything a sub_admin may do
var (
	policies = [][]string{
		{RoleSubAdmin, ObjContent, ActWrite},
		{RoleSubAdmin, ObjUsers, ActRead},
		{RoleAdmin, ObjUsers, ActDelete},
		{RoleAdmin, ObjRoles, ActWrite},
	}
	groupings = [][]string{
		{RoleAdmin, RoleSubAdmin},
	}
)

// Policy decides which role may perform an action on an object.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(policyModel)
	if err != nil {
		return nil, errors.Wrap(err, "loading policy model")
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, errors.Wrap(err, "creating enforcer")
	}
	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, errors.Wrap(err, "adding policy")
		}
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, errors.Wrap(err, "adding role inheritance")
		}
	}
	return &Policy{enforcer: enforcer}, nil
}

// Allowed reports whether role may perform act on obj. An empty role is never allowed.
func (p *Policy) Allowed(role, obj, act string) (bool, error) {
	if role == "" {
		return false, nil
	}
	return p.enforcer.Enforce(role, obj, act)
}
