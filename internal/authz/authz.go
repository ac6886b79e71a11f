// Package authz decides which role may perform which action on which resource.
package authz

import (
	"context"
	"sync"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"go-proposal-review/internal/model"
)

var ErrForbidden = errors.New("forbidden")

// Objects and actions used by the HTTP routes.
const (
	ObjectProposal    = "proposal"
	ObjectStakeholder = "stakeholder"
	ObjectInvitation  = "invitation"
	ObjectApproval    = "approval"
	ObjectUser        = "user"

	ActionRead    = "read"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionSubmit  = "submit"
	ActionInvite  = "invite"
	ActionRespond = "respond"
	ActionRecord  = "record"
)

const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

// DefaultPolicy is used when no policy file is configured.
var DefaultPolicy = [][]string{
	{string(model.RoleAdmin), "*", "*"},

	{string(model.RoleProductManager), ObjectProposal, "*"},
	{string(model.RoleProductManager), ObjectStakeholder, "*"},
	{string(model.RoleProductManager), ObjectInvitation, "*"},
	{string(model.RoleProductManager), ObjectApproval, "*"},
	{string(model.RoleProductManager), ObjectUser, ActionRead},

	{string(model.RoleStakeholder), ObjectProposal, ActionRead},
	{string(model.RoleStakeholder), ObjectStakeholder, ActionRead},
	{string(model.RoleStakeholder), ObjectInvitation, "*"},
	{string(model.RoleStakeholder), ObjectApproval, "*"},
	{string(model.RoleStakeholder), ObjectUser, ActionRead},
}

// Authorizer wraps a casbin enforcer.
type Authorizer struct {
	enforcer *casbin.Enforcer
	logger   logrus.FieldLogger
	mu       sync.RWMutex
}

// New builds an Authorizer. An empty policyPath loads DefaultPolicy.
func New(policyPath string, logger logrus.FieldLogger) (*Authorizer, error) {
	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, errors.Wrap(err, "authz: parse model")
	}

	var enf *casbin.Enforcer
	if policyPath != "" {
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(policyPath))
	} else {
		enf, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, errors.Wrap(err, "authz: failed to initialize enforcer")
	}

	if policyPath == "" {
		if _, err := enf.AddPolicies(DefaultPolicy); err != nil {
			return nil, errors.Wrap(err, "authz: load default policy")
		}
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Authorizer{
		enforcer: enf,
		logger:   logger.WithField("component", "authz"),
	}, nil
}

// Can evaluates a request without returning an authorization error.
func (a *Authorizer) Can(role model.Role, object, action string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ok, err := a.enforcer.Enforce(string(role), object, action)
	if err != nil {
		return false, errors.Wrap(err, "authz: enforce failed")
	}
	return ok, nil
}

// Authorize returns ErrForbidden if the role may not perform action on object.
func (a *Authorizer) Authorize(ctx context.Context, role model.Role, object, action string) error {
	ok, err := a.Can(role, object, action)
	if err != nil {
		return err
	}
	if !ok {
		a.logger.WithFields(logrus.Fields{
			"role":   role,
			"object": object,
			"action": action,
		}).Warn("authz denied request")
		return errors.Wrapf(ErrForbidden, "%s may not %s %s", role, action, object)
	}
	return nil
}
