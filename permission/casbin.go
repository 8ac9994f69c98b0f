package permission

import (
	"errors"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// casbinModel is plain RBAC with role inheritance through g and a
// wildcard object for superuser roles.
const casbinModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*")
`

// CasbinPolicy evaluates [Rules] with a casbin SyncedEnforcer. It produces
// the same decisions as [TablePolicy] for the same rules and is meant for
// deployments that already manage policy in casbin terms.
type CasbinPolicy struct {
	rules    Rules
	public        map[string]struct{}
	authenticated map[string]struct{}
	known         map[string]struct{}
	enforcer      *casbin.SyncedEnforcer
}

// NewCasbinPolicy loads rules into an in-memory enforcer.
func NewCasbinPolicy(rules Rules) (*CasbinPolicy, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	m, err := model.NewModelFromString(casbinModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	known := make(map[string]struct{})
	for _, rr := range rules.Roles {
		for _, res := range rr.Resources {
			if res != RootResource {
				known[res] = struct{}{}
			}
			if _, err := enforcer.AddPolicy(rr.Name, res); err != nil {
				return nil, fmt.Errorf("failed to add policy %s/%s: %w", rr.Name, res, err)
			}
		}
		for _, parent := range rr.Inherits {
			if _, err := enforcer.AddGroupingPolicy(rr.Name, parent); err != nil {
				return nil, fmt.Errorf("failed to add grouping policy %s/%s: %w", rr.Name, parent, err)
			}
		}
	}

	public := make(map[string]struct{}, len(rules.Public))
	for _, res := range rules.Public {
		if res == RootResource {
			return nil, errors.New("policy cannot make the root resource public")
		}
		public[res] = struct{}{}
		known[res] = struct{}{}
	}

	authenticated := make(map[string]struct{}, len(rules.Authenticated))
	for _, res := range rules.Authenticated {
		if res == RootResource {
			return nil, errors.New("policy cannot grant the root resource to every subject")
		}
		authenticated[res] = struct{}{}
		known[res] = struct{}{}
	}

	return &CasbinPolicy{
		rules:         rules,
		public:        public,
		authenticated: authenticated,
		known:         known,
		enforcer:      enforcer,
	}, nil
}

// Authorize implements [Authorizer]. Resources outside the rules deny
// before the enforcer runs, so a wildcard grant never reaches them.
// Enforcer errors deny.
func (p *CasbinPolicy) Authorize(subject Subject, resource string) Decision {
	if _, ok := p.public[resource]; ok && resource != RootResource {
		return Decision{Allowed: true, Reason: ReasonPublic}
	}
	if !subject.Authenticated {
		return deny(p.rules, ReasonUnauthenticated)
	}
	if _, ok := p.known[resource]; !ok {
		return deny(p.rules, ReasonUnknownResource)
	}
	if _, ok := p.authenticated[resource]; ok {
		return Decision{Allowed: true, Reason: ReasonGranted}
	}

	for _, role := range subject.Roles {
		if role == "" {
			continue
		}
		ok, err := p.enforcer.Enforce(role, resource)
		if err == nil && ok {
			return Decision{Allowed: true, Reason: ReasonGranted}
		}
	}
	return deny(p.rules, ReasonUnauthorized)
}
