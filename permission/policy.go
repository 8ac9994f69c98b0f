package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Well-known resource identifiers of the default policy.
const (
	ResourceHome   = "home.view"
	ResourceAdmin  = "admin.view"
	ResourceLogin  = "login.form"
	ResourceLogout = "logout.access"
)

// Reason explains a [Decision]. It is used for logs and metrics only;
// callers must act on Allowed and Redirect.
type Reason uint8

const (
	ReasonGranted Reason = iota
	ReasonPublic
	ReasonUnauthenticated
	ReasonUnauthorized
	ReasonUnknownResource
)

func (r Reason) String() string {
	switch r {
	case ReasonGranted:
		return "granted"
	case ReasonPublic:
		return "public"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonUnauthorized:
		return "unauthorized"
	case ReasonUnknownResource:
		return "unknown_resource"
	default:
		return "unknown"
	}
}

// Decision is the outcome of an authorization check. A denied decision
// always carries the path the caller should redirect to.
type Decision struct {
	Allowed  bool
	Redirect string
	Reason   Reason
}

// Subject is what the authorizer needs to know about the caller.
type Subject struct {
	Authenticated bool
	Roles         []string
}

// Authorizer decides access to a resource. Implementations are pure and
// safe for concurrent use.
type Authorizer interface {
	Authorize(subject Subject, resource string) Decision
}

// RoleRule grants a role a set of resources and, optionally, everything its
// parent roles are granted.
type RoleRule struct {
	Name      string   `koanf:"name" validate:"required"`
	Inherits  []string `koanf:"inherits"`
	Resources []string `koanf:"resources"`
}

// Rules is the static policy table.
type Rules struct {
	Public []string `koanf:"public"`
	// Authenticated resources are granted to every authenticated subject,
	// whatever its roles.
	Authenticated []string   `koanf:"authenticated"`
	Roles         []RoleRule `koanf:"roles" validate:"dive"`

	// LoginPath receives every unauthenticated denial.
	LoginPath string `koanf:"login_path" validate:"required,startswith=/"`
	// ForbiddenRedirect, when set, receives authenticated-but-unauthorized
	// denials. Empty means LoginPath.
	ForbiddenRedirect string `koanf:"forbidden_redirect" validate:"omitempty,startswith=/"`
}

// DefaultRules returns the stock table: the login form is public, any
// authenticated caller may log out, "user" reaches home, and "admin"
// inherits "user" plus the admin page.
func DefaultRules() Rules {
	return Rules{
		Public:        []string{ResourceLogin},
		Authenticated: []string{ResourceLogout},
		Roles: []RoleRule{
			{Name: "user", Resources: []string{ResourceHome}},
			{Name: "admin", Inherits: []string{"user"}, Resources: []string{ResourceAdmin}},
		},
		LoginPath: "/login",
	}
}

// Validate checks the rules for unknown parents and inheritance cycles.
func (r Rules) Validate() error {
	if !strings.HasPrefix(r.LoginPath, "/") {
		return errors.New("policy login path must start with /")
	}
	if r.ForbiddenRedirect != "" && !strings.HasPrefix(r.ForbiddenRedirect, "/") {
		return errors.New("policy forbidden redirect must start with /")
	}
	_, err := r.ordered()
	return err
}

func (r Rules) denyTarget(reason Reason) string {
	if reason != ReasonUnauthenticated && r.ForbiddenRedirect != "" {
		return r.ForbiddenRedirect
	}
	return r.LoginPath
}

// ordered returns role rules so that every parent precedes its children.
func (r Rules) ordered() ([]RoleRule, error) {
	byName := make(map[string]RoleRule, len(r.Roles))
	for _, rr := range r.Roles {
		if rr.Name == "" {
			return nil, errors.New("policy role name empty")
		}
		if _, dup := byName[rr.Name]; dup {
			return nil, fmt.Errorf("policy role %s declared twice", rr.Name)
		}
		byName[rr.Name] = rr
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(byName))
	out := make([]RoleRule, 0, len(byName))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case visiting:
			return fmt.Errorf("policy role %s inherits itself", name)
		case done:
			return nil
		}
		rr, ok := byName[name]
		if !ok {
			return fmt.Errorf("policy inherits unknown role %s", name)
		}
		state[name] = visiting
		for _, parent := range rr.Inherits {
			if err := visit(parent); err != nil {
				return err
			}
		}
		state[name] = done
		out = append(out, rr)
		return nil
	}

	for _, rr := range r.Roles {
		if err := visit(rr.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TablePolicy evaluates [Rules] against precomputed bitmasks.
type TablePolicy struct {
	rules         Rules
	registry      *Registry
	roles         *RoleManager
	public        Mask
	authenticated Mask
}

// NewTablePolicy registers every resource and role of rules and freezes the
// result. maxBits is 64 or 128.
func NewTablePolicy(rules Rules, maxBits int) (*TablePolicy, error) {
	ordered, err := rules.ordered()
	if err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	registry, err := NewRegistry(maxBits)
	if err != nil {
		return nil, err
	}

	public := registry.newMask()
	for _, res := range rules.Public {
		if res == RootResource {
			return nil, errors.New("policy cannot make the root resource public")
		}
		bit, err := registry.Register(res)
		if err != nil {
			return nil, err
		}
		public.Set(bit)
	}
	authenticated := registry.newMask()
	for _, res := range rules.Authenticated {
		if res == RootResource {
			return nil, errors.New("policy cannot grant the root resource to every subject")
		}
		bit, err := registry.Register(res)
		if err != nil {
			return nil, err
		}
		authenticated.Set(bit)
	}
	for _, rr := range rules.Roles {
		for _, res := range rr.Resources {
			if _, err := registry.Register(res); err != nil {
				return nil, err
			}
		}
	}
	registry.Freeze()

	roles := NewRoleManager(registry)
	for _, rr := range ordered {
		if err := roles.RegisterRole(rr.Name, rr.Resources, rr.Inherits); err != nil {
			return nil, err
		}
	}
	roles.Freeze()

	return &TablePolicy{
		rules:         rules,
		registry:      registry,
		roles:         roles,
		public:        public,
		authenticated: authenticated,
	}, nil
}

// Authorize implements [Authorizer]. Unknown resources and unknown roles
// never grant access.
func (p *TablePolicy) Authorize(subject Subject, resource string) Decision {
	bit, known := p.registry.Bit(resource)
	if known && resource != RootResource && p.public.Has(bit) {
		return Decision{Allowed: true, Reason: ReasonPublic}
	}
	if !subject.Authenticated {
		return deny(p.rules, ReasonUnauthenticated)
	}
	if !known || resource == RootResource {
		return deny(p.rules, ReasonUnknownResource)
	}
	if p.authenticated.Has(bit) {
		return Decision{Allowed: true, Reason: ReasonGranted}
	}

	for _, role := range subject.Roles {
		mask, ok := p.roles.Mask(role)
		if ok && mask.Has(bit) {
			return Decision{Allowed: true, Reason: ReasonGranted}
		}
	}
	return deny(p.rules, ReasonUnauthorized)
}

// Known reports whether resource appears anywhere in the table.
func (p *TablePolicy) Known(resource string) bool {
	_, ok := p.registry.Bit(resource)
	return ok && resource != RootResource
}

func deny(rules Rules, reason Reason) Decision {
	return Decision{Redirect: rules.denyTarget(reason), Reason: reason}
}
