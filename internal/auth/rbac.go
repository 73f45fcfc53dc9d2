package auth

import (
	"fmt"
	"strings"
)

// Resource is a closed enumeration of protected resource classes.
type Resource string

const (
	ResourceUsage     Resource = "usage"
	ResourceCosts     Resource = "costs"
	ResourcePricing   Resource = "pricing"
	ResourceAnalytics Resource = "analytics"
	ResourceForecast  Resource = "forecast"
	ResourceBudget    Resource = "budget"
	ResourceAudit     Resource = "audit"
	ResourceAdmin     Resource = "admin"
)

// Action is a closed enumeration of operations on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
)

var validResources = map[Resource]bool{
	ResourceUsage:     true,
	ResourceCosts:     true,
	ResourcePricing:   true,
	ResourceAnalytics: true,
	ResourceForecast:  true,
	ResourceBudget:    true,
	ResourceAudit:     true,
	ResourceAdmin:     true,
}

var validActions = map[Action]bool{
	ActionRead:   true,
	ActionWrite:  true,
	ActionDelete: true,
	ActionAdmin:  true,
}

// Wildcard grants every action on every resource.
const Wildcard = "*"

// Permission is one grant: resource, action, and an optional scope that
// narrows the grant to a single tenant or project.
type Permission struct {
	Resource Resource
	Action   Action
	Scope    string
}

func (p Permission) String() string {
	if p.Scope != "" {
		return fmt.Sprintf("%s:%s:%s", p.Resource, p.Action, p.Scope)
	}
	return fmt.Sprintf("%s:%s", p.Resource, p.Action)
}

// ParsePermission parses "resource:action" or "resource:action:scope".
// The wildcard "*" is not a Permission and is handled by the checker.
func ParsePermission(s string) (Permission, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Permission{}, fmt.Errorf("malformed permission %q", s)
	}
	p := Permission{
		Resource: Resource(strings.ToLower(parts[0])),
		Action:   Action(strings.ToLower(parts[1])),
	}
	if !validResources[p.Resource] {
		return Permission{}, fmt.Errorf("unknown resource %q", parts[0])
	}
	if !validActions[p.Action] {
		return Permission{}, fmt.Errorf("unknown action %q", parts[1])
	}
	if len(parts) == 3 {
		p.Scope = parts[2]
	}
	return p, nil
}

// PermissionSet holds a caller's accumulated grants.
type PermissionSet struct {
	wildcard bool
	grants   []Permission
}

// NewPermissionSet builds a set from raw permission strings, accumulating
// across role boundaries. Malformed entries are skipped.
func NewPermissionSet(raw ...[]string) *PermissionSet {
	set := &PermissionSet{}
	for _, group := range raw {
		for _, s := range group {
			if s == Wildcard {
				set.wildcard = true
				continue
			}
			p, err := ParsePermission(s)
			if err != nil {
				continue
			}
			set.grants = append(set.grants, p)
		}
	}
	return set
}

// Allows reports whether the set grants the action on the resource.
// A grant with an empty scope matches any scope; a scoped grant matches
// only that scope.
func (ps *PermissionSet) Allows(resource Resource, action Action, scope string) bool {
	if ps.wildcard {
		return true
	}
	for _, g := range ps.grants {
		if g.Resource != resource || g.Action != action {
			continue
		}
		if g.Scope == "" || g.Scope == scope {
			return true
		}
	}
	return false
}

// HasWildcard reports whether the caller was granted "*".
func (ps *PermissionSet) HasWildcard() bool { return ps.wildcard }
