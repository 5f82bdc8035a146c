package model

import "strings"

// Capability strings used to gate dashboard affordances.
const (
	CapWorkOrdersList   = "workorders:list:view"
	CapWorkOrdersCreate = "workorders:create"
	CapWorkOrdersEdit   = "workorders:edit"
	CapWorkOrdersDelete = "workorders:delete"
	CapWorkOrdersBoard  = "workorders:board"
	CapWorkOrdersAssign = "workorders:assign"
	CapStatusSet        = "workorders:status:set"
	CapStatusProgress   = "fieldwork:status:progress"
	CapCalendarView     = "workorders:calendar:view"
	CapTechniciansView  = "technicians:view"
	CapUsersManage      = "technicians:manage"
	CapAssetsView       = "assets:view"
	CapAssetsManage     = "assets:manage"
	CapDashboardView    = "dashboard:view"
)

// CapabilitySet is a set of capabilities granted to a user. Each key is a
// capability string (e.g. "workorders:list:view") and may include wildcards
// (e.g. "workorders:*").
type CapabilitySet map[string]bool

// Has returns true if the set contains the exact capability or a wildcard
// that matches it.
func (cs CapabilitySet) Has(cap string) bool {
	if cs[cap] {
		return true
	}
	for pattern, granted := range cs {
		if granted && matchWildcard(pattern, cap) {
			return true
		}
	}
	return false
}

// HasAll returns true if the set matches all given capabilities.
func (cs CapabilitySet) HasAll(caps ...string) bool {
	for _, cap := range caps {
		if !cs.Has(cap) {
			return false
		}
	}
	return true
}

// HasAny returns true if the set matches at least one of the given
// capabilities.
func (cs CapabilitySet) HasAny(caps ...string) bool {
	for _, cap := range caps {
		if cs.Has(cap) {
			return true
		}
	}
	return false
}

// List returns the granted capability strings.
func (cs CapabilitySet) List() []string {
	out := make([]string, 0, len(cs))
	for c, granted := range cs {
		if granted {
			out = append(out, c)
		}
	}
	return out
}

// matchWildcard returns true if pattern (which may end in "*") matches cap.
//
//	"*"              matches anything
//	"workorders:*"   matches "workorders:list:view"
//	"workorders:list" does NOT match "workorders:list:view"
func matchWildcard(pattern, cap string) bool {
	if pattern == "*" {
		return true
	}
	if !strings.HasSuffix(pattern, ":*") {
		return false
	}
	prefix := pattern[:len(pattern)-1]
	return strings.HasPrefix(cap, prefix)
}

// CapabilityResolver resolves the capability set for a session.
type CapabilityResolver interface {
	Resolve(s *Session) (CapabilitySet, error)
}

// PolicyEvaluator maps roles to capabilities.
type PolicyEvaluator interface {
	ResolveCapabilities(s *Session) (CapabilitySet, error)
	Sync() error
}
