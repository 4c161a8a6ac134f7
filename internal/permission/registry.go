// Package permission resolves an account role into its permission set. The
// registry is built once at startup and read concurrently afterwards.
package permission

import (
	"sort"
	"sync"
)

// Registry maps role names to permission sets. Roles are registered during
// initialization; Freeze makes the registry immutable.
type Registry struct {
	mu     sync.RWMutex
	roles  map[string][]string
	frozen bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{roles: make(map[string][]string)}
}

// Register assigns the permission set for a role, replacing any previous set.
// No-op after Freeze.
func (r *Registry) Register(role string, permissions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen || role == "" {
		return
	}
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		if p != "" {
			set[p] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	r.roles[role] = out
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Resolve returns the permission set for role, sorted. Unknown roles resolve
// to an empty set, never an error; the edge treats the token claims as the
// source of truth.
func (r *Registry) Resolve(role string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perms, ok := r.roles[role]
	if !ok {
		return []string{}
	}
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Default returns the registry used by the service: members manage their own
// collections and sessions, admins additionally manage accounts.
func Default() *Registry {
	r := NewRegistry()
	r.Register("member",
		"collection:read", "collection:write",
		"session:read", "session:revoke",
		"profile:read", "profile:write",
	)
	r.Register("admin",
		"collection:read", "collection:write",
		"session:read", "session:revoke",
		"profile:read", "profile:write",
		"account:read", "account:write", "account:lock",
		"audit:read",
	)
	r.Freeze()
	return r
}
