package permission

import (
	"errors"
	"fmt"
	"sync"
)

// RoleManager holds one flattened resource mask per role.
//
// Roles are registered during Build and read-only after Freeze.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[string]Mask
	frozen bool
}

// NewRoleManager returns an empty RoleManager bound to registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[string]Mask),
	}
}

// RegisterRole stores the mask for role: every named resource plus the masks
// of the inherited roles, which must already be registered.
func (rm *RoleManager) RegisterRole(role string, resources []string, inherits []string) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if role == "" {
		return errors.New("role name empty")
	}
	if _, exists := rm.roles[role]; exists {
		return errors.New("role already registered: " + role)
	}

	mask := rm.registry.newMask()
	for _, res := range resources {
		bit, ok := rm.registry.Bit(res)
		if !ok {
			return fmt.Errorf("resource not registered: %s", res)
		}
		mask.Set(bit)
	}
	for _, parent := range inherits {
		pm, ok := rm.roles[parent]
		if !ok {
			return fmt.Errorf("role %s inherits unknown role %s", role, parent)
		}
		mask.Union(pm)
	}

	rm.roles[role] = mask
	return nil
}

// Mask returns the flattened mask for role.
func (rm *RoleManager) Mask(role string) (Mask, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	mask, ok := rm.roles[role]
	return mask, ok
}

// Freeze prevents further registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
