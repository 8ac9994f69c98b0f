package permission

import (
	"errors"
	"sync"
)

// RootResource is the wildcard resource name. Granting it sets the root bit.
const RootResource = "*"

// Registry maps resource identifiers to bit positions within a mask.
// Supports widths of 64 or 128 bits; the top bit is always the root bit.
type Registry struct {
	maxBits int
	rootBit int

	mu        sync.RWMutex
	nameToBit map[string]int
	bitToName map[int]string
	frozen    bool
}

// NewRegistry creates a resource [Registry] with the given mask width.
func NewRegistry(maxBits int) (*Registry, error) {
	if maxBits != 64 && maxBits != 128 {
		return nil, errors.New("invalid maxBits")
	}

	return &Registry{
		maxBits:   maxBits,
		rootBit:   maxBits - 1,
		nameToBit: make(map[string]int),
		bitToName: make(map[int]string),
	}, nil
}

// Register assigns the next free bit to resource. Registering an existing
// resource returns its bit. Must be called before [Registry.Freeze].
func (r *Registry) Register(resource string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if resource == "" {
		return -1, errors.New("resource name cannot be empty")
	}
	if resource == RootResource {
		return r.rootBit, nil
	}
	if bit, exists := r.nameToBit[resource]; exists {
		return bit, nil
	}

	next := len(r.nameToBit)
	if next >= r.rootBit {
		return -1, errors.New("resource limit exceeded (root bit reserved)")
	}

	r.nameToBit[resource] = next
	r.bitToName[next] = resource
	return next, nil
}

// Bit returns the bit index for resource, or false if not registered.
func (r *Registry) Bit(resource string) (int, bool) {
	if resource == RootResource {
		return r.rootBit, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[resource]
	return bit, ok
}

// Name returns the resource for bit, or false if unassigned.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.bitToName[bit]
	return name, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered resources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nameToBit)
}

func (r *Registry) newMask() Mask {
	return newMask(r.maxBits)
}
