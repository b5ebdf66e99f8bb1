package algorithm

import (
	"fmt"
	"sync"

	"github.com/okian/toolrank/internal/domain/factor"
)

// Registry is an append-only set of algorithm versions. A registered version
// is never edited; changing a formula means registering a new id.
type Registry struct {
	mu       sync.RWMutex
	versions map[string]Version
	order    []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{versions: make(map[string]Version)}
}

// NewDefaultRegistry returns a registry preloaded with the built-in versions.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, v := range Builtin() {
		if err := r.Register(v); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register validates v as declared and stores a private, normalized copy.
func (r *Registry) Register(v Version) error {
	if err := v.Validate(factor.Known); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.versions[v.ID]; ok {
		return fmt.Errorf("%w: %s", ErrVersionExists, v.ID)
	}
	r.versions[v.ID] = v.Normalized()
	r.order = append(r.order, v.ID)
	return nil
}

// Resolve returns a copy of the version registered under id.
func (r *Registry) Resolve(id string) (Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.versions[id]
	if !ok {
		return Version{}, fmt.Errorf("%w: %s", ErrUnknownVersion, id)
	}
	return v.Clone(), nil
}

// IDs returns registered ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
