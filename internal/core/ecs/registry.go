package ecs

// Mask is a component-set signature: one bit per registered store.
type Mask uint64

// Contains reports whether every bit of other is set in m.
func (m Mask) Contains(other Mask) bool { return m&other == other }

// Registry tracks all component stores and supports bulk cleanup on entity destroy.
type Registry struct {
	stores []Removable
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 16),
	}
}

// Register adds a component store to the registry and returns its signature bit.
func (r *Registry) Register(store Removable) Mask {
	if len(r.stores) >= 64 {
		panic("ecs: more than 64 component types")
	}
	r.stores = append(r.stores, store)
	return Mask(1) << (len(r.stores) - 1)
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}
