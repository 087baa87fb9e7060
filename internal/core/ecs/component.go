package ecs

// Removable is implemented by all component stores so the Registry can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a sparse-set component store: components live contiguously in
// dense order, and a sparse slice maps entity index to dense slot. Attach and
// detach are O(1); iteration walks the dense slice.
//
// Pointers returned by Get/Add stay valid until the next Add or Remove on the
// same store.
type Store[T any] struct {
	world  *World
	bit    Mask
	sparse []int32 // entity index -> dense slot + 1 (0 = absent)
	dense  []T
	owners []EntityID
}

// NewStore registers a new component type with the world.
func NewStore[T any](w *World) *Store[T] {
	s := &Store[T]{
		world:  w,
		dense:  make([]T, 0, 256),
		owners: make([]EntityID, 0, 256),
	}
	s.bit = w.registry.Register(s)
	return s
}

// Bit returns the component's signature bit.
func (s *Store[T]) Bit() Mask { return s.bit }

func (s *Store[T]) slot(id EntityID) int {
	idx := int(id.Index())
	if idx >= len(s.sparse) {
		return -1
	}
	slot := int(s.sparse[idx]) - 1
	if slot < 0 || s.owners[slot] != id {
		return -1
	}
	return slot
}

// Add attaches (or overwrites) the component and returns a pointer to the
// stored copy.
func (s *Store[T]) Add(id EntityID, c T) *T {
	if slot := s.slot(id); slot >= 0 {
		s.dense[slot] = c
		return &s.dense[slot]
	}
	idx := int(id.Index())
	for idx >= len(s.sparse) {
		s.sparse = append(s.sparse, 0)
	}
	s.dense = append(s.dense, c)
	s.owners = append(s.owners, id)
	s.sparse[idx] = int32(len(s.dense))
	s.world.setBit(id, s.bit)
	return &s.dense[len(s.dense)-1]
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	slot := s.slot(id)
	if slot < 0 {
		return nil, false
	}
	return &s.dense[slot], true
}

func (s *Store[T]) Has(id EntityID) bool {
	return s.slot(id) >= 0
}

// Remove detaches the component by moving the last element into its slot.
func (s *Store[T]) Remove(id EntityID) {
	slot := s.slot(id)
	if slot < 0 {
		return
	}
	last := len(s.dense) - 1
	if slot != last {
		moved := s.owners[last]
		s.dense[slot] = s.dense[last]
		s.owners[slot] = moved
		s.sparse[moved.Index()] = int32(slot + 1)
	}
	var zero T
	s.dense[last] = zero
	s.dense = s.dense[:last]
	s.owners = s.owners[:last]
	s.sparse[id.Index()] = 0
	s.world.clearBit(id, s.bit)
}

func (s *Store[T]) Len() int {
	return len(s.dense)
}

// Each visits every component in dense order.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i := range s.dense {
		fn(s.owners[i], &s.dense[i])
	}
}

func (s *Store[T]) entities() []EntityID { return s.owners }

// at returns the component for an entity already known to be present.
func (s *Store[T]) at(id EntityID) *T {
	return &s.dense[s.sparse[id.Index()]-1]
}

// Attachment is one component bound to a store, applied at creation time.
type Attachment interface {
	attach(id EntityID)
}

type attachment[T any] struct {
	store *Store[T]
	value T
}

func (a attachment[T]) attach(id EntityID) { a.store.Add(id, a.value) }

// With pairs a component value with its store for World.Create.
func With[T any](s *Store[T], c T) Attachment {
	return attachment[T]{store: s, value: c}
}
