package ecs

// World is the top-level ECS container. It owns the entity pool, the component
// registry, each entity's signature, and a deferred destruction queue flushed
// by the cleanup system at tick end.
type World struct {
	pool         *EntityPool
	registry     *Registry
	masks        []Mask
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		pool:         NewEntityPool(),
		registry:     NewRegistry(),
		masks:        make([]Mask, 1, 1024),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Pool() *EntityPool   { return w.pool }
func (w *World) Registry() *Registry { return w.registry }

// Create allocates an entity and attaches every component before returning,
// so no system ever observes a partially built archetype.
func (w *World) Create(components ...Attachment) EntityID {
	id := w.pool.Create()
	idx := int(id.Index())
	for idx >= len(w.masks) {
		w.masks = append(w.masks, 0)
	}
	w.masks[idx] = 0
	for _, c := range components {
		c.attach(id)
	}
	return id
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Signature returns the entity's current component mask (0 if dead).
func (w *World) Signature(id EntityID) Mask {
	if !w.pool.Alive(id) {
		return 0
	}
	return w.masks[id.Index()]
}

// Has reports whether the entity carries every component in mask.
func (w *World) Has(id EntityID, mask Mask) bool {
	return w.Signature(id).Contains(mask)
}

// Destroy removes the entity and all of its components immediately. Must not
// be called while a query over one of its stores is iterating.
func (w *World) Destroy(id EntityID) {
	if !w.pool.Alive(id) {
		return
	}
	w.registry.RemoveAll(id)
	w.masks[id.Index()] = 0
	w.pool.Destroy(id)
}

// MarkForDestruction queues an entity for end-of-tick cleanup.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// FlushDestroyQueue destroys all queued entities and clears their
// components. It returns how many were still alive.
func (w *World) FlushDestroyQueue() int {
	n := 0
	for _, id := range w.destroyQueue {
		if w.Alive(id) {
			w.Destroy(id)
			n++
		}
	}
	w.destroyQueue = w.destroyQueue[:0]
	return n
}

func (w *World) setBit(id EntityID, bit Mask) {
	w.masks[id.Index()] |= bit
}

func (w *World) clearBit(id EntityID, bit Mask) {
	w.masks[id.Index()] &^= bit
}
