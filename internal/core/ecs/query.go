package ecs

type column interface {
	Bit() Mask
	Len() int
	entities() []EntityID
}

// Filter narrows a query beyond its required components.
type Filter func(*filter)

type filter struct {
	without Mask
}

// Without excludes entities carrying any of the given components.
func Without(cols ...column) Filter {
	return func(f *filter) {
		for _, c := range cols {
			f.without |= c.Bit()
		}
	}
}

// descriptor is the precompiled part of every query: required and excluded
// signature bits plus the candidate driver columns.
type descriptor struct {
	world   *World
	all     Mask
	without Mask
	cols    []column
}

func newDescriptor(w *World, filters []Filter, cols ...column) descriptor {
	var f filter
	for _, fn := range filters {
		fn(&f)
	}
	d := descriptor{world: w, without: f.without, cols: cols}
	for _, c := range cols {
		d.all |= c.Bit()
	}
	return d
}

// driver returns the owner list of the smallest required store.
func (d *descriptor) driver() []EntityID {
	best := d.cols[0]
	for _, c := range d.cols[1:] {
		if c.Len() < best.Len() {
			best = c
		}
	}
	return best.entities()
}

func (d *descriptor) match(id EntityID) bool {
	m := d.world.masks[id.Index()]
	return m&d.all == d.all && m&d.without == 0
}

// Count returns the number of matching entities.
func (d *descriptor) Count() int {
	n := 0
	for _, id := range d.driver() {
		if d.match(id) {
			n++
		}
	}
	return n
}

// Query1 iterates entities carrying component A.
type Query1[A any] struct {
	descriptor
	a *Store[A]
}

func NewQuery1[A any](w *World, a *Store[A], filters ...Filter) *Query1[A] {
	return &Query1[A]{descriptor: newDescriptor(w, filters, a), a: a}
}

// Each must not add or remove components on the queried stores.
func (q *Query1[A]) Each(fn func(EntityID, *A)) {
	for _, id := range q.driver() {
		if q.match(id) {
			fn(id, q.a.at(id))
		}
	}
}

// Query2 iterates entities carrying components A and B.
type Query2[A, B any] struct {
	descriptor
	a *Store[A]
	b *Store[B]
}

func NewQuery2[A, B any](w *World, a *Store[A], b *Store[B], filters ...Filter) *Query2[A, B] {
	return &Query2[A, B]{descriptor: newDescriptor(w, filters, a, b), a: a, b: b}
}

func (q *Query2[A, B]) Each(fn func(EntityID, *A, *B)) {
	for _, id := range q.driver() {
		if q.match(id) {
			fn(id, q.a.at(id), q.b.at(id))
		}
	}
}

// Query3 iterates entities carrying components A, B, and C.
type Query3[A, B, C any] struct {
	descriptor
	a *Store[A]
	b *Store[B]
	c *Store[C]
}

func NewQuery3[A, B, C any](w *World, a *Store[A], b *Store[B], c *Store[C], filters ...Filter) *Query3[A, B, C] {
	return &Query3[A, B, C]{descriptor: newDescriptor(w, filters, a, b, c), a: a, b: b, c: c}
}

func (q *Query3[A, B, C]) Each(fn func(EntityID, *A, *B, *C)) {
	for _, id := range q.driver() {
		if q.match(id) {
			fn(id, q.a.at(id), q.b.at(id), q.c.at(id))
		}
	}
}
