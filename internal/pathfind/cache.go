package pathfind

import "github.com/tilerealm/server/internal/core/ecs"

type cachedPath struct {
	steps   []Point
	next    int
	goal    Point
	expires uint64
}

// CacheStats counts cache outcomes since creation.
type CacheStats struct {
	Hits     uint64
	Searches uint64
	Failures uint64
}

// Cache remembers each entity's last computed path. A path is consumable
// while the tick is below its expiry (stored tick + TTL) and the goal has
// not changed; otherwise a fresh search runs and its first step is consumed
// immediately. The cache owns the scratch arena its searches use.
type Cache struct {
	ttl     uint64
	budget  int
	scratch *Scratch
	entries map[ecs.EntityID]*cachedPath
	stats   CacheStats
}

func NewCache(ttlTicks, budget int) *Cache {
	if ttlTicks <= 0 {
		ttlTicks = 1
	}
	return &Cache{
		ttl:     uint64(ttlTicks),
		budget:  budget,
		scratch: NewScratch(),
		entries: make(map[ecs.EntityID]*cachedPath),
	}
}

// NextStep returns the single tile id should step to next on its way from
// from to goal. ok is false when no path exists or from is already at goal.
func (c *Cache) NextStep(id ecs.EntityID, m Map, from, goal Point, tick uint64) (Point, bool) {
	if from == goal {
		return Point{}, false
	}
	e := c.entries[id]
	if e != nil && e.goal == goal && tick < e.expires {
		i := e.next
		// The previous step was not taken (blocked or still in flight):
		// offer it again.
		if i > 0 && e.steps[i-1] != from {
			i--
		}
		if i < len(e.steps) && from.Adjacent(e.steps[i]) {
			e.next = i + 1
			c.stats.Hits++
			return e.steps[i], true
		}
	}

	if e == nil {
		e = &cachedPath{}
		c.entries[id] = e
	}
	c.stats.Searches++
	steps, ok := Find(m, from, goal, c.scratch, c.budget, e.steps[:0])
	e.steps = steps
	if !ok || len(steps) == 0 {
		c.stats.Failures++
		delete(c.entries, id)
		return Point{}, false
	}
	e.goal = goal
	e.expires = tick + c.ttl
	e.next = 1
	return steps[0], true
}

// Invalidate drops id's cached path.
func (c *Cache) Invalidate(id ecs.EntityID) {
	delete(c.entries, id)
}

// Has reports whether id currently has a cached path.
func (c *Cache) Has(id ecs.EntityID) bool {
	_, ok := c.entries[id]
	return ok
}

func (c *Cache) Len() int          { return len(c.entries) }
func (c *Cache) Stats() CacheStats { return c.stats }
