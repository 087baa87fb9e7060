// Package pathfind implements bounded 8-directional A* over one floor of the
// tile grid and a per-entity cache of computed paths.
package pathfind

import "container/heap"

const (
	stepCost = 1000
	// DefaultBudget caps node expansions per search.
	DefaultBudget = 2000
)

// Point is a tile coordinate on a single floor.
type Point struct {
	X, Y int32
}

// Adjacent reports whether q is one of p's eight neighbours.
func (p Point) Adjacent(q Point) bool {
	dx, dy := p.X-q.X, p.Y-q.Y
	return p != q && dx >= -1 && dx <= 1 && dy >= -1 && dy <= 1
}

// Map is the floor view a search runs against.
type Map interface {
	Size() (width, height int32)
	// Walkable reports static terrain passability.
	Walkable(x, y int32) bool
	// Blocked reports a dynamic occupant on the tile.
	Blocked(x, y int32) bool
}

// Neighbour order is fixed so equal-cost searches expand identically.
// Orthogonal steps come first and win ties against diagonals.
var (
	offX = [8]int32{0, 1, 0, -1, 1, 1, -1, -1}
	offY = [8]int32{-1, 0, 1, 0, -1, 1, 1, -1}
)

const (
	cellUntouched uint8 = iota
	cellOpen
	cellClosed
)

// Scratch holds the per-search working set. It is owned by one caller and
// reused across searches; only cells touched by the last search are reset.
// A Scratch must not be shared between goroutines.
type Scratch struct {
	width   int32
	g       []int32
	parent  []int32
	state   []uint8
	touched []int32
	open    openList
	seq     uint32
}

func NewScratch() *Scratch { return &Scratch{} }

func (s *Scratch) prepare(w, h int32) {
	n := int(w) * int(h)
	s.width = w
	if len(s.g) < n {
		s.g = make([]int32, n)
		s.parent = make([]int32, n)
		s.state = make([]uint8, n)
		s.touched = s.touched[:0]
	}
	s.open = s.open[:0]
	s.seq = 0
}

func (s *Scratch) reset() {
	for _, i := range s.touched {
		s.state[i] = cellUntouched
		s.g[i] = 0
		s.parent[i] = -1
	}
	s.touched = s.touched[:0]
	s.open = s.open[:0]
}

func (s *Scratch) touch(i int32) {
	if s.state[i] == cellUntouched {
		s.touched = append(s.touched, i)
	}
}

type openNode struct {
	idx int32
	f   int32
	h   int32
	seq uint32
}

// openList orders by f, then h (closer to goal first), then insertion.
type openList []openNode

func (o openList) Len() int { return len(o) }
func (o openList) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	if o[i].h != o[j].h {
		return o[i].h < o[j].h
	}
	return o[i].seq < o[j].seq
}
func (o openList) Swap(i, j int) { o[i], o[j] = o[j], o[i] }
func (o *openList) Push(x any)   { *o = append(*o, x.(openNode)) }
func (o *openList) Pop() any {
	old := *o
	n := len(old)
	it := old[n-1]
	*o = old[:n-1]
	return it
}

// heuristic is Chebyshev distance in step-cost units plus a small bias
// toward the goal that breaks f ties.
func heuristic(x, y int32, goal Point) int32 {
	dx := x - goal.X
	if dx < 0 {
		dx = -dx
	}
	dy := y - goal.Y
	if dy < 0 {
		dy = -dy
	}
	d := dx
	if dy > d {
		d = dy
	}
	return d*stepCost + d
}

// Find searches from start to goal and appends the steps (excluding start,
// including goal) to dst. The goal tile may be occupied; every other tile on
// the path must be walkable and unblocked. Diagonal steps may not cut a
// corner past unwalkable terrain. If the budget of node expansions runs out
// the search fails and dst is returned unchanged.
func Find(m Map, start, goal Point, s *Scratch, budget int, dst []Point) ([]Point, bool) {
	w, h := m.Size()
	if !inBounds(start, w, h) || !inBounds(goal, w, h) {
		return dst, false
	}
	if start == goal {
		return dst, true
	}
	if !m.Walkable(goal.X, goal.Y) {
		return dst, false
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	s.prepare(w, h)
	defer s.reset()

	startIdx := start.Y*w + start.X
	goalIdx := goal.Y*w + goal.X
	s.touch(startIdx)
	s.state[startIdx] = cellOpen
	s.g[startIdx] = 0
	s.parent[startIdx] = -1
	hs := heuristic(start.X, start.Y, goal)
	heap.Push(&s.open, openNode{idx: startIdx, f: hs, h: hs})

	expansions := 0
	for s.open.Len() > 0 {
		cur := heap.Pop(&s.open).(openNode)
		if s.state[cur.idx] == cellClosed {
			continue
		}
		if cur.idx == goalIdx {
			return s.walkBack(goalIdx, startIdx, dst), true
		}
		if expansions >= budget {
			return dst, false
		}
		expansions++
		s.state[cur.idx] = cellClosed

		cx, cy := cur.idx%w, cur.idx/w
		for d := 0; d < 8; d++ {
			nx, ny := cx+offX[d], cy+offY[d]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			ni := ny*w + nx
			if s.state[ni] == cellClosed {
				continue
			}
			if !m.Walkable(nx, ny) {
				continue
			}
			if ni != goalIdx && m.Blocked(nx, ny) {
				continue
			}
			if offX[d] != 0 && offY[d] != 0 && (!m.Walkable(nx, cy) || !m.Walkable(cx, ny)) {
				continue
			}
			ng := s.g[cur.idx] + stepCost
			if s.state[ni] == cellOpen && ng >= s.g[ni] {
				continue
			}
			s.touch(ni)
			s.state[ni] = cellOpen
			s.g[ni] = ng
			s.parent[ni] = cur.idx
			nh := heuristic(nx, ny, goal)
			s.seq++
			heap.Push(&s.open, openNode{idx: ni, f: ng + nh, h: nh, seq: s.seq})
		}
	}
	return dst, false
}

func (s *Scratch) walkBack(goalIdx, startIdx int32, dst []Point) []Point {
	base := len(dst)
	for i := goalIdx; i != startIdx; i = s.parent[i] {
		dst = append(dst, Point{X: i % s.width, Y: i / s.width})
	}
	for l, r := base, len(dst)-1; l < r; l, r = l+1, r-1 {
		dst[l], dst[r] = dst[r], dst[l]
	}
	return dst
}

func inBounds(p Point, w, h int32) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h
}
