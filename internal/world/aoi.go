package world

import "github.com/tilerealm/server/internal/core/ecs"

// AOIGrid is a uniform cell index over tile coordinates, rebuilt from
// scratch every tick. A query returns everything in the 3x3 cells around
// the observer's cell; floor and range refinement is left to the caller.
// Accessed only from the game loop goroutine, no locks.
type AOIGrid struct {
	cellSize int32
	cells    map[cellKey][]ecs.EntityID
	lastCell map[ecs.EntityID]cellKey
	seen     map[ecs.EntityID]cellKey
}

type cellKey struct {
	cx, cy int32
}

func NewAOIGrid(cellSize int32) *AOIGrid {
	if cellSize <= 0 {
		cellSize = 32
	}
	return &AOIGrid{
		cellSize: cellSize,
		cells:    make(map[cellKey][]ecs.EntityID),
		lastCell: make(map[ecs.EntityID]cellKey),
		seen:     make(map[ecs.EntityID]cellKey),
	}
}

func (g *AOIGrid) CellSize() int32 { return g.cellSize }

// toCellCoord floors toward negative infinity so -1 lands in cell -1.
func (g *AOIGrid) toCellCoord(v int32) int32 {
	if v < 0 {
		return (v - g.cellSize + 1) / g.cellSize
	}
	return v / g.cellSize
}

// CellOf returns the cell coordinates of a tile.
func (g *AOIGrid) CellOf(x, y int32) (int32, int32) {
	return g.toCellCoord(x), g.toCellCoord(y)
}

// Reset empties every cell while keeping the backing slices.
func (g *AOIGrid) Reset() {
	for k, v := range g.cells {
		g.cells[k] = v[:0]
	}
	clear(g.seen)
}

// Insert places an entity during a rebuild. It reports whether the entity
// is in a different cell than after the previous rebuild (or is new).
func (g *AOIGrid) Insert(id ecs.EntityID, x, y int32) bool {
	k := cellKey{cx: g.toCellCoord(x), cy: g.toCellCoord(y)}
	g.cells[k] = append(g.cells[k], id)
	g.seen[id] = k
	prev, ok := g.lastCell[id]
	return !ok || prev != k
}

// Commit finishes a rebuild: entities not inserted since Reset are forgotten.
func (g *AOIGrid) Commit() {
	g.lastCell, g.seen = g.seen, g.lastCell
}

// Nearby appends all entities in the 3x3 neighbourhood of the tile's cell
// to dst and returns it. Order is deterministic: cells row by row, then
// insertion order inside each cell.
func (g *AOIGrid) Nearby(dst []ecs.EntityID, x, y int32) []ecs.EntityID {
	cx := g.toCellCoord(x)
	cy := g.toCellCoord(y)
	for dy := int32(-1); dy <= 1; dy++ {
		for dx := int32(-1); dx <= 1; dx++ {
			dst = append(dst, g.cells[cellKey{cx: cx + dx, cy: cy + dy}]...)
		}
	}
	return dst
}

// Count returns the number of indexed entities.
func (g *AOIGrid) Count() int { return len(g.lastCell) }
