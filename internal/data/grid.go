package data

// TileFlags describe static terrain properties.
type TileFlags uint8

const (
	TileWalkable TileFlags = 1 << iota
	TileBlocksProjectile
	TileStairUp   // leads to floor+1
	TileStairDown // leads to floor-1
	TileRope      // climbs to floor+1
)

// FloorTransition reports the floor delta a tile leads to (0 if none).
func (f TileFlags) FloorTransition() int8 {
	switch {
	case f&(TileStairUp|TileRope) != 0:
		return 1
	case f&TileStairDown != 0:
		return -1
	}
	return 0
}

// Tile is one cell of the static map.
type Tile struct {
	GroundID uint16
	Flags    TileFlags
}

// Grid is the 3-D terrain: Floors stacked layers of Width×Height tiles.
// Floor indices run from 0 (lowest) to Floors-1.
type Grid struct {
	Width       int32
	Height      int32
	Floors      int8
	GroundFloor int8
	tiles       []Tile // [floor][y][x] flattened
}

func NewGrid(width, height int32, floors, groundFloor int8) *Grid {
	return &Grid{
		Width:       width,
		Height:      height,
		Floors:      floors,
		GroundFloor: groundFloor,
		tiles:       make([]Tile, int(width)*int(height)*int(floors)),
	}
}

// In checks if coordinates are within the grid.
func (g *Grid) In(x, y int32, floor int8) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height && floor >= 0 && floor < g.Floors
}

func (g *Grid) index(x, y int32, floor int8) int {
	return (int(floor)*int(g.Height)+int(y))*int(g.Width) + int(x)
}

// At returns the tile, or the zero (unwalkable) tile when out of bounds.
func (g *Grid) At(x, y int32, floor int8) Tile {
	if !g.In(x, y, floor) {
		return Tile{}
	}
	return g.tiles[g.index(x, y, floor)]
}

func (g *Grid) Set(x, y int32, floor int8, t Tile) {
	if g.In(x, y, floor) {
		g.tiles[g.index(x, y, floor)] = t
	}
}

// Fill sets every tile of a floor.
func (g *Grid) Fill(floor int8, t Tile) {
	if floor < 0 || floor >= g.Floors {
		return
	}
	layer := g.Floor(floor)
	for i := range layer {
		layer[i] = t
	}
}

func (g *Grid) Walkable(x, y int32, floor int8) bool {
	return g.At(x, y, floor).Flags&TileWalkable != 0
}

// Floor returns the row-major tiles of one floor. The slice aliases the grid.
func (g *Grid) Floor(floor int8) []Tile {
	n := int(g.Width) * int(g.Height)
	start := int(floor) * n
	return g.tiles[start : start+n]
}
