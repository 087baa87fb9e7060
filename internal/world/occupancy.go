package world

import "github.com/tilerealm/server/internal/core/ecs"

// tileKey uniquely identifies a tile in the world (floor + coordinates).
type tileKey struct {
	Floor int8
	X, Y  int32
}

// Occupancy maps tiles to the single blocking entity standing on them.
// Players and creatures both block; corpses do not.
type Occupancy struct {
	tiles map[tileKey]ecs.EntityID
}

func NewOccupancy() *Occupancy {
	return &Occupancy{tiles: make(map[tileKey]ecs.EntityID)}
}

// Occupy claims a tile. It fails if another entity already holds it.
func (o *Occupancy) Occupy(floor int8, x, y int32, id ecs.EntityID) bool {
	k := tileKey{Floor: floor, X: x, Y: y}
	if cur, ok := o.tiles[k]; ok && cur != id {
		return false
	}
	o.tiles[k] = id
	return true
}

// Vacate releases a tile if id holds it.
func (o *Occupancy) Vacate(floor int8, x, y int32, id ecs.EntityID) {
	k := tileKey{Floor: floor, X: x, Y: y}
	if o.tiles[k] == id {
		delete(o.tiles, k)
	}
}

// Move vacates the old tile and claims the new one. On conflict nothing changes.
func (o *Occupancy) Move(fromFloor int8, fromX, fromY int32, toFloor int8, toX, toY int32, id ecs.EntityID) bool {
	if fromFloor == toFloor && fromX == toX && fromY == toY {
		return true
	}
	if o.IsOccupied(toFloor, toX, toY, id) {
		return false
	}
	o.Vacate(fromFloor, fromX, fromY, id)
	o.tiles[tileKey{Floor: toFloor, X: toX, Y: toY}] = id
	return true
}

// IsOccupied returns true if an entity other than exclude holds the tile.
func (o *Occupancy) IsOccupied(floor int8, x, y int32, exclude ecs.EntityID) bool {
	cur, ok := o.tiles[tileKey{Floor: floor, X: x, Y: y}]
	return ok && cur != exclude
}

// OccupantAt returns the entity on the tile, or 0.
func (o *Occupancy) OccupantAt(floor int8, x, y int32) ecs.EntityID {
	return o.tiles[tileKey{Floor: floor, X: x, Y: y}]
}

func (o *Occupancy) Len() int { return len(o.tiles) }
