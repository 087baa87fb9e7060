package component

// Direction is an 8-way heading; DirNone means no movement.
type Direction uint8

const (
	DirNorth Direction = iota
	DirNorthEast
	DirEast
	DirSouthEast
	DirSouth
	DirSouthWest
	DirWest
	DirNorthWest
	DirNone
)

var (
	dirDX = [8]int32{0, 1, 1, 1, 0, -1, -1, -1}
	dirDY = [8]int32{-1, -1, 0, 1, 1, 1, 0, -1}
)

// Delta returns the tile offset for the direction.
func (d Direction) Delta() (int32, int32) {
	if d >= DirNone {
		return 0, 0
	}
	return dirDX[d], dirDY[d]
}

// Diagonal reports whether the step moves on both axes.
func (d Direction) Diagonal() bool {
	return d < DirNone && d%2 == 1
}

// DirectionTo returns the heading of a single-tile offset, or DirNone.
func DirectionTo(dx, dy int32) Direction {
	for i := range dirDX {
		if dirDX[i] == sign(dx) && dirDY[i] == sign(dy) {
			return Direction(i)
		}
	}
	return DirNone
}

func sign(v int32) int32 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// MovementIntent holds at most one queued step. A new request overwrites it.
type MovementIntent struct {
	Dir Direction
}

// Mover carries movement speed in tiles per 100 seconds, roughly.
type Mover struct {
	Speed int
}
