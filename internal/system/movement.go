package system

import (
	"math"
	"time"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

// baseStepTime is the duration of a straight step at speed 100.
const baseStepTime = time.Second

// StepDuration derives how long one tile transition takes at speed.
// Diagonal steps cost √2 as much.
func StepDuration(speed int, diagonal bool) time.Duration {
	if speed <= 0 {
		speed = 100
	}
	d := float64(baseStepTime) * 100 / float64(speed)
	if diagonal {
		d *= math.Sqrt2
	}
	return time.Duration(d)
}

// MovementSystem applies queued single-step intents against terrain and
// occupancy, resolves stair/rope floor changes, and advances in-flight
// interpolation. Phase 2 (Update), after combat.
type MovementSystem struct {
	world *world.State
	query *ecs.Query3[component.Position, component.MovementIntent, component.Mover]
}

func NewMovementSystem(ws *world.State) *MovementSystem {
	return &MovementSystem{
		world: ws,
		query: ecs.NewQuery3(ws.ECS, ws.Positions, ws.Intents, ws.Movers),
	}
}

func (s *MovementSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MovementSystem) Update(dt time.Duration) {
	s.query.Each(func(id ecs.EntityID, pos *component.Position, intent *component.MovementIntent, mover *component.Mover) {
		if pos.Moving() {
			if pos.StepDuration <= 0 {
				pos.Progress = 1
			} else {
				pos.Progress += float64(dt) / float64(pos.StepDuration)
			}
			if pos.Progress < 1 {
				return
			}
			pos.Progress = 1
			pos.PrevPX, pos.PrevPY = pos.TargetPX, pos.TargetPY
		}
		if intent.Dir == component.DirNone {
			return
		}
		dir := intent.Dir
		intent.Dir = component.DirNone
		s.step(id, pos, dir, mover.Speed)
	})
}

// CanStep reports whether a single step in dir is legal from pos: the
// destination must be walkable and free, and a diagonal may not squeeze
// between two unwalkable orthogonal tiles.
func CanStep(ws *world.State, id ecs.EntityID, pos *component.Position, dir component.Direction) bool {
	dx, dy := dir.Delta()
	if dx == 0 && dy == 0 {
		return false
	}
	nx, ny := pos.X+dx, pos.Y+dy
	if !ws.CanStand(pos.Floor, nx, ny, id) {
		return false
	}
	if dir.Diagonal() && (!ws.Grid.Walkable(nx, pos.Y, pos.Floor) || !ws.Grid.Walkable(pos.X, ny, pos.Floor)) {
		return false
	}
	return true
}

func (s *MovementSystem) step(id ecs.EntityID, pos *component.Position, dir component.Direction, speed int) {
	if !CanStep(s.world, id, pos, dir) {
		return
	}
	dx, dy := dir.Delta()
	nx, ny := pos.X+dx, pos.Y+dy
	floor := pos.Floor

	// Stairs and ropes carry the mover to the adjacent floor when the tile
	// there is free; otherwise the mover just stands on the stair tile.
	if delta := s.world.Grid.At(nx, ny, floor).Flags.FloorTransition(); delta != 0 {
		nf := floor + delta
		if s.world.Grid.In(nx, ny, nf) && s.world.CanStand(nf, nx, ny, id) {
			floor = nf
		}
	}

	if !s.world.MoveOccupant(id, pos, nx, ny, floor) {
		return
	}
	from := *pos
	pos.X, pos.Y, pos.Floor = nx, ny, floor
	pos.PrevPX, pos.PrevPY = pos.TargetPX, pos.TargetPY
	pos.TargetPX, pos.TargetPY = s.world.PixelOf(nx, ny)
	pos.Progress = 0
	pos.StepDuration = StepDuration(speed, dir.Diagonal())

	if floor != from.Floor {
		event.Publish(s.world.Bus, event.FloorChanged{
			EntityID:  id,
			FromFloor: from.Floor,
			ToFloor:   floor,
			X:         nx,
			Y:         ny,
		})
	}
	event.Publish(s.world.Bus, event.EntityMoved{
		EntityID:  id,
		FromX:     from.X,
		FromY:     from.Y,
		FromFloor: from.Floor,
		ToX:       nx,
		ToY:       ny,
		ToFloor:   floor,
		Diagonal:  dir.Diagonal(),
	})
}
