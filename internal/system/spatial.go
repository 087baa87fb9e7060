package system

import (
	"time"

	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

// InterestStats counts what changed the interest grid since start.
type InterestStats struct {
	Moves           uint64
	DiagonalMoves   uint64
	FloorMoves      uint64
	PlayerCrossings uint64
	CellCrossings   uint64
	Rebuilds        uint64
}

// SpatialSystem rebuilds the interest grid from current positions every
// tick, after all movement has resolved. Phase 3 (PostUpdate), after regen.
type SpatialSystem struct {
	world *world.State
	stats InterestStats
}

func NewSpatialSystem(ws *world.State) *SpatialSystem {
	s := &SpatialSystem{world: ws}
	event.Subscribe(ws.Bus, s.onMoved)
	event.Subscribe(ws.Bus, s.onCellEntered)
	return s
}

func (s *SpatialSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *SpatialSystem) onMoved(ev event.EntityMoved) {
	s.stats.Moves++
	if ev.Diagonal {
		s.stats.DiagonalMoves++
	}
	if ev.FromFloor != ev.ToFloor {
		s.stats.FloorMoves++
	}
}

func (s *SpatialSystem) onCellEntered(ev event.CellEntered) {
	s.stats.CellCrossings++
	if s.world.IsPlayer(ev.EntityID) {
		s.stats.PlayerCrossings++
	}
}

func (s *SpatialSystem) Update(_ time.Duration) {
	s.world.RebuildAOI()
	s.stats.Rebuilds++
}

func (s *SpatialSystem) Stats() InterestStats { return s.stats }
