package system

import (
	"testing"

	"github.com/tilerealm/server/internal/component"
	coresys "github.com/tilerealm/server/internal/core/system"
)

func TestSpatialCountsMovesAndCellCrossings(t *testing.T) {
	f := newFixture(t, 40, 40)
	p := f.player(31, 5)
	tpl := f.template(nil)
	f.creature(tpl, 10, 10)
	spatial := NewSpatialSystem(f.world)
	mv := NewMovementSystem(f.world)

	spatial.Update(0)
	if st := spatial.Stats(); st.CellCrossings != 2 || st.PlayerCrossings != 1 {
		t.Fatalf("first rebuild = %+v, want both entities entering", st)
	}

	f.setIntent(p, component.DirSouthEast)
	mv.Update(coresys.TickDuration)
	spatial.Update(0)
	st := spatial.Stats()
	if st.Moves != 1 || st.DiagonalMoves != 1 || st.FloorMoves != 0 {
		t.Fatalf("moves = %+v", st)
	}
	if st.CellCrossings != 3 || st.PlayerCrossings != 2 || st.Rebuilds != 2 {
		t.Fatalf("crossings = %+v, want the player in a new cell", st)
	}

	spatial.Update(0)
	if got := spatial.Stats(); got.CellCrossings != 3 {
		t.Fatalf("standing still crossed cells: %+v", got)
	}
}
