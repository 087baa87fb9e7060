package system

import (
	"testing"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/world"
)

// fixedDice replays a sequence of rolls, repeating the last one.
type fixedDice struct {
	vals []float64
	i    int
}

func dice(vals ...float64) *fixedDice { return &fixedDice{vals: vals} }

func (d *fixedDice) Float64() float64 {
	v := d.vals[d.i]
	if d.i < len(d.vals)-1 {
		d.i++
	}
	return v
}

type fixture struct {
	t     *testing.T
	cfg   *config.Config
	world *world.State
	clock *coresys.Clock
	log   *zap.Logger
	peers uint32
}

func newFixture(t *testing.T, w, h int32) *fixture {
	t.Helper()
	grid := data.NewGrid(w, h, 2, 0)
	grid.Fill(0, data.Tile{GroundID: 1, Flags: data.TileWalkable})
	grid.Fill(1, data.Tile{GroundID: 1, Flags: data.TileWalkable})
	cfg := config.Defaults()
	cfg.World.StartX, cfg.World.StartY = 1, 1
	clock := &coresys.Clock{}
	ws := world.NewState(grid, clock, event.NewBus(), world.Options{
		CellSize:   cfg.World.CellSize,
		TilePixels: cfg.World.TilePixels,
		ViewRangeX: cfg.World.ViewRangeX,
		ViewRangeY: cfg.World.ViewRangeY,
	})
	return &fixture{t: t, cfg: cfg, world: ws, clock: clock, log: zap.NewNop()}
}

func (f *fixture) player(x, y int32) ecs.EntityID {
	f.t.Helper()
	f.peers++
	var skills component.SkillSet
	for i := range skills.Skills {
		skills.Skills[i].Level = 10
		skills.Multiplier[i] = 1.1
	}
	id, err := f.world.CreatePlayer(world.PlayerSpawn{
		PeerID: f.peers,
		X:      x, Y: y,
		Speed: 220,
		Combat: component.CombatProfile{
			WeaponAttack: 20,
			WeaponRange:  1,
			WeaponSkill:  component.SkillSword,
		},
		Skills: skills,
		Stats:  component.Stats{Level: 1, HP: 150, MaxHP: 150, MP: 50, MaxMP: 50},
	})
	if err != nil {
		f.t.Fatalf("CreatePlayer: %v", err)
	}
	pos, _ := f.world.Positions.Get(id)
	if pos.X != x || pos.Y != y {
		f.t.Fatalf("player placed at (%d,%d), want (%d,%d)", pos.X, pos.Y, x, y)
	}
	return id
}

func (f *fixture) template(mut func(*data.CreatureTemplate)) *data.CreatureTemplate {
	f.t.Helper()
	tpl := &data.CreatureTemplate{
		ID:         7,
		Name:       "wolf",
		HP:         40,
		AttackMin:  2,
		AttackMax:  6,
		Behavior:   "melee",
		Aggressive: true,
		LookRange:  3,
		ChaseRange: 12,
		Experience: 150,
	}
	if mut != nil {
		mut(tpl)
	}
	if err := data.NewCreatureTable().Add(tpl); err != nil {
		f.t.Fatalf("template: %v", err)
	}
	return tpl
}

func (f *fixture) creature(tpl *data.CreatureTemplate, x, y int32) ecs.EntityID {
	f.t.Helper()
	if !f.world.CanStand(0, x, y, 0) {
		f.t.Fatalf("tile (%d,%d) not free", x, y)
	}
	return f.world.CreateCreature(tpl, x, y, 0, component.SlotRef{})
}

func (f *fixture) combat(d *fixedDice) *CombatSystem {
	return NewCombatSystem(f.world, f.cfg, d, nil, f.log)
}

func (f *fixture) ai(cs *CombatSystem) *CreatureAISystem {
	return NewCreatureAISystem(f.world, f.cfg.AI, cs, dice(0.5), f.log)
}

// tick advances the clock and rebuilds the spatial index, as the loop does
// around the systems under test.
func (f *fixture) tick() {
	f.clock.Step()
	f.world.RebuildAOI()
}

func (f *fixture) state(id ecs.EntityID) component.AIStateKind {
	ai, ok := f.world.AI.Get(id)
	if !ok {
		f.t.Fatalf("entity %d has no AI state", id)
	}
	return ai.State
}

func (f *fixture) intent(id ecs.EntityID) component.Direction {
	in, ok := f.world.Intents.Get(id)
	if !ok {
		return component.DirNone
	}
	return in.Dir
}

func (f *fixture) setIntent(id ecs.EntityID, dir component.Direction) {
	in, _ := f.world.Intents.Get(id)
	in.Dir = dir
}

func (f *fixture) pos(id ecs.EntityID) component.Position {
	p, _ := f.world.Positions.Get(id)
	return *p
}

func worldSpawn(peer uint32, x, y int32, floor int8) world.PlayerSpawn {
	return world.PlayerSpawn{
		PeerID: 100 + peer,
		X:      x, Y: y, Floor: floor,
		Speed: 220,
		Stats: component.Stats{Level: 1, HP: 150, MaxHP: 150},
	}
}
