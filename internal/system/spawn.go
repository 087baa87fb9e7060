package system

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/data"
	"github.com/tilerealm/server/internal/world"
)

// SpawnSlot holds either one live creature or a pending respawn countdown.
// Corpse is the dead creature's entity, destroyed when the countdown ends.
type SpawnSlot struct {
	Live   ecs.EntityID
	Corpse ecs.EntityID
	Timer  int
}

type spawnPoint struct {
	entry        data.SpawnEntry
	tpl          *data.CreatureTemplate
	respawnTicks int
	slots        []SpawnSlot
}

// SpawnSystem keeps spawn points populated: death starts a slot's respawn
// timer, expiry clears the corpse and places a fresh creature near the
// point. Phase 2 (Update), after movement.
type SpawnSystem struct {
	world    *world.State
	points   []*spawnPoint
	dice     combat.Dice
	retry    int
	attempts int
	log      *zap.Logger
}

func NewSpawnSystem(ws *world.State, creatures *data.CreatureTable, entries []data.SpawnEntry, cfg config.SpawnConfig, dice combat.Dice, log *zap.Logger) (*SpawnSystem, error) {
	s := &SpawnSystem{
		world:    ws,
		dice:     dice,
		retry:    max(cfg.RetryTicks, 1),
		attempts: max(cfg.PlacementAttempts, 1),
		log:      log,
	}
	for i, e := range entries {
		tpl := creatures.ByName(e.Creature)
		if tpl == nil {
			return nil, fmt.Errorf("spawn %d: unknown creature %q", i, e.Creature)
		}
		if e.Count <= 0 {
			e.Count = 1
		}
		s.points = append(s.points, &spawnPoint{
			entry:        e,
			tpl:          tpl,
			respawnTicks: max(e.RespawnDelay*coresys.TicksPerSecond, 1),
			slots:        make([]SpawnSlot, e.Count),
		})
	}
	event.Subscribe(ws.Bus, s.onCreatureDied)
	return s, nil
}

func (s *SpawnSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

// Populate fills every empty slot immediately. Called once at boot.
func (s *SpawnSystem) Populate() int {
	placed := 0
	for pi, p := range s.points {
		for si := range p.slots {
			if p.slots[si].Live.IsZero() && s.place(pi, si) {
				placed++
			}
		}
	}
	return placed
}

func (s *SpawnSystem) Update(_ time.Duration) {
	for pi, p := range s.points {
		for si := range p.slots {
			slot := &p.slots[si]
			if !slot.Live.IsZero() {
				continue
			}
			slot.Timer--
			if slot.Timer > 0 {
				continue
			}
			if !slot.Corpse.IsZero() {
				s.world.RemoveLater(slot.Corpse)
				slot.Corpse = 0
			}
			s.place(pi, si)
		}
	}
}

// place spawns the point's creature into a slot. On failure the slot is
// rescheduled after the retry delay.
func (s *SpawnSystem) place(pi, si int) bool {
	p := s.points[pi]
	slot := &p.slots[si]
	e := p.entry
	for attempt := 0; attempt < s.attempts; attempt++ {
		x, y := e.X, e.Y
		if attempt > 0 && e.Radius > 0 {
			span := int(2*e.Radius + 1)
			x += int32(combat.Intn(s.dice, span)) - e.Radius
			y += int32(combat.Intn(s.dice, span)) - e.Radius
		}
		if !s.world.CanStand(e.Floor, x, y, 0) {
			continue
		}
		if s.world.Grid.At(x, y, e.Floor).Flags.FloorTransition() != 0 {
			continue
		}
		slot.Live = s.world.CreateCreature(p.tpl, x, y, e.Floor, component.SlotRef{Point: pi, Slot: si})
		slot.Timer = 0
		return true
	}
	slot.Timer = s.retry
	s.log.Warn("spawn placement failed",
		zap.String("creature", p.tpl.Name),
		zap.Int("point", pi),
		zap.Int("slot", si),
		zap.Int32("x", e.X),
		zap.Int32("y", e.Y),
		zap.Int8("floor", e.Floor),
		zap.Int("retry_ticks", s.retry),
	)
	return false
}

func (s *SpawnSystem) onCreatureDied(e event.CreatureDied) {
	if e.Point < 0 || e.Point >= len(s.points) {
		return
	}
	p := s.points[e.Point]
	if e.Slot < 0 || e.Slot >= len(p.slots) {
		return
	}
	slot := &p.slots[e.Slot]
	if slot.Live != e.EntityID {
		return
	}
	slot.Live = 0
	slot.Corpse = e.EntityID
	slot.Timer = p.respawnTicks
}

// Slot returns a copy of one slot's state.
func (s *SpawnSystem) Slot(point, slot int) SpawnSlot {
	return s.points[point].slots[slot]
}

// LiveCount returns the number of slots holding a live creature.
func (s *SpawnSystem) LiveCount() int {
	n := 0
	for _, p := range s.points {
		for _, slot := range p.slots {
			if !slot.Live.IsZero() {
				n++
			}
		}
	}
	return n
}
