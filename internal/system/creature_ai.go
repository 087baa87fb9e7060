package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/pathfind"
	"github.com/tilerealm/server/internal/world"
)

// CreatureAISystem runs the creature state machine and turns its decisions
// into movement intents. Attacks themselves are resolved by CombatSystem.
// Phase 1 (PreUpdate).
type CreatureAISystem struct {
	world  *world.State
	paths  *pathfind.Cache
	combat *CombatSystem
	dice   combat.Dice
	cfg    config.AIConfig
	log    *zap.Logger
	query  *ecs.Query3[component.AIState, component.CreatureRuntime, component.Position]
	view   creatureView
}

func NewCreatureAISystem(ws *world.State, cfg config.AIConfig, cs *CombatSystem, dice combat.Dice, log *zap.Logger) *CreatureAISystem {
	s := &CreatureAISystem{
		world:  ws,
		paths:  pathfind.NewCache(cfg.PathTTLTicks, cfg.PathBudget),
		combat: cs,
		dice:   dice,
		cfg:    cfg,
		log:    log,
		query:  ecs.NewQuery3(ws.ECS, ws.AI, ws.Creatures, ws.Positions, ecs.Without(ws.Corpses)),
		view:   creatureView{world: ws},
	}
	event.Subscribe(ws.Bus, func(e event.CreatureDied) {
		s.paths.Invalidate(e.EntityID)
	})
	return s
}

func (s *CreatureAISystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

// Paths exposes the path cache for inspection.
func (s *CreatureAISystem) Paths() *pathfind.Cache { return s.paths }

func (s *CreatureAISystem) Update(_ time.Duration) {
	s.query.Each(s.think)
}

func (s *CreatureAISystem) think(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	if rt.HP <= 0 {
		s.combat.KillCreature(id, 0)
		return
	}
	if ai.AttackCooldown > 0 {
		ai.AttackCooldown--
	}
	ai.Timer++

	switch ai.State {
	case component.AIIdle:
		s.idle(id, ai, rt, pos)
	case component.AIAlert:
		if ai.Timer >= s.cfg.AlertDelayTicks {
			s.enter(id, ai, component.AIChase)
		}
	case component.AIChase:
		s.chase(id, ai, rt, pos)
	case component.AIAttack:
		s.attack(id, ai, rt, pos)
	case component.AIFlee:
		s.flee(id, ai, rt, pos)
	case component.AIReturn:
		s.goHome(id, ai, rt, pos)
	}
}

// enter switches state, resetting the state timer. Leaving Chase drops the
// cached path.
func (s *CreatureAISystem) enter(id ecs.EntityID, ai *component.AIState, next component.AIStateKind) {
	if ai.State == component.AIChase || ai.State == component.AIReturn || next == component.AIReturn {
		s.paths.Invalidate(id)
	}
	ai.State = next
	ai.Timer = 0
}

func (s *CreatureAISystem) chaseRange(rt *component.CreatureRuntime) int32 {
	if rt.ChaseRange > 0 {
		return rt.ChaseRange
	}
	return int32(s.cfg.DefaultChaseRange)
}

// acquire returns the nearest player within look range, if any.
func (s *CreatureAISystem) acquire(rt *component.CreatureRuntime, pos *component.Position) (ecs.EntityID, bool) {
	if !rt.Aggressive || rt.Behavior == component.BehaviorPassive || rt.LookRange <= 0 {
		return 0, false
	}
	id, _, ok := s.world.NearestPlayer(pos.X, pos.Y, pos.Floor, rt.LookRange)
	return id, ok
}

// targetDistance returns the Chebyshev distance to a live same-floor target.
func (s *CreatureAISystem) targetDistance(target ecs.EntityID, pos *component.Position) (int32, *component.Position, bool) {
	if !s.world.IsPlayer(target) || !s.world.ECS.Alive(target) {
		return 0, nil, false
	}
	tpos, ok := s.world.Positions.Get(target)
	if !ok || tpos.Floor != pos.Floor {
		return 0, nil, false
	}
	return world.Chebyshev(pos.X, pos.Y, tpos.X, tpos.Y), tpos, true
}

// retarget keeps the current target if it is still chaseable, otherwise
// opportunistically picks another player in look range.
func (s *CreatureAISystem) retarget(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) (int32, *component.Position, bool) {
	if d, tpos, ok := s.targetDistance(ai.Target, pos); ok && d <= s.chaseRange(rt) {
		return d, tpos, true
	}
	if next, ok := s.acquire(rt, pos); ok {
		if next != ai.Target {
			s.paths.Invalidate(id)
		}
		ai.Target = next
		return s.targetDistance(next, pos)
	}
	s.paths.Invalidate(id)
	ai.Target = 0
	return 0, nil, false
}

func (s *CreatureAISystem) idle(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	if target, ok := s.acquire(rt, pos); ok {
		ai.Target = target
		s.clearIntent(id)
		s.enter(id, ai, component.AIAlert)
		return
	}
	if ai.WanderCooldown > 0 {
		ai.WanderCooldown--
		return
	}
	if pos.Moving() {
		return
	}
	ai.WanderCooldown = s.cfg.WanderCooldownTicks
	radius := int32(s.cfg.WanderRadius)
	dir := component.Direction(combat.Intn(s.dice, 8))
	dx, dy := dir.Delta()
	nx, ny := pos.X+dx, pos.Y+dy
	if world.Chebyshev(nx, ny, rt.SpawnX, rt.SpawnY) > radius {
		return
	}
	if !s.viewFor(id, pos).Walkable(nx, ny) {
		return
	}
	s.setIntent(id, dir)
}

func (s *CreatureAISystem) chase(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	d, tpos, ok := s.retarget(id, ai, rt, pos)
	if !ok {
		s.clearIntent(id)
		s.enter(id, ai, component.AIReturn)
		return
	}
	if d <= attackRange(rt) {
		s.clearIntent(id)
		s.enter(id, ai, component.AIAttack)
		return
	}
	s.stepToward(id, pos, pathfind.Point{X: tpos.X, Y: tpos.Y})
}

func (s *CreatureAISystem) attack(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	if rt.Behavior == component.BehaviorFleeing && rt.MaxHP > 0 &&
		float64(rt.HP)/float64(rt.MaxHP) < rt.FleeHP {
		s.enter(id, ai, component.AIFlee)
		return
	}
	d, _, ok := s.retarget(id, ai, rt, pos)
	if !ok || d > attackRange(rt) {
		s.enter(id, ai, component.AIChase)
	}
}

func (s *CreatureAISystem) flee(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	d, tpos, ok := s.targetDistance(ai.Target, pos)
	if !ok || d > s.chaseRange(rt) {
		ai.Target = 0
		s.clearIntent(id)
		s.enter(id, ai, component.AIReturn)
		return
	}
	if pos.Moving() {
		return
	}
	view := s.viewFor(id, pos)
	best := component.DirNone
	bestDist := d
	for dir := component.DirNorth; dir < component.DirNone; dir++ {
		if !CanStep(s.world, id, pos, dir) {
			continue
		}
		dx, dy := dir.Delta()
		if !view.Walkable(pos.X+dx, pos.Y+dy) {
			continue
		}
		if nd := world.Chebyshev(pos.X+dx, pos.Y+dy, tpos.X, tpos.Y); nd > bestDist {
			best, bestDist = dir, nd
		}
	}
	s.setIntent(id, best)
}

func (s *CreatureAISystem) goHome(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	if pos.Floor == rt.SpawnFloor && world.Chebyshev(pos.X, pos.Y, rt.SpawnX, rt.SpawnY) <= 1 {
		s.clearIntent(id)
		s.enter(id, ai, component.AIIdle)
		return
	}
	s.stepToward(id, pos, pathfind.Point{X: rt.SpawnX, Y: rt.SpawnY})
}

// stepToward asks the path cache for the next single step toward goal.
func (s *CreatureAISystem) stepToward(id ecs.EntityID, pos *component.Position, goal pathfind.Point) {
	if pos.Moving() {
		return
	}
	from := pathfind.Point{X: pos.X, Y: pos.Y}
	next, ok := s.paths.NextStep(id, s.viewFor(id, pos), from, goal, s.world.Tick())
	if !ok {
		s.clearIntent(id)
		return
	}
	s.setIntent(id, component.DirectionTo(next.X-from.X, next.Y-from.Y))
}

func (s *CreatureAISystem) viewFor(id ecs.EntityID, pos *component.Position) *creatureView {
	s.view.floor = pos.Floor
	s.view.self = id
	return &s.view
}

func (s *CreatureAISystem) setIntent(id ecs.EntityID, dir component.Direction) {
	if intent, ok := s.world.Intents.Get(id); ok {
		intent.Dir = dir
	}
}

func (s *CreatureAISystem) clearIntent(id ecs.EntityID) {
	s.setIntent(id, component.DirNone)
}

// creatureView is the pathfinding view of one floor for one creature.
// Stairs and ropes count as walls so creatures stay on their floor.
type creatureView struct {
	world *world.State
	floor int8
	self  ecs.EntityID
}

func (v *creatureView) Size() (int32, int32) {
	return v.world.Grid.Width, v.world.Grid.Height
}

func (v *creatureView) Walkable(x, y int32) bool {
	t := v.world.Grid.At(x, y, v.floor)
	return t.Flags.FloorTransition() == 0 && v.world.Grid.Walkable(x, y, v.floor)
}

func (v *creatureView) Blocked(x, y int32) bool {
	return v.world.IsOccupied(v.floor, x, y, v.self)
}
