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
	"github.com/tilerealm/server/internal/world"
)

// CombatSystem resolves player attacks against their selected target and
// creature attacks issued by the AI Attack state. Phase 2 (Update), before
// movement so attacks use the positions the AI decided on.
type CombatSystem struct {
	world    *world.State
	dice     combat.Dice
	formulas combat.Formulas
	player   config.PlayerConfig
	respawnX int32
	respawnY int32
	respawnZ int8
	log      *zap.Logger

	players   *ecs.Query3[component.CombatProfile, component.Position, component.SkillSet]
	creatures *ecs.Query3[component.AIState, component.CreatureRuntime, component.Position]
}

func NewCombatSystem(ws *world.State, cfg *config.Config, dice combat.Dice, formulas combat.Formulas, log *zap.Logger) *CombatSystem {
	if formulas == nil {
		formulas = combat.Standard{}
	}
	return &CombatSystem{
		world:     ws,
		dice:      dice,
		formulas:  formulas,
		player:    cfg.Player,
		respawnX:  cfg.World.StartX,
		respawnY:  cfg.World.StartY,
		respawnZ:  cfg.World.StartFloor,
		log:       log,
		players:   ecs.NewQuery3(ws.ECS, ws.Combat, ws.Positions, ws.Skills),
		creatures: ecs.NewQuery3(ws.ECS, ws.AI, ws.Creatures, ws.Positions, ecs.Without(ws.Corpses)),
	}
}

func (s *CombatSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *CombatSystem) Update(_ time.Duration) {
	s.players.Each(s.playerAttack)
	s.creatures.Each(s.creatureAttack)
}

func (s *CombatSystem) playerAttack(id ecs.EntityID, prof *component.CombatProfile, pos *component.Position, skills *component.SkillSet) {
	if prof.AttackCooldown > 0 {
		prof.AttackCooldown--
	}
	if prof.Target.IsZero() {
		return
	}
	if !s.world.IsCreature(prof.Target) || !s.world.Targetable(prof.Target) {
		prof.Target = 0
		return
	}
	if prof.AttackCooldown > 0 {
		return
	}
	tpos, _ := s.world.Positions.Get(prof.Target)
	if tpos.Floor != pos.Floor {
		return
	}
	dist := world.Chebyshev(pos.X, pos.Y, tpos.X, tpos.Y)
	weaponRange := prof.WeaponRange
	if weaponRange < 1 {
		weaponRange = 1
	}
	if dist > weaponRange {
		return
	}
	prof.AttackCooldown = s.player.AttackCooldownTicks

	victim, _ := s.world.Creatures.Get(prof.Target)
	var level int32 = 1
	if st, ok := s.world.Stats.Get(id); ok {
		level = st.Level
	}
	skill := skills.Skills[prof.WeaponSkill].Level
	raw := combat.PlayerRoll(s.dice, s.formulas.MeleeMaxDamage(skill, prof.WeaponAttack, level))
	if prof.WeaponSkill == component.SkillDistance {
		raw *= combat.DistanceFactor(dist)
	}
	dmg := combat.Settle(raw, combat.Mitigation(s.dice, victim.Armor, float64(victim.Defense)))
	combat.Train(s.formulas, skills, prof.WeaponSkill)

	victim.HP -= dmg
	if victim.HP <= 0 {
		victim.HP = 0
		s.KillCreature(prof.Target, id)
	}
}

func (s *CombatSystem) creatureAttack(id ecs.EntityID, ai *component.AIState, rt *component.CreatureRuntime, pos *component.Position) {
	if ai.State != component.AIAttack || ai.AttackCooldown > 0 {
		return
	}
	if !s.world.IsPlayer(ai.Target) || !s.world.ECS.Alive(ai.Target) {
		return
	}
	tpos, _ := s.world.Positions.Get(ai.Target)
	if tpos.Floor != pos.Floor {
		return
	}
	dist := world.Chebyshev(pos.X, pos.Y, tpos.X, tpos.Y)
	if dist > attackRange(rt) {
		return
	}
	ai.AttackCooldown = rt.AttackRate

	raw := combat.CreatureRoll(s.dice, rt.AttackMin, rt.AttackMax)
	if rt.Behavior == component.BehaviorRanged && dist > 1 {
		raw *= combat.DistanceFactor(dist)
	}
	prof, _ := s.world.Combat.Get(ai.Target)
	skills, _ := s.world.Skills.Get(ai.Target)
	st, _ := s.world.Stats.Get(ai.Target)
	var shield float64
	if prof != nil && skills != nil {
		shield = combat.PlayerShield(prof.ShieldDefense, skills.Skills[component.SkillShielding].Level)
	}
	var armor int32
	if prof != nil {
		armor = prof.Armor
	}
	dmg := combat.Settle(raw, combat.Mitigation(s.dice, armor, shield))
	if skills != nil {
		combat.Train(s.formulas, skills, component.SkillShielding)
	}
	if st == nil || dmg == 0 {
		return
	}
	st.HP -= dmg
	st.Dirty = true
	if st.HP <= 0 {
		s.killPlayer(ai.Target, id, st, prof)
	}
}

// attackRange is 1 for melee creatures and the template range otherwise.
func attackRange(rt *component.CreatureRuntime) int32 {
	if rt.Behavior == component.BehaviorRanged && rt.Range > 1 {
		return rt.Range
	}
	return 1
}

// KillCreature moves a creature to Dead. It is the only path into Dead and
// is a no-op for a creature that is already dead, so experience is awarded
// at most once.
func (s *CombatSystem) KillCreature(id, killer ecs.EntityID) {
	ai, ok := s.world.AI.Get(id)
	if !ok || ai.State == component.AIDead {
		return
	}
	rt, _ := s.world.Creatures.Get(id)
	tag, _ := s.world.CreatureTags.Get(id)
	ai.State = component.AIDead
	ai.Target = 0
	ai.Timer = 0
	rt.HP = 0

	s.world.Vacate(id)
	s.world.Intents.Remove(id)
	s.world.Movers.Remove(id)
	s.world.Corpses.Add(id, component.Corpse{DiedAt: s.world.Tick()})

	if st, ok := s.world.Stats.Get(killer); ok {
		before := st.Level
		if combat.AddExperience(s.formulas, st, rt.Experience, combat.Growth{
			HPPerLevel: s.player.HPPerLevel,
			MPPerLevel: s.player.MPPerLevel,
		}) > 0 {
			s.log.Debug("level up",
				zap.Uint32("entity", uint32(killer)),
				zap.Int32("from", before),
				zap.Int32("to", st.Level),
			)
			event.Publish(s.world.Bus, event.LevelUp{EntityID: killer, Level: st.Level})
		}
	}
	if prof, ok := s.world.Combat.Get(killer); ok && prof.Target == id {
		prof.Target = 0
	}
	event.Publish(s.world.Bus, event.CreatureDied{
		EntityID:   id,
		Killer:     killer,
		TemplateID: tag.TemplateID,
		Point:      tag.Slot.Point,
		Slot:       tag.Slot.Slot,
	})
}

// killPlayer restores the player at full health at the respawn point.
func (s *CombatSystem) killPlayer(id, killer ecs.EntityID, st *component.Stats, prof *component.CombatProfile) {
	st.HP = st.MaxHP
	st.MP = st.MaxMP
	st.Dirty = true
	if prof != nil {
		prof.Target = 0
		prof.AttackCooldown = 0
	}
	if intent, ok := s.world.Intents.Get(id); ok {
		intent.Dir = component.DirNone
	}
	if x, y, ok := s.world.FindFreeTile(s.respawnX, s.respawnY, s.respawnZ, 8); ok {
		s.world.Teleport(id, x, y, s.respawnZ)
	}
	s.log.Info("player died",
		zap.Uint32("entity", uint32(id)),
		zap.Uint32("killer", uint32(killer)),
	)
	event.Publish(s.world.Bus, event.PlayerDied{EntityID: id, Killer: killer})
}
