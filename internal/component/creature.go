package component

import "github.com/tilerealm/server/internal/core/ecs"

// Behavior is the creature's combat profile class.
type Behavior uint8

const (
	BehaviorMelee Behavior = iota
	BehaviorRanged
	BehaviorFleeing
	BehaviorPassive
)

func ParseBehavior(s string) (Behavior, bool) {
	switch s {
	case "melee", "":
		return BehaviorMelee, true
	case "ranged":
		return BehaviorRanged, true
	case "fleeing":
		return BehaviorFleeing, true
	case "passive":
		return BehaviorPassive, true
	}
	return 0, false
}

// CreatureRuntime is the live stat block of a spawned creature.
type CreatureRuntime struct {
	HP, MaxHP  int32
	MP, MaxMP  int32
	AttackMin  int32
	AttackMax  int32
	Range      int32
	Armor      int32
	Defense    int32
	Behavior   Behavior
	Aggressive bool
	LookRange  int32
	ChaseRange int32
	FleeHP     float64
	Experience int64
	AttackRate int

	SpawnX, SpawnY int32
	SpawnFloor     int8
}

// SlotRef identifies a spawn slot: spawn point index and slot within it.
type SlotRef struct {
	Point int
	Slot  int
}

// CreatureTag marks an entity as a creature of the given template.
type CreatureTag struct {
	TemplateID uint16
	Slot       SlotRef
}

// PeerLink links a player entity to its network session. The session itself
// lives in net/.
type PeerLink struct {
	PeerID uint32
}

// CombatProfile is the player's attack state and equipment summary.
type CombatProfile struct {
	Target         ecs.EntityID
	AttackCooldown int
	WeaponAttack   int32
	WeaponRange    int32
	WeaponSkill    SkillCategory
	ShieldDefense  int32
	Armor          int32
}

// Corpse marks a dead creature. It keeps its position for replication but no
// longer blocks, moves or thinks.
type Corpse struct {
	DiedAt uint64
}
