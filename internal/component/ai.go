package component

import "github.com/tilerealm/server/internal/core/ecs"

// AIStateKind enumerates the creature state machine states.
type AIStateKind uint8

const (
	AIIdle AIStateKind = iota
	AIAlert
	AIChase
	AIAttack
	AIFlee
	AIReturn
	AIDead
)

func (s AIStateKind) String() string {
	switch s {
	case AIIdle:
		return "Idle"
	case AIAlert:
		return "Alert"
	case AIChase:
		return "Chase"
	case AIAttack:
		return "Attack"
	case AIFlee:
		return "Flee"
	case AIReturn:
		return "Return"
	case AIDead:
		return "Dead"
	}
	return "Unknown"
}

// AIState is the per-creature state machine record.
type AIState struct {
	State          AIStateKind
	Target         ecs.EntityID
	Timer          int
	AttackCooldown int
	WanderCooldown int
}
