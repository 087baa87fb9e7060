package system

import "time"

// Phase orders systems within one tick. Lower phases run first.
type Phase int

const (
	PhaseInput      Phase = iota // drain peer frames, dispatch handlers
	PhasePreUpdate               // creature AI decisions
	PhaseUpdate                  // combat, movement, spawns
	PhasePostUpdate              // regen, spatial index rebuild
	PhaseOutput                  // snapshots and deltas
	PhasePersist                 // audit batches
	PhaseCleanup                 // deferred entity destruction
	NumPhases
)

var phaseNames = [NumPhases]string{"input", "pre-update", "update", "post-update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p < 0 || p >= NumPhases {
		return "unknown"
	}
	return phaseNames[p]
}

// System is one stage of the tick pipeline.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
