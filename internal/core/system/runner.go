package system

import (
	"sort"
	"time"
)

// PhaseTimes is the wall time each phase took during one tick.
type PhaseTimes [NumPhases]time.Duration

// Slowest returns the phase that took longest.
func (pt PhaseTimes) Slowest() (Phase, time.Duration) {
	best := PhaseInput
	for p := PhaseInput; p < NumPhases; p++ {
		if pt[p] > pt[best] {
			best = p
		}
	}
	return best, pt[best]
}

// Runner executes systems in phase order each tick and times every phase.
// Systems sharing a phase run in registration order.
type Runner struct {
	systems []System
	sorted  bool
	last    PhaseTimes
	now     func() time.Time
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		now:     time.Now,
	}
}

func (r *Runner) Register(s System) {
	if p := s.Phase(); p < 0 || p >= NumPhases {
		panic("system: phase out of range: " + p.String())
	}
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Len returns the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.last = PhaseTimes{}
	for _, s := range r.systems {
		start := r.now()
		s.Update(dt)
		r.last[s.Phase()] += r.now().Sub(start)
	}
}

// LastTick returns the phase timings of the most recent Tick.
func (r *Runner) LastTick() PhaseTimes { return r.last }

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
