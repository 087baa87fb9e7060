package system

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// TicksPerSecond is the fixed simulation rate.
	TicksPerSecond = 20
	// TickDuration is the game time covered by one tick.
	TickDuration = time.Second / TicksPerSecond

	idleYield     = time.Millisecond
	statsInterval = 30 * TicksPerSecond
)

// Clock is the authoritative tick counter shared by every system.
type Clock struct {
	tick uint64
}

// Now returns the number of the tick currently executing (or last executed).
func (c *Clock) Now() uint64 { return c.tick }

// Step advances the clock by one tick and returns the new tick number.
func (c *Clock) Step() uint64 {
	c.tick++
	return c.tick
}

// LoopStats counts loop health for periodic reporting.
type LoopStats struct {
	Ticks     uint64
	SlowTicks uint64
	MaxCatch  int
	Busiest   time.Duration
}

// Loop drives the Runner with a fixed-timestep accumulator: wall-clock time
// accumulates and whole ticks are executed while at least one tick duration
// is banked. Game time therefore advances at a constant rate no matter how
// irregularly the host schedules us.
type Loop struct {
	runner *Runner
	clock  *Clock
	acc    time.Duration
	now    func() time.Time
	stats  LoopStats
	log    *zap.Logger
}

func NewLoop(runner *Runner, clock *Clock, log *zap.Logger) *Loop {
	return &Loop{
		runner: runner,
		clock:  clock,
		now:    time.Now,
		log:    log,
	}
}

// Stats returns a copy of the loop counters.
func (l *Loop) Stats() LoopStats { return l.stats }

// Advance banks elapsed wall time and runs every tick it pays for. It
// returns the number of ticks executed.
func (l *Loop) Advance(elapsed time.Duration) int {
	if elapsed < 0 {
		elapsed = 0
	}
	l.acc += elapsed
	ran := 0
	for l.acc >= TickDuration {
		l.step()
		l.acc -= TickDuration
		ran++
	}
	if ran > l.stats.MaxCatch {
		l.stats.MaxCatch = ran
	}
	return ran
}

func (l *Loop) step() {
	start := l.now()
	l.clock.Step()
	l.runner.Tick(TickDuration)
	l.stats.Ticks++

	took := l.now().Sub(start)
	if took > l.stats.Busiest {
		l.stats.Busiest = took
	}
	if took > TickDuration {
		l.stats.SlowTicks++
		phase, spent := l.runner.LastTick().Slowest()
		l.log.Warn("tick overran its budget",
			zap.Uint64("tick", l.clock.tick),
			zap.Duration("took", took),
			zap.Stringer("slowest_phase", phase),
			zap.Duration("phase_took", spent),
		)
	}
	if l.stats.Ticks%statsInterval == 0 {
		l.log.Info("loop stats",
			zap.Uint64("ticks", l.stats.Ticks),
			zap.Uint64("slow_ticks", l.stats.SlowTicks),
			zap.Int("max_catch_up", l.stats.MaxCatch),
			zap.Duration("busiest", l.stats.Busiest),
		)
		l.stats.MaxCatch = 0
		l.stats.Busiest = 0
	}
}

// Run executes the loop until ctx is cancelled. Between ticks it sleeps
// briefly instead of spinning.
func (l *Loop) Run(ctx context.Context) error {
	last := l.now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		now := l.now()
		l.Advance(now.Sub(last))
		last = now
		if l.acc < TickDuration {
			time.Sleep(idleYield)
		}
	}
}
