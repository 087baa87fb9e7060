package system

import (
	"time"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/ecs"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

// RegenSystem restores player HP/MP on each player's own regeneration timer.
// Phase 3 (PostUpdate).
type RegenSystem struct {
	interval int
	hp, mp   int32
	query    *ecs.Query1[component.Stats]
}

func NewRegenSystem(ws *world.State, cfg config.PlayerConfig) *RegenSystem {
	return &RegenSystem{
		interval: max(cfg.RegenIntervalTicks, 1),
		hp:       cfg.RegenHP,
		mp:       cfg.RegenMP,
		query:    ecs.NewQuery1(ws.ECS, ws.Stats),
	}
}

func (s *RegenSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *RegenSystem) Update(_ time.Duration) {
	s.query.Each(func(_ ecs.EntityID, st *component.Stats) {
		if st.HP >= st.MaxHP && st.MP >= st.MaxMP {
			st.RegenTimer = 0
			return
		}
		st.RegenTimer++
		if st.RegenTimer < s.interval {
			return
		}
		st.RegenTimer = 0
		if st.HP < st.MaxHP {
			st.HP = min(st.HP+s.hp, st.MaxHP)
			st.Dirty = true
		}
		if st.MP < st.MaxMP {
			st.MP = min(st.MP+s.mp, st.MaxMP)
			st.Dirty = true
		}
	})
}
