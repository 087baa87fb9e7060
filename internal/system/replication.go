package system

import (
	"time"

	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/handler"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
)

// ReplicationSystem sends each in-world peer its view of the tick: floor
// changes, a full snapshot or delta of the visible set, and dirty stats and
// skills. A respawned player's next update is a full snapshot and a level-up
// always pushes stats. Phase 4 (Output), after the spatial rebuild.
type ReplicationSystem struct {
	world    *world.State
	store    *net.SessionStore
	formulas combat.Formulas
	log      *zap.Logger

	floorChanges map[ecs.EntityID]event.FloorChanged
	levelUps     map[ecs.EntityID]int32
	respawned    map[ecs.EntityID]struct{}
	ids          []ecs.EntityID
	snaps        []packet.EntitySnapshot
	fullSent     uint64
	deltaSent    uint64
}

func NewReplicationSystem(ws *world.State, store *net.SessionStore, formulas combat.Formulas, log *zap.Logger) *ReplicationSystem {
	if formulas == nil {
		formulas = combat.Standard{}
	}
	s := &ReplicationSystem{
		world:        ws,
		store:        store,
		formulas:     formulas,
		log:          log,
		floorChanges: make(map[ecs.EntityID]event.FloorChanged),
		levelUps:     make(map[ecs.EntityID]int32),
		respawned:    make(map[ecs.EntityID]struct{}),
	}
	event.Subscribe(ws.Bus, s.onFloorChanged)
	event.Subscribe(ws.Bus, func(ev event.LevelUp) {
		if s.world.IsPlayer(ev.EntityID) {
			s.levelUps[ev.EntityID] = ev.Level
		}
	})
	event.Subscribe(ws.Bus, func(ev event.PlayerDied) {
		s.respawned[ev.EntityID] = struct{}{}
	})
	return s
}

func (s *ReplicationSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

// onFloorChanged keeps the latest transition per player for this tick.
func (s *ReplicationSystem) onFloorChanged(ev event.FloorChanged) {
	if !s.world.IsPlayer(ev.EntityID) {
		return
	}
	if prev, ok := s.floorChanges[ev.EntityID]; ok {
		ev.FromFloor = prev.FromFloor
	}
	s.floorChanges[ev.EntityID] = ev
}

func (s *ReplicationSystem) Update(_ time.Duration) {
	tick := uint32(s.world.Tick())
	s.store.ForEach(func(sess *net.Session) {
		if sess.State() == packet.StateInWorld && !sess.IsClosed() {
			s.replicate(sess, tick)
		}
		sess.FlushOutput()
	})
	clear(s.floorChanges)
	clear(s.levelUps)
	clear(s.respawned)
}

func (s *ReplicationSystem) replicate(sess *net.Session, tick uint32) {
	id := sess.EntityID
	if !s.world.ECS.Alive(id) {
		return
	}

	if fc, ok := s.floorChanges[id]; ok {
		sess.Send(packet.FloorChange{
			From: uint8(fc.FromFloor),
			To:   uint8(fc.ToFloor),
			X:    fc.X,
			Y:    fc.Y,
		})
	}

	if _, ok := s.respawned[id]; ok {
		sess.Baseline.Invalidate()
	}

	s.ids = s.world.VisibleTo(s.ids[:0], id)
	s.snaps = s.snaps[:0]
	for _, vid := range s.ids {
		if snap, ok := handler.Snapshot(s.world, vid); ok {
			s.snaps = append(s.snaps, snap)
		}
	}
	msg := sess.Baseline.Next(tick, s.snaps)
	if _, full := msg.(packet.WorldState); full {
		s.fullSent++
	} else {
		s.deltaSent++
	}
	if err := sess.Send(msg); err != nil {
		// the peer never saw this state; diff against nothing next tick
		sess.Baseline.Invalidate()
	}

	if st, ok := s.world.Stats.Get(id); ok {
		if level, up := s.levelUps[id]; up {
			s.log.Debug("level up replicated", zap.String("player", sess.Name), zap.Int32("level", level))
			st.Dirty = true
		}
		if st.Dirty {
			sess.Send(handler.StatsMessage(st))
			st.Dirty = false
		}
	}
	if sk, ok := s.world.Skills.Get(id); ok && sk.Dirty {
		sess.Send(handler.SkillsMessage(s.formulas, sk))
		sk.Dirty = false
	}
}

// Sent returns how many full snapshots and deltas went out since start.
func (s *ReplicationSystem) Sent() (full, delta uint64) { return s.fullSent, s.deltaSent }
