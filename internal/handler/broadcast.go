package handler

import (
	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
)

// Snapshot captures one entity for replication.
func Snapshot(ws *world.State, id ecs.EntityID) (packet.EntitySnapshot, bool) {
	pos, ok := ws.Positions.Get(id)
	if !ok {
		return packet.EntitySnapshot{}, false
	}
	px, py := pos.Pixel()
	snap := packet.EntitySnapshot{
		ID:        uint32(id),
		X:         pos.X,
		Y:         pos.Y,
		PX:        px,
		PY:        py,
		Kind:      packet.KindPlayer,
		HPPercent: ws.HPPercent(id),
	}
	if tag, ok := ws.CreatureTags.Get(id); ok {
		snap.Kind = packet.KindCreature
		snap.CreatureType = tag.TemplateID
	}
	return snap, true
}

func StatsMessage(st *component.Stats) packet.StatsUpdate {
	return packet.StatsUpdate{
		Level:      st.Level,
		Experience: st.Experience,
		HP:         st.HP,
		MaxHP:      st.MaxHP,
		MP:         st.MP,
		MaxMP:      st.MaxMP,
	}
}

// SkillsMessage lists every skill in category order with its progress
// toward the next level.
func SkillsMessage(f combat.Formulas, set *component.SkillSet) packet.SkillsUpdate {
	out := packet.SkillsUpdate{Skills: make([]packet.SkillEntry, len(set.Skills))}
	for i, sk := range set.Skills {
		var pct int64
		if need := f.SkillTries(sk.Level, set.Multiplier[i]); need > 0 {
			pct = sk.Tries * 100 / need
		}
		if pct > 99 {
			pct = 99
		}
		out.Skills[i] = packet.SkillEntry{Level: sk.Level, Percent: uint8(pct)}
	}
	return out
}

// MapMessages splits the static map into one packet per floor.
func MapMessages(ws *world.State) []packet.MapData {
	g := ws.Grid
	out := make([]packet.MapData, 0, g.Floors)
	for f := int8(0); f < g.Floors; f++ {
		layer := g.Floor(f)
		m := packet.MapData{
			Width:       uint16(g.Width),
			Height:      uint16(g.Height),
			Floors:      uint8(g.Floors),
			GroundFloor: uint8(g.GroundFloor),
			Floor:       uint8(f),
			GroundIDs:   make([]uint16, len(layer)),
			Flags:       make([]uint8, len(layer)),
		}
		for i, t := range layer {
			m.GroundIDs[i] = t.GroundID
			m.Flags[i] = uint8(t.Flags)
		}
		out = append(out, m)
	}
	return out
}

// BroadcastDisconnected tells every in-world peer that a player left.
func BroadcastDisconnected(store *net.SessionStore, id ecs.EntityID) {
	msg := packet.PlayerDisconnected{EntityID: uint32(id)}
	store.ForEach(func(s *net.Session) {
		if s.State() == packet.StateInWorld && s.EntityID != id {
			s.Send(msg)
		}
	})
}
