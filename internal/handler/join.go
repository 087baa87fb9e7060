package handler

import (
	"fmt"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
)

// startingSkillLevel is the level every weapon and shielding skill begins at.
const startingSkillLevel = 10

// HandleJoin processes C_JOIN: spawns the player near the start position and
// sends the join burst. Packet order: JoinAccepted → MapData per floor →
// StatsUpdate → SkillsUpdate. The first world update that follows is always
// a full snapshot.
func HandleJoin(sess *net.Session, msg packet.JoinRequest, deps *Deps) {
	name := net.NormalizeName(msg.Name)
	if name == "" {
		name = fmt.Sprintf("wanderer-%d", sess.ID)
	}

	id, err := deps.World.CreatePlayer(NewPlayerSpawn(deps.Config, sess.ID))
	if err != nil {
		deps.Log.Warn("join rejected", zap.Uint32("peer", sess.ID), zap.Error(err))
		sess.KickReason = "no spawn tile"
		sess.Close()
		return
	}

	sess.EntityID = id
	sess.Name = name
	sess.SetState(packet.StateInWorld)
	sess.Baseline.Invalidate()

	deps.Log.Info("player joined",
		zap.Uint32("peer", sess.ID),
		zap.Uint32("entity", uint32(id)),
		zap.String("name", name),
		zap.Uint8("version", sess.Codec.Version()),
	)

	sess.Send(packet.JoinAccepted{
		EntityID: uint32(id),
		Tick:     uint32(deps.World.Tick()),
		Version:  sess.Codec.Version(),
	})
	for _, m := range MapMessages(deps.World) {
		sess.Send(m)
	}
	if st, ok := deps.World.Stats.Get(id); ok {
		sess.Send(StatsMessage(st))
		st.Dirty = false
	}
	if sk, ok := deps.World.Skills.Get(id); ok {
		sess.Send(SkillsMessage(deps.Formulas, sk))
		sk.Dirty = false
	}

	event.Publish(deps.World.Bus, event.PeerConnected{PeerID: sess.ID, EntityID: id, Addr: sess.Addr})
}

// NewPlayerSpawn builds a fresh character from the [player] and [world]
// config sections.
func NewPlayerSpawn(cfg *config.Config, peerID uint32) world.PlayerSpawn {
	pc := cfg.Player
	weapon, ok := component.ParseSkillCategory(pc.WeaponSkill)
	if !ok || weapon == component.SkillShielding {
		weapon = component.SkillFist
	}

	var skills component.SkillSet
	for i := range skills.Skills {
		skills.Skills[i].Level = startingSkillLevel
		switch component.SkillCategory(i) {
		case component.SkillDistance:
			skills.Multiplier[i] = pc.DistanceMultiplier
		case component.SkillShielding:
			skills.Multiplier[i] = pc.ShieldingMultiplier
		default:
			skills.Multiplier[i] = pc.MeleeMultiplier
		}
	}

	return world.PlayerSpawn{
		PeerID: peerID,
		X:      cfg.World.StartX,
		Y:      cfg.World.StartY,
		Floor:  cfg.World.StartFloor,
		Speed:  pc.BaseSpeed,
		Combat: component.CombatProfile{
			WeaponAttack:  pc.WeaponAttack,
			WeaponRange:   pc.WeaponRange,
			WeaponSkill:   weapon,
			ShieldDefense: pc.ShieldDefense,
			Armor:         pc.Armor,
		},
		Skills: skills,
		Stats: component.Stats{
			Level: 1,
			HP:    pc.BaseHP, MaxHP: pc.BaseHP,
			MP: pc.BaseMP, MaxMP: pc.BaseMP,
		},
	}
}
