package handler

import (
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleTarget processes C_TARGET. Target 0 clears the selection. Anything
// other than a living creature is ignored without touching the current
// target.
func HandleTarget(sess *net.Session, msg packet.TargetRequest, deps *Deps) {
	prof, ok := deps.World.Combat.Get(sess.EntityID)
	if !ok {
		return
	}
	if msg.Target == 0 {
		prof.Target = 0
		return
	}
	target := ecs.EntityID(msg.Target)
	if !deps.World.IsCreature(target) || !deps.World.Targetable(target) {
		deps.Log.Debug("target ignored",
			zap.Uint32("peer", sess.ID),
			zap.Uint32("target", msg.Target),
		)
		return
	}
	prof.Target = target
}
