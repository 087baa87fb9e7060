package handler

import (
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// HandleLeave processes C_LEAVE. The input system does all cleanup once it
// sees the closed session.
func HandleLeave(sess *net.Session, deps *Deps) {
	deps.Log.Info("peer leaving", zap.Uint32("peer", sess.ID), zap.String("name", sess.Name))
	sess.KickReason = "leave"
	sess.Close()
}

// HandlePing answers C_PING with the current tick.
func HandlePing(sess *net.Session, msg packet.Ping, deps *Deps) {
	sess.Send(packet.Pong{Nonce: msg.Nonce, Tick: uint32(deps.World.Tick())})
}
