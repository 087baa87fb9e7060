package handler

import (
	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
)

// HandleMove processes C_MOVE. The request only queues an intent; the
// movement system validates and resolves it on the next eligible tick. A
// newer request overwrites an unconsumed one.
func HandleMove(sess *net.Session, msg packet.MoveRequest, deps *Deps) {
	dir := component.Direction(msg.Dir)
	if dir > component.DirNone {
		return
	}
	intent, ok := deps.World.Intents.Get(sess.EntityID)
	if !ok {
		return
	}
	intent.Dir = dir
}
