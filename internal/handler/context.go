package handler

import (
	"github.com/tilerealm/server/internal/combat"
	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Config   *config.Config
	Log      *zap.Logger
	World    *world.State
	Formulas combat.Formulas
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	if deps.Formulas == nil {
		deps.Formulas = combat.Standard{}
	}
	inWorld := []packet.SessionState{packet.StateInWorld}

	reg.Register(packet.C_JOIN,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, msg packet.Message) {
			HandleJoin(sess.(*net.Session), msg.(packet.JoinRequest), deps)
		},
	)
	reg.Register(packet.C_MOVE, inWorld,
		func(sess any, msg packet.Message) {
			HandleMove(sess.(*net.Session), msg.(packet.MoveRequest), deps)
		},
	)
	reg.Register(packet.C_TARGET, inWorld,
		func(sess any, msg packet.Message) {
			HandleTarget(sess.(*net.Session), msg.(packet.TargetRequest), deps)
		},
	)
	reg.Register(packet.C_LEAVE,
		[]packet.SessionState{packet.StateConnected, packet.StateInWorld},
		func(sess any, _ packet.Message) {
			HandleLeave(sess.(*net.Session), deps)
		},
	)
	reg.Register(packet.C_PING,
		[]packet.SessionState{packet.StateConnected, packet.StateInWorld},
		func(sess any, msg packet.Message) {
			HandlePing(sess.(*net.Session), msg.(packet.Ping), deps)
		},
	)
}
