package net

import (
	"net"
	"sync/atomic"

	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// Transport accepts peers and hands their sessions to the game loop.
type Transport interface {
	// NewSessions delivers newly connected sessions.
	NewSessions() <-chan *Session
	// NotifyDead releases transport resources of a session the game loop
	// has finished cleaning up.
	NotifyDead(s *Session)
	Shutdown()
	Addr() net.Addr
}

// acceptor is the session factory shared by the transports.
type acceptor struct {
	nextID   atomic.Uint32
	newConns chan *Session
	opts     SessionOptions
	frames   *FrameCodec
	codec    packet.Codec
	log      *zap.Logger
}

func newAcceptor(opts SessionOptions, frames *FrameCodec, codec packet.Codec, log *zap.Logger) acceptor {
	return acceptor{
		newConns: make(chan *Session, 64),
		opts:     opts,
		frames:   frames,
		codec:    codec,
		log:      log,
	}
}

// open creates and starts a session and queues it for the game loop. It
// returns nil when the accept queue is full.
func (a *acceptor) open(addr string, conn Conn) *Session {
	id := a.nextID.Add(1)
	sess := NewSession(id, addr, conn, a.opts, a.frames, a.codec, a.log)
	select {
	case a.newConns <- sess:
	default:
		a.log.Warn("accept queue full, rejecting peer", zap.String("addr", addr))
		sess.Close()
		return nil
	}
	sess.Start()
	a.log.Info("peer connected", zap.Uint32("peer", id), zap.String("addr", addr))
	return sess
}

// NewSessions returns the channel of newly connected sessions.
func (a *acceptor) NewSessions() <-chan *Session {
	return a.newConns
}
