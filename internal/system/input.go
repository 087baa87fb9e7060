package system

import (
	"errors"
	"time"

	"github.com/tilerealm/server/internal/config"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/handler"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
)

// InputStats counts what the input system did with inbound frames.
type InputStats struct {
	Frames      uint64
	RateDropped uint64
	Malformed   uint64
	Replayed    uint64
	Unsequenced uint64
	Kicked      uint64
}

// InputSystem drains packet queues from all sessions and dispatches them
// through the packet registry. Phase 0 (Input).
type InputSystem struct {
	transport  net.Transport
	registry   *packet.Registry
	store      *net.SessionStore
	frames     *net.FrameCodec
	versions   *packet.Versions
	world      *world.State
	maxPerTick int
	idle       time.Duration
	now        func() time.Time
	stats      InputStats
	log        *zap.Logger
}

func NewInputSystem(
	transport net.Transport,
	registry *packet.Registry,
	store *net.SessionStore,
	frames *net.FrameCodec,
	versions *packet.Versions,
	ws *world.State,
	cfg config.NetworkConfig,
	log *zap.Logger,
) *InputSystem {
	return &InputSystem{
		transport:  transport,
		registry:   registry,
		store:      store,
		frames:     frames,
		versions:   versions,
		world:      ws,
		maxPerTick: cfg.MaxPacketsPerTick,
		idle:       cfg.IdleTimeout,
		now:        time.Now,
		log:        log,
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

// Stats returns the running frame counters.
func (s *InputSystem) Stats() InputStats { return s.stats }

func (s *InputSystem) Update(_ time.Duration) {
	now := s.now()

	// Accept new sessions
	for {
		select {
		case sess := <-s.transport.NewSessions():
			sess.LastSeen = now
			s.store.Add(sess)
		default:
			goto doneNew
		}
	}
doneNew:

	// Drain packets from each session (up to maxPerTick per session)
	s.store.ForEach(func(sess *net.Session) {
		if sess.IsClosed() {
			s.disconnect(sess)
			return
		}
		for i := 0; i < s.maxPerTick; i++ {
			select {
			case data := <-sess.InQueue:
				s.handleFrame(sess, data, now)
				if sess.IsClosed() {
					s.disconnect(sess)
					return
				}
			default:
				goto drained
			}
		}
	drained:
		if s.idle > 0 && now.Sub(sess.LastSeen) > s.idle {
			sess.Log().Info("idle timeout", zap.Duration("idle", now.Sub(sess.LastSeen)))
			sess.KickReason = "idle"
			sess.Close()
			s.disconnect(sess)
		}
	})

	// Early flush: join bursts and pongs leave before the simulation phases run.
	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

func (s *InputSystem) handleFrame(sess *net.Session, data []byte, now time.Time) {
	s.stats.Frames++
	switch sess.Limiter.Check(now) {
	case net.Drop:
		s.stats.RateDropped++
		return
	case net.Kick:
		s.stats.Kicked++
		sess.Log().Warn("rate limit abuse, disconnecting", zap.Int("abuse", sess.Limiter.Abuse()))
		sess.KickReason = net.KickRateLimit
		sess.Close()
		return
	}

	in, err := s.frames.Split(data)
	if err != nil {
		s.stats.Malformed++
		sess.Log().Debug("malformed frame", zap.Error(err))
		return
	}
	sess.LastSeen = now

	codec := s.resolve(sess, in.Header.Version)

	// Replays are rejected before decompression; the sequence is only
	// recorded once the frame decoded, so a corrupt frame does not burn it.
	var guard *net.SeqGuard
	switch in.Header.Type {
	case packet.C_MOVE:
		if !in.Header.HasSequence() {
			s.stats.Unsequenced++
			sess.Log().Debug("unsequenced move dropped")
			return
		}
		guard = sess.Guard(net.StreamMove)
	case packet.C_TARGET:
		if in.Header.HasSequence() {
			guard = sess.Guard(net.StreamTarget)
		}
	}
	if guard != nil && !guard.Fresh(in.Seq) {
		s.stats.Replayed++
		return
	}

	body, err := s.frames.Body(in)
	if err != nil {
		s.stats.Malformed++
		sess.Log().Debug("bad payload", zap.Error(err))
		return
	}
	msg, err := codec.Decode(in.Header.Type, body)
	if err != nil {
		if errors.Is(err, packet.ErrUnknownType) {
			sess.Log().Debug("unknown packet type", zap.Uint8("type", in.Header.Type))
		} else {
			s.stats.Malformed++
			sess.Log().Debug("malformed packet", zap.Error(err))
		}
		return
	}
	if guard != nil {
		guard.Accept(in.Seq)
	}
	if err := s.registry.Dispatch(sess, sess.State(), msg); err != nil {
		sess.Log().Debug("dispatch error", zap.Error(err))
	}
}

// resolve picks the codec for a frame's declared version. Unknown versions
// are served by the newest codec with a warning each time the peer's
// declared version changes.
func (s *InputSystem) resolve(sess *net.Session, version uint8) packet.Codec {
	codec, exact := s.versions.Resolve(version)
	if version != sess.Declared {
		sess.Declared = version
		if !exact {
			sess.Log().Warn("unknown protocol version, using newest",
				zap.Uint8("declared", version),
				zap.Uint8("using", codec.Version()),
			)
		}
	}
	if codec.Version() != sess.Codec.Version() {
		sess.Codec = codec
		sess.Baseline.Invalidate()
	}
	return codec
}

// disconnect removes the peer's entity, tells the remaining players and
// releases the session.
func (s *InputSystem) disconnect(sess *net.Session) {
	s.store.Remove(sess.ID)
	id := sess.EntityID
	if !id.IsZero() && s.world.ECS.Alive(id) {
		s.world.RemoveEntity(id)
		handler.BroadcastDisconnected(s.store, id)
	}
	reason := sess.KickReason
	if reason == "" {
		reason = "closed"
	}
	s.transport.NotifyDead(sess)
	event.Publish(s.world.Bus, event.PeerDisconnected{
		PeerID:   sess.ID,
		EntityID: id,
		Addr:     sess.Addr,
		Reason:   reason,
	})
	s.log.Info("peer disconnected",
		zap.Uint32("peer", sess.ID),
		zap.String("name", sess.Name),
		zap.String("reason", reason),
	)
}
