package net

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// Conn is the transport half of a session: one call writes one frame.
type Conn interface {
	Write(frame []byte) error
	Close() error
}

// SessionOptions sizes queues and the per-peer rate limiter.
type SessionOptions struct {
	InQueueSize    int
	OutQueueSize   int
	RateWindow     time.Duration
	RateLimit      int
	AbuseThreshold int
}

// Kick reasons set by the transport and rate limiter.
const (
	KickRateLimit    = "rate limit"
	KickBackpressure = "backpressure"
)

// Session represents a single peer. Transport I/O runs in dedicated
// goroutines; everything below the game-loop marker is touched only by the
// tick goroutine.
type Session struct {
	ID   uint32
	Addr string
	conn Conn

	state atomic.Int32 // packet.SessionState stored as int32

	InQueue  chan []byte // raw frames, drained by the input system
	OutQueue chan []byte // encoded frames, drained by writeLoop

	outBuf [][]byte // buffered frames, flushed once per tick

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Uint64

	// Game loop only.
	Codec      packet.Codec
	Declared   uint8 // protocol version the peer last put on the wire
	EntityID   ecs.EntityID
	Name       string
	Limiter    *RateLimiter
	Baseline   Baseline
	LastSeen   time.Time
	KickReason string
	guards     [numStreams]SeqGuard
	frames     *FrameCodec

	log *zap.Logger
}

func NewSession(id uint32, addr string, conn Conn, opts SessionOptions, frames *FrameCodec, codec packet.Codec, log *zap.Logger) *Session {
	s := &Session{
		ID:       id,
		Addr:     addr,
		conn:     conn,
		InQueue:  make(chan []byte, opts.InQueueSize),
		OutQueue: make(chan []byte, opts.OutQueueSize),
		closeCh:  make(chan struct{}),
		Codec:    codec,
		Limiter:  NewRateLimiter(opts.RateWindow, opts.RateLimit, opts.AbuseThreshold),
		frames:   frames,
		log:      log.With(zap.Uint32("peer", id), zap.String("addr", addr)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

func (s *Session) Log() *zap.Logger { return s.log }

// Guard returns the sequence guard of one stream.
func (s *Session) Guard(st Stream) *SeqGuard { return &s.guards[st] }

// Offer queues a received frame without blocking. It reports false and
// counts a drop when the queue is full or the session is closed.
func (s *Session) Offer(frame []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.InQueue <- frame:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Dropped returns the number of inbound frames lost to a full queue.
func (s *Session) Dropped() uint64 { return s.dropped.Load() }

// Start launches the writer goroutine.
func (s *Session) Start() {
	go s.writeLoop()
}

// Send encodes msg with the session's codec and buffers the frame until
// FlushOutput. Called only from the game loop. A failed message is logged
// and dropped.
func (s *Session) Send(msg packet.Message) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	body, err := s.Codec.Encode(msg)
	if err != nil {
		s.log.Warn("encode failed", zap.String("type", packet.TypeName(msg.Type())), zap.Error(err))
		return err
	}
	frame, err := s.frames.Encode(msg.Type(), s.Codec.Version(), body)
	if err != nil {
		s.log.Warn("frame failed", zap.String("type", packet.TypeName(msg.Type())), zap.Error(err))
		return err
	}
	s.outBuf = append(s.outBuf, frame)
	return nil
}

// Pending returns the number of frames buffered since the last flush.
func (s *Session) Pending() int { return len(s.outBuf) }

// FlushOutput drains the output buffer to OutQueue for the writeLoop goroutine.
// Non-blocking: if OutQueue is full, the session is disconnected (backpressure).
func (s *Session) FlushOutput() {
	for _, data := range s.outBuf {
		select {
		case s.OutQueue <- data:
		default:
			s.log.Warn("output queue full, dropping slow peer")
			s.KickReason = KickBackpressure
			s.Close()
			s.outBuf = s.outBuf[:0]
			return
		}
	}
	s.outBuf = s.outBuf[:0]
}

// Close shuts the session down once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		if err := s.conn.Close(); err != nil {
			s.log.Debug("close error", zap.Error(err))
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.closeCh }

func (s *Session) writeLoop() {
	defer s.Close()
	for {
		select {
		case data := <-s.OutQueue:
			if err := s.conn.Write(data); err != nil {
				if !s.closed.Load() {
					s.log.Debug("write error", zap.Error(err))
				}
				return
			}
		case <-s.closeCh:
			return
		}
	}
}
