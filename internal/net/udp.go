package net

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

// kickCooldown is how long datagrams from a rate-limit kicked address are
// ignored before it may open a new session.
const kickCooldown = 30 * time.Second

// UDPServer multiplexes peers over one datagram socket keyed by remote
// address. Each datagram carries exactly one frame.
type UDPServer struct {
	acceptor
	conn    *net.UDPConn
	mu      sync.Mutex
	peers   map[string]*Session
	kicked  map[string]time.Time // address -> end of cooldown
	now     func() time.Time
	closeCh chan struct{}
}

func NewUDPServer(bindAddr string, opts SessionOptions, frames *FrameCodec, codec packet.Codec, log *zap.Logger) (*UDPServer, error) {
	addr, err := net.ResolveUDPAddr("udp", bindAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	return &UDPServer{
		acceptor: newAcceptor(opts, frames, codec, log),
		conn:     conn,
		peers:    make(map[string]*Session),
		kicked:   make(map[string]time.Time),
		now:      time.Now,
		closeCh:  make(chan struct{}),
	}, nil
}

// ReadLoop runs in its own goroutine until Shutdown.
func (s *UDPServer) ReadLoop() {
	buf := make([]byte, packet.MaxFrameSize)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Debug("udp read error", zap.Error(err))
			continue
		}
		if n < packet.HeaderSize {
			continue
		}
		sess := s.peer(from)
		if sess == nil {
			continue
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		sess.Offer(frame)
	}
}

func (s *UDPServer) peer(from *net.UDPAddr) *Session {
	key := from.String()
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.peers[key]; ok {
		return sess
	}
	if s.coolingDown(key) {
		return nil
	}
	sess := s.open(key, &udpConn{conn: s.conn, addr: from})
	if sess != nil {
		s.peers[key] = sess
	}
	return sess
}

// coolingDown reports whether key was kicked for rate abuse recently.
// Caller holds mu.
func (s *UDPServer) coolingDown(key string) bool {
	until, ok := s.kicked[key]
	if !ok {
		return false
	}
	if s.now().Before(until) {
		return true
	}
	delete(s.kicked, key)
	return false
}

// NotifyDead forgets the peer's address; its next datagram opens a new
// session, unless it was kicked for rate abuse and is still cooling down.
func (s *UDPServer) NotifyDead(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.peers[sess.Addr]; ok && cur == sess {
		delete(s.peers, sess.Addr)
	}
	if sess.KickReason != KickRateLimit {
		return
	}
	now := s.now()
	for addr, until := range s.kicked {
		if !now.Before(until) {
			delete(s.kicked, addr)
		}
	}
	s.kicked[sess.Addr] = now.Add(kickCooldown)
	s.log.Info("udp address cooling down", zap.String("addr", sess.Addr), zap.Duration("for", kickCooldown))
}

func (s *UDPServer) Shutdown() {
	close(s.closeCh)
	s.conn.Close()
}

func (s *UDPServer) Addr() net.Addr {
	return s.conn.LocalAddr()
}

type udpConn struct {
	conn *net.UDPConn
	addr *net.UDPAddr
}

func (c *udpConn) Write(frame []byte) error {
	_, err := c.conn.WriteToUDP(frame, c.addr)
	return err
}

// Close is a no-op: the socket is shared.
func (c *udpConn) Close() error { return nil }
