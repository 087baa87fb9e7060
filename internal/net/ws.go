package net

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tilerealm/server/internal/net/packet"
	"go.uber.org/zap"
)

const wsWriteWait = 5 * time.Second

// WSServer accepts peers over WebSocket; each binary message is one frame.
type WSServer struct {
	acceptor
	listener net.Listener
	http     *http.Server
	upgrader websocket.Upgrader
	closeCh  chan struct{}
}

func NewWSServer(bindAddr, path string, opts SessionOptions, frames *FrameCodec, codec packet.Codec, log *zap.Logger) (*WSServer, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	s := &WSServer{
		acceptor: newAcceptor(opts, frames, codec, log),
		listener: ln,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		closeCh: make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, s.handle)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s, nil
}

// Serve runs the HTTP server in its own goroutine until Shutdown.
func (s *WSServer) Serve() {
	if err := s.http.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("websocket server stopped", zap.Error(err))
	}
}

func (s *WSServer) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}
	ws.SetReadLimit(packet.MaxFrameSize)
	sess := s.open(r.RemoteAddr, &wsConn{ws: ws})
	if sess == nil {
		return
	}
	go s.readLoop(sess, ws)
}

// readLoop blocks on a full queue rather than dropping: the stream is
// reliable and the goroutine only stalls this peer.
func (s *WSServer) readLoop(sess *Session, ws *websocket.Conn) {
	defer sess.Close()
	for {
		kind, data, err := ws.ReadMessage()
		if err != nil {
			if !sess.IsClosed() {
				sess.Log().Debug("websocket read error", zap.Error(err))
			}
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		select {
		case sess.InQueue <- data:
		case <-sess.Done():
			return
		case <-s.closeCh:
			return
		}
	}
}

// NotifyDead has nothing to release; the connection closed with the session.
func (s *WSServer) NotifyDead(*Session) {}

func (s *WSServer) Shutdown() {
	close(s.closeCh)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Debug("websocket shutdown", zap.Error(err))
	}
}

func (s *WSServer) Addr() net.Addr {
	return s.listener.Addr()
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Write(frame []byte) error {
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
