package system

import (
	stdnet "net"
	"testing"
	"time"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/handler"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
)

type fakeTransport struct {
	sessions chan *net.Session
	dead     []uint32
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sessions: make(chan *net.Session, 16)}
}

func (t *fakeTransport) NewSessions() <-chan *net.Session { return t.sessions }
func (t *fakeTransport) NotifyDead(s *net.Session)        { t.dead = append(t.dead, s.ID) }
func (t *fakeTransport) Shutdown()                        {}
func (t *fakeTransport) Addr() stdnet.Addr                { return nil }

type nopConn struct{}

func (nopConn) Write([]byte) error { return nil }
func (nopConn) Close() error       { return nil }

// netFixture wires the input system to a fake transport with a controllable
// clock. Sessions are never started, so sent frames stay in OutQueue.
type netFixture struct {
	*fixture
	transport *fakeTransport
	store     *net.SessionStore
	frames    *net.FrameCodec
	versions  *packet.Versions
	input     *InputSystem
	now       time.Time
	nextID    uint32

	connected    []event.PeerConnected
	disconnected []event.PeerDisconnected
}

func newNetFixture(t *testing.T) *netFixture {
	t.Helper()
	f := newFixture(t, 16, 16)
	frames, err := net.NewFrameCodec(0)
	if err != nil {
		t.Fatalf("frame codec: %v", err)
	}
	t.Cleanup(frames.Close)

	nf := &netFixture{
		fixture:   f,
		transport: newFakeTransport(),
		store:     net.NewSessionStore(),
		frames:    frames,
		versions:  packet.DefaultVersions(),
		now:       time.Unix(1700000000, 0),
	}
	reg := packet.NewRegistry(f.log)
	handler.RegisterAll(reg, &handler.Deps{Config: f.cfg, Log: f.log, World: f.world})
	nf.input = NewInputSystem(nf.transport, reg, nf.store, frames, nf.versions, f.world, f.cfg.Network, f.log)
	nf.input.now = func() time.Time { return nf.now }

	event.Subscribe(f.world.Bus, func(ev event.PeerConnected) { nf.connected = append(nf.connected, ev) })
	event.Subscribe(f.world.Bus, func(ev event.PeerDisconnected) { nf.disconnected = append(nf.disconnected, ev) })
	return nf
}

func (nf *netFixture) connect(opts net.SessionOptions) *net.Session {
	nf.nextID++
	sess := net.NewSession(nf.nextID, "10.0.0.1:4000", nopConn{}, opts, nf.frames, nf.versions.Newest(), nf.log)
	nf.transport.sessions <- sess
	return sess
}

func defaultOpts() net.SessionOptions {
	return net.SessionOptions{InQueueSize: 64, OutQueueSize: 64, RateWindow: time.Second, RateLimit: 60, AbuseThreshold: 5}
}

func (nf *netFixture) push(sess *net.Session, typ, version uint8, body []byte) {
	nf.t.Helper()
	frame, err := nf.frames.Encode(typ, version, body)
	if err != nil {
		nf.t.Fatalf("encode frame: %v", err)
	}
	sess.InQueue <- frame
}

func (nf *netFixture) pushSeq(sess *net.Session, typ, version uint8, seq uint16, body []byte) {
	nf.t.Helper()
	frame, err := nf.frames.EncodeSeq(typ, version, seq, body)
	if err != nil {
		nf.t.Fatalf("encode frame: %v", err)
	}
	sess.InQueue <- frame
}

func (nf *netFixture) join(sess *net.Session, name string) {
	w := packet.NewWriter()
	w.WriteS(name)
	nf.push(sess, packet.C_JOIN, packet.VersionCurrent, w.Bytes())
}

func moveBody(dir component.Direction) []byte {
	w := packet.NewWriter()
	w.WriteC(uint8(dir))
	w.WriteDU(0)
	return w.Bytes()
}

func pingBody(nonce uint32) []byte {
	w := packet.NewWriter()
	w.WriteDU(nonce)
	return w.Bytes()
}

// sent drains the session's outbound queue and returns the frame headers.
func (nf *netFixture) sent(sess *net.Session) []packet.Header {
	nf.t.Helper()
	var out []packet.Header
	for {
		select {
		case data := <-sess.OutQueue:
			in, err := nf.frames.Split(data)
			if err != nil {
				nf.t.Fatalf("outbound frame: %v", err)
			}
			out = append(out, in.Header)
		default:
			return out
		}
	}
}

func types(hs []packet.Header) []uint8 {
	out := make([]uint8, len(hs))
	for i, h := range hs {
		out[i] = h.Type
	}
	return out
}

func containsType(hs []packet.Header, typ uint8) bool {
	for _, h := range hs {
		if h.Type == typ {
			return true
		}
	}
	return false
}

func TestJoinSendsBurstInOrder(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.join(sess, "  Ｒｏｗａｎ  ")
	nf.input.Update(0)

	if sess.State() != packet.StateInWorld {
		t.Fatalf("state = %v, want in-world", sess.State())
	}
	if sess.Name != "Rowan" {
		t.Fatalf("name = %q, want normalized %q", sess.Name, "Rowan")
	}
	want := []uint8{packet.S_JOIN_ACCEPTED, packet.S_MAP_DATA, packet.S_MAP_DATA, packet.S_STATS_UPDATE, packet.S_SKILLS_UPDATE}
	got := types(nf.sent(sess))
	if len(got) != len(want) {
		t.Fatalf("burst = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("burst[%d] = %s, want %s", i, packet.TypeName(got[i]), packet.TypeName(want[i]))
		}
	}
	if len(nf.connected) != 1 || nf.connected[0].EntityID != sess.EntityID {
		t.Fatalf("connected events = %+v", nf.connected)
	}
	if sess.Baseline.Valid() {
		t.Fatal("baseline must be invalid after join so the first update is full")
	}
}

func TestMoveRequiresSequenceAndRejectsReplay(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.join(sess, "mover")
	nf.input.Update(0)

	nf.push(sess, packet.C_MOVE, packet.VersionCurrent, moveBody(component.DirEast))
	nf.input.Update(0)
	if nf.intent(sess.EntityID) != component.DirNone {
		t.Fatal("unsequenced move must not set an intent")
	}
	if nf.input.Stats().Unsequenced != 1 {
		t.Fatalf("unsequenced = %d, want 1", nf.input.Stats().Unsequenced)
	}

	nf.pushSeq(sess, packet.C_MOVE, packet.VersionCurrent, 10, moveBody(component.DirEast))
	nf.input.Update(0)
	if nf.intent(sess.EntityID) != component.DirEast {
		t.Fatalf("intent = %v, want east", nf.intent(sess.EntityID))
	}

	nf.setIntent(sess.EntityID, component.DirNone)
	nf.pushSeq(sess, packet.C_MOVE, packet.VersionCurrent, 10, moveBody(component.DirSouth))
	nf.pushSeq(sess, packet.C_MOVE, packet.VersionCurrent, 10+200, moveBody(component.DirSouth))
	nf.input.Update(0)
	if nf.intent(sess.EntityID) != component.DirNone {
		t.Fatal("replayed and far-ahead moves must be ignored")
	}
	if nf.input.Stats().Replayed != 2 {
		t.Fatalf("replayed = %d, want 2", nf.input.Stats().Replayed)
	}
	if last, ok := sess.Guard(net.StreamMove).Last(); !ok || last != 10 {
		t.Fatalf("last accepted = %d (%v), want 10", last, ok)
	}
}

func TestTargetWithoutSequenceIsAccepted(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.join(sess, "hunter")
	nf.input.Update(0)

	wolf := nf.creature(nf.template(nil), 5, 5)
	w := packet.NewWriter()
	w.WriteDU(uint32(wolf))
	nf.push(sess, packet.C_TARGET, packet.VersionCurrent, w.Bytes())
	nf.input.Update(0)

	prof, _ := nf.world.Combat.Get(sess.EntityID)
	if prof.Target != wolf {
		t.Fatalf("target = %d, want %d", prof.Target, wolf)
	}
}

func TestRateLimitAbuseDisconnects(t *testing.T) {
	nf := newNetFixture(t)
	watcher := nf.connect(defaultOpts())
	nf.join(watcher, "watcher")

	opts := defaultOpts()
	opts.RateLimit = 2
	opts.AbuseThreshold = 1
	flood := nf.connect(opts)
	nf.join(flood, "flood")
	nf.input.Update(0)
	nf.sent(watcher)
	floodEntity := flood.EntityID

	nf.now = nf.now.Add(2 * time.Second)
	for i := 0; i < 5; i++ {
		nf.push(flood, packet.C_PING, packet.VersionCurrent, pingBody(uint32(i)))
	}
	nf.input.Update(0)

	if !flood.IsClosed() {
		t.Fatal("flooding session must be closed")
	}
	if nf.store.Get(flood.ID) != nil {
		t.Fatal("flooding session must leave the store")
	}
	if nf.world.ECS.Alive(floodEntity) {
		t.Fatal("flooding player's entity must be removed")
	}
	if len(nf.transport.dead) != 1 || nf.transport.dead[0] != flood.ID {
		t.Fatalf("dead = %v", nf.transport.dead)
	}
	if len(nf.disconnected) != 1 || nf.disconnected[0].Reason != "rate limit" {
		t.Fatalf("disconnected events = %+v", nf.disconnected)
	}
	if !containsType(nf.sent(watcher), packet.S_PLAYER_DISCONNECTED) {
		t.Fatal("watcher must be told the player left")
	}
	if nf.input.Stats().Kicked != 1 {
		t.Fatalf("kicked = %d, want 1", nf.input.Stats().Kicked)
	}
}

func TestIdleSessionTimesOut(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.input.Update(0)
	if nf.store.Len() != 1 {
		t.Fatalf("store len = %d, want 1", nf.store.Len())
	}

	nf.now = nf.now.Add(nf.cfg.Network.IdleTimeout / 2)
	nf.push(sess, packet.C_PING, packet.VersionCurrent, pingBody(1))
	nf.input.Update(0)
	if sess.IsClosed() {
		t.Fatal("active session closed early")
	}

	nf.now = nf.now.Add(nf.cfg.Network.IdleTimeout + time.Second)
	nf.input.Update(0)
	if !sess.IsClosed() || nf.store.Len() != 0 {
		t.Fatal("idle session must be closed and removed")
	}
	if len(nf.disconnected) != 1 || nf.disconnected[0].Reason != "idle" {
		t.Fatalf("disconnected events = %+v", nf.disconnected)
	}
}

func TestUnknownVersionUsesNewestCodec(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.push(sess, packet.C_PING, 9, pingBody(77))
	nf.input.Update(0)

	hs := nf.sent(sess)
	if len(hs) != 1 || hs[0].Type != packet.S_PONG {
		t.Fatalf("sent = %v, want one pong", types(hs))
	}
	if hs[0].Version != packet.VersionCurrent {
		t.Fatalf("pong version = %d, want %d", hs[0].Version, packet.VersionCurrent)
	}
	if sess.Declared != 9 {
		t.Fatalf("declared = %d, want 9", sess.Declared)
	}
}

func TestLegacyPeerGetsLegacyFrames(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	w := packet.NewWriter()
	w.WriteS("elder")
	nf.push(sess, packet.C_JOIN, packet.VersionLegacy, w.Bytes())
	nf.input.Update(0)

	if sess.Codec.Version() != packet.VersionLegacy {
		t.Fatalf("codec version = %d, want legacy", sess.Codec.Version())
	}
	for _, h := range nf.sent(sess) {
		if h.Version != packet.VersionLegacy {
			t.Fatalf("%s sent with version %d", packet.TypeName(h.Type), h.Version)
		}
	}

	// Legacy moves carry no client tick.
	nf.pushSeq(sess, packet.C_MOVE, packet.VersionLegacy, 1, []byte{uint8(component.DirWest)})
	nf.input.Update(0)
	if nf.intent(sess.EntityID) != component.DirWest {
		t.Fatalf("intent = %v, want west", nf.intent(sess.EntityID))
	}
}

func TestMalformedFramesAreCounted(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	sess.InQueue <- []byte{1, 2, 3}
	nf.push(sess, packet.C_TARGET, packet.VersionCurrent, []byte{1})
	nf.input.Update(0)

	if got := nf.input.Stats().Malformed; got != 2 {
		t.Fatalf("malformed = %d, want 2", got)
	}
	if sess.IsClosed() {
		t.Fatal("malformed frames alone must not close the session")
	}
}

func TestMalformedMoveDoesNotConsumeSequence(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.connect(defaultOpts())
	nf.join(sess, "stutter")
	nf.input.Update(0)

	nf.pushSeq(sess, packet.C_MOVE, packet.VersionCurrent, 20, moveBody(component.DirEast)[:1])
	nf.input.Update(0)
	if nf.input.Stats().Malformed != 1 || nf.intent(sess.EntityID) != component.DirNone {
		t.Fatalf("stats = %+v", nf.input.Stats())
	}
	if _, ok := sess.Guard(net.StreamMove).Last(); ok {
		t.Fatal("corrupt move recorded its sequence")
	}

	nf.pushSeq(sess, packet.C_MOVE, packet.VersionCurrent, 20, moveBody(component.DirEast))
	nf.input.Update(0)
	if nf.intent(sess.EntityID) != component.DirEast {
		t.Fatalf("intent = %v, want east after the resend", nf.intent(sess.EntityID))
	}
	if nf.input.Stats().Replayed != 0 {
		t.Fatalf("replayed = %d, want 0", nf.input.Stats().Replayed)
	}
}
