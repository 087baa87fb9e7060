package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestFrameHeaderLayout(t *testing.T) {
	frame, err := AppendFrame(nil, C_MOVE, 2, FlagHasSequence, []byte{0xAA, 0xBB})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	want := []byte{7, 0, C_MOVE, 2, FlagHasSequence, 0xAA, 0xBB}
	if string(frame) != string(want) {
		t.Fatalf("frame = % x, want % x", frame, want)
	}
	h, body, err := ParseFrame(frame)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if h.Length != 7 || h.Type != C_MOVE || h.Version != 2 || !h.HasSequence() || h.Compressed() {
		t.Fatalf("header = %+v", h)
	}
	if len(body) != 2 || body[0] != 0xAA {
		t.Fatalf("body = % x", body)
	}
}

func TestParseFrameRejectsBadLengths(t *testing.T) {
	if _, _, err := ParseFrame([]byte{5, 0, 1}); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("short frame err = %v", err)
	}
	if _, _, err := ParseFrame([]byte{9, 0, 1, 2, 0, 0}); !errors.Is(err, ErrBadLength) {
		t.Fatalf("overstated length err = %v", err)
	}
	if _, _, err := ParseFrame([]byte{5, 0, 1, 2, 0, 0xFF}); !errors.Is(err, ErrBadLength) {
		t.Fatalf("trailing bytes err = %v", err)
	}
	if _, err := AppendFrame(nil, 1, 1, 0, make([]byte, MaxFrameSize)); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("oversize err = %v", err)
	}
}

func TestReaderStickyTruncation(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	if v := r.ReadH(); v != 0x0201 {
		t.Fatalf("ReadH = %#x", v)
	}
	if v := r.ReadDU(); v != 0 {
		t.Fatalf("truncated ReadDU = %d", v)
	}
	if v := r.ReadC(); v != 0 {
		t.Fatalf("read after truncation = %d", v)
	}
	if !errors.Is(r.Err(), ErrTruncated) {
		t.Fatalf("err = %v", r.Err())
	}
}

func TestMoveDecodeByVersion(t *testing.T) {
	w := NewWriter()
	w.WriteC(3)
	w.WriteDU(4242)

	m, err := NewCurrentCodec().Decode(C_MOVE, w.Bytes())
	if err != nil {
		t.Fatalf("v2 decode: %v", err)
	}
	if mv := m.(MoveRequest); mv.Dir != 3 || mv.ClientTick != 4242 {
		t.Fatalf("v2 move = %+v", mv)
	}

	m, err = NewLegacyCodec().Decode(C_MOVE, []byte{5})
	if err != nil {
		t.Fatalf("v1 decode: %v", err)
	}
	if mv := m.(MoveRequest); mv.Dir != 5 || mv.ClientTick != 0 {
		t.Fatalf("v1 move = %+v", mv)
	}

	if _, err := NewCurrentCodec().Decode(C_MOVE, []byte{5}); !errors.Is(err, ErrTruncated) {
		t.Fatalf("v2 short move err = %v", err)
	}
	if _, err := NewCurrentCodec().Decode(0x7F, nil); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("unknown type err = %v", err)
	}
}

func TestJoinNameDecode(t *testing.T) {
	w := NewWriter()
	w.WriteS("Ayla")
	m, err := NewCurrentCodec().Decode(C_JOIN, w.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if j := m.(JoinRequest); j.Name != "Ayla" {
		t.Fatalf("name = %q", j.Name)
	}
}

func TestSnapshotEncodingDiffersByVersion(t *testing.T) {
	ws := WorldState{Tick: 9, Entities: []EntitySnapshot{
		{ID: 1, X: 10, Y: 11, PX: 320, PY: 352, Kind: KindCreature, HPPercent: 100, CreatureType: 7},
	}}
	v2, err := NewCurrentCodec().Encode(ws)
	if err != nil {
		t.Fatalf("v2: %v", err)
	}
	v1, err := NewLegacyCodec().Encode(ws)
	if err != nil {
		t.Fatalf("v1: %v", err)
	}
	// tick(4) count(2) id(4) x(4) y(4) [px(4) py(4)] kind(1) hp(1) [type(2)]
	if len(v2) != 4+2+4+4+4+8+1+1+2 {
		t.Fatalf("v2 length = %d", len(v2))
	}
	if len(v1) != 4+2+4+4+4+1+1 {
		t.Fatalf("v1 length = %d", len(v1))
	}

	r := NewReader(v2)
	r.ReadDU()
	r.ReadH()
	r.ReadDU()
	r.ReadD()
	r.ReadD()
	if px := r.ReadD(); px != 320 {
		t.Fatalf("px = %d", px)
	}
}

func TestLegacyDeltaDropsPixelField(t *testing.T) {
	d := WorldDelta{Tick: 2, BaseTick: 1, Updated: []EntityDelta{
		{ID: 4, Mask: FieldTile | FieldPixel, X: 1, Y: 2, PX: 32, PY: 64},
	}}
	body, err := NewLegacyCodec().Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r := NewReader(body)
	r.ReadDU()
	r.ReadDU()
	if n := r.ReadH(); n != 1 {
		t.Fatalf("updated count = %d", n)
	}
	r.ReadDU()
	if mask := r.ReadC(); mask != FieldTile {
		t.Fatalf("legacy mask = %#x", mask)
	}
	r.ReadD()
	r.ReadD()
	if added := r.ReadH(); added != 0 {
		t.Fatalf("added = %d", added)
	}
	if removed := r.ReadH(); removed != 0 || r.Remaining() != 0 || r.Err() != nil {
		t.Fatalf("trailing: removed=%d remaining=%d err=%v", removed, r.Remaining(), r.Err())
	}
}

func TestMapDataRequiresMatchingLayers(t *testing.T) {
	_, err := NewCurrentCodec().Encode(MapData{Width: 1, Height: 1, GroundIDs: []uint16{1}})
	if err == nil {
		t.Fatal("mismatched layers should fail")
	}
}

func TestVersionsResolveFallsBackToNewest(t *testing.T) {
	v := DefaultVersions()
	c, exact := v.Resolve(1)
	if !exact || c.Version() != 1 {
		t.Fatalf("resolve 1 = %d exact=%v", c.Version(), exact)
	}
	c, exact = v.Resolve(9)
	if exact || c.Version() != VersionCurrent {
		t.Fatalf("resolve 9 = %d exact=%v", c.Version(), exact)
	}
	if got := v.Known(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("known = %v", got)
	}
}

func TestRegistryStateGatingAndPanicRecovery(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	var pinged int
	reg.Register(C_PING, []SessionState{StateConnected, StateInWorld}, func(sess any, msg Message) {
		pinged++
	})
	reg.Register(C_MOVE, []SessionState{StateInWorld}, func(sess any, msg Message) {
		panic("boom")
	})

	if err := reg.Dispatch(nil, StateConnected, Ping{}); err != nil || pinged != 1 {
		t.Fatalf("ping: err=%v pinged=%d", err, pinged)
	}
	if err := reg.Dispatch(nil, StateConnected, MoveRequest{}); err == nil {
		t.Fatal("move before join should be rejected")
	}
	if err := reg.Dispatch(nil, StateInWorld, MoveRequest{}); err == nil {
		t.Fatal("panicking handler should surface an error")
	}
	if err := reg.Dispatch(nil, StateInWorld, LeaveRequest{}); err != nil {
		t.Fatalf("unhandled type should be ignored, got %v", err)
	}
}
