package packet

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownType is returned when no decoder exists for a packet type.
var ErrUnknownType = errors.New("unknown packet type")

// Codec serializes message bodies for one protocol version.
type Codec interface {
	Version() uint8
	Encode(msg Message) ([]byte, error)
	Decode(typ uint8, body []byte) (Message, error)
}

const (
	// VersionLegacy omits pixel positions and creature types from snapshots
	// and the client tick from move requests.
	VersionLegacy uint8 = 1
	// VersionCurrent is the full protocol.
	VersionCurrent uint8 = 2
)

// binaryCodec implements both wire versions; legacy drops the fields that
// version 1 clients do not know.
type binaryCodec struct {
	version uint8
	legacy  bool
}

// NewLegacyCodec returns the version 1 codec.
func NewLegacyCodec() Codec { return binaryCodec{version: VersionLegacy, legacy: true} }

// NewCurrentCodec returns the version 2 codec.
func NewCurrentCodec() Codec { return binaryCodec{version: VersionCurrent} }

func (c binaryCodec) Version() uint8 { return c.version }

func (c binaryCodec) Decode(typ uint8, body []byte) (Message, error) {
	r := NewReader(body)
	var msg Message
	switch typ {
	case C_JOIN:
		msg = JoinRequest{Name: r.ReadS()}
	case C_MOVE:
		m := MoveRequest{Dir: r.ReadC()}
		if !c.legacy {
			m.ClientTick = r.ReadDU()
		}
		msg = m
	case C_TARGET:
		msg = TargetRequest{Target: r.ReadDU()}
	case C_LEAVE:
		msg = LeaveRequest{}
	case C_PING:
		msg = Ping{Nonce: r.ReadDU()}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, TypeName(typ))
	}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", TypeName(typ), err)
	}
	return msg, nil
}

func (c binaryCodec) Encode(msg Message) ([]byte, error) {
	w := NewWriter()
	switch m := msg.(type) {
	case JoinAccepted:
		w.WriteDU(m.EntityID)
		w.WriteDU(m.Tick)
		w.WriteC(m.Version)
	case PlayerDisconnected:
		w.WriteDU(m.EntityID)
	case WorldState:
		w.WriteDU(m.Tick)
		w.WriteH(uint16(len(m.Entities)))
		for i := range m.Entities {
			c.writeSnapshot(w, &m.Entities[i])
		}
	case WorldDelta:
		w.WriteDU(m.Tick)
		w.WriteDU(m.BaseTick)
		w.WriteH(uint16(len(m.Updated)))
		for i := range m.Updated {
			c.writeDelta(w, &m.Updated[i])
		}
		w.WriteH(uint16(len(m.Added)))
		for i := range m.Added {
			c.writeSnapshot(w, &m.Added[i])
		}
		w.WriteH(uint16(len(m.Removed)))
		for _, id := range m.Removed {
			w.WriteDU(id)
		}
	case StatsUpdate:
		w.WriteD(m.Level)
		w.WriteQ(m.Experience)
		w.WriteD(m.HP)
		w.WriteD(m.MaxHP)
		w.WriteD(m.MP)
		w.WriteD(m.MaxMP)
	case SkillsUpdate:
		w.WriteC(uint8(len(m.Skills)))
		for _, sk := range m.Skills {
			w.WriteD(sk.Level)
			w.WriteC(sk.Percent)
		}
	case FloorChange:
		w.WriteC(m.From)
		w.WriteC(m.To)
		w.WriteD(m.X)
		w.WriteD(m.Y)
	case MapData:
		if len(m.GroundIDs) != len(m.Flags) {
			return nil, fmt.Errorf("map data: %d ground ids but %d flags", len(m.GroundIDs), len(m.Flags))
		}
		w.WriteH(m.Width)
		w.WriteH(m.Height)
		w.WriteC(m.Floors)
		w.WriteC(m.GroundFloor)
		w.WriteC(m.Floor)
		for _, g := range m.GroundIDs {
			w.WriteH(g)
		}
		w.WriteBytes(m.Flags)
	case Pong:
		w.WriteDU(m.Nonce)
		w.WriteDU(m.Tick)
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrUnknownType, msg)
	}
	return w.Bytes(), nil
}

func (c binaryCodec) writeSnapshot(w *Writer, e *EntitySnapshot) {
	w.WriteDU(e.ID)
	w.WriteD(e.X)
	w.WriteD(e.Y)
	if !c.legacy {
		w.WriteD(e.PX)
		w.WriteD(e.PY)
	}
	w.WriteC(e.Kind)
	w.WriteC(e.HPPercent)
	if !c.legacy {
		w.WriteH(e.CreatureType)
	}
}

func (c binaryCodec) writeDelta(w *Writer, d *EntityDelta) {
	mask := d.Mask
	if c.legacy {
		mask &^= FieldPixel
	}
	w.WriteDU(d.ID)
	w.WriteC(mask)
	if mask&FieldTile != 0 {
		w.WriteD(d.X)
		w.WriteD(d.Y)
	}
	if mask&FieldPixel != 0 {
		w.WriteD(d.PX)
		w.WriteD(d.PY)
	}
	if mask&FieldHP != 0 {
		w.WriteC(d.HPPercent)
	}
}

// Versions maps protocol versions to codecs.
type Versions struct {
	codecs map[uint8]Codec
	newest Codec
}

func NewVersions(codecs ...Codec) *Versions {
	v := &Versions{codecs: make(map[uint8]Codec)}
	for _, c := range codecs {
		v.Register(c)
	}
	return v
}

// DefaultVersions registers every built-in codec.
func DefaultVersions() *Versions {
	return NewVersions(NewLegacyCodec(), NewCurrentCodec())
}

func (v *Versions) Register(c Codec) {
	v.codecs[c.Version()] = c
	if v.newest == nil || c.Version() > v.newest.Version() {
		v.newest = c
	}
}

// Resolve returns the codec for version. An unknown version resolves to the
// newest registered codec with exact=false; callers log it and carry on.
func (v *Versions) Resolve(version uint8) (codec Codec, exact bool) {
	if c, ok := v.codecs[version]; ok {
		return c, true
	}
	return v.newest, false
}

func (v *Versions) Newest() Codec { return v.newest }

// Known lists the registered versions in ascending order.
func (v *Versions) Known() []uint8 {
	out := make([]uint8, 0, len(v.codecs))
	for k := range v.codecs {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
