package packet

// Message is any decoded or to-be-encoded packet body.
type Message interface {
	Type() uint8
}

type JoinRequest struct {
	Name string
}

type MoveRequest struct {
	Dir        uint8 // 0..7 clockwise from north, 8 = none
	ClientTick uint32
}

type TargetRequest struct {
	Target uint32 // 0 clears
}

type LeaveRequest struct{}

type Ping struct {
	Nonce uint32
}

type JoinAccepted struct {
	EntityID uint32
	Tick     uint32
	Version  uint8
}

type PlayerDisconnected struct {
	EntityID uint32
}

// EntitySnapshot is one entity's replicated state.
type EntitySnapshot struct {
	ID           uint32
	X, Y         int32
	PX, PY       int32
	Kind         uint8
	HPPercent    uint8
	CreatureType uint16
}

type WorldState struct {
	Tick     uint32
	Entities []EntitySnapshot
}

// Delta field mask bits.
const (
	FieldTile  uint8 = 0x01
	FieldPixel uint8 = 0x02
	FieldHP    uint8 = 0x04
)

// EntityDelta carries only the fields named in Mask.
type EntityDelta struct {
	ID        uint32
	Mask      uint8
	X, Y      int32
	PX, PY    int32
	HPPercent uint8
}

type WorldDelta struct {
	Tick     uint32
	BaseTick uint32
	Updated  []EntityDelta
	Added    []EntitySnapshot
	Removed  []uint32
}

type StatsUpdate struct {
	Level      int32
	Experience int64
	HP, MaxHP  int32
	MP, MaxMP  int32
}

type SkillEntry struct {
	Level   int32
	Percent uint8 // progress toward the next level
}

type SkillsUpdate struct {
	Skills []SkillEntry
}

type FloorChange struct {
	From, To uint8
	X, Y     int32
}

// MapData carries one floor of the static map.
type MapData struct {
	Width       uint16
	Height      uint16
	Floors      uint8
	GroundFloor uint8
	Floor       uint8
	GroundIDs   []uint16
	Flags       []uint8
}

type Pong struct {
	Nonce uint32
	Tick  uint32
}

func (JoinRequest) Type() uint8        { return C_JOIN }
func (MoveRequest) Type() uint8        { return C_MOVE }
func (TargetRequest) Type() uint8      { return C_TARGET }
func (LeaveRequest) Type() uint8       { return C_LEAVE }
func (Ping) Type() uint8               { return C_PING }
func (JoinAccepted) Type() uint8       { return S_JOIN_ACCEPTED }
func (PlayerDisconnected) Type() uint8 { return S_PLAYER_DISCONNECTED }
func (WorldState) Type() uint8         { return S_WORLD_STATE }
func (WorldDelta) Type() uint8         { return S_WORLD_DELTA }
func (StatsUpdate) Type() uint8        { return S_STATS_UPDATE }
func (SkillsUpdate) Type() uint8       { return S_SKILLS_UPDATE }
func (FloorChange) Type() uint8        { return S_FLOOR_CHANGE }
func (MapData) Type() uint8            { return S_MAP_DATA }
func (Pong) Type() uint8               { return S_PONG }
