package packet

import "fmt"

// Client → server packet types.
const (
	C_JOIN   uint8 = 0x01
	C_MOVE   uint8 = 0x02
	C_TARGET uint8 = 0x03
	C_LEAVE  uint8 = 0x04
	C_PING   uint8 = 0x05
)

// Server → client packet types.
const (
	S_JOIN_ACCEPTED       uint8 = 0x80
	S_PLAYER_DISCONNECTED uint8 = 0x81
	S_WORLD_STATE         uint8 = 0x82
	S_WORLD_DELTA         uint8 = 0x83
	S_STATS_UPDATE        uint8 = 0x84
	S_SKILLS_UPDATE       uint8 = 0x85
	S_FLOOR_CHANGE        uint8 = 0x86
	S_MAP_DATA            uint8 = 0x87
	S_PONG                uint8 = 0x88
)

// TypeName returns a readable packet type for logs.
func TypeName(t uint8) string {
	switch t {
	case C_JOIN:
		return "C_JOIN"
	case C_MOVE:
		return "C_MOVE"
	case C_TARGET:
		return "C_TARGET"
	case C_LEAVE:
		return "C_LEAVE"
	case C_PING:
		return "C_PING"
	case S_JOIN_ACCEPTED:
		return "S_JOIN_ACCEPTED"
	case S_PLAYER_DISCONNECTED:
		return "S_PLAYER_DISCONNECTED"
	case S_WORLD_STATE:
		return "S_WORLD_STATE"
	case S_WORLD_DELTA:
		return "S_WORLD_DELTA"
	case S_STATS_UPDATE:
		return "S_STATS_UPDATE"
	case S_SKILLS_UPDATE:
		return "S_SKILLS_UPDATE"
	case S_FLOOR_CHANGE:
		return "S_FLOOR_CHANGE"
	case S_MAP_DATA:
		return "S_MAP_DATA"
	case S_PONG:
		return "S_PONG"
	}
	return fmt.Sprintf("0x%02X", t)
}

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateConnected SessionState = iota // transport up, not yet joined
	StateInWorld                       // has a player entity
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Entity kinds carried in snapshots.
const (
	KindPlayer   uint8 = 1
	KindCreature uint8 = 2
)
