package event

import "github.com/tilerealm/server/internal/core/ecs"

// EntityMoved is published after an entity's authoritative tile changed.
type EntityMoved struct {
	EntityID     ecs.EntityID
	FromX, FromY int32
	FromFloor    int8
	ToX, ToY     int32
	ToFloor      int8
	Diagonal     bool
}

// FloorChanged is published when a step carried an entity to another floor.
// Only the moving player is notified on the wire.
type FloorChanged struct {
	EntityID  ecs.EntityID
	FromFloor int8
	ToFloor   int8
	X, Y      int32
}

// CellEntered is published by the spatial index rebuild when an entity's
// interest cell differs from the previous tick.
type CellEntered struct {
	EntityID ecs.EntityID
	CellX    int32
	CellY    int32
}

// LevelUp is published when experience pushes a player to a new level.
type LevelUp struct {
	EntityID ecs.EntityID
	Level    int32
}

// CreatureDied is published exactly once when a creature enters Dead.
type CreatureDied struct {
	EntityID   ecs.EntityID
	Killer     ecs.EntityID
	TemplateID uint16
	Point      int
	Slot       int
}

// PlayerDied is published when a player's HP reached zero and they respawned.
type PlayerDied struct {
	EntityID ecs.EntityID
	Killer   ecs.EntityID
}

// PeerConnected is published when a transport endpoint joined the world.
type PeerConnected struct {
	PeerID   uint32
	EntityID ecs.EntityID
	Addr     string
}

// PeerDisconnected is published after a peer's session and entity are gone.
type PeerDisconnected struct {
	PeerID   uint32
	EntityID ecs.EntityID
	Addr     string
	Reason   string
}
