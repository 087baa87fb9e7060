package world

import (
	"fmt"

	"github.com/tilerealm/server/internal/component"
	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/data"
)

// Options carries the config-derived geometry of a world.
type Options struct {
	CellSize   int32
	TilePixels int32
	ViewRangeX int32
	ViewRangeY int32
}

// State owns every authoritative entity plus the indices built over them.
// Single-goroutine access only (game loop).
type State struct {
	ECS   *ecs.World
	Bus   *event.Bus
	Clock *coresys.Clock
	Grid  *data.Grid

	Positions    *ecs.Store[component.Position]
	Intents      *ecs.Store[component.MovementIntent]
	Movers       *ecs.Store[component.Mover]
	Creatures    *ecs.Store[component.CreatureRuntime]
	AI           *ecs.Store[component.AIState]
	CreatureTags *ecs.Store[component.CreatureTag]
	Combat       *ecs.Store[component.CombatProfile]
	Skills       *ecs.Store[component.SkillSet]
	Stats        *ecs.Store[component.Stats]
	Peers        *ecs.Store[component.PeerLink]
	Corpses      *ecs.Store[component.Corpse]

	occupancy *Occupancy
	aoi       *AOIGrid
	byPeer    map[uint32]ecs.EntityID

	players *ecs.Query2[component.PeerLink, component.Position]
	indexed *ecs.Query1[component.Position]
	tilePx  int32
	viewX   int32
	viewY   int32
	scratch []ecs.EntityID
}

func NewState(grid *data.Grid, clock *coresys.Clock, bus *event.Bus, opts Options) *State {
	if opts.TilePixels <= 0 {
		opts.TilePixels = 32
	}
	w := ecs.NewWorld()
	s := &State{
		ECS:          w,
		Bus:          bus,
		Clock:        clock,
		Grid:         grid,
		Positions:    ecs.NewStore[component.Position](w),
		Intents:      ecs.NewStore[component.MovementIntent](w),
		Movers:       ecs.NewStore[component.Mover](w),
		Creatures:    ecs.NewStore[component.CreatureRuntime](w),
		AI:           ecs.NewStore[component.AIState](w),
		CreatureTags: ecs.NewStore[component.CreatureTag](w),
		Combat:       ecs.NewStore[component.CombatProfile](w),
		Skills:       ecs.NewStore[component.SkillSet](w),
		Stats:        ecs.NewStore[component.Stats](w),
		Peers:        ecs.NewStore[component.PeerLink](w),
		Corpses:      ecs.NewStore[component.Corpse](w),
		occupancy:    NewOccupancy(),
		aoi:          NewAOIGrid(opts.CellSize),
		byPeer:       make(map[uint32]ecs.EntityID),
		tilePx:       opts.TilePixels,
		viewX:        opts.ViewRangeX,
		viewY:        opts.ViewRangeY,
	}
	s.players = ecs.NewQuery2(w, s.Peers, s.Positions)
	s.indexed = ecs.NewQuery1(w, s.Positions)
	return s
}

func (s *State) Occupancy() *Occupancy { return s.occupancy }
func (s *State) AOI() *AOIGrid         { return s.aoi }
func (s *State) Tick() uint64          { return s.Clock.Now() }

// ViewRange returns the half-extent of the creature view box in tiles.
func (s *State) ViewRange() (int32, int32) { return s.viewX, s.viewY }

// PixelOf converts a tile coordinate to its pixel origin.
func (s *State) PixelOf(x, y int32) (int32, int32) {
	return x * s.tilePx, y * s.tilePx
}

// Chebyshev returns the 8-directional tile distance.
func Chebyshev(ax, ay, bx, by int32) int32 {
	dx := ax - bx
	if dx < 0 {
		dx = -dx
	}
	dy := ay - by
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// CanStand reports whether self could occupy the tile right now.
func (s *State) CanStand(floor int8, x, y int32, self ecs.EntityID) bool {
	return s.Grid.Walkable(x, y, floor) && !s.occupancy.IsOccupied(floor, x, y, self)
}

// IsOccupied returns true if another blocking entity holds the tile.
func (s *State) IsOccupied(floor int8, x, y int32, exclude ecs.EntityID) bool {
	return s.occupancy.IsOccupied(floor, x, y, exclude)
}

// OccupantAt returns the blocking entity on the tile, or 0.
func (s *State) OccupantAt(floor int8, x, y int32) ecs.EntityID {
	return s.occupancy.OccupantAt(floor, x, y)
}

// MoveOccupant transfers tile ownership. Fails if the destination is taken.
func (s *State) MoveOccupant(id ecs.EntityID, from *component.Position, toX, toY int32, toFloor int8) bool {
	return s.occupancy.Move(from.Floor, from.X, from.Y, toFloor, toX, toY, id)
}

// Vacate releases whatever tile id is standing on. Used when a creature dies
// and its corpse stops blocking.
func (s *State) Vacate(id ecs.EntityID) {
	if pos, ok := s.Positions.Get(id); ok {
		s.occupancy.Vacate(pos.Floor, pos.X, pos.Y, id)
	}
}

func (s *State) restingPosition(x, y int32, floor int8) component.Position {
	px, py := s.PixelOf(x, y)
	return component.Position{
		X: x, Y: y, Floor: floor,
		PrevPX: px, PrevPY: py,
		TargetPX: px, TargetPY: py,
		Progress: 1,
	}
}

// Teleport places an entity on a new tile without an interpolated step.
func (s *State) Teleport(id ecs.EntityID, x, y int32, floor int8) bool {
	pos, ok := s.Positions.Get(id)
	if !ok || !s.Grid.Walkable(x, y, floor) {
		return false
	}
	if !s.occupancy.Move(pos.Floor, pos.X, pos.Y, floor, x, y, id) {
		return false
	}
	*pos = s.restingPosition(x, y, floor)
	return true
}

// PlayerSpawn describes a player entity to create for a new peer.
type PlayerSpawn struct {
	PeerID uint32
	X, Y   int32
	Floor  int8
	Speed  int
	Combat component.CombatProfile
	Skills component.SkillSet
	Stats  component.Stats
}

// CreatePlayer creates a player entity with its full component set at the
// first free walkable tile found in rings around the requested position.
func (s *State) CreatePlayer(p PlayerSpawn) (ecs.EntityID, error) {
	if _, dup := s.byPeer[p.PeerID]; dup {
		return 0, fmt.Errorf("peer %d already has an entity", p.PeerID)
	}
	x, y, ok := s.FindFreeTile(p.X, p.Y, p.Floor, 8)
	if !ok {
		return 0, fmt.Errorf("no free tile near (%d,%d,%d)", p.X, p.Y, p.Floor)
	}
	id := s.ECS.Create(
		ecs.With(s.Peers, component.PeerLink{PeerID: p.PeerID}),
		ecs.With(s.Positions, s.restingPosition(x, y, p.Floor)),
		ecs.With(s.Intents, component.MovementIntent{Dir: component.DirNone}),
		ecs.With(s.Movers, component.Mover{Speed: p.Speed}),
		ecs.With(s.Combat, p.Combat),
		ecs.With(s.Skills, p.Skills),
		ecs.With(s.Stats, p.Stats),
	)
	s.occupancy.Occupy(p.Floor, x, y, id)
	s.byPeer[p.PeerID] = id
	return id, nil
}

// CreateCreature creates a live creature from a template. The caller must
// have checked the tile with CanStand.
func (s *State) CreateCreature(tpl *data.CreatureTemplate, x, y int32, floor int8, slot component.SlotRef) ecs.EntityID {
	id := s.ECS.Create(
		ecs.With(s.CreatureTags, component.CreatureTag{TemplateID: tpl.ID, Slot: slot}),
		ecs.With(s.Creatures, component.CreatureRuntime{
			HP: tpl.HP, MaxHP: tpl.HP,
			MP: tpl.MP, MaxMP: tpl.MP,
			AttackMin:  tpl.AttackMin,
			AttackMax:  tpl.AttackMax,
			Range:      tpl.Range,
			Armor:      tpl.Armor,
			Defense:    tpl.Defense,
			Behavior:   tpl.BehaviorClass(),
			Aggressive: tpl.Aggressive,
			LookRange:  tpl.LookRange,
			ChaseRange: tpl.ChaseRange,
			FleeHP:     tpl.FleeHP,
			Experience: tpl.Experience,
			AttackRate: tpl.AttackRate,
			SpawnX:     x,
			SpawnY:     y,
			SpawnFloor: floor,
		}),
		ecs.With(s.AI, component.AIState{State: component.AIIdle}),
		ecs.With(s.Positions, s.restingPosition(x, y, floor)),
		ecs.With(s.Intents, component.MovementIntent{Dir: component.DirNone}),
		ecs.With(s.Movers, component.Mover{Speed: tpl.Speed}),
	)
	s.occupancy.Occupy(floor, x, y, id)
	return id
}

// RemoveEntity releases the entity's tile and destroys it immediately.
// Must not be called from inside a query over its stores.
func (s *State) RemoveEntity(id ecs.EntityID) {
	s.Vacate(id)
	if link, ok := s.Peers.Get(id); ok {
		delete(s.byPeer, link.PeerID)
	}
	s.ECS.Destroy(id)
}

// RemoveLater releases the entity's tile now and queues it for cleanup.
func (s *State) RemoveLater(id ecs.EntityID) {
	s.Vacate(id)
	if link, ok := s.Peers.Get(id); ok {
		delete(s.byPeer, link.PeerID)
	}
	s.ECS.MarkForDestruction(id)
}

// PlayerByPeer returns the player entity bound to a peer.
func (s *State) PlayerByPeer(peerID uint32) (ecs.EntityID, bool) {
	id, ok := s.byPeer[peerID]
	return id, ok
}

func (s *State) PlayerCount() int { return len(s.byPeer) }

// EachPlayer iterates players in deterministic order.
func (s *State) EachPlayer(fn func(ecs.EntityID, *component.PeerLink, *component.Position)) {
	s.players.Each(fn)
}

func (s *State) IsPlayer(id ecs.EntityID) bool   { return s.Peers.Has(id) }
func (s *State) IsCreature(id ecs.EntityID) bool { return s.CreatureTags.Has(id) }

// IsDead reports whether a creature has entered its terminal state.
func (s *State) IsDead(id ecs.EntityID) bool {
	ai, ok := s.AI.Get(id)
	return ok && ai.State == component.AIDead
}

// Targetable reports whether id is a live player or a living creature.
func (s *State) Targetable(id ecs.EntityID) bool {
	if id.IsZero() || !s.ECS.Alive(id) {
		return false
	}
	if s.IsPlayer(id) {
		return true
	}
	return s.IsCreature(id) && !s.IsDead(id)
}

// HPPercent returns current HP as 0..100 for replication.
func (s *State) HPPercent(id ecs.EntityID) uint8 {
	var hp, maxHP int32
	if c, ok := s.Creatures.Get(id); ok {
		hp, maxHP = c.HP, c.MaxHP
	} else if st, ok := s.Stats.Get(id); ok {
		hp, maxHP = st.HP, st.MaxHP
	}
	if maxHP <= 0 || hp <= 0 {
		return 0
	}
	pct := hp * 100 / maxHP
	if pct > 100 {
		pct = 100
	}
	return uint8(pct)
}

// FindFreeTile searches square rings of growing radius around (x, y) for a
// tile that is walkable and unoccupied.
func (s *State) FindFreeTile(x, y int32, floor int8, radius int32) (int32, int32, bool) {
	if s.CanStand(floor, x, y, 0) {
		return x, y, true
	}
	for r := int32(1); r <= radius; r++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if dx != -r && dx != r && dy != -r && dy != r {
					continue
				}
				if s.CanStand(floor, x+dx, y+dy, 0) {
					return x + dx, y + dy, true
				}
			}
		}
	}
	return 0, 0, false
}

// RebuildAOI re-indexes every positioned entity from scratch and publishes
// CellEntered for entities whose cell changed since the last rebuild.
func (s *State) RebuildAOI() {
	s.aoi.Reset()
	s.indexed.Each(func(id ecs.EntityID, pos *component.Position) {
		if s.aoi.Insert(id, pos.X, pos.Y) {
			cx, cy := s.aoi.CellOf(pos.X, pos.Y)
			event.Publish(s.Bus, event.CellEntered{EntityID: id, CellX: cx, CellY: cy})
		}
	})
	s.aoi.Commit()
}

// Nearby appends the AOI candidates around a tile to dst.
func (s *State) Nearby(dst []ecs.EntityID, x, y int32) []ecs.EntityID {
	return s.aoi.Nearby(dst, x, y)
}

// VisibleTo appends everything observer can see: players on the same floor
// within the 3x3 cells, creatures additionally within the view box.
func (s *State) VisibleTo(dst []ecs.EntityID, observer ecs.EntityID) []ecs.EntityID {
	op, ok := s.Positions.Get(observer)
	if !ok {
		return dst
	}
	s.scratch = s.aoi.Nearby(s.scratch[:0], op.X, op.Y)
	for _, id := range s.scratch {
		pos, ok := s.Positions.Get(id)
		if !ok || pos.Floor != op.Floor {
			continue
		}
		if s.IsCreature(id) {
			dx, dy := pos.X-op.X, pos.Y-op.Y
			if dx < -s.viewX || dx > s.viewX || dy < -s.viewY || dy > s.viewY {
				continue
			}
		}
		dst = append(dst, id)
	}
	return dst
}

// NearestPlayer returns the closest player on the floor within maxRange
// (Chebyshev). Ties go to the lower entity id.
func (s *State) NearestPlayer(x, y int32, floor int8, maxRange int32) (ecs.EntityID, int32, bool) {
	var best ecs.EntityID
	bestDist := maxRange + 1
	consider := func(id ecs.EntityID, pos *component.Position) {
		if pos.Floor != floor {
			return
		}
		d := Chebyshev(x, y, pos.X, pos.Y)
		if d < bestDist || (d == bestDist && id < best) {
			best, bestDist = id, d
		}
	}
	if maxRange <= s.aoi.CellSize() {
		s.scratch = s.aoi.Nearby(s.scratch[:0], x, y)
		for _, id := range s.scratch {
			if !s.IsPlayer(id) {
				continue
			}
			if pos, ok := s.Positions.Get(id); ok {
				consider(id, pos)
			}
		}
	} else {
		s.players.Each(func(id ecs.EntityID, _ *component.PeerLink, pos *component.Position) {
			consider(id, pos)
		})
	}
	if best.IsZero() {
		return 0, 0, false
	}
	return best, bestDist, true
}
