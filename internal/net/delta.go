package net

import (
	"sort"

	"github.com/tilerealm/server/internal/net/packet"
)

// FullSnapshotRatio is the changed/baseline ratio at which a full snapshot
// replaces a delta.
const FullSnapshotRatio = 0.7

// Baseline is the last snapshot sent to one observer.
type Baseline struct {
	valid    bool
	tick     uint32
	entities map[uint32]packet.EntitySnapshot
	spare    map[uint32]packet.EntitySnapshot
}

// Valid reports whether a snapshot has been sent since the last Invalidate.
func (b *Baseline) Valid() bool { return b.valid }

func (b *Baseline) Tick() uint32 { return b.tick }

func (b *Baseline) Len() int { return len(b.entities) }

// Invalidate forces the next update to be a full snapshot.
func (b *Baseline) Invalidate() { b.valid = false }

// Next builds the update for tick from the observer's current visible set
// and advances the baseline to it. The result is a packet.WorldState when
// there is no baseline or at least FullSnapshotRatio of the baseline
// changed, otherwise a packet.WorldDelta. current is sorted in place by id.
func (b *Baseline) Next(tick uint32, current []packet.EntitySnapshot) packet.Message {
	sort.Slice(current, func(i, j int) bool { return current[i].ID < current[j].ID })

	var msg packet.Message
	if !b.valid {
		msg = fullSnapshot(tick, current)
	} else {
		d := b.diff(tick, current)
		k := len(d.Updated) + len(d.Added) + len(d.Removed)
		n := len(b.entities)
		if k > 0 && (n == 0 || float64(k)/float64(n) >= FullSnapshotRatio) {
			msg = fullSnapshot(tick, current)
		} else {
			msg = d
		}
	}
	b.advance(tick, current)
	return msg
}

func fullSnapshot(tick uint32, current []packet.EntitySnapshot) packet.WorldState {
	ents := make([]packet.EntitySnapshot, len(current))
	copy(ents, current)
	return packet.WorldState{Tick: tick, Entities: ents}
}

func (b *Baseline) diff(tick uint32, current []packet.EntitySnapshot) packet.WorldDelta {
	d := packet.WorldDelta{Tick: tick, BaseTick: b.tick}
	for i := range current {
		cur := &current[i]
		prev, ok := b.entities[cur.ID]
		if !ok || prev.Kind != cur.Kind || prev.CreatureType != cur.CreatureType {
			d.Added = append(d.Added, *cur)
			continue
		}
		var mask uint8
		if prev.X != cur.X || prev.Y != cur.Y {
			mask |= packet.FieldTile
		}
		if prev.PX != cur.PX || prev.PY != cur.PY {
			mask |= packet.FieldPixel
		}
		if prev.HPPercent != cur.HPPercent {
			mask |= packet.FieldHP
		}
		if mask != 0 {
			d.Updated = append(d.Updated, packet.EntityDelta{
				ID: cur.ID, Mask: mask,
				X: cur.X, Y: cur.Y, PX: cur.PX, PY: cur.PY,
				HPPercent: cur.HPPercent,
			})
		}
	}
	if len(b.entities) > 0 {
		present := make(map[uint32]struct{}, len(current))
		for i := range current {
			present[current[i].ID] = struct{}{}
		}
		for id := range b.entities {
			if _, ok := present[id]; !ok {
				d.Removed = append(d.Removed, id)
			}
		}
		sort.Slice(d.Removed, func(i, j int) bool { return d.Removed[i] < d.Removed[j] })
	}
	return d
}

func (b *Baseline) advance(tick uint32, current []packet.EntitySnapshot) {
	next := b.spare
	if next == nil {
		next = make(map[uint32]packet.EntitySnapshot, len(current))
	} else {
		clear(next)
	}
	for i := range current {
		next[current[i].ID] = current[i]
	}
	b.spare = b.entities
	b.entities = next
	b.tick = tick
	b.valid = true
}
