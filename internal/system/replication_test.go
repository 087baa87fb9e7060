package system

import (
	"errors"
	"testing"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/net/packet"
)

func (nf *netFixture) joined(names ...string) []*net.Session {
	nf.t.Helper()
	out := make([]*net.Session, len(names))
	for i, name := range names {
		out[i] = nf.connect(defaultOpts())
		nf.join(out[i], name)
	}
	nf.input.Update(0)
	for _, sess := range out {
		if sess.State() != packet.StateInWorld {
			nf.t.Fatalf("%s did not join", sess.Name)
		}
		nf.sent(sess)
	}
	return out
}

func TestReplicationFullThenDelta(t *testing.T) {
	nf := newNetFixture(t)
	peers := nf.joined("ash", "birch")
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)

	nf.tick()
	repl.Update(0)
	for _, sess := range peers {
		got := types(nf.sent(sess))
		if len(got) != 1 || got[0] != packet.S_WORLD_STATE {
			t.Fatalf("%s first update = %v, want one full snapshot", sess.Name, got)
		}
		if !sess.Baseline.Valid() || sess.Baseline.Len() != 2 {
			t.Fatalf("%s baseline valid=%v len=%d", sess.Name, sess.Baseline.Valid(), sess.Baseline.Len())
		}
	}

	nf.tick()
	repl.Update(0)
	for _, sess := range peers {
		got := types(nf.sent(sess))
		if len(got) != 1 || got[0] != packet.S_WORLD_DELTA {
			t.Fatalf("%s second update = %v, want one delta", sess.Name, got)
		}
	}
	if full, delta := repl.Sent(); full != 2 || delta != 2 {
		t.Fatalf("sent full=%d delta=%d, want 2 and 2", full, delta)
	}
}

func TestReplicationFloorChangeOnlyToMover(t *testing.T) {
	nf := newNetFixture(t)
	peers := nf.joined("climber", "stayer")
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)
	nf.tick()
	repl.Update(0)
	nf.sent(peers[0])
	nf.sent(peers[1])

	mover := peers[0].EntityID
	event.Publish(nf.world.Bus, event.FloorChanged{EntityID: mover, FromFloor: 0, ToFloor: 1, X: 1, Y: 1})
	event.Publish(nf.world.Bus, event.FloorChanged{EntityID: mover, FromFloor: 1, ToFloor: 0, X: 1, Y: 1})
	nf.tick()
	repl.Update(0)

	got := types(nf.sent(peers[0]))
	if len(got) < 2 || got[0] != packet.S_FLOOR_CHANGE {
		t.Fatalf("mover got %v, want floor change first", got)
	}
	floorChanges := 0
	for _, typ := range got {
		if typ == packet.S_FLOOR_CHANGE {
			floorChanges++
		}
	}
	if floorChanges != 1 {
		t.Fatalf("mover got %d floor changes, want them merged into 1", floorChanges)
	}
	if containsType(nf.sent(peers[1]), packet.S_FLOOR_CHANGE) {
		t.Fatal("floor change must only go to the mover")
	}

	nf.tick()
	repl.Update(0)
	if containsType(nf.sent(peers[0]), packet.S_FLOOR_CHANGE) {
		t.Fatal("floor change repeated on the next tick")
	}
}

func TestReplicationSendsDirtyStatsOnce(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.joined("scholar")[0]
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)

	st, _ := nf.world.Stats.Get(sess.EntityID)
	st.HP -= 10
	st.Dirty = true
	sk, _ := nf.world.Skills.Get(sess.EntityID)
	sk.Skills[0].Tries++
	sk.Dirty = true

	nf.tick()
	repl.Update(0)
	got := types(nf.sent(sess))
	want := []uint8{packet.S_WORLD_STATE, packet.S_STATS_UPDATE, packet.S_SKILLS_UPDATE}
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent[%d] = %s, want %s", i, packet.TypeName(got[i]), packet.TypeName(want[i]))
		}
	}
	if st.Dirty || sk.Dirty {
		t.Fatal("dirty flags must clear once sent")
	}

	nf.tick()
	repl.Update(0)
	if got := types(nf.sent(sess)); len(got) != 1 {
		t.Fatalf("clean tick sent %v, want only the world update", got)
	}
}

func TestReplicationSkipsPeersOutsideWorld(t *testing.T) {
	nf := newNetFixture(t)
	lobby := nf.connect(defaultOpts())
	nf.input.Update(0)
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)

	nf.tick()
	repl.Update(0)
	if got := nf.sent(lobby); len(got) != 0 {
		t.Fatalf("peer that has not joined got %v", types(got))
	}
}

func TestReplicationPushesStatsOnLevelUp(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.joined("climber")[0]
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)
	nf.tick()
	repl.Update(0)
	nf.sent(sess)

	st, _ := nf.world.Stats.Get(sess.EntityID)
	st.Dirty = false
	event.Publish(nf.world.Bus, event.LevelUp{EntityID: sess.EntityID, Level: 2})
	nf.tick()
	repl.Update(0)
	if !containsType(nf.sent(sess), packet.S_STATS_UPDATE) {
		t.Fatal("level-up tick must carry a stats update")
	}

	nf.tick()
	repl.Update(0)
	if containsType(nf.sent(sess), packet.S_STATS_UPDATE) {
		t.Fatal("stats repeated after the level-up tick")
	}
}

func TestReplicationFullSnapshotAfterRespawn(t *testing.T) {
	nf := newNetFixture(t)
	peers := nf.joined("fallen", "witness")
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)
	nf.tick()
	repl.Update(0)
	nf.sent(peers[0])
	nf.sent(peers[1])

	event.Publish(nf.world.Bus, event.PlayerDied{EntityID: peers[0].EntityID})
	nf.tick()
	repl.Update(0)
	if got := types(nf.sent(peers[0])); len(got) == 0 || got[0] != packet.S_WORLD_STATE {
		t.Fatalf("respawned player got %v, want a full snapshot", got)
	}
	if got := types(nf.sent(peers[1])); len(got) == 0 || got[0] != packet.S_WORLD_DELTA {
		t.Fatalf("witness got %v, want a delta", got)
	}
}

// dropDeltas fails to encode world deltas.
type dropDeltas struct{ packet.Codec }

func (c dropDeltas) Encode(msg packet.Message) ([]byte, error) {
	if _, ok := msg.(packet.WorldDelta); ok {
		return nil, errors.New("encoder out of space")
	}
	return c.Codec.Encode(msg)
}

func TestReplicationResendsFullAfterFailedSend(t *testing.T) {
	nf := newNetFixture(t)
	sess := nf.joined("lossy")[0]
	repl := NewReplicationSystem(nf.world, nf.store, nil, nf.log)
	nf.tick()
	repl.Update(0)
	nf.sent(sess)

	codec := sess.Codec
	sess.Codec = dropDeltas{codec}
	nf.tick()
	repl.Update(0)
	if got := nf.sent(sess); len(got) != 0 {
		t.Fatalf("failed delta still sent %v", types(got))
	}
	if sess.Baseline.Valid() {
		t.Fatal("baseline must be invalid after a failed send")
	}

	sess.Codec = codec
	nf.tick()
	repl.Update(0)
	if got := types(nf.sent(sess)); len(got) != 1 || got[0] != packet.S_WORLD_STATE {
		t.Fatalf("after failure got %v, want a full snapshot", got)
	}
}
