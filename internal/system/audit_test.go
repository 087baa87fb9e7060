package system

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tilerealm/server/internal/core/event"
	"github.com/tilerealm/server/internal/persist"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]persist.AuditEntry
	fail    bool
}

func (w *recordingWriter) WriteBatch(_ context.Context, entries []persist.AuditEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.batches = append(w.batches, entries)
	if w.fail {
		return errors.New("database unavailable")
	}
	return nil
}

func (w *recordingWriter) entries() []persist.AuditEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []persist.AuditEntry
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func TestAuditBatchesEveryInterval(t *testing.T) {
	f := newFixture(t, 8, 8)
	w := &recordingWriter{}
	audit := NewAuditSystem(f.world, w, 3, f.log)

	event.Publish(f.world.Bus, event.PeerConnected{PeerID: 1, EntityID: 10, Addr: "a"})
	event.Publish(f.world.Bus, event.PeerDisconnected{PeerID: 2, EntityID: 11, Addr: "b", Reason: "leave"})
	event.Publish(f.world.Bus, event.PeerDisconnected{PeerID: 3, EntityID: 12, Addr: "c", Reason: "rate limit"})

	audit.Update(0)
	audit.Update(0)
	if audit.Pending() != 3 {
		t.Fatalf("pending before interval = %d, want 3", audit.Pending())
	}
	audit.Update(0)
	if audit.Pending() != 0 {
		t.Fatalf("pending after interval = %d, want 0", audit.Pending())
	}
	audit.Close()

	got := w.entries()
	if len(got) != 3 {
		t.Fatalf("written %d entries, want 3", len(got))
	}
	wantKinds := []string{persist.AuditConnect, persist.AuditDisconnect, persist.AuditKick}
	for i, want := range wantKinds {
		if got[i].Kind != want {
			t.Fatalf("entry %d kind = %q, want %q", i, got[i].Kind, want)
		}
	}
	if got[2].Reason != "rate limit" || got[2].PeerID != 3 || got[2].EntityID != 12 {
		t.Fatalf("kick entry = %+v", got[2])
	}
}

func TestAuditCloseFlushesRemainder(t *testing.T) {
	f := newFixture(t, 8, 8)
	w := &recordingWriter{fail: true}
	audit := NewAuditSystem(f.world, w, 100, f.log)

	event.Publish(f.world.Bus, event.PeerDisconnected{PeerID: 4, Reason: "backpressure"})
	audit.Update(0)
	audit.Close()

	got := w.entries()
	if len(got) != 1 || got[0].Kind != persist.AuditKick {
		t.Fatalf("entries = %+v, want one kick", got)
	}
}

func TestAuditRecordsDeathsAndLevelUps(t *testing.T) {
	f := newFixture(t, 8, 8)
	w := &recordingWriter{}
	audit := NewAuditSystem(f.world, w, 1, f.log)
	p := f.player(2, 2)

	event.Publish(f.world.Bus, event.LevelUp{EntityID: p, Level: 4})
	event.Publish(f.world.Bus, event.PlayerDied{EntityID: p, Killer: 42})
	audit.Update(0)
	audit.Close()

	got := w.entries()
	if len(got) != 2 {
		t.Fatalf("entries = %+v", got)
	}
	if got[0].Kind != persist.AuditLevelUp || got[0].PeerID != 1 || got[0].Reason != "level 4" {
		t.Fatalf("level-up entry = %+v", got[0])
	}
	if got[1].Kind != persist.AuditDeath || got[1].EntityID != uint32(p) || got[1].Reason != "killed by 42" {
		t.Fatalf("death entry = %+v", got[1])
	}
}
