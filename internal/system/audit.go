package system

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/tilerealm/server/internal/core/ecs"
	"github.com/tilerealm/server/internal/core/event"
	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/net"
	"github.com/tilerealm/server/internal/persist"
	"github.com/tilerealm/server/internal/world"
	"go.uber.org/zap"
)

// maxPendingAudit caps entries held while the writer is behind.
const maxPendingAudit = 10000

// AuditWriter stores a batch of audit entries.
type AuditWriter interface {
	WriteBatch(ctx context.Context, entries []persist.AuditEntry) error
}

// AuditSystem collects peer lifecycle, death and level-up events during the tick and hands them
// to a writer goroutine every interval ticks. Phase 5 (Persist).
type AuditSystem struct {
	world     *world.State
	writer    AuditWriter
	interval  int
	tickCount int
	pending   []persist.AuditEntry
	batches   chan []persist.AuditEntry
	wg        sync.WaitGroup
	now       func() time.Time
	dropped   int
	log       *zap.Logger
}

func NewAuditSystem(ws *world.State, writer AuditWriter, intervalTicks int, log *zap.Logger) *AuditSystem {
	if intervalTicks <= 0 {
		intervalTicks = 1
	}
	s := &AuditSystem{
		world:    ws,
		writer:   writer,
		interval: intervalTicks,
		batches:  make(chan []persist.AuditEntry, 8),
		now:      time.Now,
		log:      log,
	}
	event.Subscribe(ws.Bus, s.onConnected)
	event.Subscribe(ws.Bus, s.onDisconnected)
	event.Subscribe(ws.Bus, s.onPlayerDied)
	event.Subscribe(ws.Bus, s.onLevelUp)
	s.wg.Add(1)
	go s.writeLoop()
	return s
}

func (s *AuditSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *AuditSystem) onConnected(ev event.PeerConnected) {
	s.record(persist.AuditEntry{
		Kind:     persist.AuditConnect,
		PeerID:   ev.PeerID,
		EntityID: uint32(ev.EntityID),
		Addr:     ev.Addr,
	})
}

func (s *AuditSystem) onDisconnected(ev event.PeerDisconnected) {
	kind := persist.AuditDisconnect
	switch ev.Reason {
	case net.KickRateLimit, net.KickBackpressure:
		kind = persist.AuditKick
	}
	s.record(persist.AuditEntry{
		Kind:     kind,
		PeerID:   ev.PeerID,
		EntityID: uint32(ev.EntityID),
		Addr:     ev.Addr,
		Reason:   ev.Reason,
	})
}

func (s *AuditSystem) onPlayerDied(ev event.PlayerDied) {
	reason := "killed by " + strconv.FormatUint(uint64(ev.Killer), 10)
	if ev.Killer == 0 {
		reason = "died"
	}
	s.record(persist.AuditEntry{
		Kind:     persist.AuditDeath,
		PeerID:   s.peerOf(ev.EntityID),
		EntityID: uint32(ev.EntityID),
		Reason:   reason,
	})
}

func (s *AuditSystem) onLevelUp(ev event.LevelUp) {
	s.record(persist.AuditEntry{
		Kind:     persist.AuditLevelUp,
		PeerID:   s.peerOf(ev.EntityID),
		EntityID: uint32(ev.EntityID),
		Reason:   "level " + strconv.FormatInt(int64(ev.Level), 10),
	})
}

func (s *AuditSystem) peerOf(id ecs.EntityID) uint32 {
	if link, ok := s.world.Peers.Get(id); ok {
		return link.PeerID
	}
	return 0
}

func (s *AuditSystem) record(e persist.AuditEntry) {
	e.Tick = s.world.Tick()
	e.At = s.now()
	if len(s.pending) >= maxPendingAudit {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, e)
}

func (s *AuditSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.flush(false)
}

func (s *AuditSystem) flush(block bool) {
	if len(s.pending) == 0 {
		return
	}
	batch := s.pending
	if block {
		s.batches <- batch
	} else {
		select {
		case s.batches <- batch:
		default:
			s.log.Warn("audit writer behind, holding batch", zap.Int("pending", len(s.pending)))
			return
		}
	}
	s.pending = nil
	if s.dropped > 0 {
		s.log.Warn("audit entries dropped", zap.Int("count", s.dropped))
		s.dropped = 0
	}
}

// Pending returns the number of entries not yet handed to the writer.
func (s *AuditSystem) Pending() int { return len(s.pending) }

// Close hands over what is left and waits for the writer to finish.
func (s *AuditSystem) Close() {
	s.flush(true)
	close(s.batches)
	s.wg.Wait()
}

func (s *AuditSystem) writeLoop() {
	defer s.wg.Done()
	for batch := range s.batches {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.writer.WriteBatch(ctx, batch); err != nil {
			s.log.Error("audit write failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		cancel()
	}
}
