package system

import (
	"time"

	coresys "github.com/tilerealm/server/internal/core/system"
	"github.com/tilerealm/server/internal/world"
)

// CleanupSystem destroys entities queued with RemoveLater (corpses replaced
// by a respawn) once every other phase is done with them. Phase 6 (Cleanup).
type CleanupSystem struct {
	world     *world.State
	destroyed uint64
}

func NewCleanupSystem(ws *world.State) *CleanupSystem {
	return &CleanupSystem{world: ws}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	s.destroyed += uint64(s.world.ECS.FlushDestroyQueue())
}

// Destroyed returns the number of entities destroyed since start.
func (s *CleanupSystem) Destroyed() uint64 { return s.destroyed }
