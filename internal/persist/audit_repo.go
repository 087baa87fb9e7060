package persist

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Audit entry kinds.
const (
	AuditConnect    = "connect"
	AuditDisconnect = "disconnect"
	AuditKick       = "kick"
	AuditDeath      = "death"
	AuditLevelUp    = "level_up"
)

// AuditEntry is one peer lifecycle record.
type AuditEntry struct {
	Kind     string
	PeerID   uint32
	EntityID uint32
	Addr     string
	Reason   string
	Tick     uint64
	At       time.Time
}

type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo {
	return &AuditRepo{db: db}
}

var auditColumns = []string{"kind", "peer_id", "entity_id", "addr", "reason", "tick", "occurred_at"}

// WriteBatch copies a batch of entries in one round trip.
func (r *AuditRepo) WriteBatch(ctx context.Context, entries []AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	n, err := r.db.Pool.CopyFrom(ctx,
		pgx.Identifier{"peer_audit"},
		auditColumns,
		pgx.CopyFromSlice(len(entries), func(i int) ([]any, error) {
			e := entries[i]
			return []any{e.Kind, int64(e.PeerID), int64(e.EntityID), e.Addr, e.Reason, int64(e.Tick), e.At}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("audit copy: %w", err)
	}
	if int(n) != len(entries) {
		return fmt.Errorf("audit copy: wrote %d of %d rows", n, len(entries))
	}
	return nil
}
