package repository

import (
	"context"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"

	"github.com/google/uuid"
)

// AuditEntry is one append-only row of the box change log. Coil write attempts
// are recorded here regardless of outcome.
type AuditEntry struct {
	ID        int64
	ActorRole string
	ActorID   uuid.UUID
	BoxNumber int
	Action    string
	PrevValue string
	NewValue  string
	Success   bool
	Detail    string
	CreatedAt time.Time
}

type AuditRepository struct {
	db db.DBTX
}

func NewAuditRepository(pool db.DBTX) *AuditRepository {
	return &AuditRepository{db: pool}
}

func (r *AuditRepository) Append(ctx context.Context, tx db.DBTX, act actor.Actor, boxNumber int, action, prevValue, newValue string, success bool, detail string, now time.Time) error {
	const query = `
		INSERT INTO box_audit_log (actor_role, actor_id, box_number, action, prev_value, new_value, success, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err := tx.Exec(ctx, query,
		act.Role.String(), act.ID, boxNumber, action, prevValue, newValue, success, detail, now,
	)
	if err != nil {
		return infra.WrapRepoErr("failed to append audit entry", err)
	}
	return nil
}

func (r *AuditRepository) ListByBox(ctx context.Context, boxNumber int, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
		SELECT id, actor_role, actor_id, box_number, action, prev_value, new_value, success, detail, created_at
		FROM box_audit_log
		WHERE box_number = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, boxNumber, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list audit entries", err)
	}
	defer rows.Close()

	var result []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(
			&e.ID, &e.ActorRole, &e.ActorID, &e.BoxNumber, &e.Action,
			&e.PrevValue, &e.NewValue, &e.Success, &e.Detail, &e.CreatedAt,
		); err != nil {
			return nil, infra.WrapRepoErr("failed to scan audit entry", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate audit entries", err)
	}
	return result, nil
}
