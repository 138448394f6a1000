package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/queue"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Queue order is (priority DESC, enqueued_at ASC): reassigned sessions jump
// ahead, everyone else is strict FIFO.
const queueOrder = ` ORDER BY priority DESC, enqueued_at ASC`

type QueueRepository struct {
	db db.DBTX
}

func NewQueueRepository(pool db.DBTX) *QueueRepository {
	return &QueueRepository{db: pool}
}

func (r *QueueRepository) Insert(ctx context.Context, tx db.DBTX, e queue.Entry) error {
	const query = `
		INSERT INTO queue_entries (session_id, service_type, enqueued_at, priority)
		VALUES ($1, $2, $3, $4)
	`
	_, err := tx.Exec(ctx, query, e.SessionID, e.ServiceType.String(), e.EnqueuedAt, e.Priority)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("session already queued", err, infra.KindConflict)
		}
		return infra.WrapRepoErr("failed to enqueue session", err)
	}
	return nil
}

func (r *QueueRepository) Delete(ctx context.Context, tx db.DBTX, sessionID uuid.UUID) error {
	const query = `DELETE FROM queue_entries WHERE session_id = $1`
	_, err := tx.Exec(ctx, query, sessionID)
	if err != nil {
		return infra.WrapRepoErr("failed to remove queue entry", err)
	}
	return nil
}

// Oldest returns the head of one service-type queue.
func (r *QueueRepository) Oldest(ctx context.Context, serviceType session.ServiceType) (*queue.Entry, error) {
	query := `
		SELECT session_id, service_type, enqueued_at, priority
		FROM queue_entries
		WHERE service_type = $1` + queueOrder + `
		LIMIT 1`
	e, err := scanEntry(r.db.QueryRow(ctx, query, serviceType.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("queue is empty", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to read queue head", err)
	}
	return e, nil
}

func (r *QueueRepository) ListByService(ctx context.Context, serviceType session.ServiceType) ([]queue.Entry, error) {
	query := `
		SELECT session_id, service_type, enqueued_at, priority
		FROM queue_entries
		WHERE service_type = $1` + queueOrder
	rows, err := r.db.Query(ctx, query, serviceType.String())
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list queue entries", err)
	}
	defer rows.Close()

	var result []queue.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan queue entry", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate queue entries", err)
	}
	return result, nil
}

// Position is 1-based within the session's service-type queue: the head of
// the line is 1.
func (r *QueueRepository) Position(ctx context.Context, sessionID uuid.UUID) (int, error) {
	const query = `
		SELECT pos FROM (
			SELECT session_id,
			       ROW_NUMBER() OVER (ORDER BY priority DESC, enqueued_at ASC) AS pos
			FROM queue_entries
			WHERE service_type = (
				SELECT service_type FROM queue_entries WHERE session_id = $1
			)
		) ranked
		WHERE session_id = $1`
	var pos int
	err := r.db.QueryRow(ctx, query, sessionID).Scan(&pos)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, infra.WrapRepoErr("session is not queued", err, infra.KindNotFound)
		}
		return 0, infra.WrapRepoErr("failed to compute queue position", err)
	}
	return pos, nil
}

func (r *QueueRepository) CountByService(ctx context.Context, serviceType session.ServiceType) (int, error) {
	const query = `SELECT COUNT(*) FROM queue_entries WHERE service_type = $1`
	var count int
	if err := r.db.QueryRow(ctx, query, serviceType.String()).Scan(&count); err != nil {
		return 0, infra.WrapRepoErr("failed to count queue entries", err)
	}
	return count, nil
}

func scanEntry(row pgx.Row) (*queue.Entry, error) {
	var (
		sessionID   uuid.UUID
		serviceType string
		enqueuedAt  time.Time
		priority    bool
	)
	if err := row.Scan(&sessionID, &serviceType, &enqueuedAt, &priority); err != nil {
		return nil, err
	}
	svc, err := session.ParseServiceType(serviceType)
	if err != nil {
		return nil, err
	}
	return &queue.Entry{
		SessionID:   sessionID,
		ServiceType: svc,
		EnqueuedAt:  enqueuedAt,
		Priority:    priority,
	}, nil
}
