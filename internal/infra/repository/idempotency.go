package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRecord mirrors one row of the dedup table. Replayed requests get
// the session created by the first attempt instead of a duplicate.
type IdempotencyRecord struct {
	Key             uuid.UUID
	UserID          uuid.UUID
	Endpoint        string
	RequestHash     string
	Status          string
	ResultSessionID *uuid.UUID
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

const (
	IdempotencyProcessing = "processing"
	IdempotencyCompleted  = "completed"
)

type IdempotencyRepository struct {
	db    db.DBTX
	clock clock.Clock
}

func NewIdempotencyRepository(pool db.DBTX, clk clock.Clock) *IdempotencyRepository {
	return &IdempotencyRepository{db: pool, clock: clk}
}

// TryInsert is a no-op when the key already exists; the caller then reads the
// row back and decides between replay and conflict.
func (r *IdempotencyRepository) TryInsert(ctx context.Context, key, userID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) error {
	const query = `
		INSERT INTO idempotency_keys (key, user_id, endpoint, request_hash, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, 'processing', $5, NOW())
		ON CONFLICT (key, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, key, userID, endpoint, requestHash, expiresAt); err != nil {
		return infra.WrapRepoErr("failed to insert idempotency key", err)
	}
	return nil
}

func (r *IdempotencyRepository) Get(ctx context.Context, key, userID uuid.UUID) (*IdempotencyRecord, error) {
	const query = `
		SELECT key, user_id, endpoint, request_hash, status, result_session_id, expires_at, created_at
		FROM idempotency_keys
		WHERE key = $1 AND user_id = $2
	`
	var rec IdempotencyRecord
	err := r.db.QueryRow(ctx, query, key, userID).Scan(
		&rec.Key, &rec.UserID, &rec.Endpoint, &rec.RequestHash,
		&rec.Status, &rec.ResultSessionID, &rec.ExpiresAt, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("idempotency key not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to get idempotency key", err)
	}

	// Expired keys are treated as absent; DeleteExpired reaps them later.
	if r.clock.Now().After(rec.ExpiresAt) {
		return nil, infra.WrapRepoErr("idempotency key expired", nil, infra.KindNotFound)
	}

	return &rec, nil
}

func (r *IdempotencyRepository) MarkCompleted(ctx context.Context, tx db.DBTX, key, userID, resultSessionID uuid.UUID) error {
	const query = `
		UPDATE idempotency_keys
		SET status = 'completed', result_session_id = $3
		WHERE key = $1 AND user_id = $2
	`
	if _, err := tx.Exec(ctx, query, key, userID, resultSessionID); err != nil {
		return infra.WrapRepoErr("failed to complete idempotency key", err)
	}
	return nil
}

func (r *IdempotencyRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `DELETE FROM idempotency_keys WHERE expires_at < $1`
	tag, err := r.db.Exec(ctx, query, now)
	if err != nil {
		return 0, infra.WrapRepoErr("failed to delete expired idempotency keys", err)
	}
	return tag.RowsAffected(), nil
}
