package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const boxColumns = `
	id, box_number, status, service_type, chemistry_enabled,
	light_coil_register, chemistry_coil_register,
	current_session_id, cleaning_started_at, created_at, updated_at`

type WashBoxRepository struct {
	db db.DBTX
}

func NewWashBoxRepository(pool db.DBTX) *WashBoxRepository {
	return &WashBoxRepository{db: pool}
}

func (r *WashBoxRepository) Create(ctx context.Context, tx db.DBTX, b *washbox.WashBox) error {
	const query = `
		INSERT INTO wash_boxes (
			id, box_number, status, service_type, chemistry_enabled,
			light_coil_register, chemistry_coil_register,
			current_session_id, cleaning_started_at, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := tx.Exec(ctx, query,
		b.ID(), b.Number(), b.Status().String(), b.ServiceType().String(), b.ChemistryEnabled(),
		b.LightCoilRegister(), b.ChemistryCoilRegister(),
		b.CurrentSessionID(), b.CleaningStartedAt(), b.CreatedAt(), b.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("box number already exists", err, infra.KindDuplicateKey)
		}
		return infra.WrapRepoErr("failed to create box", err)
	}
	return nil
}

func (r *WashBoxRepository) Update(ctx context.Context, tx db.DBTX, b *washbox.WashBox) error {
	const query = `
		UPDATE wash_boxes SET
			status = $2,
			service_type = $3,
			chemistry_enabled = $4,
			light_coil_register = $5,
			chemistry_coil_register = $6,
			current_session_id = $7,
			cleaning_started_at = $8,
			updated_at = $9
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		b.ID(), b.Status().String(), b.ServiceType().String(), b.ChemistryEnabled(),
		b.LightCoilRegister(), b.ChemistryCoilRegister(),
		b.CurrentSessionID(), b.CleaningStartedAt(), b.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update box", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("box not found", nil, infra.KindNotFound)
	}
	return nil
}

// Reserve is the compare-and-swap exit from free: the row only moves if it is
// still free at commit time, so a racing scheduler pass or manual reassignment
// loses cleanly instead of double-booking.
func (r *WashBoxRepository) Reserve(ctx context.Context, tx db.DBTX, number int, sessionID uuid.UUID, now time.Time) (*washbox.WashBox, error) {
	query := `
		UPDATE wash_boxes SET
			status = 'reserved',
			current_session_id = $2,
			updated_at = $3
		WHERE box_number = $1 AND status = 'free'
		RETURNING ` + boxColumns
	b, err := scanBox(tx.QueryRow(ctx, query, number, sessionID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("box is no longer free", err, infra.KindConflict)
		}
		return nil, infra.WrapRepoErr("failed to reserve box", err)
	}
	return b, nil
}

func (r *WashBoxRepository) FindByNumber(ctx context.Context, number int) (*washbox.WashBox, error) {
	query := `SELECT ` + boxColumns + ` FROM wash_boxes WHERE box_number = $1`
	b, err := scanBox(r.db.QueryRow(ctx, query, number))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("box not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to find box", err)
	}
	return b, nil
}

// FindFree returns free boxes of a service type, lowest number first, so
// assignment order is deterministic.
func (r *WashBoxRepository) FindFree(ctx context.Context, serviceType session.ServiceType) ([]*washbox.WashBox, error) {
	query := `SELECT ` + boxColumns + `
		FROM wash_boxes
		WHERE status = 'free' AND service_type = $1
		ORDER BY box_number`
	rows, err := r.db.Query(ctx, query, serviceType.String())
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find free boxes", err)
	}
	defer rows.Close()
	return scanBoxes(rows)
}

func (r *WashBoxRepository) List(ctx context.Context) ([]*washbox.WashBox, error) {
	query := `SELECT ` + boxColumns + ` FROM wash_boxes ORDER BY box_number`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list boxes", err)
	}
	defer rows.Close()
	return scanBoxes(rows)
}

// FindCleaningExpired returns boxes stuck in cleaning past the timeout.
func (r *WashBoxRepository) FindCleaningExpired(ctx context.Context, timeout time.Duration, now time.Time) ([]*washbox.WashBox, error) {
	query := `SELECT ` + boxColumns + `
		FROM wash_boxes
		WHERE status = 'cleaning'
		  AND cleaning_started_at IS NOT NULL
		  AND cleaning_started_at + $1::interval < $2
		ORDER BY box_number`
	rows, err := r.db.Query(ctx, query, timeout, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find expired cleanings", err)
	}
	defer rows.Close()
	return scanBoxes(rows)
}

func scanBoxes(rows pgx.Rows) ([]*washbox.WashBox, error) {
	var result []*washbox.WashBox
	for rows.Next() {
		b, err := scanBox(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan box row", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate box rows", err)
	}
	return result, nil
}

func scanBox(row pgx.Row) (*washbox.WashBox, error) {
	var (
		id                   uuid.UUID
		number               int
		status, serviceType  string
		chemistryEnabled     bool
		lightReg, chemReg    string
		currentSessionID     *uuid.UUID
		cleaningStartedAt    *time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(
		&id, &number, &status, &serviceType, &chemistryEnabled,
		&lightReg, &chemReg, &currentSessionID, &cleaningStartedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	st, err := washbox.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	svc, err := session.ParseServiceType(serviceType)
	if err != nil {
		return nil, err
	}

	return washbox.Reconstruct(
		id, number, st, svc, chemistryEnabled, lightReg, chemReg,
		currentSessionID, cleaningStartedAt, createdAt, updatedAt,
	), nil
}
