package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/google/uuid"
)

const sessionColumns = `
	id, user_id, service_type, status, box_number,
	rental_time_minutes, extension_time_minutes, requested_extension_time_minutes,
	with_chemistry, chemistry_time_minutes, requested_extension_chemistry_time_minutes,
	was_chemistry_on, chemistry_started_at, chemistry_ended_at,
	car_number, created_at, updated_at, status_updated_at`

type SessionRepository struct {
	db db.DBTX
}

func NewSessionRepository(pool db.DBTX) *SessionRepository {
	return &SessionRepository{db: pool}
}

func (r *SessionRepository) Create(ctx context.Context, tx db.DBTX, s *session.Session) error {
	const query = `
		INSERT INTO sessions (
			id, user_id, service_type, status, box_number,
			rental_time_minutes, extension_time_minutes, requested_extension_time_minutes,
			with_chemistry, chemistry_time_minutes, requested_extension_chemistry_time_minutes,
			was_chemistry_on, chemistry_started_at, chemistry_ended_at,
			car_number, created_at, updated_at, status_updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
	`
	_, err := tx.Exec(ctx, query,
		s.ID(), s.UserID(), s.ServiceType().String(), s.Status().String(), s.BoxNumber(),
		s.RentalTimeMinutes(), s.ExtensionTimeMinutes(), s.RequestedExtensionTimeMinutes(),
		s.WithChemistry(), s.ChemistryTimeMinutes(), s.RequestedExtensionChemMinutes(),
		s.WasChemistryOn(), s.ChemistryStartedAt(), s.ChemistryEndedAt(),
		s.CarNumber(), s.CreatedAt(), s.UpdatedAt(), s.StatusUpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("user already has a non-terminal session", err, infra.KindConflict)
		}
		return infra.WrapRepoErr("failed to create session", err)
	}
	return nil
}

// Update persists the full mutable field set. Terminal rows are never updated:
// the guard keeps a lost race from resurrecting a finished session.
func (r *SessionRepository) Update(ctx context.Context, tx db.DBTX, s *session.Session) error {
	const query = `
		UPDATE sessions SET
			status = $2,
			box_number = $3,
			rental_time_minutes = $4,
			extension_time_minutes = $5,
			requested_extension_time_minutes = $6,
			chemistry_time_minutes = $7,
			requested_extension_chemistry_time_minutes = $8,
			was_chemistry_on = $9,
			chemistry_started_at = $10,
			chemistry_ended_at = $11,
			updated_at = $12,
			status_updated_at = $13
		WHERE id = $1
		  AND status NOT IN ('complete', 'canceled', 'expired')
	`
	tag, err := tx.Exec(ctx, query,
		s.ID(), s.Status().String(), s.BoxNumber(),
		s.RentalTimeMinutes(), s.ExtensionTimeMinutes(), s.RequestedExtensionTimeMinutes(),
		s.ChemistryTimeMinutes(), s.RequestedExtensionChemMinutes(),
		s.WasChemistryOn(), s.ChemistryStartedAt(), s.ChemistryEndedAt(),
		s.UpdatedAt(), s.StatusUpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("conflicting session state", err, infra.KindConflict)
		}
		return infra.WrapRepoErr("failed to update session", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("session is terminal or missing", nil, infra.KindConflict)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.scanOne(r.db.QueryRow(ctx, query, id), "session not found")
}

// FindNonTerminalByUser backs the one-active-session-per-user invariant.
func (r *SessionRepository) FindNonTerminalByUser(ctx context.Context, userID uuid.UUID) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND status NOT IN ('complete', 'canceled', 'expired')
		LIMIT 1`
	return r.scanOne(r.db.QueryRow(ctx, query, userID), "no active session for user")
}

func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*session.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list sessions by user", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// FindExpiredAssigned returns sessions whose assignment window elapsed before
// the user pressed start.
func (r *SessionRepository) FindExpiredAssigned(ctx context.Context, window time.Duration, now time.Time) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'assigned'
		  AND status_updated_at + $1::interval < $2
		ORDER BY status_updated_at`
	rows, err := r.db.Query(ctx, query, window, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find expired assignments", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// FindExpiredActive returns sessions past their rental deadline.
func (r *SessionRepository) FindExpiredActive(ctx context.Context, now time.Time) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'active'
		  AND status_updated_at
		      + make_interval(mins => rental_time_minutes + extension_time_minutes) < $1
		ORDER BY status_updated_at`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find expired rentals", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

// FindExpiredChemistry returns sessions with a running chemistry window past
// its deadline.
func (r *SessionRepository) FindExpiredChemistry(ctx context.Context, now time.Time) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE chemistry_started_at IS NOT NULL
		  AND chemistry_ended_at IS NULL
		  AND chemistry_started_at + make_interval(mins => chemistry_time_minutes) < $1
		ORDER BY chemistry_started_at`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to find expired chemistry windows", err)
	}
	defer rows.Close()
	return r.scanMany(rows)
}

func (r *SessionRepository) scanOne(row pgx.Row, notFoundMsg string) (*session.Session, error) {
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr(notFoundMsg, err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan session", err)
	}
	return s, nil
}

func (r *SessionRepository) scanMany(rows pgx.Rows) ([]*session.Session, error) {
	var result []*session.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan session row", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate session rows", err)
	}
	return result, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		id, userID                  uuid.UUID
		serviceType, status         string
		boxNumber                   *int
		rental, extension, reqExt   int
		withChem                    bool
		chemMinutes, reqChemMinutes int
		wasChemOn                   bool
		chemStarted, chemEnded      *time.Time
		carNumber                   string
		createdAt, updatedAt        time.Time
		statusUpdatedAt             time.Time
	)
	err := row.Scan(
		&id, &userID, &serviceType, &status, &boxNumber,
		&rental, &extension, &reqExt,
		&withChem, &chemMinutes, &reqChemMinutes,
		&wasChemOn, &chemStarted, &chemEnded,
		&carNumber, &createdAt, &updatedAt, &statusUpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	st, err := session.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	svc, err := session.ParseServiceType(serviceType)
	if err != nil {
		return nil, err
	}

	return session.Reconstruct(
		id, userID, svc, st, boxNumber,
		rental, extension, reqExt,
		withChem, chemMinutes, reqChemMinutes,
		wasChemOn, chemStarted, chemEnded,
		carNumber, createdAt, updatedAt, statusUpdatedAt,
	), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
