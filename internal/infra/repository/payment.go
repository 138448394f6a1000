package repository

import (
	"context"
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `
	id, session_id, payment_type, amount_cents, currency, status,
	refunded_cents, payment_method, provider_id, redirect_url,
	created_at, updated_at`

type PaymentRepository struct {
	db db.DBTX
}

func NewPaymentRepository(pool db.DBTX) *PaymentRepository {
	return &PaymentRepository{db: pool}
}

// Create relies on the partial unique index over (session_id, payment_type)
// WHERE status = 'pending' to enforce the single-pending guarantee even when
// two requests race.
func (r *PaymentRepository) Create(ctx context.Context, tx db.DBTX, p *payment.Payment) error {
	const query = `
		INSERT INTO payments (
			id, session_id, payment_type, amount_cents, currency, status,
			refunded_cents, payment_method, provider_id, redirect_url,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`
	_, err := tx.Exec(ctx, query,
		p.ID(), p.SessionID(), string(p.PaymentType()), p.AmountCents(), p.Currency(),
		string(p.Status()), p.RefundedCents(), string(p.PaymentMethod()),
		p.ProviderID(), p.RedirectURL(), p.CreatedAt(), p.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return infra.WrapRepoErr("pending payment already exists for session and type", err, infra.KindConflict)
		}
		return infra.WrapRepoErr("failed to create payment", err)
	}
	return nil
}

func (r *PaymentRepository) Update(ctx context.Context, tx db.DBTX, p *payment.Payment) error {
	const query = `
		UPDATE payments SET
			status = $2,
			refunded_cents = $3,
			provider_id = $4,
			redirect_url = $5,
			updated_at = $6
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		p.ID(), string(p.Status()), p.RefundedCents(),
		p.ProviderID(), p.RedirectURL(), p.UpdatedAt(),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to update payment", err)
	}
	if tag.RowsAffected() == 0 {
		return infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
	}
	return nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return r.one(r.db.QueryRow(ctx, query, id))
}

func (r *PaymentRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments WHERE session_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list payments by session", err)
	}
	defer rows.Close()

	var result []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, infra.WrapRepoErr("failed to scan payment row", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, infra.WrapRepoErr("failed to iterate payment rows", err)
	}
	return result, nil
}

// FindLatestByType returns the most recent payment of a type for a session;
// the retry flow inspects it to decide whether a fresh payment is legal.
func (r *PaymentRepository) FindLatestByType(ctx context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1 AND payment_type = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return r.one(r.db.QueryRow(ctx, query, sessionID, string(paymentType)))
}

func (r *PaymentRepository) FindPending(ctx context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payments
		WHERE session_id = $1 AND payment_type = $2 AND status = 'pending'
		LIMIT 1`
	return r.one(r.db.QueryRow(ctx, query, sessionID, string(paymentType)))
}

func (r *PaymentRepository) one(row pgx.Row) (*payment.Payment, error) {
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, infra.WrapRepoErr("payment not found", err, infra.KindNotFound)
		}
		return nil, infra.WrapRepoErr("failed to scan payment", err)
	}
	return p, nil
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		id, sessionID            uuid.UUID
		paymentType, currency    string
		amountCents, refunded    int64
		status, method           string
		providerID, redirectURL  *string
		createdAt, updatedAt     time.Time
	)
	err := row.Scan(
		&id, &sessionID, &paymentType, &amountCents, &currency, &status,
		&refunded, &method, &providerID, &redirectURL, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	pt, err := payment.ParseType(paymentType)
	if err != nil {
		return nil, err
	}
	ps, err := payment.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	pm, err := payment.ParseMethod(method)
	if err != nil {
		return nil, err
	}

	return payment.Reconstruct(
		id, sessionID, pt, amountCents, currency, ps, refunded, pm,
		providerID, redirectURL, createdAt, updatedAt,
	), nil
}
