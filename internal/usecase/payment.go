package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/infra/provider"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"

	"github.com/google/uuid"
)

const defaultCurrency = "RUB"

// PaymentOrchestrator creates, settles and refunds payments. Retries never
// mutate a failed row; they append a fresh payment so the history stays whole.
//
// Creation is split in two: the row is inserted inside the caller's
// transaction, and Authorize runs the provider round-trip afterwards, outside
// any transaction or session lock.
type PaymentOrchestrator struct {
	paymentRepo PaymentRepository
	provider    PaymentProvider
	calculator  payment.PriceCalculator
	pool        db.Pool
	clock       clock.Clock
	logger      *slog.Logger
	cashierOnly bool // deployment policy: cashier refunds limited to cashier payments
}

func NewPaymentOrchestrator(
	paymentRepo PaymentRepository,
	providerClient PaymentProvider,
	calculator payment.PriceCalculator,
	pool db.Pool,
	clk clock.Clock,
	cfg config.ProviderConfig,
	logger *slog.Logger,
) *PaymentOrchestrator {
	return &PaymentOrchestrator{
		paymentRepo: paymentRepo,
		provider:    providerClient,
		calculator:  calculator,
		pool:        pool,
		clock:       clk,
		logger:      logger,
		cashierOnly: cfg.CashierRefund,
	}
}

// CreateMainPayment prices the booked time and inserts the payment row. The
// partial unique index makes a second pending main payment impossible even if
// two requests race past the explicit check.
func (o *PaymentOrchestrator) CreateMainPayment(ctx context.Context, tx db.DBTX, s *session.Session, method payment.Method) (*payment.Payment, error) {
	amount := o.calculator.SessionPriceCents(s.ServiceType(), s.RentalTimeMinutes(), s.ChemistryTimeMinutes())
	return o.createPayment(ctx, tx, s.ID(), payment.TypeMain, amount, method)
}

func (o *PaymentOrchestrator) CreateExtensionPayment(ctx context.Context, tx db.DBTX, s *session.Session, method payment.Method) (*payment.Payment, error) {
	if s.RequestedExtensionTimeMinutes() <= 0 {
		return nil, errs.ErrNoExtensionRequested
	}
	amount := o.calculator.ExtensionPriceCents(s.ServiceType(), s.RequestedExtensionTimeMinutes(), s.RequestedExtensionChemMinutes())
	return o.createPayment(ctx, tx, s.ID(), payment.TypeExtension, amount, method)
}

func (o *PaymentOrchestrator) createPayment(ctx context.Context, tx db.DBTX, sessionID uuid.UUID, paymentType payment.Type, amountCents int64, method payment.Method) (*payment.Payment, error) {
	if existing, err := o.paymentRepo.FindPending(ctx, sessionID, paymentType); err == nil && existing != nil {
		return nil, errs.ErrPaymentPendingExists
	} else if err != nil && !infra.IsKind(err, infra.KindNotFound) {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	p, err := payment.NewPayment(sessionID, paymentType, amountCents, defaultCurrency, method, o.clock.Now())
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	if err := o.paymentRepo.Create(ctx, tx, p); err != nil {
		if infra.IsKind(err, infra.KindConflict) {
			return nil, errs.ErrPaymentPendingExists
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return p, nil
}

// Authorize registers a pending payment with the provider and stores the
// redirect URL. Cashier payments settle at the till and skip the provider. A
// provider failure marks the payment failed and is reported to the caller.
func (o *PaymentOrchestrator) Authorize(ctx context.Context, p *payment.Payment) error {
	if p.PaymentMethod() == payment.MethodCashier || p.Status() != payment.StatusPending {
		return nil
	}

	result, provErr := o.provider.CreatePayment(ctx, provider.CreatePaymentRequest{
		PaymentID:   p.ID(),
		AmountCents: p.AmountCents(),
		Currency:    p.Currency(),
		Description: fmt.Sprintf("carwash %s payment %s", p.PaymentType(), p.ID()),
	})
	if provErr != nil {
		if markErr := p.MarkFailed(o.clock.Now()); markErr == nil {
			if updErr := o.paymentRepo.Update(ctx, o.pool, p); updErr != nil {
				o.logger.Error("failed to persist provider failure", "payment_id", p.ID(), "error", updErr)
			}
		}
		return errs.Mark(provErr, errs.ErrExternalService)
	}

	p.AttachProvider(result.ProviderID, result.RedirectURL, o.clock.Now())
	if err := o.paymentRepo.Update(ctx, o.pool, p); err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return nil
}

// Settle applies a provider webhook to the pending payment. A repeated
// delivery for an already settled payment reports changed=false.
func (o *PaymentOrchestrator) Settle(ctx context.Context, paymentID uuid.UUID, succeeded bool) (*payment.Payment, bool, error) {
	p, err := o.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, false, errs.ErrPaymentNotFound
		}
		return nil, false, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	now := o.clock.Now()
	var markErr error
	if succeeded {
		markErr = p.MarkSucceeded(now)
	} else {
		markErr = p.MarkFailed(now)
	}
	if markErr != nil {
		return p, false, nil
	}

	if err := o.paymentRepo.Update(ctx, o.pool, p); err != nil {
		return nil, false, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return p, true, nil
}

// Refund performs a partial or full refund. Deployment policy may restrict
// cashier-initiated refunds to payments taken at the till.
func (o *PaymentOrchestrator) Refund(ctx context.Context, act actor.Actor, paymentID uuid.UUID, amountCents int64) (*payment.Payment, error) {
	p, err := o.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}

	if act.Role == actor.RoleCashier && o.cashierOnly && p.PaymentMethod() != payment.MethodCashier {
		return nil, errs.ErrPaymentNotRefundable
	}
	if amountCents <= 0 || amountCents > p.RemainingCents() {
		return nil, errs.ErrRefundExceedsRemainder
	}

	// Provider first: if the money does not move, the row must not claim it
	// did.
	if p.PaymentMethod() == payment.MethodOnline {
		if p.ProviderID() == nil {
			return nil, errs.ErrPaymentNotRefundable
		}
		if err := o.provider.RefundPayment(ctx, *p.ProviderID(), amountCents); err != nil {
			return nil, errs.Mark(err, errs.ErrExternalService)
		}
	}

	if err := p.Refund(amountCents, o.clock.Now()); err != nil {
		return nil, errs.Mark(err, errs.ErrPaymentNotRefundable)
	}
	if err := o.paymentRepo.Update(ctx, o.pool, p); err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return p, nil
}

// RefundSessionPayments refunds whatever is still held on every succeeded
// payment of a session; cancellation and assignment expiry use it.
func (o *PaymentOrchestrator) RefundSessionPayments(ctx context.Context, act actor.Actor, sessionID uuid.UUID) error {
	payments, err := o.paymentRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	for _, p := range payments {
		if p.Status() != payment.StatusSucceeded || p.RemainingCents() <= 0 {
			continue
		}
		if _, err := o.Refund(ctx, act, p.ID(), p.RemainingCents()); err != nil {
			return err
		}
	}
	return nil
}

// LatestOfType exposes the newest payment row per type; the retry flow
// validates against it.
func (o *PaymentOrchestrator) LatestOfType(ctx context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error) {
	p, err := o.paymentRepo.FindLatestByType(ctx, sessionID, paymentType)
	if err != nil {
		if infra.IsKind(err, infra.KindNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return p, nil
}

func (o *PaymentOrchestrator) SessionPayments(ctx context.Context, sessionID uuid.UUID) ([]*payment.Payment, error) {
	payments, err := o.paymentRepo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDatabaseOperationFailed)
	}
	return payments, nil
}
