package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidAmount       = errors.New("amount must be positive")
	ErrNotPending          = errors.New("payment is not pending")
	ErrNotRefundable       = errors.New("only succeeded payments can be refunded")
	ErrRefundExceedsAmount = errors.New("refund exceeds remaining amount")
	ErrNotRetryable        = errors.New("only failed payments can be retried")
	ErrUnknownType         = errors.New("unknown payment type")
	ErrUnknownMethod       = errors.New("unknown payment method")
	ErrUnknownStatus       = errors.New("unknown payment status")
)

type Type string

const (
	TypeMain      Type = "main"
	TypeExtension Type = "extension"
)

func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeMain, TypeExtension:
		return Type(s), nil
	default:
		return "", ErrUnknownType
	}
}

type Method string

const (
	MethodOnline  Method = "online"
	MethodCashier Method = "cashier"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case MethodOnline, MethodCashier:
		return Method(s), nil
	default:
		return "", ErrUnknownMethod
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusSucceeded, StatusFailed, StatusRefunded:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

// Payment rows are history: retries and refunds always append or flag, never
// rewrite what the provider actually did.
type Payment struct {
	id             uuid.UUID
	sessionID      uuid.UUID
	paymentType    Type
	amountCents    int64
	currency       string
	status         Status
	refundedCents  int64
	method         Method
	providerID     *string
	redirectURL    *string
	createdAt      time.Time
	updatedAt      time.Time
}

func NewPayment(
	sessionID uuid.UUID,
	paymentType Type,
	amountCents int64,
	currency string,
	method Method,
	now time.Time,
) (*Payment, error) {
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	status := StatusPending
	if method == MethodCashier {
		// Cashier payments settle at the till; there is no provider round-trip.
		status = StatusSucceeded
	}
	return &Payment{
		id:          uuid.New(),
		sessionID:   sessionID,
		paymentType: paymentType,
		amountCents: amountCents,
		currency:    currency,
		status:      status,
		method:      method,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

func Reconstruct(
	id, sessionID uuid.UUID,
	paymentType Type,
	amountCents int64,
	currency string,
	status Status,
	refundedCents int64,
	method Method,
	providerID, redirectURL *string,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:            id,
		sessionID:     sessionID,
		paymentType:   paymentType,
		amountCents:   amountCents,
		currency:      currency,
		status:        status,
		refundedCents: refundedCents,
		method:        method,
		providerID:    providerID,
		redirectURL:   redirectURL,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}

func (p *Payment) AttachProvider(providerID, redirectURL string, now time.Time) {
	p.providerID = &providerID
	p.redirectURL = &redirectURL
	p.updatedAt = now
}

func (p *Payment) MarkSucceeded(now time.Time) error {
	if p.status != StatusPending {
		return ErrNotPending
	}
	p.status = StatusSucceeded
	p.updatedAt = now
	return nil
}

func (p *Payment) MarkFailed(now time.Time) error {
	if p.status != StatusPending {
		return ErrNotPending
	}
	p.status = StatusFailed
	p.updatedAt = now
	return nil
}

// Refund accepts partial amounts; the row flips to refunded only when nothing
// remains.
func (p *Payment) Refund(amountCents int64, now time.Time) error {
	if p.status != StatusSucceeded && p.status != StatusRefunded {
		return ErrNotRefundable
	}
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	if p.refundedCents+amountCents > p.amountCents {
		return ErrRefundExceedsAmount
	}
	p.refundedCents += amountCents
	if p.refundedCents == p.amountCents {
		p.status = StatusRefunded
	}
	p.updatedAt = now
	return nil
}

func (p *Payment) RemainingCents() int64 {
	return p.amountCents - p.refundedCents
}

func (p *Payment) IsRetryable() bool {
	return p.status == StatusFailed
}

func (p *Payment) ID() uuid.UUID        { return p.id }
func (p *Payment) SessionID() uuid.UUID { return p.sessionID }
func (p *Payment) PaymentType() Type    { return p.paymentType }
func (p *Payment) AmountCents() int64   { return p.amountCents }
func (p *Payment) Currency() string     { return p.currency }
func (p *Payment) Status() Status       { return p.status }
func (p *Payment) RefundedCents() int64 { return p.refundedCents }
func (p *Payment) PaymentMethod() Method { return p.method }
func (p *Payment) ProviderID() *string  { return p.providerID }
func (p *Payment) RedirectURL() *string { return p.redirectURL }
func (p *Payment) CreatedAt() time.Time { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time { return p.updatedAt }
