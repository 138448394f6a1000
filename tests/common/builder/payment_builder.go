//go:build unit || e2e

package builder

import (
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"

	"github.com/google/uuid"
)

type PaymentBuilder struct {
	SessionID   uuid.UUID
	PaymentType payment.Type
	AmountCents int64
	Currency    string
	Method      payment.Method
	Now         time.Time
}

func NewPaymentBuilder() *PaymentBuilder {
	return &PaymentBuilder{
		SessionID:   uuid.New(),
		PaymentType: payment.TypeMain,
		AmountCents: 90000,
		Currency:    "RUB",
		Method:      payment.MethodOnline,
		Now:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *PaymentBuilder) With(mutate func(*PaymentBuilder)) *PaymentBuilder {
	mutate(b)
	return b
}

func (b *PaymentBuilder) BuildDomain() (*payment.Payment, error) {
	return payment.NewPayment(b.SessionID, b.PaymentType, b.AmountCents, b.Currency, b.Method, b.Now)
}

// BuildSucceeded returns an online payment already settled by the provider.
func (b *PaymentBuilder) BuildSucceeded() (*payment.Payment, error) {
	p, err := b.BuildDomain()
	if err != nil {
		return nil, err
	}
	if p.Status() == payment.StatusPending {
		if err := p.MarkSucceeded(b.Now); err != nil {
			return nil, err
		}
	}
	return p, nil
}
