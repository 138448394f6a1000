//go:build unit

package payment_test

import (
	"testing"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPayment(t *testing.T) {
	t.Run("online payments start pending", func(t *testing.T) {
		p, err := builder.NewPaymentBuilder().BuildDomain()
		require.NoError(t, err)
		assert.Equal(t, payment.StatusPending, p.Status())
		assert.Zero(t, p.RefundedCents())
	})

	t.Run("cashier payments settle immediately", func(t *testing.T) {
		p, err := builder.NewPaymentBuilder().
			With(func(b *builder.PaymentBuilder) { b.Method = payment.MethodCashier }).
			BuildDomain()
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSucceeded, p.Status())
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		_, err := builder.NewPaymentBuilder().
			With(func(b *builder.PaymentBuilder) { b.AmountCents = 0 }).
			BuildDomain()
		assert.ErrorIs(t, err, payment.ErrInvalidAmount)
	})
}

func TestPaymentSettlement(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("settlement only applies to pending payments", func(t *testing.T) {
		p, err := builder.NewPaymentBuilder().BuildDomain()
		require.NoError(t, err)

		require.NoError(t, p.MarkSucceeded(now))
		assert.ErrorIs(t, p.MarkSucceeded(now), payment.ErrNotPending)
		assert.ErrorIs(t, p.MarkFailed(now), payment.ErrNotPending)
	})

	t.Run("only failed payments are retryable", func(t *testing.T) {
		p, err := builder.NewPaymentBuilder().BuildDomain()
		require.NoError(t, err)
		assert.False(t, p.IsRetryable())

		require.NoError(t, p.MarkFailed(now))
		assert.True(t, p.IsRetryable())
	})
}

func TestPaymentRefund(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	succeeded := func(t *testing.T) *payment.Payment {
		t.Helper()
		p, err := builder.NewPaymentBuilder().BuildSucceeded()
		require.NoError(t, err)
		return p
	}

	t.Run("partial refund keeps the payment succeeded", func(t *testing.T) {
		p := succeeded(t)
		require.NoError(t, p.Refund(30000, now))

		assert.Equal(t, payment.StatusSucceeded, p.Status())
		assert.Equal(t, int64(30000), p.RefundedCents())
		assert.Equal(t, int64(60000), p.RemainingCents())
	})

	t.Run("refunding the remainder flips the status", func(t *testing.T) {
		p := succeeded(t)
		require.NoError(t, p.Refund(30000, now))
		require.NoError(t, p.Refund(60000, now))

		assert.Equal(t, payment.StatusRefunded, p.Status())
		assert.Zero(t, p.RemainingCents())
	})

	t.Run("refund can never exceed the amount", func(t *testing.T) {
		p := succeeded(t)
		assert.ErrorIs(t, p.Refund(90001, now), payment.ErrRefundExceedsAmount)

		require.NoError(t, p.Refund(90000, now))
		assert.ErrorIs(t, p.Refund(1, now), payment.ErrRefundExceedsAmount)
	})

	t.Run("pending and failed payments are not refundable", func(t *testing.T) {
		pending, err := builder.NewPaymentBuilder().BuildDomain()
		require.NoError(t, err)
		assert.ErrorIs(t, pending.Refund(100, now), payment.ErrNotRefundable)

		failed, err := builder.NewPaymentBuilder().BuildDomain()
		require.NoError(t, err)
		require.NoError(t, failed.MarkFailed(now))
		assert.ErrorIs(t, failed.Refund(100, now), payment.ErrNotRefundable)
	})

	t.Run("rejects non-positive refund amounts", func(t *testing.T) {
		p := succeeded(t)
		assert.ErrorIs(t, p.Refund(0, now), payment.ErrInvalidAmount)
	})
}
