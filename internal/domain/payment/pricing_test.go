//go:build unit

package payment_test

import (
	"testing"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"

	"github.com/stretchr/testify/assert"
)

func TestTariffPriceCalculator(t *testing.T) {
	calc := payment.NewTariffPriceCalculator()

	t.Run("per-minute tariff plus chemistry surcharge", func(t *testing.T) {
		assert.Equal(t, int64(30*3000), calc.SessionPriceCents(session.ServiceWash, 30, 0))
		assert.Equal(t, int64(30*3000+10*2500), calc.SessionPriceCents(session.ServiceWash, 30, 10))
		assert.Equal(t, int64(20*2000), calc.SessionPriceCents(session.ServiceAirDry, 20, 0))
		assert.Equal(t, int64(15*1500), calc.SessionPriceCents(session.ServiceVacuum, 15, 0))
	})

	t.Run("extensions price like the base tariff", func(t *testing.T) {
		assert.Equal(t,
			calc.SessionPriceCents(session.ServiceWash, 10, 5),
			calc.ExtensionPriceCents(session.ServiceWash, 10, 5),
		)
	})
}
