package payment

import (
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
)

type PriceCalculator interface {
	SessionPriceCents(serviceType session.ServiceType, rentalMinutes, chemistryMinutes int) int64
	ExtensionPriceCents(serviceType session.ServiceType, extraMinutes, extraChemistryMinutes int) int64
}

// TariffPriceCalculator prices by the minute per service type, with a flat
// chemistry surcharge per minute.
type TariffPriceCalculator struct {
	PerMinuteCents          map[session.ServiceType]int64
	ChemistryPerMinuteCents int64
}

func NewTariffPriceCalculator() *TariffPriceCalculator {
	return &TariffPriceCalculator{
		PerMinuteCents: map[session.ServiceType]int64{
			session.ServiceWash:   3000,
			session.ServiceAirDry: 2000,
			session.ServiceVacuum: 1500,
		},
		ChemistryPerMinuteCents: 2500,
	}
}

func (c *TariffPriceCalculator) SessionPriceCents(serviceType session.ServiceType, rentalMinutes, chemistryMinutes int) int64 {
	return c.PerMinuteCents[serviceType]*int64(rentalMinutes) +
		c.ChemistryPerMinuteCents*int64(chemistryMinutes)
}

func (c *TariffPriceCalculator) ExtensionPriceCents(serviceType session.ServiceType, extraMinutes, extraChemistryMinutes int) int64 {
	return c.SessionPriceCents(serviceType, extraMinutes, extraChemistryMinutes)
}
