//go:build unit || e2e

package builder

import (
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
)

type WashBoxBuilder struct {
	Number                int
	ServiceType           session.ServiceType
	ChemistryEnabled      bool
	LightCoilRegister     string
	ChemistryCoilRegister string
	Now                   time.Time
}

func NewWashBoxBuilder() *WashBoxBuilder {
	return &WashBoxBuilder{
		Number:                1,
		ServiceType:           session.ServiceWash,
		ChemistryEnabled:      true,
		LightCoilRegister:     "coil-1-light",
		ChemistryCoilRegister: "coil-1-chem",
		Now:                   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *WashBoxBuilder) With(mutate func(*WashBoxBuilder)) *WashBoxBuilder {
	mutate(b)
	return b
}

func (b *WashBoxBuilder) BuildDomain() (*washbox.WashBox, error) {
	return washbox.NewWashBox(
		b.Number, b.ServiceType, b.ChemistryEnabled,
		b.LightCoilRegister, b.ChemistryCoilRegister, b.Now,
	)
}
