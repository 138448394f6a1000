//go:build unit || e2e

package builder

import (
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"

	"github.com/google/uuid"
)

type SessionBuilder struct {
	UserID               uuid.UUID
	ServiceType          session.ServiceType
	RentalTimeMinutes    int
	WithChemistry        bool
	ChemistryTimeMinutes int
	CarNumber            string
	Now                  time.Time
}

func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{
		UserID:            uuid.New(),
		ServiceType:       session.ServiceWash,
		RentalTimeMinutes: 30,
		CarNumber:         "A123BC77",
		Now:               time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *SessionBuilder) With(mutate func(*SessionBuilder)) *SessionBuilder {
	mutate(b)
	return b
}

func (b *SessionBuilder) BuildDomain() (*session.Session, error) {
	return session.NewSession(
		b.UserID, b.ServiceType, b.RentalTimeMinutes,
		b.WithChemistry, b.ChemistryTimeMinutes, b.CarNumber, b.Now,
	)
}

// BuildQueued walks the session through payment success into the queue.
func (b *SessionBuilder) BuildQueued() (*session.Session, error) {
	s, err := b.BuildDomain()
	if err != nil {
		return nil, err
	}
	if err := s.Enqueue(b.Now); err != nil {
		return nil, err
	}
	return s, nil
}

// BuildAssigned walks the session to the assigned state with the given box.
func (b *SessionBuilder) BuildAssigned(boxNumber int) (*session.Session, error) {
	s, err := b.BuildQueued()
	if err != nil {
		return nil, err
	}
	if err := s.Assign(boxNumber, b.Now); err != nil {
		return nil, err
	}
	return s, nil
}

// BuildActive walks the session to the active state.
func (b *SessionBuilder) BuildActive(boxNumber int) (*session.Session, error) {
	s, err := b.BuildAssigned(boxNumber)
	if err != nil {
		return nil, err
	}
	if err := s.Start(b.Now); err != nil {
		return nil, err
	}
	return s, nil
}
