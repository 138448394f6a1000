//go:build unit

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireAssignments(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	s, err := builder.NewSessionBuilder().BuildAssigned(1)
	require.NoError(t, err)
	require.NoError(t, e.sessionRepo.Create(ctx, fakeTx{}, s))

	box := e.addFreeBox(t, 1, false)
	require.NoError(t, box.Reserve(s.ID(), e.clock.Now()))

	p := e.addPayment(t, s, nil)
	p.AttachProvider("prov-1", "https://pay.example/1", e.clock.Now())
	require.NoError(t, p.MarkSucceeded(e.clock.Now()))

	// A later assignment that is still inside its window must survive the scan.
	fresh, err := builder.NewSessionBuilder().With(func(b *builder.SessionBuilder) {
		b.Now = e.clock.Now().Add(2 * time.Minute)
	}).BuildAssigned(2)
	require.NoError(t, err)
	require.NoError(t, e.sessionRepo.Create(ctx, fakeTx{}, fresh))

	e.clock.Add(3*time.Minute + time.Second)
	e.commands.ExpireAssignments(ctx)

	assert.Equal(t, session.StatusExpired, s.Status())
	assert.Equal(t, washbox.StatusFree, box.Status())
	assert.Equal(t, session.StatusAssigned, fresh.Status())

	assert.Equal(t, payment.StatusRefunded, p.Status())
	require.Len(t, e.provider.refunds, 1)
	assert.Equal(t, int64(90000), e.provider.refunds[0].AmountCents)

	t.Run("second tick is a no-op", func(t *testing.T) {
		e.commands.ExpireAssignments(ctx)

		assert.Equal(t, session.StatusExpired, s.Status())
		assert.Equal(t, washbox.StatusFree, box.Status())
		assert.Len(t, e.provider.refunds, 1)
	})
}

func TestCompleteExpiredRentals(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	s, err := builder.NewSessionBuilder().BuildActive(1)
	require.NoError(t, err)
	require.NoError(t, e.sessionRepo.Create(ctx, fakeTx{}, s))

	box := e.addFreeBox(t, 1, false)
	require.NoError(t, box.Reserve(s.ID(), e.clock.Now()))
	require.NoError(t, box.Occupy(e.clock.Now()))

	e.clock.Add(30 * time.Minute)
	e.commands.CompleteExpiredRentals(ctx)

	assert.Equal(t, session.StatusComplete, s.Status())
	assert.Equal(t, washbox.StatusCleaning, box.Status())
	require.Len(t, e.coils.writes, 1)
	assert.Equal(t, coilWrite{Register: "coil-1-light", Value: false}, e.coils.writes[0])

	t.Run("second tick is a no-op", func(t *testing.T) {
		e.commands.CompleteExpiredRentals(ctx)

		assert.Equal(t, session.StatusComplete, s.Status())
		assert.Len(t, e.coils.writes, 1)
	})

	t.Run("cleaning timeout frees the box", func(t *testing.T) {
		e.clock.Add(5 * time.Minute)
		e.commands.FinishExpiredCleanings(ctx)
		assert.Equal(t, washbox.StatusFree, box.Status())

		e.commands.FinishExpiredCleanings(ctx)
		assert.Equal(t, washbox.StatusFree, box.Status())
	})
}

func TestDisableExpiredChemistry(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	s, err := builder.NewSessionBuilder().With(func(b *builder.SessionBuilder) {
		b.WithChemistry = true
		b.ChemistryTimeMinutes = 10
	}).BuildActive(1)
	require.NoError(t, err)
	require.NoError(t, s.EnableChemistry(e.clock.Now()))
	require.NoError(t, e.sessionRepo.Create(ctx, fakeTx{}, s))

	box := e.addFreeBox(t, 1, true)
	require.NoError(t, box.Reserve(s.ID(), e.clock.Now()))
	require.NoError(t, box.Occupy(e.clock.Now()))

	e.clock.Add(10 * time.Minute)
	e.commands.DisableExpiredChemistry(ctx)

	assert.False(t, s.ChemistryRunning())
	assert.Equal(t, session.StatusActive, s.Status())
	require.Len(t, e.coils.writes, 1)
	assert.Equal(t, coilWrite{Register: "coil-1-chem", Value: false}, e.coils.writes[0])

	t.Run("second tick is a no-op", func(t *testing.T) {
		e.commands.DisableExpiredChemistry(ctx)
		assert.Len(t, e.coils.writes, 1)
	})
}
