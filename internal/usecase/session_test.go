//go:build unit

package usecase_test

import (
	"context"
	"testing"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSessionIdempotency(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	params := usecase.CreateSessionParams{
		UserID:            uuid.New(),
		ServiceType:       session.ServiceWash,
		RentalTimeMinutes: 30,
		CarNumber:         "A123BC77",
		PaymentMethod:     payment.MethodCashier,
		IdempotencyKey:    uuid.New(),
		RequestHash:       "hash-1",
	}

	first, err := e.commands.CreateSession(ctx, params)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, session.StatusInQueue, first.Session.Status())

	t.Run("same key replays the original result", func(t *testing.T) {
		replay, err := e.commands.CreateSession(ctx, params)
		require.NoError(t, err)
		assert.True(t, replay.Replayed)
		assert.Equal(t, first.Session.ID(), replay.Session.ID())
		assert.Len(t, e.paymentRepo.payments, 1)
	})

	t.Run("same key with a different body is rejected", func(t *testing.T) {
		altered := params
		altered.RequestHash = "hash-2"
		_, err := e.commands.CreateSession(ctx, altered)
		assert.ErrorIs(t, err, errs.ErrIdempotencyConflict)
	})

	t.Run("missing key is rejected", func(t *testing.T) {
		missing := params
		missing.IdempotencyKey = uuid.Nil
		_, err := e.commands.CreateSession(ctx, missing)
		assert.ErrorIs(t, err, errs.ErrIdempotencyKeyRequired)
	})

	t.Run("fresh key while the session lives is rejected", func(t *testing.T) {
		again := params
		again.IdempotencyKey = uuid.New()
		_, err := e.commands.CreateSession(ctx, again)
		assert.ErrorIs(t, err, errs.ErrActiveSessionExists)
	})
}

func TestReassignReleasesBoxToCleaning(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	s, err := builder.NewSessionBuilder().BuildAssigned(1)
	require.NoError(t, err)
	require.NoError(t, e.sessionRepo.Create(ctx, fakeTx{}, s))

	box := e.addFreeBox(t, 1, false)
	require.NoError(t, box.Reserve(s.ID(), e.clock.Now()))

	got, err := e.commands.Reassign(ctx, adminActor(), s.ID())
	require.NoError(t, err)

	assert.Equal(t, session.StatusInQueue, got.Status())
	assert.Nil(t, got.BoxNumber())
	assert.Equal(t, washbox.StatusCleaning, box.Status())
	require.NotNil(t, box.CleaningStartedAt())

	// The session jumps back to the head of its line.
	position, _, err := e.queue.PositionInfo(ctx, s.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, position)
}
