//go:build unit

package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionInfo(t *testing.T) {
	e := newEngine()
	ctx := context.Background()

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, e.queue.Enqueue(ctx, fakeTx{}, ids[i], session.ServiceWash, false))
		e.clock.Add(time.Second)
	}

	t.Run("head of the line waits zero", func(t *testing.T) {
		position, wait, err := e.queue.PositionInfo(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, 1, position)
		assert.Equal(t, 0, wait)
	})

	t.Run("third in line waits for two ahead", func(t *testing.T) {
		position, wait, err := e.queue.PositionInfo(ctx, ids[2])
		require.NoError(t, err)
		assert.Equal(t, 3, position)
		assert.Equal(t, 30, wait)
	})

	t.Run("unknown session reports not queued", func(t *testing.T) {
		position, wait, err := e.queue.PositionInfo(ctx, uuid.New())
		require.NoError(t, err)
		assert.Equal(t, 0, position)
		assert.Equal(t, 0, wait)
	})

	t.Run("priority entry takes the head", func(t *testing.T) {
		jumper := uuid.New()
		require.NoError(t, e.queue.Enqueue(ctx, fakeTx{}, jumper, session.ServiceWash, true))

		position, wait, err := e.queue.PositionInfo(ctx, jumper)
		require.NoError(t, err)
		assert.Equal(t, 1, position)
		assert.Equal(t, 0, wait)

		position, _, err = e.queue.PositionInfo(ctx, ids[0])
		require.NoError(t, err)
		assert.Equal(t, 2, position)
	})

	t.Run("lines are independent per service type", func(t *testing.T) {
		vacuum := uuid.New()
		require.NoError(t, e.queue.Enqueue(ctx, fakeTx{}, vacuum, session.ServiceVacuum, false))

		position, wait, err := e.queue.PositionInfo(ctx, vacuum)
		require.NoError(t, err)
		assert.Equal(t, 1, position)
		assert.Equal(t, 0, wait)
	})
}

func TestEnqueueRedelivery(t *testing.T) {
	e := newEngine()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, e.queue.Enqueue(ctx, fakeTx{}, id, session.ServiceWash, false))
	require.NoError(t, e.queue.Enqueue(ctx, fakeTx{}, id, session.ServiceWash, false))

	count, err := e.queueRepo.CountByService(ctx, session.ServiceWash)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
