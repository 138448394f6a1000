//go:build unit

package session_test

import (
	"testing"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/tests/common/builder"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlines(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("assignment deadline follows the status anchor", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildQueued()
		require.NoError(t, err)

		assigned := now.Add(5 * time.Minute)
		require.NoError(t, s.Assign(1, assigned))

		assert.Equal(t, assigned.Add(3*time.Minute), s.AssignmentDeadline(3*time.Minute))
	})

	t.Run("rental deadline covers paid plus extended minutes", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildAssigned(1)
		require.NoError(t, err)

		started := now.Add(10 * time.Minute)
		require.NoError(t, s.Start(started))
		assert.Equal(t, started.Add(30*time.Minute), s.RentalDeadline())

		require.NoError(t, s.RequestExtension(15, 0, started))
		require.NoError(t, s.ApplyExtension(started))
		// Anchor untouched, only the total grows.
		assert.Equal(t, started.Add(45*time.Minute), s.RentalDeadline())
	})

	t.Run("chemistry deadline exists only after enable", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) {
				b.WithChemistry = true
				b.ChemistryTimeMinutes = 10
			}).
			BuildActive(1)
		require.NoError(t, err)

		_, ok := s.ChemistryDeadline()
		assert.False(t, ok)

		enabled := now.Add(time.Minute)
		require.NoError(t, s.EnableChemistry(enabled))

		deadline, ok := s.ChemistryDeadline()
		require.True(t, ok)
		assert.Equal(t, enabled.Add(10*time.Minute), deadline)
	})

	t.Run("remaining clamps at zero", func(t *testing.T) {
		deadline := now.Add(time.Minute)
		assert.Equal(t, time.Minute, session.Remaining(deadline, now))
		assert.Equal(t, time.Duration(0), session.Remaining(deadline, now.Add(2*time.Minute)))
	})
}
