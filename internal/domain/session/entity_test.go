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

func TestNewSession(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildDomain()
		require.NoError(t, err)
		require.NotNil(t, s)

		assert.Equal(t, session.StatusCreated, s.Status())
		assert.Nil(t, s.BoxNumber())
		assert.Equal(t, 30, s.RentalTimeMinutes())
		assert.Zero(t, s.ExtensionTimeMinutes())
		assert.Equal(t, s.CreatedAt(), s.StatusUpdatedAt())
	})

	t.Run("rejects non-positive rental time", func(t *testing.T) {
		_, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) { b.RentalTimeMinutes = 0 }).
			BuildDomain()
		assert.ErrorIs(t, err, session.ErrInvalidRentalTime)
	})

	t.Run("chemistry only on wash sessions", func(t *testing.T) {
		_, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) {
				b.ServiceType = session.ServiceVacuum
				b.WithChemistry = true
				b.ChemistryTimeMinutes = 10
			}).
			BuildDomain()
		assert.ErrorIs(t, err, session.ErrChemistryNotApplicable)
	})

	t.Run("chemistry requires a positive window", func(t *testing.T) {
		_, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) {
				b.WithChemistry = true
				b.ChemistryTimeMinutes = 0
			}).
			BuildDomain()
		assert.ErrorIs(t, err, session.ErrInvalidRentalTime)
	})

	t.Run("chemistry minutes dropped when booked without chemistry", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) { b.ChemistryTimeMinutes = 15 }).
			BuildDomain()
		require.NoError(t, err)
		assert.Zero(t, s.ChemistryTimeMinutes())
	})
}

func TestSessionLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("happy path re-anchors the status timestamp at every step", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildDomain()
		require.NoError(t, err)

		step := now.Add(time.Minute)
		require.NoError(t, s.Enqueue(step))
		assert.Equal(t, session.StatusInQueue, s.Status())
		assert.Equal(t, step, s.StatusUpdatedAt())

		step = step.Add(time.Minute)
		require.NoError(t, s.Assign(3, step))
		assert.Equal(t, session.StatusAssigned, s.Status())
		require.NotNil(t, s.BoxNumber())
		assert.Equal(t, 3, *s.BoxNumber())
		assert.Equal(t, step, s.StatusUpdatedAt())

		step = step.Add(time.Minute)
		require.NoError(t, s.Start(step))
		assert.Equal(t, session.StatusActive, s.Status())

		step = step.Add(30 * time.Minute)
		require.NoError(t, s.Complete(step))
		assert.Equal(t, session.StatusComplete, s.Status())
		assert.True(t, s.Status().IsTerminal())
	})

	t.Run("payment failure detour still reaches the queue", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildDomain()
		require.NoError(t, err)

		require.NoError(t, s.MarkPaymentFailed(now))
		assert.Equal(t, session.StatusPaymentFailed, s.Status())

		require.NoError(t, s.Enqueue(now.Add(time.Minute)))
		assert.Equal(t, session.StatusInQueue, s.Status())
	})

	t.Run("assign requires the queue", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildDomain()
		require.NoError(t, err)
		assert.ErrorIs(t, s.Assign(1, now), session.ErrInvalidTransition)
	})

	t.Run("start requires an assignment", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildQueued()
		require.NoError(t, err)
		assert.ErrorIs(t, s.Start(now), session.ErrInvalidTransition)
	})

	t.Run("return to queue clears the box", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildAssigned(5)
		require.NoError(t, err)

		require.NoError(t, s.ReturnToQueue(now))
		assert.Equal(t, session.StatusInQueue, s.Status())
		assert.Nil(t, s.BoxNumber())
	})

	t.Run("expire fires only from assigned and clears the box", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildAssigned(5)
		require.NoError(t, err)

		require.NoError(t, s.Expire(now))
		assert.Equal(t, session.StatusExpired, s.Status())
		assert.Nil(t, s.BoxNumber())

		active, err := builder.NewSessionBuilder().BuildActive(5)
		require.NoError(t, err)
		assert.ErrorIs(t, active.Expire(now), session.ErrInvalidTransition)
	})
}

func TestSessionCancel(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("cancelable before the wash starts", func(t *testing.T) {
		build := func(prep func(*session.Session) error) *session.Session {
			s, err := builder.NewSessionBuilder().BuildDomain()
			require.NoError(t, err)
			if prep != nil {
				require.NoError(t, prep(s))
			}
			return s
		}

		cases := []struct {
			name string
			s    *session.Session
		}{
			{"created", build(nil)},
			{"payment_failed", build(func(s *session.Session) error { return s.MarkPaymentFailed(now) })},
			{"in_queue", build(func(s *session.Session) error { return s.Enqueue(now) })},
			{"assigned", build(func(s *session.Session) error {
				if err := s.Enqueue(now); err != nil {
					return err
				}
				return s.Assign(1, now)
			})},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				require.NoError(t, tc.s.Cancel(now))
				assert.Equal(t, session.StatusCanceled, tc.s.Status())
				assert.Nil(t, tc.s.BoxNumber())
			})
		}
	})

	t.Run("active sessions cannot cancel", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.Cancel(now), session.ErrInvalidTransition)
	})

	t.Run("terminal sessions reject everything", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		require.NoError(t, s.Complete(now))

		assert.ErrorIs(t, s.Cancel(now), session.ErrTerminal)
		assert.ErrorIs(t, s.Enqueue(now), session.ErrTerminal)
		assert.ErrorIs(t, s.Start(now), session.ErrTerminal)
		assert.ErrorIs(t, s.RequestExtension(10, 0, now), session.ErrTerminal)
		assert.ErrorIs(t, s.EnableChemistry(now), session.ErrTerminal)
	})
}

func TestSessionExtension(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	activeWithChemistry := func(t *testing.T) *session.Session {
		t.Helper()
		s, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) {
				b.WithChemistry = true
				b.ChemistryTimeMinutes = 10
			}).
			BuildActive(1)
		require.NoError(t, err)
		return s
	}

	t.Run("request then apply grows the rental", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)

		require.NoError(t, s.RequestExtension(20, 0, now))
		assert.Equal(t, 20, s.RequestedExtensionTimeMinutes())
		assert.Zero(t, s.ExtensionTimeMinutes())

		require.NoError(t, s.ApplyExtension(now))
		assert.Equal(t, 20, s.ExtensionTimeMinutes())
		assert.Zero(t, s.RequestedExtensionTimeMinutes())
	})

	t.Run("apply without a request fails", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.ApplyExtension(now), session.ErrNoExtensionRequested)
	})

	t.Run("request requires an active session", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildAssigned(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.RequestExtension(10, 0, now), session.ErrInvalidTransition)
	})

	t.Run("non-positive minutes are rejected", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.RequestExtension(0, 0, now), session.ErrInvalidExtensionTime)
	})

	t.Run("chemistry extension needs a chemistry booking", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.RequestExtension(10, 5, now), session.ErrChemistryNotApplicable)
	})

	t.Run("chemistry extension rejected once the coil was on", func(t *testing.T) {
		s := activeWithChemistry(t)
		require.NoError(t, s.EnableChemistry(now))
		assert.ErrorIs(t, s.RequestExtension(10, 5, now), session.ErrChemistryAlreadyStarted)
	})

	t.Run("requested chemistry minutes are dropped when chemistry started between request and apply", func(t *testing.T) {
		s := activeWithChemistry(t)
		require.NoError(t, s.RequestExtension(10, 5, now))
		require.NoError(t, s.EnableChemistry(now))

		require.NoError(t, s.ApplyExtension(now))
		assert.Equal(t, 10, s.ExtensionTimeMinutes())
		assert.Equal(t, 10, s.ChemistryTimeMinutes())
	})

	t.Run("requested values survive for a payment retry", func(t *testing.T) {
		s := activeWithChemistry(t)
		require.NoError(t, s.RequestExtension(15, 5, now))
		assert.Equal(t, 15, s.RequestedExtensionTimeMinutes())
		assert.Equal(t, 5, s.RequestedExtensionChemMinutes())
	})
}

func TestSessionChemistry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	newActive := func(t *testing.T) *session.Session {
		t.Helper()
		s, err := builder.NewSessionBuilder().
			With(func(b *builder.SessionBuilder) {
				b.WithChemistry = true
				b.ChemistryTimeMinutes = 10
			}).
			BuildActive(1)
		require.NoError(t, err)
		return s
	}

	t.Run("enable starts the one and only window", func(t *testing.T) {
		s := newActive(t)
		require.NoError(t, s.EnableChemistry(now))
		assert.True(t, s.ChemistryRunning())
		assert.True(t, s.WasChemistryOn())

		assert.ErrorIs(t, s.EnableChemistry(now), session.ErrChemistryAlreadyStarted)
	})

	t.Run("disable closes the window for good", func(t *testing.T) {
		s := newActive(t)
		require.NoError(t, s.EnableChemistry(now))
		require.NoError(t, s.DisableChemistry(now.Add(time.Minute)))
		assert.False(t, s.ChemistryRunning())

		assert.ErrorIs(t, s.DisableChemistry(now), session.ErrChemistryAlreadyFinished)
		assert.ErrorIs(t, s.EnableChemistry(now), session.ErrChemistryAlreadyFinished)
	})

	t.Run("enable rejected without a chemistry booking", func(t *testing.T) {
		s, err := builder.NewSessionBuilder().BuildActive(1)
		require.NoError(t, err)
		assert.ErrorIs(t, s.EnableChemistry(now), session.ErrChemistryNotApplicable)
	})

	t.Run("completion closes a running window", func(t *testing.T) {
		s := newActive(t)
		require.NoError(t, s.EnableChemistry(now))

		end := now.Add(20 * time.Minute)
		require.NoError(t, s.Complete(end))
		require.NotNil(t, s.ChemistryEndedAt())
		assert.Equal(t, end, *s.ChemistryEndedAt())
		assert.False(t, s.ChemistryRunning())
	})
}
