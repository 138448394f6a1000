//go:build unit

package readmodel_test

import (
	"testing"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"
	"github.com/beligro/smart-carwash-sub000/tests/common/builder"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSession(t *testing.T) {
	b := builder.NewSessionBuilder()
	s, err := b.BuildAssigned(4)
	require.NoError(t, err)

	got := readmodel.FromSession(s)

	boxNumber := 4
	want := &readmodel.SessionRM{
		ID:                s.ID(),
		UserID:            b.UserID,
		ServiceType:       "wash",
		Status:            "assigned",
		BoxNumber:         &boxNumber,
		RentalTimeMinutes: 30,
		CarNumber:         "A123BC77",
		CreatedAt:         b.Now,
		UpdatedAt:         b.Now,
		StatusUpdatedAt:   b.Now,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session read model mismatch (-want +got):\n%s", diff)
	}
}

func TestWithDeadline(t *testing.T) {
	b := builder.NewSessionBuilder()
	s, err := b.BuildActive(1)
	require.NoError(t, err)

	now := b.Now.Add(10 * time.Minute)
	rm := readmodel.FromSession(s).WithDeadline(s.RentalDeadline(), now)

	require.NotNil(t, rm.Deadline)
	require.NotNil(t, rm.RemainingSeconds)
	assert.Equal(t, b.Now.Add(30*time.Minute), *rm.Deadline)
	assert.Equal(t, int64(20*60), *rm.RemainingSeconds)
}

func TestFromPayment(t *testing.T) {
	p, err := builder.NewPaymentBuilder().BuildSucceeded()
	require.NoError(t, err)

	got := readmodel.FromPayment(p)
	assert.Equal(t, p.ID(), got.ID)
	assert.Equal(t, "main", got.PaymentType)
	assert.Equal(t, "succeeded", got.Status)
	assert.Equal(t, int64(90000), got.AmountCents)
	assert.Zero(t, got.RefundedCents)
}
