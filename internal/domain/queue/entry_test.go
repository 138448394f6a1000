//go:build unit

package queue_test

import (
	"testing"

	"github.com/beligro/smart-carwash-sub000/internal/domain/queue"

	"github.com/stretchr/testify/assert"
)

func TestEstimatedWaitMinutes(t *testing.T) {
	assert.Equal(t, 0, queue.EstimatedWaitMinutes(0, 15))
	assert.Equal(t, 45, queue.EstimatedWaitMinutes(3, 15))
	assert.Equal(t, 0, queue.EstimatedWaitMinutes(-1, 15))
}
