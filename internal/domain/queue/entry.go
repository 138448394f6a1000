package queue

import (
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"

	"github.com/google/uuid"
)

// Entry is ephemeral: it exists only between payment success and box
// assignment (or cancellation). Priority entries sit ahead of the FIFO order;
// they come from manual reassignment so a hardware fault does not cost the
// customer their place.
type Entry struct {
	SessionID   uuid.UUID
	ServiceType session.ServiceType
	EnqueuedAt  time.Time
	Priority    bool
}

// EstimatedWaitMinutes is informational only; it is never a scheduling input.
func EstimatedWaitMinutes(position, avgServiceMinutes int) int {
	if position < 0 {
		position = 0
	}
	return position * avgServiceMinutes
}
