package session

import "time"

// All countdowns the clients render derive from these three functions; the
// frontend only subtracts the published deadline from its own clock, it never
// re-implements the math.

// AssignmentDeadline is the moment an assigned-but-unstarted session expires.
func (s *Session) AssignmentDeadline(window time.Duration) time.Time {
	return s.statusUpdatedAt.Add(window)
}

// RentalDeadline is anchored at the moment the session went active and covers
// paid plus extended minutes.
func (s *Session) RentalDeadline() time.Time {
	total := time.Duration(s.rentalTimeMinutes+s.extensionTimeMinutes) * time.Minute
	return s.statusUpdatedAt.Add(total)
}

// ChemistryDeadline is only meaningful while chemistry is running.
func (s *Session) ChemistryDeadline() (time.Time, bool) {
	if s.chemistryStartedAt == nil {
		return time.Time{}, false
	}
	return s.chemistryStartedAt.Add(time.Duration(s.chemistryTimeMinutes) * time.Minute), true
}

// Remaining clamps a countdown at zero.
func Remaining(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
