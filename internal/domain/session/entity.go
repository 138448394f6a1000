package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTerminal                 = errors.New("session is in a terminal state")
	ErrInvalidTransition        = errors.New("invalid transition for current status")
	ErrInvalidRentalTime        = errors.New("rental time must be positive")
	ErrInvalidExtensionTime     = errors.New("extension time must be positive")
	ErrChemistryNotApplicable   = errors.New("chemistry requires a wash session booked with chemistry")
	ErrChemistryAlreadyStarted  = errors.New("chemistry already started")
	ErrChemistryAlreadyFinished = errors.New("chemistry window already closed")
	ErrNoBoxAssigned            = errors.New("session has no box assigned")
	ErrNoExtensionRequested     = errors.New("no extension requested")
)

// Session is the aggregate the whole engine revolves around. All mutation goes
// through the transition methods below; every status change re-anchors
// statusUpdatedAt, which is the single reference point for timer math.
type Session struct {
	id                            uuid.UUID
	userID                        uuid.UUID
	serviceType                   ServiceType
	status                        Status
	boxNumber                     *int
	rentalTimeMinutes             int
	extensionTimeMinutes          int
	requestedExtensionTimeMinutes int
	withChemistry                 bool
	chemistryTimeMinutes          int
	requestedExtensionChemMinutes int
	wasChemistryOn                bool
	chemistryStartedAt            *time.Time
	chemistryEndedAt              *time.Time
	carNumber                     string
	createdAt                     time.Time
	updatedAt                     time.Time
	statusUpdatedAt               time.Time
}

func NewSession(
	userID uuid.UUID,
	serviceType ServiceType,
	rentalTimeMinutes int,
	withChemistry bool,
	chemistryTimeMinutes int,
	carNumber string,
	now time.Time,
) (*Session, error) {
	if _, err := ParseServiceType(serviceType.String()); err != nil {
		return nil, err
	}
	if rentalTimeMinutes <= 0 {
		return nil, ErrInvalidRentalTime
	}
	if withChemistry {
		if serviceType != ServiceWash {
			return nil, ErrChemistryNotApplicable
		}
		if chemistryTimeMinutes <= 0 {
			return nil, ErrInvalidRentalTime
		}
	} else {
		chemistryTimeMinutes = 0
	}

	return &Session{
		id:                   uuid.New(),
		userID:               userID,
		serviceType:          serviceType,
		status:               StatusCreated,
		rentalTimeMinutes:    rentalTimeMinutes,
		withChemistry:        withChemistry,
		chemistryTimeMinutes: chemistryTimeMinutes,
		carNumber:            carNumber,
		createdAt:            now,
		updatedAt:            now,
		statusUpdatedAt:      now,
	}, nil
}

func Reconstruct(
	id, userID uuid.UUID,
	serviceType ServiceType,
	status Status,
	boxNumber *int,
	rentalTimeMinutes, extensionTimeMinutes, requestedExtensionTimeMinutes int,
	withChemistry bool,
	chemistryTimeMinutes, requestedExtensionChemMinutes int,
	wasChemistryOn bool,
	chemistryStartedAt, chemistryEndedAt *time.Time,
	carNumber string,
	createdAt, updatedAt, statusUpdatedAt time.Time,
) *Session {
	return &Session{
		id:                            id,
		userID:                        userID,
		serviceType:                   serviceType,
		status:                        status,
		boxNumber:                     boxNumber,
		rentalTimeMinutes:             rentalTimeMinutes,
		extensionTimeMinutes:          extensionTimeMinutes,
		requestedExtensionTimeMinutes: requestedExtensionTimeMinutes,
		withChemistry:                 withChemistry,
		chemistryTimeMinutes:          chemistryTimeMinutes,
		requestedExtensionChemMinutes: requestedExtensionChemMinutes,
		wasChemistryOn:                wasChemistryOn,
		chemistryStartedAt:            chemistryStartedAt,
		chemistryEndedAt:              chemistryEndedAt,
		carNumber:                     carNumber,
		createdAt:                     createdAt,
		updatedAt:                     updatedAt,
		statusUpdatedAt:               statusUpdatedAt,
	}
}

func (s *Session) transition(to Status, now time.Time) {
	s.status = to
	s.statusUpdatedAt = now
	s.updatedAt = now
}

// MarkPaymentFailed moves a freshly created session aside so the user can
// retry the main payment or cancel.
func (s *Session) MarkPaymentFailed(now time.Time) error {
	if s.status != StatusCreated {
		return s.transitionErr()
	}
	s.transition(StatusPaymentFailed, now)
	return nil
}

// Enqueue is the payment-success transition into the service-type queue.
func (s *Session) Enqueue(now time.Time) error {
	if s.status != StatusCreated && s.status != StatusPaymentFailed {
		return s.transitionErr()
	}
	s.transition(StatusInQueue, now)
	return nil
}

// Assign binds a reserved box; the assignment-expiry window starts at
// statusUpdatedAt.
func (s *Session) Assign(boxNumber int, now time.Time) error {
	if s.status != StatusInQueue {
		return s.transitionErr()
	}
	s.boxNumber = &boxNumber
	s.transition(StatusAssigned, now)
	return nil
}

// ReturnToQueue releases the box without terminating the session; used for
// manual reassignment after a hardware fault.
func (s *Session) ReturnToQueue(now time.Time) error {
	if s.status != StatusAssigned {
		return s.transitionErr()
	}
	s.boxNumber = nil
	s.transition(StatusInQueue, now)
	return nil
}

func (s *Session) Start(now time.Time) error {
	if s.status != StatusAssigned {
		return s.transitionErr()
	}
	s.transition(StatusActive, now)
	return nil
}

func (s *Session) Complete(now time.Time) error {
	if s.status != StatusActive {
		return s.transitionErr()
	}
	if s.ChemistryRunning() {
		s.chemistryEndedAt = &now
	}
	s.transition(StatusComplete, now)
	return nil
}

// Cancel is legal until the box light goes on; an active session can only
// complete or time out.
func (s *Session) Cancel(now time.Time) error {
	switch s.status {
	case StatusCreated, StatusPaymentFailed, StatusInQueue, StatusAssigned:
		s.boxNumber = nil
		s.transition(StatusCanceled, now)
		return nil
	default:
		return s.transitionErr()
	}
}

// Expire fires when the assignment window elapses before Start.
func (s *Session) Expire(now time.Time) error {
	if s.status != StatusAssigned {
		return s.transitionErr()
	}
	s.boxNumber = nil
	s.transition(StatusExpired, now)
	return nil
}

// RequestExtension records the amount a new extension payment will cover. The
// requested values stay set on payment failure so the retry flow can recreate
// the same payment.
func (s *Session) RequestExtension(minutes, chemistryMinutes int, now time.Time) error {
	if s.status != StatusActive {
		return s.transitionErr()
	}
	if minutes <= 0 {
		return ErrInvalidExtensionTime
	}
	if chemistryMinutes > 0 {
		if !s.withChemistry || s.serviceType != ServiceWash {
			return ErrChemistryNotApplicable
		}
		// One chemistry activation window per session: extra minutes are only
		// accepted while the coil has never been on.
		if s.chemistryStartedAt != nil {
			return ErrChemistryAlreadyStarted
		}
	}
	s.requestedExtensionTimeMinutes = minutes
	s.requestedExtensionChemMinutes = chemistryMinutes
	s.updatedAt = now
	return nil
}

// ApplyExtension converts the requested minutes into granted ones after the
// extension payment succeeds. The rental anchor is untouched; only the total
// duration grows.
func (s *Session) ApplyExtension(now time.Time) error {
	if s.status != StatusActive {
		return s.transitionErr()
	}
	if s.requestedExtensionTimeMinutes <= 0 {
		return ErrNoExtensionRequested
	}
	s.extensionTimeMinutes += s.requestedExtensionTimeMinutes
	s.requestedExtensionTimeMinutes = 0
	if s.requestedExtensionChemMinutes > 0 && s.chemistryStartedAt == nil {
		s.chemistryTimeMinutes += s.requestedExtensionChemMinutes
	}
	s.requestedExtensionChemMinutes = 0
	s.updatedAt = now
	return nil
}

func (s *Session) EnableChemistry(now time.Time) error {
	if s.status != StatusActive {
		return s.transitionErr()
	}
	if !s.withChemistry || s.serviceType != ServiceWash {
		return ErrChemistryNotApplicable
	}
	if s.chemistryEndedAt != nil {
		return ErrChemistryAlreadyFinished
	}
	if s.chemistryStartedAt != nil {
		return ErrChemistryAlreadyStarted
	}
	s.chemistryStartedAt = &now
	s.wasChemistryOn = true
	s.updatedAt = now
	return nil
}

func (s *Session) DisableChemistry(now time.Time) error {
	if !s.ChemistryRunning() {
		return ErrChemistryAlreadyFinished
	}
	s.chemistryEndedAt = &now
	s.updatedAt = now
	return nil
}

func (s *Session) ChemistryRunning() bool {
	return s.chemistryStartedAt != nil && s.chemistryEndedAt == nil
}

func (s *Session) transitionErr() error {
	if s.status.IsTerminal() {
		return ErrTerminal
	}
	return ErrInvalidTransition
}

func (s *Session) ID() uuid.UUID                     { return s.id }
func (s *Session) UserID() uuid.UUID                 { return s.userID }
func (s *Session) ServiceType() ServiceType          { return s.serviceType }
func (s *Session) Status() Status                    { return s.status }
func (s *Session) BoxNumber() *int                   { return s.boxNumber }
func (s *Session) RentalTimeMinutes() int            { return s.rentalTimeMinutes }
func (s *Session) ExtensionTimeMinutes() int         { return s.extensionTimeMinutes }
func (s *Session) RequestedExtensionTimeMinutes() int {
	return s.requestedExtensionTimeMinutes
}
func (s *Session) WithChemistry() bool        { return s.withChemistry }
func (s *Session) ChemistryTimeMinutes() int  { return s.chemistryTimeMinutes }
func (s *Session) RequestedExtensionChemMinutes() int {
	return s.requestedExtensionChemMinutes
}
func (s *Session) WasChemistryOn() bool           { return s.wasChemistryOn }
func (s *Session) ChemistryStartedAt() *time.Time { return s.chemistryStartedAt }
func (s *Session) ChemistryEndedAt() *time.Time   { return s.chemistryEndedAt }
func (s *Session) CarNumber() string              { return s.carNumber }
func (s *Session) CreatedAt() time.Time           { return s.createdAt }
func (s *Session) UpdatedAt() time.Time           { return s.updatedAt }
func (s *Session) StatusUpdatedAt() time.Time     { return s.statusUpdatedAt }
