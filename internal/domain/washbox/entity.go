package washbox

import (
	"errors"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/session"

	"github.com/google/uuid"
)

var (
	ErrInvalidBoxNumber = errors.New("box number must be positive")
	ErrUnknownStatus    = errors.New("unknown box status")
	ErrNotFree          = errors.New("box is not free")
	ErrNotHeld          = errors.New("box is not held by a session")
	ErrInMaintenance    = errors.New("box is in maintenance")
)

type Status string

const (
	StatusFree        Status = "free"
	StatusReserved    Status = "reserved"
	StatusBusy        Status = "busy"
	StatusMaintenance Status = "maintenance"
	StatusCleaning    Status = "cleaning"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusFree, StatusReserved, StatusBusy, StatusMaintenance, StatusCleaning:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

func (s Status) String() string {
	return string(s)
}

// WashBox mirrors one physical bay. Coil registers address the bay's
// industrial controller through the Modbus gateway.
type WashBox struct {
	id                    uuid.UUID
	number                int
	status                Status
	serviceType           session.ServiceType
	chemistryEnabled      bool
	lightCoilRegister     string
	chemistryCoilRegister string
	currentSessionID      *uuid.UUID
	cleaningStartedAt     *time.Time
	createdAt             time.Time
	updatedAt             time.Time
}

func NewWashBox(
	number int,
	serviceType session.ServiceType,
	chemistryEnabled bool,
	lightCoilRegister, chemistryCoilRegister string,
	now time.Time,
) (*WashBox, error) {
	if number <= 0 {
		return nil, ErrInvalidBoxNumber
	}
	if _, err := session.ParseServiceType(serviceType.String()); err != nil {
		return nil, err
	}
	return &WashBox{
		id:                    uuid.New(),
		number:                number,
		status:                StatusFree,
		serviceType:           serviceType,
		chemistryEnabled:      chemistryEnabled,
		lightCoilRegister:     lightCoilRegister,
		chemistryCoilRegister: chemistryCoilRegister,
		createdAt:             now,
		updatedAt:             now,
	}, nil
}

func Reconstruct(
	id uuid.UUID,
	number int,
	status Status,
	serviceType session.ServiceType,
	chemistryEnabled bool,
	lightCoilRegister, chemistryCoilRegister string,
	currentSessionID *uuid.UUID,
	cleaningStartedAt *time.Time,
	createdAt, updatedAt time.Time,
) *WashBox {
	return &WashBox{
		id:                    id,
		number:                number,
		status:                status,
		serviceType:           serviceType,
		chemistryEnabled:      chemistryEnabled,
		lightCoilRegister:     lightCoilRegister,
		chemistryCoilRegister: chemistryCoilRegister,
		currentSessionID:      currentSessionID,
		cleaningStartedAt:     cleaningStartedAt,
		createdAt:             createdAt,
		updatedAt:             updatedAt,
	}
}

// Reserve is only applied through the repository's compare-and-swap update;
// the entity-level check guards the in-memory path.
func (b *WashBox) Reserve(sessionID uuid.UUID, now time.Time) error {
	if b.status != StatusFree {
		return ErrNotFree
	}
	b.status = StatusReserved
	b.currentSessionID = &sessionID
	b.updatedAt = now
	return nil
}

func (b *WashBox) Occupy(now time.Time) error {
	if b.status != StatusReserved {
		return ErrNotHeld
	}
	b.status = StatusBusy
	b.updatedAt = now
	return nil
}

// Release always routes through cleaning; the cleaning workflow or its timeout
// brings the box back to free.
func (b *WashBox) Release(now time.Time) error {
	if b.status != StatusReserved && b.status != StatusBusy {
		return ErrNotHeld
	}
	b.status = StatusCleaning
	b.currentSessionID = nil
	b.cleaningStartedAt = &now
	b.updatedAt = now
	return nil
}

// Free reverts a reserved box whose assignment expired; no cleaning needed
// because the customer never entered.
func (b *WashBox) Free(now time.Time) error {
	if b.status != StatusReserved {
		return ErrNotHeld
	}
	b.status = StatusFree
	b.currentSessionID = nil
	b.updatedAt = now
	return nil
}

func (b *WashBox) FinishCleaning(now time.Time) error {
	if b.status != StatusCleaning {
		return ErrNotHeld
	}
	b.status = StatusFree
	b.cleaningStartedAt = nil
	b.updatedAt = now
	return nil
}

func (b *WashBox) SetMaintenance(on bool, now time.Time) error {
	if on {
		if b.status == StatusReserved || b.status == StatusBusy {
			return ErrNotFree
		}
		b.status = StatusMaintenance
	} else {
		if b.status != StatusMaintenance {
			return ErrInMaintenance
		}
		b.status = StatusFree
	}
	b.updatedAt = now
	return nil
}

func (b *WashBox) CleaningDeadline(timeout time.Duration) (time.Time, bool) {
	if b.cleaningStartedAt == nil {
		return time.Time{}, false
	}
	return b.cleaningStartedAt.Add(timeout), true
}

func (b *WashBox) ID() uuid.UUID                    { return b.id }
func (b *WashBox) Number() int                      { return b.number }
func (b *WashBox) Status() Status                   { return b.status }
func (b *WashBox) ServiceType() session.ServiceType { return b.serviceType }
func (b *WashBox) ChemistryEnabled() bool           { return b.chemistryEnabled }
func (b *WashBox) LightCoilRegister() string        { return b.lightCoilRegister }
func (b *WashBox) ChemistryCoilRegister() string    { return b.chemistryCoilRegister }
func (b *WashBox) CurrentSessionID() *uuid.UUID     { return b.currentSessionID }
func (b *WashBox) CleaningStartedAt() *time.Time    { return b.cleaningStartedAt }
func (b *WashBox) CreatedAt() time.Time             { return b.createdAt }
func (b *WashBox) UpdatedAt() time.Time             { return b.updatedAt }
