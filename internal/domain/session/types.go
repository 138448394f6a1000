package session

import "errors"

var (
	ErrUnknownServiceType = errors.New("unknown service type")
	ErrUnknownStatus      = errors.New("unknown session status")
)

// ServiceType selects which box pool and queue a session belongs to.
type ServiceType string

const (
	ServiceWash   ServiceType = "wash"
	ServiceAirDry ServiceType = "air_dry"
	ServiceVacuum ServiceType = "vacuum"
)

func ParseServiceType(s string) (ServiceType, error) {
	switch ServiceType(s) {
	case ServiceWash, ServiceAirDry, ServiceVacuum:
		return ServiceType(s), nil
	default:
		return "", ErrUnknownServiceType
	}
}

func (t ServiceType) String() string {
	return string(t)
}

// ServiceTypes lists every service line in a stable order.
func ServiceTypes() []ServiceType {
	return []ServiceType{ServiceWash, ServiceAirDry, ServiceVacuum}
}

type Status string

const (
	StatusCreated       Status = "created"
	StatusPaymentFailed Status = "payment_failed"
	StatusInQueue       Status = "in_queue"
	StatusAssigned      Status = "assigned"
	StatusActive        Status = "active"
	StatusComplete      Status = "complete"
	StatusCanceled      Status = "canceled"
	StatusExpired       Status = "expired"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusCreated, StatusPaymentFailed, StatusInQueue, StatusAssigned,
		StatusActive, StatusComplete, StatusCanceled, StatusExpired:
		return Status(s), nil
	default:
		return "", ErrUnknownStatus
	}
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further mutation of the session is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusCanceled || s == StatusExpired
}
