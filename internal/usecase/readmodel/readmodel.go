package readmodel

import (
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"

	"github.com/google/uuid"
)

// SessionRM is the shape pollers consume. StatusUpdatedAt plus the published
// deadline is everything a client needs to render a countdown.
type SessionRM struct {
	ID                            uuid.UUID  `json:"id"`
	UserID                        uuid.UUID  `json:"user_id"`
	ServiceType                   string     `json:"service_type"`
	Status                        string     `json:"status"`
	BoxNumber                     *int       `json:"box_number,omitempty"`
	RentalTimeMinutes             int        `json:"rental_time_minutes"`
	ExtensionTimeMinutes          int        `json:"extension_time_minutes"`
	RequestedExtensionTimeMinutes int        `json:"requested_extension_time_minutes"`
	WithChemistry                 bool       `json:"with_chemistry"`
	ChemistryTimeMinutes          int        `json:"chemistry_time_minutes"`
	RequestedExtensionChemMinutes int        `json:"requested_extension_chemistry_time_minutes"`
	WasChemistryOn                bool       `json:"was_chemistry_on"`
	ChemistryStartedAt            *time.Time `json:"chemistry_started_at,omitempty"`
	ChemistryEndedAt              *time.Time `json:"chemistry_ended_at,omitempty"`
	CarNumber                     string     `json:"car_number"`
	CreatedAt                     time.Time  `json:"created_at"`
	UpdatedAt                     time.Time  `json:"updated_at"`
	StatusUpdatedAt               time.Time  `json:"status_updated_at"`
	Deadline                      *time.Time `json:"deadline,omitempty"`
	RemainingSeconds              *int64     `json:"remaining_seconds,omitempty"`
	QueuePosition                 *int       `json:"queue_position,omitempty"`
	EstimatedWaitMinutes          *int       `json:"estimated_wait_minutes,omitempty"`
}

func FromSession(s *session.Session) *SessionRM {
	return &SessionRM{
		ID:                            s.ID(),
		UserID:                        s.UserID(),
		ServiceType:                   s.ServiceType().String(),
		Status:                        s.Status().String(),
		BoxNumber:                     s.BoxNumber(),
		RentalTimeMinutes:             s.RentalTimeMinutes(),
		ExtensionTimeMinutes:          s.ExtensionTimeMinutes(),
		RequestedExtensionTimeMinutes: s.RequestedExtensionTimeMinutes(),
		WithChemistry:                 s.WithChemistry(),
		ChemistryTimeMinutes:          s.ChemistryTimeMinutes(),
		RequestedExtensionChemMinutes: s.RequestedExtensionChemMinutes(),
		WasChemistryOn:                s.WasChemistryOn(),
		ChemistryStartedAt:            s.ChemistryStartedAt(),
		ChemistryEndedAt:              s.ChemistryEndedAt(),
		CarNumber:                     s.CarNumber(),
		CreatedAt:                     s.CreatedAt(),
		UpdatedAt:                     s.UpdatedAt(),
		StatusUpdatedAt:               s.StatusUpdatedAt(),
	}
}

// WithDeadline publishes the server-computed countdown for the session's
// current phase.
func (rm *SessionRM) WithDeadline(deadline, now time.Time) *SessionRM {
	remaining := int64(session.Remaining(deadline, now).Seconds())
	rm.Deadline = &deadline
	rm.RemainingSeconds = &remaining
	return rm
}

type PaymentRM struct {
	ID            uuid.UUID `json:"id"`
	SessionID     uuid.UUID `json:"session_id"`
	PaymentType   string    `json:"payment_type"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	RefundedCents int64     `json:"refunded_cents"`
	PaymentMethod string    `json:"payment_method"`
	RedirectURL   *string   `json:"redirect_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromPayment(p *payment.Payment) *PaymentRM {
	return &PaymentRM{
		ID:            p.ID(),
		SessionID:     p.SessionID(),
		PaymentType:   string(p.PaymentType()),
		AmountCents:   p.AmountCents(),
		Currency:      p.Currency(),
		Status:        string(p.Status()),
		RefundedCents: p.RefundedCents(),
		PaymentMethod: string(p.PaymentMethod()),
		RedirectURL:   p.RedirectURL(),
		CreatedAt:     p.CreatedAt(),
	}
}

type BoxRM struct {
	Number           int        `json:"number"`
	Status           string     `json:"status"`
	ServiceType      string     `json:"service_type"`
	ChemistryEnabled bool       `json:"chemistry_enabled"`
	CurrentSessionID *uuid.UUID `json:"current_session_id,omitempty"`
}

func FromBox(b *washbox.WashBox) BoxRM {
	return BoxRM{
		Number:           b.Number(),
		Status:           b.Status().String(),
		ServiceType:      b.ServiceType().String(),
		ChemistryEnabled: b.ChemistryEnabled(),
		CurrentSessionID: b.CurrentSessionID(),
	}
}

type QueueInfoRM struct {
	ServiceType          string `json:"service_type"`
	Size                 int    `json:"size"`
	HasQueue             bool   `json:"has_queue"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// QueueStatusRM is the poll snapshot of every box and every queue; it is what
// the Redis cache stores.
type QueueStatusRM struct {
	Boxes       []BoxRM       `json:"boxes"`
	Queues      []QueueInfoRM `json:"queues"`
	GeneratedAt time.Time     `json:"generated_at"`
}
