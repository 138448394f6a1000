package response

import (
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"
)

// CreateSessionResponse pairs the session with its main payment so the client
// gets the redirect URL in the same round-trip.
type CreateSessionResponse struct {
	Session  *readmodel.SessionRM `json:"session"`
	Payment  *readmodel.PaymentRM `json:"payment"`
	Replayed bool                 `json:"replayed,omitempty"`
}

type SessionWithPaymentResponse struct {
	Session *readmodel.SessionRM `json:"session"`
	Payment *readmodel.PaymentRM `json:"payment,omitempty"`
}

type SessionListResponse struct {
	Sessions []*readmodel.SessionRM `json:"sessions"`
}

type PaymentListResponse struct {
	Payments []*readmodel.PaymentRM `json:"payments"`
}
