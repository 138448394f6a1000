package request

import "github.com/google/uuid"

// PaymentWebhookRequest is the provider's settlement callback. Status carries
// the provider's vocabulary; everything except "succeeded" counts as failure.
type PaymentWebhookRequest struct {
	PaymentID uuid.UUID `json:"payment_id" binding:"required"`
	Status    string    `json:"status" binding:"required"`
}

func (r *PaymentWebhookRequest) Succeeded() bool {
	return r.Status == "succeeded"
}

type RefundRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required,min=1"`
}
