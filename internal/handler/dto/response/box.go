package response

import (
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"
)

type BoxListResponse struct {
	Boxes []readmodel.BoxRM `json:"boxes"`
}

type AuditTrailResponse struct {
	BoxNumber int                      `json:"box_number"`
	Entries   []usecase.AuditEntryView `json:"entries"`
}
