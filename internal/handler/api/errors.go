package api

import (
	"errors"
	"net/http"

	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"

	"github.com/gin-gonic/gin"
)

// respondError maps the shared sentinel errors to HTTP statuses. Handlers
// with flow-specific messages switch on the interesting cases first and fall
// back here.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound),
		errors.Is(err, errs.ErrPaymentNotFound),
		errors.Is(err, errs.ErrBoxNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, errs.ErrActiveSessionExists),
		errors.Is(err, errs.ErrPaymentPendingExists),
		errors.Is(err, errs.ErrIdempotencyConflict),
		errors.Is(err, errs.ErrSessionTerminal),
		errors.Is(err, errs.ErrInvalidTransition),
		errors.Is(err, errs.ErrCancellationForbidden),
		errors.Is(err, errs.ErrBoxOccupied),
		errors.Is(err, errs.ErrBoxNotFree),
		errors.Is(err, errs.ErrChemistryAlreadyStarted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, errs.ErrIdempotencyKeyRequired),
		errors.Is(err, errs.ErrUnknownServiceType),
		errors.Is(err, errs.ErrInvalidRentalTime):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	case errors.Is(err, errs.ErrDomainValidation),
		errors.Is(err, errs.ErrNoExtensionRequested),
		errors.Is(err, errs.ErrChemistryUnavailable),
		errors.Is(err, errs.ErrChemistryFinished),
		errors.Is(err, errs.ErrPaymentNotRetryable),
		errors.Is(err, errs.ErrPaymentNotRefundable),
		errors.Is(err, errs.ErrRefundExceedsRemainder):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})

	case errors.Is(err, errs.ErrCoilWriteFault),
		errors.Is(err, errs.ErrExternalService):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
