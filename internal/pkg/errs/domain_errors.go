package errs

import "errors"

// Sentinel errors shared by usecase layers and mapped to HTTP statuses in handlers.
var (
	// Session errors
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionTerminal       = errors.New("session is in a terminal state")
	ErrInvalidTransition     = errors.New("invalid session transition")
	ErrActiveSessionExists   = errors.New("user already has an active session")
	ErrUnknownServiceType    = errors.New("unknown service type")
	ErrInvalidRentalTime     = errors.New("invalid rental time")
	ErrNoExtensionRequested  = errors.New("no extension requested")
	ErrCancellationForbidden = errors.New("session can no longer be canceled")

	// Payment errors
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentPendingExists   = errors.New("pending payment already exists")
	ErrPaymentNotRetryable    = errors.New("payment is not retryable")
	ErrPaymentNotRefundable   = errors.New("payment is not refundable")
	ErrRefundExceedsRemainder = errors.New("refund exceeds remaining amount")

	// Box errors
	ErrBoxNotFound    = errors.New("box not found")
	ErrBoxNotFree     = errors.New("box is no longer free")
	ErrBoxOccupied    = errors.New("box already holds a session")
	ErrCoilWriteFault = errors.New("coil write failed")

	// Chemistry errors
	ErrChemistryUnavailable    = errors.New("chemistry not available for session")
	ErrChemistryAlreadyStarted = errors.New("chemistry already started")
	ErrChemistryFinished       = errors.New("chemistry window already closed")

	// Idempotency errors
	ErrIdempotencyKeyRequired = errors.New("idempotency key required")
	ErrIdempotencyInProgress  = errors.New("idempotency in progress")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with different request")
	ErrIdempotencyCheckFailed = errors.New("idempotency check failed")

	// Validation / operation errors
	ErrDomainValidation        = errors.New("domain validation error")
	ErrDatabaseOperationFailed = errors.New("database operation failed")
	ErrExternalService         = errors.New("external service failure")
)
