package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	reqdto "github.com/beligro/smart-carwash-sub000/internal/handler/dto/request"
	resdto "github.com/beligro/smart-carwash-sub000/internal/handler/dto/response"
	"github.com/beligro/smart-carwash-sub000/internal/handler/middleware"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const defaultSessionListLimit = 20

type SessionHandler struct {
	commands *usecase.SessionCommands
	queries  *usecase.SessionQueries
}

func NewSessionHandler(commands *usecase.SessionCommands, queries *usecase.SessionQueries) *SessionHandler {
	return &SessionHandler{commands: commands, queries: queries}
}

// @Summary Create session
// @Description Create a carwash session with its main payment
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Idempotency key for duplicate prevention"
// @Param request body reqdto.CreateSessionRequest true "Session request"
// @Success 201 {object} resdto.CreateSessionResponse
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /sessions [post]
func (h *SessionHandler) CreateSession(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	idempotencyKey, err := getIdempotencyKey(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// The raw body is hashed so a reused Idempotency-Key with a different
	// request can be rejected.
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot read request body"})
		return
	}
	var req reqdto.CreateSessionRequest
	if bindErr := json.Unmarshal(body, &req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.ServiceType == "" || req.RentalTimeMinutes <= 0 || req.PaymentMethod == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	serviceType, err := session.ParseServiceType(req.ServiceType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown service type"})
		return
	}
	method, err := parsePaymentMethod(c, act, req.PaymentMethod)
	if err != nil {
		return
	}

	hash := sha256.Sum256(body)
	result, err := h.commands.CreateSession(c.Request.Context(), usecase.CreateSessionParams{
		UserID:               act.ID,
		ServiceType:          serviceType,
		RentalTimeMinutes:    req.RentalTimeMinutes,
		WithChemistry:        req.WithChemistry,
		ChemistryTimeMinutes: req.ChemistryTimeMinutes,
		CarNumber:            req.CarNumber,
		PaymentMethod:        method,
		IdempotencyKey:       idempotencyKey,
		RequestHash:          hex.EncodeToString(hash[:]),
	})
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrActiveSessionExists):
			c.JSON(http.StatusConflict, gin.H{"error": "An active session already exists"})
		case errors.Is(err, errs.ErrIdempotencyConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Idempotency key reused with a different request"})
		case errors.Is(err, errs.ErrDomainValidation):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid session parameters"})
		default:
			respondError(c, err)
		}
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}
	c.JSON(status, &resdto.CreateSessionResponse{
		Session:  readmodel.FromSession(result.Session),
		Payment:  readmodel.FromPayment(result.Payment),
		Replayed: result.Replayed,
	})
}

// @Summary Get session
// @Description Get one session with its phase deadline
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	act, id, ok := h.callContext(c)
	if !ok {
		return
	}

	rm, err := h.queries.GetSession(c.Request.Context(), act, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rm)
}

// @Summary Get active session
// @Description Get the caller's current non-terminal session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} readmodel.SessionRM
// @Failure 404 {object} map[string]string
// @Router /sessions/active [get]
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	rm, err := h.queries.GetActiveSession(c.Request.Context(), act.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rm)
}

// @Summary List sessions
// @Description List the caller's sessions, newest first
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} resdto.SessionListResponse
// @Router /sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	sessions, err := h.queries.ListUserSessions(c.Request.Context(), act.ID, defaultSessionListLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &resdto.SessionListResponse{Sessions: sessions})
}

// @Summary Start session
// @Description Turn the box light on and start the rental countdown
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /sessions/{id}/start [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	h.mutateSession(c, h.commands.StartSession)
}

// @Summary Complete session
// @Description End an active rental; the box goes to cleaning
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 409 {object} map[string]string
// @Router /sessions/{id}/complete [post]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	h.mutateSession(c, h.commands.CompleteSession)
}

// @Summary Cancel session
// @Description Cancel before activation and refund settled payments
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 409 {object} map[string]string
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) CancelSession(c *gin.Context) {
	h.mutateSession(c, h.commands.CancelSession)
}

// @Summary Enable chemistry
// @Description Turn the chemistry coil on, once per session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Failure 409 {object} map[string]string
// @Failure 502 {object} map[string]string
// @Router /sessions/{id}/chemistry/enable [post]
func (h *SessionHandler) EnableChemistry(c *gin.Context) {
	h.mutateSession(c, h.commands.EnableChemistry)
}

// @Summary Disable chemistry
// @Description Shut the chemistry coil before the window ends
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} readmodel.SessionRM
// @Router /sessions/{id}/chemistry/disable [post]
func (h *SessionHandler) DisableChemistry(c *gin.Context) {
	h.mutateSession(c, h.commands.DisableChemistry)
}

// @Summary Extend session
// @Description Book extra minutes on an active rental
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body reqdto.ExtendSessionRequest true "Extension request"
// @Success 200 {object} resdto.SessionWithPaymentResponse
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /sessions/{id}/extend [post]
func (h *SessionHandler) ExtendSession(c *gin.Context) {
	act, id, ok := h.callContext(c)
	if !ok {
		return
	}

	var req reqdto.ExtendSessionRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	method, err := parsePaymentMethod(c, act, req.PaymentMethod)
	if err != nil {
		return
	}
	if !h.checkOwnership(c, act, id) {
		return
	}

	s, p, err := h.commands.ExtendSession(c.Request.Context(), id, req.ExtensionTimeMinutes, req.ExtensionChemistryTimeMinutes, method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionWithPayment(s, p))
}

// @Summary Retry main payment
// @Description Open a fresh main payment after a failed one
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body reqdto.RetryPaymentRequest true "Retry request"
// @Success 200 {object} resdto.SessionWithPaymentResponse
// @Failure 422 {object} map[string]string
// @Router /sessions/{id}/payments/retry [post]
func (h *SessionHandler) RetryMainPayment(c *gin.Context) {
	h.retryPayment(c, h.commands.RetryMainPayment)
}

// @Summary Retry extension payment
// @Description Re-open payment for a still-requested extension
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param request body reqdto.RetryPaymentRequest true "Retry request"
// @Success 200 {object} resdto.SessionWithPaymentResponse
// @Failure 422 {object} map[string]string
// @Router /sessions/{id}/payments/retry-extension [post]
func (h *SessionHandler) RetryExtensionPayment(c *gin.Context) {
	h.retryPayment(c, h.commands.RetryExtensionPayment)
}

// @Summary List session payments
// @Description Full payment history of one session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} resdto.PaymentListResponse
// @Router /sessions/{id}/payments [get]
func (h *SessionHandler) ListSessionPayments(c *gin.Context) {
	act, id, ok := h.callContext(c)
	if !ok {
		return
	}

	payments, err := h.queries.GetSessionPayments(c.Request.Context(), act, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, &resdto.PaymentListResponse{Payments: payments})
}

func (h *SessionHandler) mutateSession(c *gin.Context, op func(ctx context.Context, act actor.Actor, id uuid.UUID) (*session.Session, error)) {
	act, id, ok := h.callContext(c)
	if !ok {
		return
	}
	if !h.checkOwnership(c, act, id) {
		return
	}

	s, err := op(c.Request.Context(), act, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readmodel.FromSession(s))
}

func (h *SessionHandler) retryPayment(c *gin.Context, op func(ctx context.Context, id uuid.UUID, method payment.Method) (*session.Session, *payment.Payment, error)) {
	act, id, ok := h.callContext(c)
	if !ok {
		return
	}

	var req reqdto.RetryPaymentRequest
	if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	method, err := parsePaymentMethod(c, act, req.PaymentMethod)
	if err != nil {
		return
	}
	if !h.checkOwnership(c, act, id) {
		return
	}

	s, p, err := op(c.Request.Context(), id, method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionWithPayment(s, p))
}

func (h *SessionHandler) callContext(c *gin.Context) (actor.Actor, uuid.UUID, bool) {
	act, ok := middleware.GetActor(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return actor.Actor{}, uuid.Nil, false
	}
	id, err := parseID(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID format"})
		return actor.Actor{}, uuid.Nil, false
	}
	return act, id, true
}

// checkOwnership hides foreign sessions from regular users; staff roles pass.
func (h *SessionHandler) checkOwnership(c *gin.Context, act actor.Actor, id uuid.UUID) bool {
	if act.Role != actor.RoleUser {
		return true
	}
	if _, err := h.queries.GetSession(c.Request.Context(), act, id); err != nil {
		respondError(c, err)
		return false
	}
	return true
}

func sessionWithPayment(s *session.Session, p *payment.Payment) *resdto.SessionWithPaymentResponse {
	resp := &resdto.SessionWithPaymentResponse{Session: readmodel.FromSession(s)}
	if p != nil {
		resp.Payment = readmodel.FromPayment(p)
	}
	return resp
}

// parsePaymentMethod validates the method and keeps cashier settlement behind
// staff roles. On failure the response is already written.
func parsePaymentMethod(c *gin.Context, act actor.Actor, raw string) (payment.Method, error) {
	method, err := payment.ParseMethod(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown payment method"})
		return "", err
	}
	if method == payment.MethodCashier && act.Role != actor.RoleCashier && act.Role != actor.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cashier payments require staff role"})
		return "", errs.ErrDomainValidation
	}
	return method, nil
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func getIdempotencyKey(c *gin.Context) (uuid.UUID, error) {
	keyStr := c.GetHeader("Idempotency-Key")
	if keyStr == "" {
		return uuid.Nil, errs.ErrIdempotencyKeyRequired
	}

	key, err := uuid.Parse(keyStr)
	if err != nil {
		return uuid.Nil, errors.New("invalid idempotency key format")
	}
	return key, nil
}
