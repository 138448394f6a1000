//go:build unit

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/payment"
	"github.com/beligro/smart-carwash-sub000/internal/domain/queue"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/infra"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/infra/provider"
	"github.com/beligro/smart-carwash-sub000/internal/infra/repository"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/config"
	"github.com/beligro/smart-carwash-sub000/internal/usecase"
	"github.com/beligro/smart-carwash-sub000/internal/usecase/readmodel"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeTx satisfies pgx.Tx for code that only commits or rolls back; the fake
// repositories never touch the transaction handle itself.
type fakeTx struct{ pgx.Tx }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakePool struct{}

func (fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("fake pool does not query")
}
func (fakePool) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (fakePool) Begin(context.Context) (pgx.Tx, error)            { return fakeTx{}, nil }

type fakeLocker struct{}

func (fakeLocker) Lock(uuid.UUID) func() { return func() {} }

func adminActor() actor.Actor {
	return actor.Actor{ID: uuid.New(), Role: actor.RoleAdmin}
}

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uuid.UUID]*session.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, _ db.DBTX, s *session.Session) error {
	if _, ok := r.sessions[s.ID()]; ok {
		return infra.WrapRepoErr("session already exists", nil, infra.KindDuplicateKey)
	}
	for _, existing := range r.sessions {
		if existing.UserID() == s.UserID() && !existing.Status().IsTerminal() {
			return infra.WrapRepoErr("user already has an active session", nil, infra.KindConflict)
		}
	}
	r.sessions[s.ID()] = s
	return nil
}

func (r *fakeSessionRepo) Update(_ context.Context, _ db.DBTX, s *session.Session) error {
	r.sessions[s.ID()] = s
	return nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id uuid.UUID) (*session.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, infra.WrapRepoErr("session not found", nil, infra.KindNotFound)
	}
	return s, nil
}

func (r *fakeSessionRepo) FindNonTerminalByUser(_ context.Context, userID uuid.UUID) (*session.Session, error) {
	for _, s := range r.sessions {
		if s.UserID() == userID && !s.Status().IsTerminal() {
			return s, nil
		}
	}
	return nil, infra.WrapRepoErr("no active session", nil, infra.KindNotFound)
}

func (r *fakeSessionRepo) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*session.Session, error) {
	var result []*session.Session
	for _, s := range r.sessions {
		if s.UserID() == userID {
			result = append(result, s)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *fakeSessionRepo) FindExpiredAssigned(_ context.Context, window time.Duration, now time.Time) ([]*session.Session, error) {
	var result []*session.Session
	for _, s := range r.sessions {
		if s.Status() == session.StatusAssigned && !now.Before(s.AssignmentDeadline(window)) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) FindExpiredActive(_ context.Context, now time.Time) ([]*session.Session, error) {
	var result []*session.Session
	for _, s := range r.sessions {
		if s.Status() == session.StatusActive && !now.Before(s.RentalDeadline()) {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *fakeSessionRepo) FindExpiredChemistry(_ context.Context, now time.Time) ([]*session.Session, error) {
	var result []*session.Session
	for _, s := range r.sessions {
		if deadline, running := s.ChemistryDeadline(); running && !now.Before(deadline) {
			result = append(result, s)
		}
	}
	return result, nil
}

type fakePaymentRepo struct {
	payments []*payment.Payment
}

func (r *fakePaymentRepo) Create(_ context.Context, _ db.DBTX, p *payment.Payment) error {
	for _, existing := range r.payments {
		if existing.SessionID() == p.SessionID() &&
			existing.PaymentType() == p.PaymentType() &&
			existing.Status() == payment.StatusPending {
			return infra.WrapRepoErr("pending payment exists", nil, infra.KindConflict)
		}
	}
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakePaymentRepo) Update(_ context.Context, _ db.DBTX, p *payment.Payment) error {
	for i, existing := range r.payments {
		if existing.ID() == p.ID() {
			r.payments[i] = p
			return nil
		}
	}
	return infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (r *fakePaymentRepo) FindBySession(_ context.Context, sessionID uuid.UUID) ([]*payment.Payment, error) {
	var result []*payment.Payment
	for _, p := range r.payments {
		if p.SessionID() == sessionID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (r *fakePaymentRepo) FindLatestByType(_ context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error) {
	for i := len(r.payments) - 1; i >= 0; i-- {
		p := r.payments[i]
		if p.SessionID() == sessionID && p.PaymentType() == paymentType {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("payment not found", nil, infra.KindNotFound)
}

func (r *fakePaymentRepo) FindPending(_ context.Context, sessionID uuid.UUID, paymentType payment.Type) (*payment.Payment, error) {
	for _, p := range r.payments {
		if p.SessionID() == sessionID && p.PaymentType() == paymentType && p.Status() == payment.StatusPending {
			return p, nil
		}
	}
	return nil, infra.WrapRepoErr("no pending payment", nil, infra.KindNotFound)
}

type fakeBoxRepo struct {
	boxes map[int]*washbox.WashBox
}

func newFakeBoxRepo() *fakeBoxRepo {
	return &fakeBoxRepo{boxes: map[int]*washbox.WashBox{}}
}

func (r *fakeBoxRepo) Create(_ context.Context, _ db.DBTX, b *washbox.WashBox) error {
	if _, ok := r.boxes[b.Number()]; ok {
		return infra.WrapRepoErr("box number taken", nil, infra.KindDuplicateKey)
	}
	r.boxes[b.Number()] = b
	return nil
}

func (r *fakeBoxRepo) Update(_ context.Context, _ db.DBTX, b *washbox.WashBox) error {
	r.boxes[b.Number()] = b
	return nil
}

// Reserve mirrors the production compare-and-swap: it only succeeds while the
// box is still free.
func (r *fakeBoxRepo) Reserve(_ context.Context, _ db.DBTX, number int, sessionID uuid.UUID, now time.Time) (*washbox.WashBox, error) {
	b, ok := r.boxes[number]
	if !ok {
		return nil, infra.WrapRepoErr("box not found", nil, infra.KindNotFound)
	}
	if err := b.Reserve(sessionID, now); err != nil {
		return nil, infra.WrapRepoErr("box is not free", nil, infra.KindConflict)
	}
	return b, nil
}

func (r *fakeBoxRepo) FindByNumber(_ context.Context, number int) (*washbox.WashBox, error) {
	b, ok := r.boxes[number]
	if !ok {
		return nil, infra.WrapRepoErr("box not found", nil, infra.KindNotFound)
	}
	return b, nil
}

func (r *fakeBoxRepo) FindFree(_ context.Context, serviceType session.ServiceType) ([]*washbox.WashBox, error) {
	var result []*washbox.WashBox
	for _, b := range r.boxes {
		if b.Status() == washbox.StatusFree && b.ServiceType() == serviceType {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number() < result[j].Number() })
	return result, nil
}

func (r *fakeBoxRepo) List(_ context.Context) ([]*washbox.WashBox, error) {
	var result []*washbox.WashBox
	for _, b := range r.boxes {
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number() < result[j].Number() })
	return result, nil
}

func (r *fakeBoxRepo) FindCleaningExpired(_ context.Context, timeout time.Duration, now time.Time) ([]*washbox.WashBox, error) {
	var result []*washbox.WashBox
	for _, b := range r.boxes {
		if deadline, cleaning := b.CleaningDeadline(timeout); cleaning && !now.Before(deadline) {
			result = append(result, b)
		}
	}
	return result, nil
}

type fakeQueueRepo struct {
	entries []queue.Entry
}

func (r *fakeQueueRepo) Insert(_ context.Context, _ db.DBTX, e queue.Entry) error {
	for _, existing := range r.entries {
		if existing.SessionID == e.SessionID {
			return infra.WrapRepoErr("session already queued", nil, infra.KindConflict)
		}
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *fakeQueueRepo) Delete(_ context.Context, _ db.DBTX, sessionID uuid.UUID) error {
	for i, existing := range r.entries {
		if existing.SessionID == sessionID {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeQueueRepo) line(serviceType session.ServiceType) []queue.Entry {
	var result []queue.Entry
	for _, e := range r.entries {
		if e.ServiceType == serviceType {
			result = append(result, e)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority
		}
		return result[i].EnqueuedAt.Before(result[j].EnqueuedAt)
	})
	return result
}

func (r *fakeQueueRepo) Oldest(_ context.Context, serviceType session.ServiceType) (*queue.Entry, error) {
	line := r.line(serviceType)
	if len(line) == 0 {
		return nil, infra.WrapRepoErr("queue is empty", nil, infra.KindNotFound)
	}
	head := line[0]
	return &head, nil
}

func (r *fakeQueueRepo) ListByService(_ context.Context, serviceType session.ServiceType) ([]queue.Entry, error) {
	return r.line(serviceType), nil
}

// Position is 1-based, matching the SQL window-function query.
func (r *fakeQueueRepo) Position(_ context.Context, sessionID uuid.UUID) (int, error) {
	for _, e := range r.entries {
		if e.SessionID == sessionID {
			for i, ranked := range r.line(e.ServiceType) {
				if ranked.SessionID == sessionID {
					return i + 1, nil
				}
			}
		}
	}
	return 0, infra.WrapRepoErr("session is not queued", nil, infra.KindNotFound)
}

func (r *fakeQueueRepo) CountByService(_ context.Context, serviceType session.ServiceType) (int, error) {
	return len(r.line(serviceType)), nil
}

type fakeIdemRepo struct {
	recs map[string]*repository.IdempotencyRecord
}

func newFakeIdemRepo() *fakeIdemRepo {
	return &fakeIdemRepo{recs: map[string]*repository.IdempotencyRecord{}}
}

func idemKey(key, userID uuid.UUID) string { return key.String() + "/" + userID.String() }

func (r *fakeIdemRepo) TryInsert(_ context.Context, key, userID uuid.UUID, endpoint, requestHash string, expiresAt time.Time) error {
	k := idemKey(key, userID)
	if _, ok := r.recs[k]; ok {
		return nil
	}
	r.recs[k] = &repository.IdempotencyRecord{
		Key: key, UserID: userID, Endpoint: endpoint, RequestHash: requestHash,
		Status: repository.IdempotencyProcessing, ExpiresAt: expiresAt,
	}
	return nil
}

func (r *fakeIdemRepo) Get(_ context.Context, key, userID uuid.UUID) (*repository.IdempotencyRecord, error) {
	rec, ok := r.recs[idemKey(key, userID)]
	if !ok {
		return nil, infra.WrapRepoErr("idempotency key not found", nil, infra.KindNotFound)
	}
	return rec, nil
}

func (r *fakeIdemRepo) MarkCompleted(_ context.Context, _ db.DBTX, key, userID, resultSessionID uuid.UUID) error {
	rec, ok := r.recs[idemKey(key, userID)]
	if !ok {
		return infra.WrapRepoErr("idempotency key not found", nil, infra.KindNotFound)
	}
	rec.Status = repository.IdempotencyCompleted
	rec.ResultSessionID = &resultSessionID
	return nil
}

func (r *fakeIdemRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, rec := range r.recs {
		if rec.ExpiresAt.Before(now) {
			delete(r.recs, k)
			n++
		}
	}
	return n, nil
}

type fakeAuditRepo struct {
	entries []repository.AuditEntry
}

func (r *fakeAuditRepo) Append(_ context.Context, _ db.DBTX, act actor.Actor, boxNumber int, action, prevValue, newValue string, success bool, detail string, now time.Time) error {
	r.entries = append(r.entries, repository.AuditEntry{
		ActorRole: string(act.Role), ActorID: act.ID, BoxNumber: boxNumber,
		Action: action, PrevValue: prevValue, NewValue: newValue,
		Success: success, Detail: detail, CreatedAt: now,
	})
	return nil
}

func (r *fakeAuditRepo) ListByBox(_ context.Context, boxNumber int, limit int) ([]repository.AuditEntry, error) {
	var result []repository.AuditEntry
	for _, e := range r.entries {
		if e.BoxNumber == boxNumber {
			result = append(result, e)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type coilWrite struct {
	Register string
	Value    bool
}

type fakeCoilWriter struct {
	writes []coilWrite
	fail   bool
}

func (w *fakeCoilWriter) SetCoil(_ context.Context, register string, value bool) error {
	if w.fail {
		return fmt.Errorf("gateway unreachable")
	}
	w.writes = append(w.writes, coilWrite{Register: register, Value: value})
	return nil
}

type providerRefund struct {
	ProviderID  string
	AmountCents int64
}

type fakeProvider struct {
	created    []uuid.UUID
	refunds    []providerRefund
	failCreate bool
	failRefund bool
}

func (p *fakeProvider) CreatePayment(_ context.Context, req provider.CreatePaymentRequest) (*provider.CreatePaymentResult, error) {
	if p.failCreate {
		return nil, fmt.Errorf("provider unavailable")
	}
	p.created = append(p.created, req.PaymentID)
	return &provider.CreatePaymentResult{
		ProviderID:  "prov-" + req.PaymentID.String(),
		RedirectURL: "https://pay.example/" + req.PaymentID.String(),
	}, nil
}

func (p *fakeProvider) RefundPayment(_ context.Context, providerID string, amountCents int64) error {
	if p.failRefund {
		return fmt.Errorf("provider unavailable")
	}
	p.refunds = append(p.refunds, providerRefund{ProviderID: providerID, AmountCents: amountCents})
	return nil
}

type fakeStatusCache struct {
	invalidations int
}

func (c *fakeStatusCache) Save(context.Context, *readmodel.QueueStatusRM) error { return nil }
func (c *fakeStatusCache) Get(context.Context) (*readmodel.QueueStatusRM, error) {
	return nil, nil
}
func (c *fakeStatusCache) Invalidate(context.Context) error {
	c.invalidations++
	return nil
}

// engine wires the full command side against in-memory fakes.
type engine struct {
	commands *usecase.SessionCommands
	queue    *usecase.QueueService
	payments *usecase.PaymentOrchestrator
	boxes    *usecase.BoxRegistry

	sessionRepo *fakeSessionRepo
	paymentRepo *fakePaymentRepo
	boxRepo     *fakeBoxRepo
	queueRepo   *fakeQueueRepo
	idemRepo    *fakeIdemRepo
	auditRepo   *fakeAuditRepo
	coils       *fakeCoilWriter
	provider    *fakeProvider
	cache       *fakeStatusCache
	clock       *clock.MockClock
	cfg         config.EngineConfig
}

func newEngine() *engine {
	e := &engine{
		sessionRepo: newFakeSessionRepo(),
		paymentRepo: &fakePaymentRepo{},
		boxRepo:     newFakeBoxRepo(),
		queueRepo:   &fakeQueueRepo{},
		idemRepo:    newFakeIdemRepo(),
		auditRepo:   &fakeAuditRepo{},
		coils:       &fakeCoilWriter{},
		provider:    &fakeProvider{},
		cache:       &fakeStatusCache{},
		clock:       clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		cfg: config.EngineConfig{
			AssignmentTimeout: 3 * time.Minute,
			CleaningTimeout:   5 * time.Minute,
			IdempotencyTTL:    time.Hour,
			AvgServiceMinutes: 15,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pool := fakePool{}

	e.payments = usecase.NewPaymentOrchestrator(
		e.paymentRepo, e.provider, payment.NewTariffPriceCalculator(), pool,
		e.clock, config.ProviderConfig{CashierRefund: true}, logger,
	)
	e.queue = usecase.NewQueueService(e.queueRepo, e.boxRepo, e.cache, e.clock, e.cfg, logger)
	e.boxes = usecase.NewBoxRegistry(e.boxRepo, e.auditRepo, e.coils, pool, e.clock, logger)
	e.commands = usecase.NewSessionCommands(
		e.sessionRepo, e.boxRepo, e.idemRepo, e.payments, e.queue, e.boxes,
		pool, fakeLocker{}, e.clock, e.cfg, logger,
	)
	return e
}
