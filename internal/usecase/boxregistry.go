package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/beligro/smart-carwash-sub000/internal/domain/actor"
	"github.com/beligro/smart-carwash-sub000/internal/domain/session"
	"github.com/beligro/smart-carwash-sub000/internal/domain/washbox"
	"github.com/beligro/smart-carwash-sub000/internal/infra/db"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/clock"
	"github.com/beligro/smart-carwash-sub000/internal/pkg/errs"
)

const (
	auditActionLightCoil     = "light_coil"
	auditActionChemistryCoil = "chemistry_coil"
	auditActionStatusChange  = "status_change"
	auditActionBoxCreated    = "box_created"
	auditActionBoxUpdated    = "box_updated"
)

// AuditEntryView is the audit trail shape exposed to admin clients.
type AuditEntryView struct {
	ActorRole string    `json:"actor_role"`
	Action    string    `json:"action"`
	PrevValue string    `json:"prev_value"`
	NewValue  string    `json:"new_value"`
	Success   bool      `json:"success"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BoxRegistry owns per-box hardware state. Every coil attempt lands in the
// audit log whether or not the gateway accepted it.
type BoxRegistry struct {
	boxRepo   WashBoxRepository
	auditRepo AuditRepository
	coils     CoilWriter
	pool      db.Pool
	clock     clock.Clock
	logger    *slog.Logger
}

func NewBoxRegistry(
	boxRepo WashBoxRepository,
	auditRepo AuditRepository,
	coils CoilWriter,
	pool db.Pool,
	clk clock.Clock,
	logger *slog.Logger,
) *BoxRegistry {
	return &BoxRegistry{
		boxRepo:   boxRepo,
		auditRepo: auditRepo,
		coils:     coils,
		pool:      pool,
		clock:     clk,
		logger:    logger,
	}
}

// SetLight writes the light coil and records the attempt. On gateway failure
// the box keeps its prior status; the caller decides whether to compensate.
func (r *BoxRegistry) SetLight(ctx context.Context, act actor.Actor, box *washbox.WashBox, on bool) error {
	return r.writeCoil(ctx, act, box, auditActionLightCoil, box.LightCoilRegister(), on)
}

func (r *BoxRegistry) SetChemistryCoil(ctx context.Context, act actor.Actor, box *washbox.WashBox, on bool) error {
	return r.writeCoil(ctx, act, box, auditActionChemistryCoil, box.ChemistryCoilRegister(), on)
}

func (r *BoxRegistry) writeCoil(ctx context.Context, act actor.Actor, box *washbox.WashBox, action, register string, on bool) error {
	writeErr := r.coils.SetCoil(ctx, register, on)

	detail := ""
	if writeErr != nil {
		detail = writeErr.Error()
	}
	value := "off"
	if on {
		value = "on"
	}
	if auditErr := r.auditRepo.Append(ctx, r.pool, act, box.Number(), action, register, value, writeErr == nil, detail, r.clock.Now()); auditErr != nil {
		// The audit row is best effort here; losing it must not mask the
		// actual coil outcome.
		r.logger.Error("failed to record coil attempt", "box", box.Number(), "action", action, "error", auditErr)
	}

	if writeErr != nil {
		return errs.Mark(writeErr, errs.ErrCoilWriteFault)
	}
	return nil
}

func (r *BoxRegistry) RecordStatusChange(ctx context.Context, tx db.DBTX, act actor.Actor, boxNumber int, prev, next washbox.Status) {
	if err := r.auditRepo.Append(ctx, tx, act, boxNumber, auditActionStatusChange, prev.String(), next.String(), true, "", r.clock.Now()); err != nil {
		r.logger.Error("failed to record box status change", "box", boxNumber, "error", err)
	}
}

type CreateBoxParams struct {
	Number                int
	ServiceType           session.ServiceType
	ChemistryEnabled      bool
	LightCoilRegister     string
	ChemistryCoilRegister string
}

func (r *BoxRegistry) CreateBox(ctx context.Context, act actor.Actor, params CreateBoxParams) (*washbox.WashBox, error) {
	now := r.clock.Now()
	box, err := washbox.NewWashBox(
		params.Number, params.ServiceType, params.ChemistryEnabled,
		params.LightCoilRegister, params.ChemistryCoilRegister, now,
	)
	if err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}

	if err := r.boxRepo.Create(ctx, r.pool, box); err != nil {
		return nil, err
	}
	if err := r.auditRepo.Append(ctx, r.pool, act, box.Number(), auditActionBoxCreated, "", box.Status().String(), true, "", now); err != nil {
		r.logger.Error("failed to record box creation", "box", box.Number(), "error", err)
	}
	return box, nil
}

func (r *BoxRegistry) SetMaintenance(ctx context.Context, act actor.Actor, boxNumber int, on bool) (*washbox.WashBox, error) {
	box, err := r.boxRepo.FindByNumber(ctx, boxNumber)
	if err != nil {
		return nil, err
	}
	prev := box.Status()
	if err := box.SetMaintenance(on, r.clock.Now()); err != nil {
		return nil, errs.Mark(err, errs.ErrDomainValidation)
	}
	if err := r.boxRepo.Update(ctx, r.pool, box); err != nil {
		return nil, err
	}
	r.RecordStatusChange(ctx, r.pool, act, box.Number(), prev, box.Status())
	return box, nil
}

func (r *BoxRegistry) ListBoxes(ctx context.Context) ([]*washbox.WashBox, error) {
	return r.boxRepo.List(ctx)
}

func (r *BoxRegistry) AuditTrail(ctx context.Context, boxNumber, limit int) ([]AuditEntryView, error) {
	entries, err := r.auditRepo.ListByBox(ctx, boxNumber, limit)
	if err != nil {
		return nil, err
	}
	result := make([]AuditEntryView, len(entries))
	for i, e := range entries {
		result[i] = AuditEntryView{
			ActorRole: e.ActorRole,
			Action:    e.Action,
			PrevValue: e.PrevValue,
			NewValue:  e.NewValue,
			Success:   e.Success,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
	}
	return result, nil
}
