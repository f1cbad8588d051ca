// Package control pauses and resumes event processing and reports queue status.
package control

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/eventcore/internal/processor"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

const systemActor = "system"

// EventCounter reports live event counts per status.
type EventCounter interface {
	CountByStatus(ctx context.Context, tenant string) (map[enums.EventStatus]int64, error)
}

// Drainer processes the backlog after a resume.
type Drainer interface {
	DrainPending(ctx context.Context, tenant string) (processor.Summary, error)
	Recover(ctx context.Context) (processor.RecoverySummary, error)
}

// StatusSnapshot is the operator view of one tenant.
type StatusSnapshot struct {
	TenantSchema string                      `json:"tenant_schema"`
	IsPaused     bool                        `json:"is_paused"`
	GlobalPaused bool                        `json:"global_paused"`
	PausedAt     *time.Time                  `json:"paused_at,omitempty"`
	PausedBy     *string                     `json:"paused_by,omitempty"`
	PauseReason  *string                     `json:"pause_reason,omitempty"`
	ResumedAt    *time.Time                  `json:"resumed_at,omitempty"`
	ResumedBy    *string                     `json:"resumed_by,omitempty"`
	Counts       map[enums.EventStatus]int64 `json:"counts"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

type ServiceParams struct {
	Repository Repository
	Events     EventCounter
	// Drainer is optional; when nil, resumed tenants drain on the next scheduler tick.
	Drainer Drainer
	Logger  *logger.Logger
	Now     func() time.Time
}

type Service struct {
	repo    Repository
	events  EventCounter
	drainer Drainer
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("control repository is required")
	}
	if params.Events == nil {
		return nil, errors.New("event counter is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    params.Repository,
		events:  params.Events,
		drainer: params.Drainer,
		logg:    params.Logger,
		now:     func() time.Time { return now().UTC() },
	}, nil
}

// SetDrainer wires the processor after construction; the processor itself
// depends on this service for pause checks.
func (s *Service) SetDrainer(d Drainer) {
	s.drainer = d
}

// IsPaused reports whether the tenant or the global switch is paused.
func (s *Service) IsPaused(ctx context.Context, tenant string) (bool, error) {
	tenants := []string{models.GlobalTenant}
	if tenant != models.GlobalTenant {
		tenants = append(tenants, tenant)
	}
	return s.repo.AnyPaused(ctx, tenants...)
}

// Pause stops processing for the tenant. New events still enqueue.
func (s *Service) Pause(ctx context.Context, tenant, actor, reason string) (StatusSnapshot, error) {
	tenant, actor, err := normalize(tenant, actor)
	if err != nil {
		return StatusSnapshot{}, err
	}
	ctx = s.logg.WithActor(s.logg.WithTenant(ctx, tenant), actor)
	if err := s.repo.SetPaused(ctx, tenant, actor, strings.TrimSpace(reason), s.now()); err != nil {
		return StatusSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause processing")
	}
	s.logg.Warn(s.logg.WithField(ctx, "reason", reason), "event processing paused")
	return s.Status(ctx, tenant)
}

// Resume re-enables processing and drains the backlog. Resuming the global
// tenant drains every tenant with due work.
func (s *Service) Resume(ctx context.Context, tenant, actor string) (StatusSnapshot, error) {
	tenant, actor, err := normalize(tenant, actor)
	if err != nil {
		return StatusSnapshot{}, err
	}
	ctx = s.logg.WithActor(s.logg.WithTenant(ctx, tenant), actor)
	if err := s.repo.SetResumed(ctx, tenant, actor, s.now()); err != nil {
		return StatusSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume processing")
	}
	s.logg.Info(ctx, "event processing resumed")
	s.drain(ctx, tenant)
	return s.Status(ctx, tenant)
}

func (s *Service) drain(ctx context.Context, tenant string) {
	if s.drainer == nil {
		return
	}
	if tenant == models.GlobalTenant {
		if _, err := s.drainer.Recover(ctx); err != nil {
			// resume already took effect; scheduler ticks pick up the rest
			s.logg.Error(ctx, "drain after resume failed", err)
		}
		return
	}
	summary, err := s.drainer.DrainPending(ctx, tenant)
	if err != nil {
		s.logg.Error(ctx, "drain after resume failed", err)
		return
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"batches":   summary.Batches,
		"completed": summary.Completed,
		"retried":   summary.Retried,
		"failed":    summary.Failed,
	}), "backlog drained after resume")
}

// Status returns the control state together with live counts.
func (s *Service) Status(ctx context.Context, tenant string) (StatusSnapshot, error) {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return StatusSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required")
	}
	row, err := s.repo.GetOrCreate(ctx, tenant)
	if err != nil {
		return StatusSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load processing control")
	}
	globalPaused := row.IsPaused && tenant == models.GlobalTenant
	if tenant != models.GlobalTenant {
		globalPaused, err = s.repo.AnyPaused(ctx, models.GlobalTenant)
		if err != nil {
			return StatusSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load global control")
		}
	}
	counts, err := s.events.CountByStatus(ctx, tenant)
	if err != nil {
		return StatusSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count events")
	}
	return StatusSnapshot{
		TenantSchema: tenant,
		IsPaused:     row.IsPaused,
		GlobalPaused: globalPaused,
		PausedAt:     row.PausedAt,
		PausedBy:     row.PausedBy,
		PauseReason:  row.PauseReason,
		ResumedAt:    row.ResumedAt,
		ResumedBy:    row.ResumedBy,
		Counts:       counts,
		GeneratedAt:  s.now(),
	}, nil
}

func normalize(tenant, actor string) (string, string, error) {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required")
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = systemActor
	}
	return tenant, actor, nil
}
