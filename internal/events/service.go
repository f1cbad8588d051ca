package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/datatypes"

	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventcore/pkg/errors"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

// EnqueueInput is everything the entity layer supplies when a tracked record changes.
type EnqueueInput struct {
	EventType     string            `json:"event_type" validate:"required,max=255"`
	EntityType    string            `json:"entity_type" validate:"required,max=100"`
	EntityID      string            `json:"entity_id" validate:"required,max=100"`
	TenantSchema  string            `json:"tenant_schema" validate:"max=63"`
	Action        enums.EventAction `json:"action" validate:"required,oneof=CREATE UPDATE DELETE"`
	PreviousState map[string]any    `json:"previous_state"`
	CurrentState  map[string]any    `json:"current_state"`
	ChangedFields []string          `json:"changed_fields"`
	PerformedBy   string            `json:"performed_by" validate:"max=100"`
	Metadata      map[string]any    `json:"metadata"`
	MaxRetries    *int              `json:"max_retries" validate:"omitempty,min=0,max=50"`
}

// Service is the ingress to the event store.
type Service interface {
	Enqueue(ctx context.Context, in EnqueueInput) (*models.Event, error)
	EnqueueAll(ctx context.Context, ins []EnqueueInput) ([]*models.Event, error)
	EnqueueLegacy(ctx context.Context, in EnqueueInput) (*models.Event, error)
	Get(ctx context.Context, tenant string, id int64) (*models.Event, error)
	List(ctx context.Context, filter Filter) ([]models.Event, error)
}

type ServiceParams struct {
	Repository        Repository
	Logger            *logger.Logger
	DefaultMaxRetries int
	Now               func() time.Time
}

type service struct {
	repo       Repository
	logg       *logger.Logger
	maxRetries int
	validate   *validator.Validate
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "events repository required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	maxRetries := params.DefaultMaxRetries
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repository,
		logg:       params.Logger,
		maxRetries: maxRetries,
		validate:   validator.New(),
		now:        now,
	}, nil
}

// CanRetry reports whether the event has retry budget left.
func CanRetry(evt *models.Event) bool {
	return evt.RetryCount < evt.MaxRetries
}

// Enqueue persists a PENDING event. A tenant schema is mandatory.
func (s *service) Enqueue(ctx context.Context, in EnqueueInput) (*models.Event, error) {
	if strings.TrimSpace(in.TenantSchema) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required").
			WithDetails(map[string]any{"event_type": in.EventType, "entity_type": in.EntityType})
	}
	return s.enqueue(ctx, in)
}

// EnqueueAll validates every input before writing and persists the events
// atomically, so a rejected or failed input leaves nothing behind.
func (s *service) EnqueueAll(ctx context.Context, ins []EnqueueInput) ([]*models.Event, error) {
	evts := make([]*models.Event, 0, len(ins))
	createdAt := s.now().UTC()
	for _, in := range ins {
		if strings.TrimSpace(in.TenantSchema) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required").
				WithDetails(map[string]any{"event_type": in.EventType, "entity_type": in.EntityType})
		}
		if err := s.validate.Struct(in); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event")
		}
		evt := buildEvent(in, s.maxRetries)
		evt.CreatedAt = createdAt
		evt.UpdatedAt = createdAt
		evts = append(evts, evt)
	}
	if len(evts) == 0 {
		return evts, nil
	}
	if err := s.repo.CreateAll(ctx, evts); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist events")
	}
	for _, evt := range evts {
		s.logEnqueued(ctx, evt)
	}
	return evts, nil
}

// EnqueueLegacy accepts callers that predate tenant routing and assigns them to
// the global tenant.
func (s *service) EnqueueLegacy(ctx context.Context, in EnqueueInput) (*models.Event, error) {
	if strings.TrimSpace(in.TenantSchema) == "" {
		in.TenantSchema = models.GlobalTenant
		s.logg.Warn(s.logg.WithField(ctx, "event_type", in.EventType), "legacy enqueue without tenant; routed to global tenant")
	}
	return s.enqueue(ctx, in)
}

func (s *service) enqueue(ctx context.Context, in EnqueueInput) (*models.Event, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event")
	}

	evt := buildEvent(in, s.maxRetries)
	evt.CreatedAt = s.now().UTC()
	evt.UpdatedAt = evt.CreatedAt

	if err := s.repo.Create(ctx, evt); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist event")
	}

	s.logEnqueued(ctx, evt)
	return evt, nil
}

func (s *service) logEnqueued(ctx context.Context, evt *models.Event) {
	logCtx := s.logg.WithTenant(ctx, evt.Tenant())
	logCtx = s.logg.WithEventID(logCtx, evt.ID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_type":     evt.EventType,
		"changed_fields": []string(evt.ChangedFields),
	})
	s.logg.Info(logCtx, "event enqueued")
}

func (s *service) Get(ctx context.Context, tenant string, id int64) (*models.Event, error) {
	if strings.TrimSpace(tenant) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required")
	}
	evt, err := s.repo.Get(ctx, tenant, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "event not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load event")
	}
	return evt, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]models.Event, error) {
	if strings.TrimSpace(filter.Tenant) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant_schema is required")
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status").
			WithDetails(map[string]any{"status": filter.Status})
	}
	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list events")
	}
	return rows, nil
}

func buildEvent(in EnqueueInput, defaultMaxRetries int) *models.Event {
	previous := in.PreviousState
	if in.Action == enums.EventActionCreate || previous == nil {
		previous = map[string]any{}
	}
	current := in.CurrentState
	if current == nil {
		current = map[string]any{}
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	changed := in.ChangedFields
	if changed == nil && in.Action == enums.EventActionUpdate {
		changed = ChangedFields(previous, current)
	}
	if changed == nil {
		changed = []string{}
	}

	maxRetries := defaultMaxRetries
	if in.MaxRetries != nil {
		maxRetries = *in.MaxRetries
	}

	tenant := strings.TrimSpace(in.TenantSchema)
	evt := &models.Event{
		EventType:      in.EventType,
		EntityType:     in.EntityType,
		EntityID:       in.EntityID,
		TenantSchema:   &tenant,
		Action:         in.Action,
		PreviousState:  datatypes.JSONMap(previous),
		CurrentState:   datatypes.JSONMap(current),
		ChangedFields:  datatypes.JSONSlice[string](changed),
		Status:         enums.EventStatusPending,
		MaxRetries:     maxRetries,
		HandlerResults: datatypes.NewJSONType(models.HandlerResults{}),
		Metadata:       datatypes.JSONMap(metadata),
	}
	if actor := strings.TrimSpace(in.PerformedBy); actor != "" {
		evt.PerformedBy = &actor
	}
	return evt
}
