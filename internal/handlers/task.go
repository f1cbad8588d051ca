package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/eventcore/internal/conditions"
	"github.com/angelmondragon/eventcore/pkg/db"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/types"
)

// TaskStore persists follow-up tasks.
type TaskStore interface {
	Create(ctx context.Context, task *models.Task) error
	FindBySource(ctx context.Context, eventID int64, rule string) (*models.Task, error)
}

type TaskHandlerParams struct {
	Store TaskStore
	Rules []TaskRule
	Now   func() time.Time
}

// TaskHandler creates at most one task per (event, rule).
type TaskHandler struct {
	store TaskStore
	rules []TaskRule
	now   func() time.Time
}

func NewTaskHandler(params TaskHandlerParams) (*TaskHandler, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("task store required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &TaskHandler{store: params.Store, rules: params.Rules, now: now}, nil
}

func (h *TaskHandler) Name() string { return NameTask }

func (h *TaskHandler) Handle(ctx context.Context, evt *models.Event, _ models.HandlerResults) Outcome {
	var (
		refs []string
		errs error
	)
	for i := range h.rules {
		rule := &h.rules[i]
		if !matchesEventType(rule.EventTypes, evt.EventType) || !conditions.Evaluate(evt, rule.Condition) {
			continue
		}
		task, err := h.ensureTask(ctx, evt, rule)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("task rule %s: %w", rule.Name, err))
			continue
		}
		refs = append(refs, "task:"+task.ID.String())
	}
	if errs != nil {
		return Failed(errs)
	}
	if len(refs) == 0 {
		return Skipped()
	}
	return Success(strings.Join(refs, ","))
}

func (h *TaskHandler) ensureTask(ctx context.Context, evt *models.Event, rule *TaskRule) (*models.Task, error) {
	existing, err := h.store.FindBySource(ctx, evt.ID, rule.Name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	task, err := h.buildTask(evt, rule)
	if err != nil {
		return nil, err
	}
	if err := h.store.Create(ctx, task); err != nil {
		if !db.IsUniqueViolation(err, "") {
			return nil, err
		}
		// another worker created it first
		existing, findErr := h.store.FindBySource(ctx, evt.ID, rule.Name)
		if findErr != nil || existing == nil {
			return nil, multierr.Combine(err, findErr)
		}
		return existing, nil
	}
	return task, nil
}

func (h *TaskHandler) buildTask(evt *models.Event, rule *TaskRule) (*models.Task, error) {
	data := newTemplateData(evt)
	title, err := render(rule.title, data)
	if err != nil {
		return nil, fmt.Errorf("render title: %w", err)
	}
	if title == "" {
		title = rule.Title
	}
	description, err := render(rule.description, data)
	if err != nil {
		return nil, fmt.Errorf("render description: %w", err)
	}

	priority := rule.priority
	if priority == "" {
		priority = enums.TaskPriorityNormal
	}
	task := &models.Task{
		TenantSchema:  evt.Tenant(),
		Title:         title,
		Description:   description,
		EntityType:    evt.EntityType,
		EntityID:      evt.EntityID,
		Status:        enums.TaskStatusOpen,
		Priority:      priority,
		SourceEventID: evt.ID,
		RuleName:      rule.Name,
	}
	if rule.AssigneeField != "" {
		if assignee := types.StringValue(evt.CurrentState[rule.AssigneeField]); assignee != "" {
			task.AssignedTo = &assignee
		}
	}
	if rule.DueInDays > 0 {
		due := h.now().UTC().AddDate(0, 0, rule.DueInDays)
		task.DueDate = &due
	}
	return task, nil
}
