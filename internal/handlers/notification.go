package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"gorm.io/datatypes"

	"github.com/angelmondragon/eventcore/internal/conditions"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/logger"
	"github.com/angelmondragon/eventcore/pkg/types"
)

// NotificationStore persists notifications.
type NotificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindForEvent(ctx context.Context, tenant string, eventID int64, recipient string) (*models.Notification, error)
}

// Announcer hands a "notification created" fact to a delivery transport.
type Announcer interface {
	AnnounceNotification(ctx context.Context, n *models.Notification) error
}

// Marker records that a side effect already happened for an event.
type Marker interface {
	CheckAndMark(ctx context.Context, consumer string, eventID int64) (bool, error)
	Release(ctx context.Context, consumer string, eventID int64) error
}

type NotificationHandlerParams struct {
	Store  NotificationStore
	Tasks  TaskStore
	Rules  []NotificationRule
	Logger *logger.Logger
	// Announcer and Marker are optional.
	Announcer Announcer
	Marker    Marker
	Now       func() time.Time
}

// NotificationHandler creates one notification per (event, recipient).
type NotificationHandler struct {
	store     NotificationStore
	tasks     TaskStore
	rules     []NotificationRule
	logg      *logger.Logger
	announcer Announcer
	marker    Marker
	now       func() time.Time
}

func NewNotificationHandler(params NotificationHandlerParams) (*NotificationHandler, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("notification store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	for _, rule := range params.Rules {
		if rule.LinkTask != "" && params.Tasks == nil {
			return nil, fmt.Errorf("notification rule %s links tasks but no task store was provided", rule.Name)
		}
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &NotificationHandler{
		store:     params.Store,
		tasks:     params.Tasks,
		rules:     params.Rules,
		logg:      params.Logger,
		announcer: params.Announcer,
		marker:    params.Marker,
		now:       now,
	}, nil
}

func (h *NotificationHandler) Name() string { return NameNotification }

func (h *NotificationHandler) Handle(ctx context.Context, evt *models.Event, prior models.HandlerResults) Outcome {
	var (
		refs    []string
		matched bool
		errs    error
	)
	seen := map[string]struct{}{}
	for i := range h.rules {
		rule := &h.rules[i]
		if !matchesEventType(rule.EventTypes, evt.EventType) || !conditions.Evaluate(evt, rule.Condition) {
			continue
		}
		recipient := resolveRecipient(evt, rule)
		if recipient == "" {
			continue
		}
		if _, dup := seen[recipient]; dup {
			continue
		}
		seen[recipient] = struct{}{}
		matched = true

		ref, err := h.notify(ctx, evt, prior, rule, recipient)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notification rule %s: %w", rule.Name, err))
			continue
		}
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	if errs != nil {
		return Failed(errs)
	}
	if !matched {
		return Skipped()
	}
	return Success(strings.Join(refs, ","))
}

func (h *NotificationHandler) notify(ctx context.Context, evt *models.Event, prior models.HandlerResults, rule *NotificationRule, recipient string) (string, error) {
	notification, err := h.store.FindForEvent(ctx, evt.Tenant(), evt.ID, recipient)
	if err != nil {
		return "", fmt.Errorf("check existing notification: %w", err)
	}
	created := false
	if notification == nil {
		notification, err = h.build(ctx, evt, prior, rule, recipient)
		if err != nil {
			return "", err
		}
		if err := h.store.Create(ctx, notification); err != nil {
			return "", fmt.Errorf("create notification: %w", err)
		}
		created = true
	}
	ref := "notification:" + notification.ID.String()

	if err := h.announce(ctx, evt, notification, created); err != nil {
		return ref, err
	}
	return ref, nil
}

// announce hands the notification off once. With a Marker a failed hand-off is
// retried on the next attempt even though the row already exists.
func (h *NotificationHandler) announce(ctx context.Context, evt *models.Event, n *models.Notification, created bool) error {
	if h.announcer == nil {
		return nil
	}
	if h.marker == nil {
		if !created {
			return nil
		}
		return h.announcer.AnnounceNotification(ctx, n)
	}

	consumer := "notification-announce:" + n.Recipient
	already, err := h.marker.CheckAndMark(ctx, consumer, evt.ID)
	if err != nil {
		return fmt.Errorf("mark announcement: %w", err)
	}
	if already {
		return nil
	}
	if err := h.announcer.AnnounceNotification(ctx, n); err != nil {
		if relErr := h.marker.Release(ctx, consumer, evt.ID); relErr != nil {
			h.logg.Error(h.logg.WithField(ctx, "recipient", n.Recipient), "release announcement marker failed", relErr)
		}
		return fmt.Errorf("announce notification: %w", err)
	}
	return nil
}

func (h *NotificationHandler) build(ctx context.Context, evt *models.Event, prior models.HandlerResults, rule *NotificationRule, recipient string) (*models.Notification, error) {
	data := newTemplateData(evt)
	title, err := render(rule.title, data)
	if err != nil {
		return nil, fmt.Errorf("render title: %w", err)
	}
	if title == "" {
		title = fmt.Sprintf("%s %s", evt.EntityType, strings.ToLower(string(evt.Action)))
	}
	message, err := render(rule.message, data)
	if err != nil {
		return nil, fmt.Errorf("render message: %w", err)
	}

	eventID := evt.ID
	notification := &models.Notification{
		TenantSchema: evt.Tenant(),
		Recipient:    recipient,
		Type:         rule.notificationType,
		Title:        title,
		Message:      message,
		EventID:      &eventID,
		Metadata: datatypes.JSONMap{
			"event_type":  evt.EventType,
			"entity_type": evt.EntityType,
			"entity_id":   evt.EntityID,
			"rule":        rule.Name,
		},
	}
	if notification.Type == "" {
		notification.Type = enums.NotificationTypeSystem
	}

	if rule.LinkTask != "" && prior[NameTask].Status == enums.HandlerStatusSuccess {
		task, err := h.tasks.FindBySource(ctx, evt.ID, rule.LinkTask)
		if err != nil {
			return nil, fmt.Errorf("load linked task: %w", err)
		}
		if task != nil {
			notification.TaskID = &task.ID
			notification.DueDate = task.DueDate
		}
	}
	if notification.DueDate == nil && rule.DueInDays > 0 {
		due := h.now().UTC().AddDate(0, 0, rule.DueInDays)
		notification.DueDate = &due
	}
	return notification, nil
}

func resolveRecipient(evt *models.Event, rule *NotificationRule) string {
	if rule.RecipientField != "" {
		if v := types.StringValue(evt.CurrentState[rule.RecipientField]); v != "" {
			return v
		}
	}
	return strings.TrimSpace(rule.Recipient)
}
