package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/eventcore/pkg/db/models"
)

const defaultPublishTimeout = 10 * time.Second

type publisher interface {
	Publish(context.Context, *pubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// NotificationCreated is the hand-off payload for delivery transports.
type NotificationCreated struct {
	NotificationID string     `json:"notification_id"`
	TenantSchema   string     `json:"tenant_schema"`
	Recipient      string     `json:"recipient"`
	Type           string     `json:"type"`
	Title          string     `json:"title"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EventID        *int64     `json:"event_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NotificationAnnouncer publishes a "notification created" fact for each new notification row.
type NotificationAnnouncer struct {
	pub     publisher
	timeout time.Duration
}

// NewNotificationAnnouncer wraps the client's notification topic publisher.
func NewNotificationAnnouncer(client *Client) (*NotificationAnnouncer, error) {
	p := client.NotificationPublisher()
	if p == nil {
		return nil, errNoTopic
	}
	return &NotificationAnnouncer{pub: &gcpPublisher{Publisher: p}, timeout: client.PublishTimeout()}, nil
}

// AnnounceNotification publishes the hand-off message and waits for the server ack.
func (a *NotificationAnnouncer) AnnounceNotification(ctx context.Context, n *models.Notification) error {
	if a == nil || a.pub == nil {
		return errors.New("announcer not initialized")
	}
	msg, err := notificationMessage(n)
	if err != nil {
		return err
	}
	publishCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	result := a.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish notification %s: %w", n.ID, err)
	}
	return nil
}

func notificationMessage(n *models.Notification) (*pubsub.Message, error) {
	if n == nil {
		return nil, errors.New("notification is required")
	}
	payload := NotificationCreated{
		NotificationID: n.ID.String(),
		TenantSchema:   n.TenantSchema,
		Recipient:      n.Recipient,
		Type:           string(n.Type),
		Title:          n.Title,
		DueDate:        n.DueDate,
		EventID:        n.EventID,
		CreatedAt:      n.CreatedAt,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode notification payload: %w", err)
	}
	attrs := map[string]string{
		"type":          "notification_created",
		"tenant_schema": n.TenantSchema,
		"recipient":     n.Recipient,
	}
	if n.EventID != nil {
		attrs["event_id"] = strconv.FormatInt(*n.EventID, 10)
	}
	return &pubsub.Message{Data: data, Attributes: attrs}, nil
}

type gcpPublisher struct {
	*pubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*pubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
