package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/eventcore/pkg/config"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
)

type fakePublisher struct {
	msgs   []*pubsub.Message
	result fakePublishResult
}

func (f *fakePublisher) Publish(_ context.Context, msg *pubsub.Message) publishResult {
	f.msgs = append(f.msgs, msg)
	return f.result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

func sampleNotification() *models.Notification {
	eventID := int64(12)
	return &models.Notification{
		ID:           uuid.MustParse("f47ac10b-58cc-4372-a567-0e02b2c3d479"),
		TenantSchema: "acme",
		Recipient:    "7",
		Type:         enums.NotificationTypeAssignment,
		Title:        "New client assigned",
		EventID:      &eventID,
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestAnnounceNotificationPublishesPayload(t *testing.T) {
	pub := &fakePublisher{}
	announcer := &NotificationAnnouncer{pub: pub, timeout: time.Second}

	if err := announcer.AnnounceNotification(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("announce failed: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Attributes["event_id"] != "12" || msg.Attributes["tenant_schema"] != "acme" {
		t.Fatalf("unexpected attributes %+v", msg.Attributes)
	}
	var payload NotificationCreated
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Recipient != "7" || payload.Type != "assignment" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestAnnounceNotificationSurfacesPublishError(t *testing.T) {
	pub := &fakePublisher{result: fakePublishResult{err: errors.New("unavailable")}}
	announcer := &NotificationAnnouncer{pub: pub, timeout: time.Second}

	if err := announcer.AnnounceNotification(context.Background(), sampleNotification()); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestTopicResourceName(t *testing.T) {
	if got := topicResourceName("proj", "notifications"); got != "projects/proj/topics/notifications" {
		t.Fatalf("unexpected topic name %s", got)
	}
	full := "projects/other/topics/x"
	if got := topicResourceName("proj", full); got != full {
		t.Fatalf("expected full name passthrough, got %s", got)
	}
	if got := topicResourceName("", "notifications"); got != "" {
		t.Fatalf("expected empty name without project, got %s", got)
	}
}

func TestClientWithoutConnection(t *testing.T) {
	var nilClient *Client
	if nilClient.Publisher("notifications") != nil {
		t.Fatal("expected nil publisher from nil client")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if nilClient.PublishTimeout() != defaultPublishTimeout {
		t.Fatalf("expected default publish timeout")
	}

	configured := &Client{cfg: config.PubSubConfig{ProjectID: "proj", PublishTimeout: 3 * time.Second}}
	if configured.PublishTimeout() != 3*time.Second {
		t.Fatalf("expected configured timeout, got %s", configured.PublishTimeout())
	}
	if err := configured.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail without a connection")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(context.Background(), config.PubSubConfig{NotificationTopic: "n"}, nil); !errors.Is(err, errProjectIDRequired) {
		t.Fatalf("expected project id error, got %v", err)
	}
	if _, err := NewClient(context.Background(), config.PubSubConfig{ProjectID: "proj"}, nil); !errors.Is(err, errNoTopic) {
		t.Fatalf("expected topic error, got %v", err)
	}
}
