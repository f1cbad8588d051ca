package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/eventcore/internal/conditions"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
)

const notificationRulesDoc = `
tasks:
  - name: onboard
    event_types: ["Client.CREATE"]
    title: "Onboard"
    due_in_days: 3
notifications:
  - name: first_assignment
    event_types: ["*.assigned_to.UPDATE"]
    recipient_field: assigned_to
    type: assignment
    title: "{{.EntityType}} {{.EntityID}} assigned to you"
    message: "by {{.Actor}}"
  - name: onboarding
    event_types: ["Client.CREATE"]
    recipient_field: assigned_to
    type: reminder
    title: "Onboarding due"
    link_task: onboard
`

type notificationFixture struct {
	handler   *NotificationHandler
	store     *fakeNotificationStore
	tasks     *fakeTaskStore
	announcer *fakeAnnouncer
	marker    *fakeMarker
}

func newNotificationFixture(t *testing.T, withMarker bool) *notificationFixture {
	t.Helper()
	f := &notificationFixture{
		store:     &fakeNotificationStore{},
		tasks:     &fakeTaskStore{},
		announcer: &fakeAnnouncer{},
	}
	params := NotificationHandlerParams{
		Store:     f.store,
		Tasks:     f.tasks,
		Rules:     mustRules(t, notificationRulesDoc).Notifications,
		Logger:    testLogger(),
		Announcer: f.announcer,
		Now:       func() time.Time { return fixedNow },
	}
	if withMarker {
		f.marker = &fakeMarker{}
		params.Marker = f.marker
	}
	handler, err := NewNotificationHandler(params)
	if err != nil {
		t.Fatalf("new notification handler: %v", err)
	}
	f.handler = handler
	return f
}

func assignmentEvent(previous any) *models.Event {
	return testEvent(40, "Client.assigned_to.UPDATE", enums.EventActionUpdate,
		map[string]any{"assigned_to": previous}, map[string]any{"assigned_to": 7})
}

func TestFieldWasNullGateCreatesNotificationForNewAssignee(t *testing.T) {
	f := newNotificationFixture(t, false)
	executor, err := NewExecutor(ExecutorParams{
		Steps: []Step{{
			Name:      NameNotification,
			Handler:   f.handler,
			Condition: &conditions.Condition{Type: conditions.TypeFieldWasNull, Field: "assigned_to"},
		}},
		Logger: testLogger(),
	})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}

	results := executor.Execute(context.Background(), assignmentEvent(nil))
	if results[NameNotification].Status != enums.HandlerStatusSuccess {
		t.Fatalf("expected SUCCESS got %+v", results[NameNotification])
	}
	if len(f.store.rows) != 1 {
		t.Fatalf("expected one notification got %d", len(f.store.rows))
	}
	n := f.store.rows[0]
	if n.Recipient != "7" || n.Type != enums.NotificationTypeAssignment || n.Title != "Client 5 assigned to you" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(f.announcer.announced) != 1 {
		t.Fatalf("expected the notification to be announced")
	}

	f2 := newNotificationFixture(t, false)
	executor, _ = NewExecutor(ExecutorParams{
		Steps: []Step{{
			Name:      NameNotification,
			Handler:   f2.handler,
			Condition: &conditions.Condition{Type: conditions.TypeFieldWasNull, Field: "assigned_to"},
		}},
		Logger: testLogger(),
	})
	results = executor.Execute(context.Background(), assignmentEvent(3))
	if results[NameNotification].Status != enums.HandlerStatusSkipped {
		t.Fatalf("expected SKIPPED got %+v", results[NameNotification])
	}
	if len(f2.store.rows) != 0 {
		t.Fatalf("no notification expected when previous assignee was set")
	}
}

func TestNotificationHandlerDeduplicatesOnReprocess(t *testing.T) {
	f := newNotificationFixture(t, false)
	evt := assignmentEvent(nil)

	first := f.handler.Handle(context.Background(), evt, nil)
	second := f.handler.Handle(context.Background(), evt, nil)
	if first.Status != enums.HandlerStatusSuccess || second.Status != enums.HandlerStatusSuccess {
		t.Fatalf("unexpected outcomes %+v %+v", first, second)
	}
	if len(f.store.rows) != 1 {
		t.Fatalf("expected a single notification got %d", len(f.store.rows))
	}
	if first.ProducedRef != second.ProducedRef {
		t.Fatalf("expected the same reference on reprocess")
	}
	if len(f.announcer.announced) != 1 {
		t.Fatalf("expected a single announcement got %d", len(f.announcer.announced))
	}
}

func TestNotificationHandlerLinksTaskDueDate(t *testing.T) {
	f := newNotificationFixture(t, false)
	due := fixedNow.AddDate(0, 0, 3)
	evt := testEvent(41, "Client.CREATE", enums.EventActionCreate, nil, map[string]any{"assigned_to": "9"})
	task := &models.Task{SourceEventID: 41, RuleName: "onboard", DueDate: &due}
	if err := f.tasks.Create(context.Background(), task); err != nil {
		t.Fatalf("seed task: %v", err)
	}

	prior := models.HandlerResults{NameTask: {Status: enums.HandlerStatusSuccess, ProducedRef: "task:" + task.ID.String()}}
	outcome := f.handler.Handle(context.Background(), evt, prior)
	if outcome.Status != enums.HandlerStatusSuccess {
		t.Fatalf("expected SUCCESS got %+v", outcome)
	}
	n := f.store.rows[0]
	if n.TaskID == nil || *n.TaskID != task.ID {
		t.Fatalf("expected task link")
	}
	if n.DueDate == nil || !n.DueDate.Equal(due) {
		t.Fatalf("expected due date from task, got %v", n.DueDate)
	}
}

func TestNotificationHandlerSkipsWithoutRecipient(t *testing.T) {
	f := newNotificationFixture(t, false)
	evt := testEvent(42, "Client.CREATE", enums.EventActionCreate, nil, map[string]any{"name": "Ada"})
	outcome := f.handler.Handle(context.Background(), evt, nil)
	if outcome.Status != enums.HandlerStatusSkipped {
		t.Fatalf("expected SKIPPED got %s", outcome.Status)
	}
}

func TestNotificationAnnounceRetriedWithMarker(t *testing.T) {
	f := newNotificationFixture(t, true)
	f.announcer.err = errors.New("pubsub unavailable")
	evt := assignmentEvent(nil)

	outcome := f.handler.Handle(context.Background(), evt, nil)
	if outcome.Status != enums.HandlerStatusFailed {
		t.Fatalf("expected FAILED got %s", outcome.Status)
	}
	if len(f.marker.released) != 1 {
		t.Fatalf("expected the marker to be released")
	}

	f.announcer.err = nil
	outcome = f.handler.Handle(context.Background(), evt, nil)
	if outcome.Status != enums.HandlerStatusSuccess {
		t.Fatalf("expected SUCCESS got %+v", outcome)
	}
	if len(f.store.rows) != 1 || len(f.announcer.announced) != 1 {
		t.Fatalf("expected one row and one announcement, got %d/%d", len(f.store.rows), len(f.announcer.announced))
	}

	outcome = f.handler.Handle(context.Background(), evt, nil)
	if outcome.Status != enums.HandlerStatusSuccess || len(f.announcer.announced) != 1 {
		t.Fatalf("announcement must not repeat once marked")
	}
}

func TestNotificationHandlerRequiresTaskStoreForLinks(t *testing.T) {
	_, err := NewNotificationHandler(NotificationHandlerParams{
		Store:  &fakeNotificationStore{},
		Rules:  mustRules(t, notificationRulesDoc).Notifications,
		Logger: testLogger(),
	})
	if err == nil {
		t.Fatalf("expected error when link_task has no task store")
	}
}
