package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/angelmondragon/eventcore/internal/events"
	"github.com/angelmondragon/eventcore/pkg/db/models"
	"github.com/angelmondragon/eventcore/pkg/enums"
	"github.com/angelmondragon/eventcore/pkg/logger"
)

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testEvent(id int64, eventType string, action enums.EventAction, previous, current map[string]any) *models.Event {
	tenant := "acme"
	changed := []string{}
	if action == enums.EventActionUpdate {
		changed = events.ChangedFields(previous, current)
	}
	return &models.Event{
		ID:             id,
		EventType:      eventType,
		EntityType:     "Client",
		EntityID:       "5",
		TenantSchema:   &tenant,
		Action:         action,
		PreviousState:  datatypes.JSONMap(previous),
		CurrentState:   datatypes.JSONMap(current),
		ChangedFields:  datatypes.JSONSlice[string](changed),
		Status:         enums.EventStatusProcessing,
		MaxRetries:     2,
		HandlerResults: datatypes.NewJSONType(models.HandlerResults{}),
		Metadata:       datatypes.JSONMap{},
	}
}

type fakeActivityStore struct {
	rows      map[int64]*models.Activity
	createErr error
}

func (f *fakeActivityStore) Create(_ context.Context, activity *models.Activity) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	if f.rows == nil {
		f.rows = map[int64]*models.Activity{}
	}
	if _, ok := f.rows[activity.EventID]; ok {
		return false, nil
	}
	activity.ID = uuid.New()
	f.rows[activity.EventID] = activity
	return true, nil
}

func (f *fakeActivityStore) FindByEvent(_ context.Context, eventID int64) (*models.Activity, error) {
	if row, ok := f.rows[eventID]; ok {
		return row, nil
	}
	return nil, errors.New("not found")
}

type taskKey struct {
	eventID int64
	rule    string
}

type fakeTaskStore struct {
	rows      map[taskKey]*models.Task
	createErr error
	creates   int
}

func (f *fakeTaskStore) Create(_ context.Context, task *models.Task) error {
	if f.createErr != nil {
		return f.createErr
	}
	if f.rows == nil {
		f.rows = map[taskKey]*models.Task{}
	}
	task.ID = uuid.New()
	f.rows[taskKey{task.SourceEventID, task.RuleName}] = task
	f.creates++
	return nil
}

func (f *fakeTaskStore) FindBySource(_ context.Context, eventID int64, rule string) (*models.Task, error) {
	return f.rows[taskKey{eventID, rule}], nil
}

type fakeNotificationStore struct {
	rows      []*models.Notification
	createErr error
}

func (f *fakeNotificationStore) Create(_ context.Context, n *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	n.ID = uuid.New()
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeNotificationStore) FindForEvent(_ context.Context, tenant string, eventID int64, recipient string) (*models.Notification, error) {
	for _, n := range f.rows {
		if n.TenantSchema == tenant && n.EventID != nil && *n.EventID == eventID && n.Recipient == recipient {
			return n, nil
		}
	}
	return nil, nil
}

type fakeAnnouncer struct {
	announced []*models.Notification
	err       error
}

func (f *fakeAnnouncer) AnnounceNotification(_ context.Context, n *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.announced = append(f.announced, n)
	return nil
}

type fakeMarker struct {
	marks    map[string]bool
	released []string
}

func (f *fakeMarker) CheckAndMark(_ context.Context, consumer string, eventID int64) (bool, error) {
	if f.marks == nil {
		f.marks = map[string]bool{}
	}
	key := consumer + ":" + strconv.FormatInt(eventID, 10)
	if f.marks[key] {
		return true, nil
	}
	f.marks[key] = true
	return false, nil
}

func (f *fakeMarker) Release(_ context.Context, consumer string, eventID int64) error {
	key := consumer + ":" + strconv.FormatInt(eventID, 10)
	delete(f.marks, key)
	f.released = append(f.released, key)
	return nil
}

// funcHandler adapts a function into a Handler for chain tests.
type funcHandler struct {
	name string
	fn   func(ctx context.Context, evt *models.Event, prior models.HandlerResults) Outcome
}

func (h funcHandler) Name() string { return h.name }

func (h funcHandler) Handle(ctx context.Context, evt *models.Event, prior models.HandlerResults) Outcome {
	return h.fn(ctx, evt, prior)
}
