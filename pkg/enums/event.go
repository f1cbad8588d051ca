package enums

import "fmt"

// EventStatus tracks where an event sits in the processing lifecycle.
type EventStatus string

const (
	EventStatusPending    EventStatus = "PENDING"
	EventStatusProcessing EventStatus = "PROCESSING"
	EventStatusCompleted  EventStatus = "COMPLETED"
	EventStatusFailed     EventStatus = "FAILED"
)

var validEventStatuses = []EventStatus{
	EventStatusPending,
	EventStatusProcessing,
	EventStatusCompleted,
	EventStatusFailed,
}

// IsValid reports whether the value matches a known event status.
func (s EventStatus) IsValid() bool {
	for _, candidate := range validEventStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are expected.
func (s EventStatus) IsTerminal() bool {
	return s == EventStatusCompleted || s == EventStatusFailed
}

// ParseEventStatus converts raw input into EventStatus.
func ParseEventStatus(value string) (EventStatus, error) {
	for _, candidate := range validEventStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event status %q", value)
}

// EventAction is the mutation that produced an event.
type EventAction string

const (
	EventActionCreate EventAction = "CREATE"
	EventActionUpdate EventAction = "UPDATE"
	EventActionDelete EventAction = "DELETE"
)

var validEventActions = []EventAction{
	EventActionCreate,
	EventActionUpdate,
	EventActionDelete,
}

func (a EventAction) IsValid() bool {
	for _, candidate := range validEventActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseEventAction converts raw input into EventAction.
func ParseEventAction(value string) (EventAction, error) {
	for _, candidate := range validEventActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event action %q", value)
}

// HandlerStatus is the per-handler outcome recorded on an event.
type HandlerStatus string

const (
	HandlerStatusSuccess HandlerStatus = "SUCCESS"
	HandlerStatusSkipped HandlerStatus = "SKIPPED"
	HandlerStatusFailed  HandlerStatus = "FAILED"
)

var validHandlerStatuses = []HandlerStatus{
	HandlerStatusSuccess,
	HandlerStatusSkipped,
	HandlerStatusFailed,
}

func (s HandlerStatus) IsValid() bool {
	for _, candidate := range validHandlerStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
