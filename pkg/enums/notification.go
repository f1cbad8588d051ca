package enums

import "fmt"

// NotificationType classifies notifications produced by the notification handler.
type NotificationType string

const (
	NotificationTypeAssignment   NotificationType = "assignment"
	NotificationTypeReminder     NotificationType = "reminder"
	NotificationTypeStatusChange NotificationType = "status_change"
	NotificationTypeMention      NotificationType = "mention"
	NotificationTypeSystem       NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeAssignment,
	NotificationTypeReminder,
	NotificationTypeStatusChange,
	NotificationTypeMention,
	NotificationTypeSystem,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
