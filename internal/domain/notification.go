package domain

// NotificationType identifies why a user is being notified.
type NotificationType string

const (
	NotificationStarted             NotificationType = "STARTED"
	NotificationFinished            NotificationType = "FINISHED"
	NotificationParticipationStatus NotificationType = "PARTICIPATION_STATUS_CHANGED"
)

// Notification is the payload handed to the Notifier collaborator.
// Delivery is fire-and-forget from the scheduling core's perspective.
type Notification struct {
	Type NotificationType `json:"type"`
	Data any              `json:"data"`
}
