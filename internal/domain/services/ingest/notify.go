package ingest

// NotificationSink receives human-readable messages. Fire-and-forget.
type NotificationSink interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// NotificationLevel is the severity of a Notification.
type NotificationLevel string

const (
	LevelInfo  NotificationLevel = "info"
	LevelWarn  NotificationLevel = "warn"
	LevelError NotificationLevel = "error"
)

// Notification is a message captured for delivery to a client.
type Notification struct {
	Level   NotificationLevel `json:"level"`
	Message string            `json:"message"`
}
