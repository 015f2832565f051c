package events

import "time"

// Type identifies the kind of routing event being published.
type Type string

const (
	// NotificationRouted fires once per accepted submission, after all
	// deliveries have been attempted.
	NotificationRouted Type = "notification_routed"

	// NotificationDuplicate fires when a submission is suppressed by
	// the deduplication window.
	NotificationDuplicate Type = "notification_duplicate"

	// DeliverySucceeded / DeliveryFailed fire once per device attempt.
	DeliverySucceeded Type = "delivery_succeeded"
	DeliveryFailed    Type = "delivery_failed"
)

// Event is the payload published through the bus.
type Event struct {
	Type      Type      `json:"type"`
	RequestID string    `json:"request_id"`
	Person    string    `json:"person,omitempty"`
	Device    string    `json:"device,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Title     string    `json:"title,omitempty"`
	Delivered int       `json:"delivered,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
