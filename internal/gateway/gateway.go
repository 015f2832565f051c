// Package gateway abstracts the actual sending of a notification to a
// device. The router only cares about the boolean outcome; whether the
// message travels as a push notification, a desktop alert, or a log
// line is this package's problem.
package gateway

import (
	"context"
	"fmt"
	"time"
)

// Message is the outbound payload handed to a gateway, already carrying
// its severity-derived metadata.
type Message struct {
	Title    string
	Body     string
	Severity string

	// Urgent requests immediate user attention on the receiving device.
	Urgent bool

	// Expiry is how long the receiving service should retain the
	// message before discarding it. Zero means "expire immediately":
	// deliver now or not at all.
	Expiry time.Duration
}

// Render formats the message as a single delivery string.
func (m Message) Render() string {
	return fmt.Sprintf("[%s] %s: %s", m.Severity, m.Title, m.Body)
}

// Gateway sends a message to a single device identifier.
type Gateway interface {
	Send(ctx context.Context, device string, msg Message) error
}
