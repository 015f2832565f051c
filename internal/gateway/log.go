package gateway

import (
	"context"

	"github.com/rs/zerolog"
)

// LogGateway is a delivery sink that writes messages to the log
// instead of an external service. Useful for development and as the
// default when no device routes are configured.
type LogGateway struct {
	log zerolog.Logger
}

// NewLogGateway creates a log-backed gateway.
func NewLogGateway(log zerolog.Logger) *LogGateway {
	return &LogGateway{log: log}
}

// Send records the delivery as a log line and always succeeds.
func (g *LogGateway) Send(_ context.Context, device string, msg Message) error {
	g.log.Info().
		Str("device", device).
		Str("severity", msg.Severity).
		Bool("urgent", msg.Urgent).
		Dur("expiry", msg.Expiry).
		Msg(msg.Render())
	return nil
}
