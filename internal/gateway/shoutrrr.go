package gateway

import (
	"context"
	"fmt"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/rs/zerolog"
)

// ShoutrrrGateway delivers via the Shoutrrr library. Device identifiers
// are resolved to Shoutrrr service URLs through a static routing table
// from the runtime configuration.
type ShoutrrrGateway struct {
	routes map[string]string // device identifier → shoutrrr URL
	log    zerolog.Logger
}

// NewShoutrrrGateway creates a gateway with the given device routes.
func NewShoutrrrGateway(routes map[string]string, log zerolog.Logger) *ShoutrrrGateway {
	if routes == nil {
		routes = map[string]string{}
	}
	return &ShoutrrrGateway{routes: routes, log: log}
}

// Send resolves the device to its Shoutrrr URL and dispatches the
// rendered message. An unmapped device is a delivery failure, not a
// panic.
func (g *ShoutrrrGateway) Send(_ context.Context, device string, msg Message) error {
	url, ok := g.routes[device]
	if !ok {
		return fmt.Errorf("no delivery route for device %q", device)
	}
	if err := shoutrrr.Send(url, msg.Render()); err != nil {
		return fmt.Errorf("shoutrrr send to %q: %w", device, err)
	}
	g.log.Debug().Str("device", device).Bool("urgent", msg.Urgent).Msg("delivered")
	return nil
}
