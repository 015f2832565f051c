// Package directory discovers known people and delivery-service
// identifiers from an external home-automation platform. The router
// never depends on it: an empty or unreachable directory just means
// the configuration document is the only source of truth.
package directory

import "context"

// Directory supplies the canonical people and device identifiers.
type Directory interface {
	// ListPeople returns known person identifiers.
	ListPeople(ctx context.Context) ([]string, error)

	// ListDevices returns available delivery-service identifiers.
	ListDevices(ctx context.Context) ([]string, error)
}

// Static is a fixed in-memory directory. With zero values it acts as
// the "no directory configured" fallback.
type Static struct {
	People  []string
	Devices []string
}

func (s Static) ListPeople(context.Context) ([]string, error)  { return s.People, nil }
func (s Static) ListDevices(context.Context) ([]string, error) { return s.Devices, nil }
