package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HomeAssistant reads people and notify services from a Home Assistant
// instance's REST API.
type HomeAssistant struct {
	baseURL string
	token   string
	client  *http.Client
	log     zerolog.Logger
}

// NewHomeAssistant creates a directory client for the given instance.
func NewHomeAssistant(baseURL, token string, log zerolog.Logger) *HomeAssistant {
	return &HomeAssistant{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// ListPeople returns the person entities, stripped of their domain
// prefix ("person.jeremy" → "jeremy").
func (h *HomeAssistant) ListPeople(ctx context.Context) ([]string, error) {
	var states []struct {
		EntityID string `json:"entity_id"`
	}
	if err := h.get(ctx, "/api/states", &states); err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}

	var people []string
	for _, s := range states {
		if name, ok := strings.CutPrefix(s.EntityID, "person."); ok {
			people = append(people, name)
		}
	}
	return people, nil
}

// ListDevices returns the notify service identifiers ("notify.phone"
// style), which double as device identifiers in routing profiles.
func (h *HomeAssistant) ListDevices(ctx context.Context) ([]string, error) {
	var domains []struct {
		Domain   string                     `json:"domain"`
		Services map[string]json.RawMessage `json:"services"`
	}
	if err := h.get(ctx, "/api/services", &domains); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var devices []string
	for _, d := range domains {
		if d.Domain != "notify" {
			continue
		}
		for name := range d.Services {
			devices = append(devices, "notify."+name)
		}
	}
	return devices, nil
}

func (h *HomeAssistant) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return err
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
