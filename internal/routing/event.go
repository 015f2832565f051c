// Package routing contains the notification routing engine: the logic
// that turns an inbound event into a concrete set of per-person,
// per-device delivery actions, with content-based deduplication.
package routing

import (
	"fmt"
	"strings"
)

// Event is a submitted notification request. The audience is processed
// in insertion order; duplicate person identifiers are each handled
// independently, not collapsed.
type Event struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity string   `json:"severity"`
	Audience []string `json:"audience"`
}

// ValidationError reports which required event fields are missing.
// It is the only routing error surfaced as a request-level failure
// besides configuration persistence problems.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Validate checks that all four required fields are present. A
// malformed event never enters the dedup cache.
func (e Event) Validate() error {
	var missing []string
	if e.Title == "" {
		missing = append(missing, "title")
	}
	if e.Message == "" {
		missing = append(missing, "message")
	}
	if e.Severity == "" {
		missing = append(missing, "severity")
	}
	if e.Audience == nil {
		missing = append(missing, "audience")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
