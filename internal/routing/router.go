package routing

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"courier/internal/audience"
	"courier/internal/dedup"
	"courier/internal/events"
	"courier/internal/gateway"
	"courier/internal/history"
	"courier/internal/severity"
)

// Result statuses.
const (
	StatusOK        = "ok"
	StatusDuplicate = "duplicate"
)

// DefaultRetention is the freshness hint attached to non-critical
// messages: how long the receiving service may hold an undelivered
// message before discarding it.
const DefaultRetention = 10 * time.Minute

// DeviceOutcome is the result of one delivery attempt.
type DeviceOutcome struct {
	Device    string `json:"device"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// PersonOutcome is the result of routing to one audience entry.
type PersonOutcome struct {
	Person     string          `json:"person"`
	Preference string          `json:"preference"`
	Known      bool            `json:"known"`
	Note       string          `json:"note,omitempty"`
	Deliveries []DeviceOutcome `json:"deliveries,omitempty"`
}

// Result aggregates a routed submission.
type Result struct {
	Status    string          `json:"status"`
	RequestID string          `json:"request_id"`
	Attempted int             `json:"attempted"`
	Delivered int             `json:"delivered"`
	Outcomes  []PersonOutcome `json:"results,omitempty"`
}

// Router maps events to delivery actions. Shared state is limited to
// the dedup cache (internally locked) and the config document (read
// fresh per request); no lock is held while gateway calls are in
// flight.
type Router struct {
	store   *audience.Store
	cache   *dedup.Cache
	gateway gateway.Gateway
	db      *sql.DB
	bus     *events.Bus
	log     zerolog.Logger
}

// NewRouter wires the routing engine to its collaborators.
func NewRouter(store *audience.Store, cache *dedup.Cache, gw gateway.Gateway,
	db *sql.DB, bus *events.Bus, log zerolog.Logger) *Router {
	return &Router{
		store:   store,
		cache:   cache,
		gateway: gw,
		db:      db,
		bus:     bus,
		log:     log,
	}
}

// Route processes one submission. It returns an error only for
// structurally invalid input; unknown people, unknown severities, and
// individual delivery failures degrade that recipient's outcome and
// the operation still completes.
func (r *Router) Route(ctx context.Context, ev Event) (*Result, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}

	requestID := uuid.New().String()
	fp := Fingerprint(ev)

	// The check marks the fingerprint as sent before any delivery
	// begins, so concurrent duplicates arriving mid-flight are
	// suppressed too. A duplicate short-circuits before preference
	// resolution: it is never re-evaluated against a changed config.
	if r.cache.CheckAndMark(fp) {
		r.log.Info().Str("request_id", requestID).Str("fingerprint", fp).
			Str("title", ev.Title).Msg("duplicate suppressed")
		r.bus.Publish(events.Event{
			Type:      events.NotificationDuplicate,
			RequestID: requestID,
			Severity:  ev.Severity,
			Title:     ev.Title,
		})
		return &Result{Status: StatusDuplicate, RequestID: requestID}, nil
	}

	cfg := r.store.Load()
	ranking := severity.NewRanking(cfg.SeverityLevels)
	msg := buildMessage(ev, ranking)

	res := &Result{Status: StatusOK, RequestID: requestID}

	for _, person := range ev.Audience {
		res.Outcomes = append(res.Outcomes, r.routePerson(ctx, requestID, person, ev, cfg, ranking, msg, res))
	}

	r.bus.Publish(events.Event{
		Type:      events.NotificationRouted,
		RequestID: requestID,
		Severity:  ev.Severity,
		Title:     ev.Title,
		Delivered: res.Delivered,
	})
	return res, nil
}

// routePerson handles a single audience entry and updates the
// aggregate counters on res.
func (r *Router) routePerson(ctx context.Context, requestID, person string, ev Event,
	cfg *audience.Configuration, ranking *severity.Ranking, msg gateway.Message, res *Result) PersonOutcome {

	profile, known := cfg.Audiences[person]
	outcome := PersonOutcome{Person: person, Known: known}

	// Audit trail: every audience entry produces a record, whatever
	// the preference ends up being.
	audit := r.log.Info().
		Str("request_id", requestID).
		Str("person", person).
		Str("severity", ev.Severity).
		Str("title", ev.Title)

	if _, err := ranking.Rank(ev.Severity); err != nil {
		// Unrecognized severity never crashes the request; this
		// recipient just gets nothing delivered.
		outcome.Preference = string(audience.PrefNone)
		outcome.Note = err.Error()
		audit.Str("status", history.StatusSkipped).Msg("notification")
		r.recordAudit(&history.Record{
			RequestID: requestID, Person: person, Severity: ev.Severity,
			Title: ev.Title, Message: ev.Message,
			Preference: outcome.Preference, Status: history.StatusSkipped,
			ErrorMessage: err.Error(),
		})
		return outcome
	}

	pref := profile.PreferenceFor(ev.Severity)
	outcome.Preference = string(pref)

	audit.Str("preference", string(pref)).Msg("notification")
	r.recordAudit(&history.Record{
		RequestID: requestID, Person: person, Severity: ev.Severity,
		Title: ev.Title, Message: ev.Message,
		Preference: string(pref), Status: history.StatusLogged,
	})

	if !pref.Delivers() {
		return outcome
	}

	for _, device := range profile.DevicesFor(pref) {
		res.Attempted++
		do := DeviceOutcome{Device: device}

		if err := r.gateway.Send(ctx, device, msg); err != nil {
			// One bad device never blocks the rest.
			do.Error = err.Error()
			r.log.Warn().Err(err).Str("request_id", requestID).
				Str("person", person).Str("device", device).Msg("delivery failed")
			r.bus.Publish(events.Event{
				Type: events.DeliveryFailed, RequestID: requestID,
				Person: person, Device: device, Severity: ev.Severity,
				Title: ev.Title, Error: err.Error(),
			})
			r.recordAudit(&history.Record{
				RequestID: requestID, Person: person, Severity: ev.Severity,
				Title: ev.Title, Message: ev.Message, Preference: string(pref),
				Device: device, Status: history.StatusFailed, ErrorMessage: err.Error(),
			})
		} else {
			do.Delivered = true
			res.Delivered++
			r.bus.Publish(events.Event{
				Type: events.DeliverySucceeded, RequestID: requestID,
				Person: person, Device: device, Severity: ev.Severity,
				Title: ev.Title,
			})
			r.recordAudit(&history.Record{
				RequestID: requestID, Person: person, Severity: ev.Severity,
				Title: ev.Title, Message: ev.Message, Preference: string(pref),
				Device: device, Status: history.StatusDelivered,
			})
		}
		outcome.Deliveries = append(outcome.Deliveries, do)
	}
	return outcome
}

// buildMessage attaches severity-derived metadata. The urgency flag is
// keyed off the literal critical level; the expiry hint is zero
// ("deliver now or never") for top-severity events and a fixed
// retention window otherwise.
func buildMessage(ev Event, ranking *severity.Ranking) gateway.Message {
	msg := gateway.Message{
		Title:    ev.Title,
		Body:     ev.Message,
		Severity: ev.Severity,
		Urgent:   ev.Severity == "critical",
		Expiry:   DefaultRetention,
	}
	if ev.Severity == ranking.Highest() {
		msg.Expiry = 0
	}
	return msg
}

// recordAudit writes one history row; persistence problems are logged
// and absorbed, never fatal to the request.
func (r *Router) recordAudit(rec *history.Record) {
	if r.db == nil {
		return
	}
	if _, err := history.Insert(r.db, rec); err != nil {
		r.log.Warn().Err(err).Str("person", rec.Person).Msg("audit record failed")
	}
}

// IsValidation reports whether err is an event validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
