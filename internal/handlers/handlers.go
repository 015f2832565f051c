// Package handlers exposes the routing engine over HTTP. Transport is
// thin plumbing: every decision lives in internal/routing and
// internal/audience.
package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"courier/internal/audience"
	"courier/internal/directory"
	"courier/internal/history"
	"courier/internal/routing"
	"courier/internal/stream"
)

// API bundles the handler dependencies.
type API struct {
	Router    *routing.Router
	Store     *audience.Store
	DB        *sql.DB
	Directory directory.Directory
	Hub       *stream.Hub
	Log       zerolog.Logger
}

// Routes builds the chi router with all endpoints and middleware.
func (a *API) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", a.Status)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		// The stream endpoint is long-lived and must stay outside the
		// request timeout.
		if a.Hub != nil {
			r.Get("/stream", a.Hub.HandleConnection)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/notify", a.Notify)

			r.Get("/config", a.GetConfig)
			r.Put("/config", a.ReplaceConfig)

			r.Get("/people", a.ListPeople)
			r.Post("/people", a.AddPerson)
			r.Post("/people/sync", a.SyncPeople)
			r.Put("/people/{person}/preferences", a.SetPreferences)
			r.Put("/people/{person}/devices", a.SetDevices)
			r.Delete("/people/{person}", a.RemovePerson)

			r.Get("/history", a.History)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		JSONError(w, "Endpoint not found. Use POST /api/notify for sending notifications.",
			http.StatusNotFound)
	})

	return r
}

// Status serves a small service description document.
// GET /
func (a *API) Status(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, map[string]interface{}{
		"service": "person-based notification router",
		"status":  "running",
		"usage": map[string]string{
			"notify":  "POST /api/notify with {title, message, severity, audience}",
			"config":  "GET|PUT /api/config",
			"history": "GET /api/history?limit=N",
			"stream":  "GET /api/stream (WebSocket)",
		},
	})
}

// Notify accepts a notification submission and routes it.
// POST /api/notify
func (a *API) Notify(w http.ResponseWriter, r *http.Request) {
	var ev routing.Event
	if err := decodeJSON(r, &ev); err != nil {
		JSONError(w, "Expected JSON payload", http.StatusBadRequest)
		return
	}

	res, err := a.Router.Route(r.Context(), ev)
	if err != nil {
		if routing.IsValidation(err) {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.Log.Error().Err(err).Msg("route failed")
		JSONError(w, "Server error occurred. Please check the logs.", http.StatusInternalServerError)
		return
	}

	// Duplicates are a 200: the submission was understood, just
	// suppressed.
	JSONResponse(w, res)
}

// GetConfig returns the full routing document.
// GET /api/config
func (a *API) GetConfig(w http.ResponseWriter, _ *http.Request) {
	JSONResponse(w, a.Store.Load())
}

// ReplaceConfig validates and persists a full routing document.
// PUT /api/config
func (a *API) ReplaceConfig(w http.ResponseWriter, r *http.Request) {
	var cfg audience.Configuration
	if err := decodeJSON(r, &cfg); err != nil {
		JSONError(w, "Expected JSON payload", http.StatusBadRequest)
		return
	}

	if err := a.Store.Save(&cfg); err != nil {
		if errors.Is(err, audience.ErrInvalidStructure) {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		a.Log.Error().Err(err).Msg("config save failed")
		JSONError(w, "Failed to persist configuration", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "ok"})
}

// ListPeople returns the person identifiers in the routing document.
// GET /api/people
func (a *API) ListPeople(w http.ResponseWriter, _ *http.Request) {
	cfg := a.Store.Load()
	people := make([]string, 0, len(cfg.Audiences))
	for person := range cfg.Audiences {
		people = append(people, person)
	}
	JSONResponse(w, people)
}

// AddPerson creates an empty profile.
// POST /api/people
func (a *API) AddPerson(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Person string `json:"person"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Person == "" {
		JSONError(w, "person is required", http.StatusBadRequest)
		return
	}

	if err := a.Store.AddPerson(req.Person); err != nil {
		a.Log.Error().Err(err).Str("person", req.Person).Msg("add person failed")
		JSONError(w, "Failed to persist configuration", http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "ok", "person": req.Person})
}

// SyncPeople merges people from the external directory into the
// routing document. A missing or failing directory is not an error for
// the document itself.
// POST /api/people/sync
func (a *API) SyncPeople(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	people, err := a.Directory.ListPeople(ctx)
	if err != nil {
		a.Log.Warn().Err(err).Msg("directory sync failed")
		JSONError(w, "Directory unavailable", http.StatusBadGateway)
		return
	}

	added, err := a.Store.MergePeople(people)
	if err != nil {
		JSONError(w, "Failed to persist configuration", http.StatusInternalServerError)
		return
	}
	if added == nil {
		added = []string{}
	}
	JSONResponse(w, map[string]interface{}{"status": "ok", "added": added})
}

// SetPreferences replaces one person's per-severity preferences.
// PUT /api/people/{person}/preferences
func (a *API) SetPreferences(w http.ResponseWriter, r *http.Request) {
	person := chi.URLParam(r, "person")

	var prefs map[string]audience.Preference
	if err := decodeJSON(r, &prefs); err != nil {
		JSONError(w, "Expected JSON payload", http.StatusBadRequest)
		return
	}

	a.personMutation(w, person, a.Store.SetPreferences(person, prefs))
}

// SetDevices replaces one person's device lists.
// PUT /api/people/{person}/devices
func (a *API) SetDevices(w http.ResponseWriter, r *http.Request) {
	person := chi.URLParam(r, "person")

	var devices map[string][]string
	if err := decodeJSON(r, &devices); err != nil {
		JSONError(w, "Expected JSON payload", http.StatusBadRequest)
		return
	}

	a.personMutation(w, person, a.Store.SetDevices(person, devices))
}

// RemovePerson deletes a profile.
// DELETE /api/people/{person}
func (a *API) RemovePerson(w http.ResponseWriter, r *http.Request) {
	person := chi.URLParam(r, "person")
	a.personMutation(w, person, a.Store.RemovePerson(person))
}

// personMutation maps store errors onto the wire.
func (a *API) personMutation(w http.ResponseWriter, person string, err error) {
	switch {
	case err == nil:
		JSONResponse(w, map[string]string{"status": "ok", "person": person})
	case errors.Is(err, audience.ErrUnknownPerson):
		JSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, audience.ErrInvalidStructure):
		JSONError(w, err.Error(), http.StatusBadRequest)
	default:
		a.Log.Error().Err(err).Str("person", person).Msg("person mutation failed")
		JSONError(w, "Failed to persist configuration", http.StatusInternalServerError)
	}
}

// History returns recent audit records.
// GET /api/history?limit=N
func (a *API) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			JSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := history.Recent(a.DB, limit)
	if err != nil {
		a.Log.Error().Err(err).Msg("history query failed")
		JSONError(w, "Failed to load history", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}
	JSONResponse(w, recs)
}
