package routing

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"courier/internal/audience"
	"courier/internal/dedup"
	"courier/internal/events"
	"courier/internal/gateway"
	"courier/internal/history"
)

// mockGateway records sends and can be told to fail specific devices.
type mockGateway struct {
	mu       sync.Mutex
	devices  []string
	messages []gateway.Message
	fail     map[string]bool
}

func (m *mockGateway) Send(_ context.Context, device string, msg gateway.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = append(m.devices, device)
	m.messages = append(m.messages, msg)
	if m.fail[device] {
		return fmt.Errorf("mock send error for %s", device)
	}
	return nil
}

func (m *mockGateway) sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.devices...)
}

type routerFixture struct {
	router *Router
	store  *audience.Store
	cache  *dedup.Cache
	gw     *mockGateway
	db     *sql.DB
	clock  *fakeClock
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func setupRouter(t *testing.T, cfg *audience.Configuration) *routerFixture {
	t.Helper()

	store := audience.NewStore(filepath.Join(t.TempDir(), "config.yaml"), zerolog.Nop())
	if cfg != nil {
		if err := store.Save(cfg); err != nil {
			t.Fatal(err)
		}
	}

	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cache := dedup.NewCache(300 * time.Second)
	cache.SetClock(clock.now)

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := history.Migrate(db); err != nil {
		t.Fatal(err)
	}

	gw := &mockGateway{fail: map[string]bool{}}
	r := NewRouter(store, cache, gw, db, events.NewBus(zerolog.Nop()), zerolog.Nop())

	return &routerFixture{router: r, store: store, cache: cache, gw: gw, db: db, clock: clock}
}

func jeremyConfig() *audience.Configuration {
	return &audience.Configuration{
		SeverityLevels: []string{"info", "warning", "critical"},
		Audiences: map[string]audience.PersonProfile{
			"jeremy": {
				Preferences: map[string]audience.Preference{
					"critical": audience.PrefAllDevices,
				},
				Devices: map[string][]string{
					"all": {"push.phone"},
				},
			},
		},
	}
}

func leakEvent() Event {
	return Event{
		Title:    "Leak",
		Message:  "Water detected",
		Severity: "critical",
		Audience: []string{"jeremy"},
	}
}

func TestRouteDeliverThenSuppressDuplicate(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	res, err := f.router.Route(context.Background(), leakEvent())
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if res.Status != StatusOK {
		t.Errorf("status = %q, want ok", res.Status)
	}
	if res.Delivered != 1 {
		t.Errorf("delivered = %d, want 1", res.Delivered)
	}
	if sent := f.gw.sent(); len(sent) != 1 || sent[0] != "push.phone" {
		t.Errorf("gateway calls = %v, want [push.phone]", sent)
	}

	// Identical resubmission inside the window: duplicate, no calls.
	res, err = f.router.Route(context.Background(), leakEvent())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusDuplicate || res.Delivered != 0 {
		t.Errorf("resubmit: status=%q delivered=%d", res.Status, res.Delivered)
	}
	if len(f.gw.sent()) != 1 {
		t.Errorf("gateway called again on duplicate: %v", f.gw.sent())
	}
}

func TestRouteDedupWindowExpires(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	if res, _ := f.router.Route(context.Background(), leakEvent()); res.Status != StatusOK {
		t.Fatalf("first: %q", res.Status)
	}

	f.clock.advance(299 * time.Second)
	if res, _ := f.router.Route(context.Background(), leakEvent()); res.Status != StatusDuplicate {
		t.Errorf("within window: %q, want duplicate", res.Status)
	}

	f.clock.advance(2 * time.Second)
	if res, _ := f.router.Route(context.Background(), leakEvent()); res.Status != StatusOK {
		t.Errorf("after window: %q, want ok", res.Status)
	}
}

func TestRouteConcurrentDuplicates(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	const n = 16
	var wg sync.WaitGroup
	statuses := make(chan string, n)

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.router.Route(context.Background(), leakEvent())
			if err != nil {
				t.Error(err)
				return
			}
			statuses <- res.Status
		}()
	}
	wg.Wait()
	close(statuses)

	okCount := 0
	for s := range statuses {
		if s == StatusOK {
			okCount++
		}
	}
	if okCount != 1 {
		t.Errorf("got %d ok results, want exactly 1", okCount)
	}
}

func TestRoutePreferenceGating(t *testing.T) {
	cfg := &audience.Configuration{
		SeverityLevels: []string{"info", "warning", "critical"},
		Audiences: map[string]audience.PersonProfile{
			"sarah": {
				Preferences: map[string]audience.Preference{
					"critical": audience.PrefMobileOnly,
					"warning":  audience.PrefNone,
				},
				Devices: map[string][]string{
					"all":    {"d1", "d2"},
					"mobile": {"d1"},
				},
			},
		},
	}
	f := setupRouter(t, cfg)

	res, err := f.router.Route(context.Background(), Event{
		Title: "t", Message: "m", Severity: "critical", Audience: []string{"sarah"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 1 {
		t.Errorf("critical delivered = %d, want 1", res.Delivered)
	}
	if sent := f.gw.sent(); len(sent) != 1 || sent[0] != "d1" {
		t.Errorf("critical sent to %v, want [d1] only", sent)
	}

	// Warning is preference none: zero devices, but still audited.
	res, err = f.router.Route(context.Background(), Event{
		Title: "t2", Message: "m2", Severity: "warning", Audience: []string{"sarah"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusOK || res.Delivered != 0 {
		t.Errorf("warning: status=%q delivered=%d", res.Status, res.Delivered)
	}

	recs, err := history.ByRequest(f.db, res.RequestID)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Status != history.StatusLogged {
		t.Errorf("warning audit records = %+v, want one logged row", recs)
	}
}

func TestRoutePartialFailureIsolation(t *testing.T) {
	cfg := jeremyConfig()
	profile := cfg.Audiences["jeremy"]
	profile.Devices["all"] = []string{"bad.device", "push.phone"}
	cfg.Audiences["jeremy"] = profile

	f := setupRouter(t, cfg)
	f.gw.fail["bad.device"] = true

	res, err := f.router.Route(context.Background(), leakEvent())
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusOK {
		t.Errorf("status = %q, want ok despite one failure", res.Status)
	}
	if res.Delivered != 1 || res.Attempted != 2 {
		t.Errorf("delivered=%d attempted=%d, want 1/2", res.Delivered, res.Attempted)
	}

	out := res.Outcomes[0].Deliveries
	if len(out) != 2 || out[0].Delivered || out[0].Error == "" || !out[1].Delivered {
		t.Errorf("device outcomes = %+v", out)
	}
}

func TestRouteUnknownPersonTolerated(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	res, err := f.router.Route(context.Background(), Event{
		Title: "t", Message: "m", Severity: "critical", Audience: []string{"stranger", "jeremy"},
	})
	if err != nil {
		t.Fatalf("unknown person raised request-level error: %v", err)
	}
	if res.Delivered != 1 {
		t.Errorf("delivered = %d, want 1 (jeremy only)", res.Delivered)
	}
	if res.Outcomes[0].Known || res.Outcomes[0].Preference != "none" {
		t.Errorf("stranger outcome = %+v", res.Outcomes[0])
	}
}

func TestRouteUnknownSeverityDegrades(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	res, err := f.router.Route(context.Background(), Event{
		Title: "t", Message: "m", Severity: "apocalyptic", Audience: []string{"jeremy"},
	})
	if err != nil {
		t.Fatalf("unknown severity raised request-level error: %v", err)
	}
	if res.Status != StatusOK || res.Delivered != 0 {
		t.Errorf("status=%q delivered=%d, want ok/0", res.Status, res.Delivered)
	}
	if res.Outcomes[0].Note == "" {
		t.Error("expected a note explaining the skipped recipient")
	}

	recs, _ := history.ByRequest(f.db, res.RequestID)
	if len(recs) != 1 || recs[0].Status != history.StatusSkipped {
		t.Errorf("audit = %+v, want one skipped row", recs)
	}
}

func TestRouteValidationNeverTouchesDedup(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	_, err := f.router.Route(context.Background(), Event{Title: "only title"})
	if !IsValidation(err) {
		t.Fatalf("error = %v, want validation error", err)
	}
	if f.cache.Len() != 0 {
		t.Errorf("dedup cache has %d entries after rejected event", f.cache.Len())
	}
	if len(f.gw.sent()) != 0 {
		t.Error("gateway called for rejected event")
	}
}

func TestRouteDuplicateAudienceEntriesProcessedIndependently(t *testing.T) {
	f := setupRouter(t, jeremyConfig())

	res, err := f.router.Route(context.Background(), Event{
		Title: "t", Message: "m", Severity: "critical",
		Audience: []string{"jeremy", "jeremy"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 2 {
		t.Errorf("delivered = %d, want 2 (each occurrence re-processed)", res.Delivered)
	}
	if len(res.Outcomes) != 2 {
		t.Errorf("outcomes = %d, want 2", len(res.Outcomes))
	}
}

func TestRouteMessageMetadata(t *testing.T) {
	cfg := jeremyConfig()
	profile := cfg.Audiences["jeremy"]
	profile.Preferences["info"] = audience.PrefAllDevices
	cfg.Audiences["jeremy"] = profile

	f := setupRouter(t, cfg)

	f.router.Route(context.Background(), leakEvent())
	f.router.Route(context.Background(), Event{
		Title: "FYI", Message: "all quiet", Severity: "info", Audience: []string{"jeremy"},
	})

	f.gw.mu.Lock()
	defer f.gw.mu.Unlock()
	if len(f.gw.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(f.gw.messages))
	}

	crit, info := f.gw.messages[0], f.gw.messages[1]
	if !crit.Urgent || crit.Expiry != 0 {
		t.Errorf("critical metadata = urgent=%v expiry=%v, want urgent/0", crit.Urgent, crit.Expiry)
	}
	if info.Urgent || info.Expiry != DefaultRetention {
		t.Errorf("info metadata = urgent=%v expiry=%v, want calm/default", info.Urgent, info.Expiry)
	}
}

// A missing config file must degrade to defaults, not fail the request.
func TestRouteWithoutConfigFile(t *testing.T) {
	f := setupRouter(t, nil)

	res, err := f.router.Route(context.Background(), leakEvent())
	if err != nil {
		t.Fatalf("Route without config: %v", err)
	}
	if res.Status != StatusOK || res.Delivered != 0 {
		t.Errorf("status=%q delivered=%d, want ok/0", res.Status, res.Delivered)
	}
}
