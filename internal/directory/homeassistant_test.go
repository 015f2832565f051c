package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"testing"

	"github.com/rs/zerolog"
)

func TestListPeople(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		w.Write([]byte(`[
			{"entity_id": "person.jeremy"},
			{"entity_id": "light.kitchen"},
			{"entity_id": "person.sarah"}
		]`))
	}))
	defer ts.Close()

	ha := NewHomeAssistant(ts.URL, "secret", zerolog.Nop())
	people, err := ha.ListPeople(context.Background())
	if err != nil {
		t.Fatalf("ListPeople: %v", err)
	}
	if !reflect.DeepEqual(people, []string{"jeremy", "sarah"}) {
		t.Errorf("people = %v", people)
	}
}

func TestListDevices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"domain": "light", "services": {"turn_on": {}}},
			{"domain": "notify", "services": {"phone": {}, "desktop": {}}}
		]`))
	}))
	defer ts.Close()

	ha := NewHomeAssistant(ts.URL, "", zerolog.Nop())
	devices, err := ha.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	sort.Strings(devices)
	if !reflect.DeepEqual(devices, []string{"notify.desktop", "notify.phone"}) {
		t.Errorf("devices = %v", devices)
	}
}

func TestUnreachableDirectoryErrors(t *testing.T) {
	ha := NewHomeAssistant("http://127.0.0.1:1", "", zerolog.Nop())
	if _, err := ha.ListPeople(context.Background()); err == nil {
		t.Error("expected error for unreachable directory")
	}
}

func TestErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	ha := NewHomeAssistant(ts.URL, "wrong", zerolog.Nop())
	if _, err := ha.ListPeople(context.Background()); err == nil {
		t.Error("expected error for 401 response")
	}
}

func TestStaticFallback(t *testing.T) {
	var d Directory = Static{}
	people, err := d.ListPeople(context.Background())
	if err != nil || people != nil {
		t.Errorf("empty static directory: people=%v err=%v", people, err)
	}
}
