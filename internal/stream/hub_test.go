package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"courier/internal/events"
)

func TestHubBroadcastsToClient(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	hub := NewHub(bus, zerolog.Nop())

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Wait for the hub to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Publish(events.Event{
		Type:      events.DeliverySucceeded,
		RequestID: "r1",
		Person:    "jeremy",
		Device:    "push.phone",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got events.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != events.DeliverySucceeded || got.Device != "push.phone" {
		t.Errorf("received %+v", got)
	}
}

func TestHubDropsClosedClient(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	hub := NewHub(bus, zerolog.Nop())

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never dropped after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
