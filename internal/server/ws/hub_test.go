package ws_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/server/ws"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/store/memory"
)

func startHub(t *testing.T) (*memory.SignalBus, *ws.Hub, *httptest.Server) {
	t.Helper()
	bus := memory.NewSignalBus(10)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hub := ws.NewHub(bus, func() map[string]any { return map[string]any{"mode": "server"} }, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return bus, hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn, timeout time.Duration) (domain.Envelope, bool) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		return domain.Envelope{}, false
	}
	if kind != websocket.TextMessage {
		t.Fatalf("frame type = %d, want text", kind)
	}
	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return env, true
}

func envelope(t *testing.T, typ string) []byte {
	t.Helper()
	b, err := json.Marshal(domain.Envelope{Type: typ, Time: time.Now().UTC()})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestHubSendsStatusOnConnect(t *testing.T) {
	_, hub, srv := startHub(t)
	conn := dial(t, srv, "")

	env, ok := readEnvelope(t, conn, 2*time.Second)
	if !ok || env.Type != "status" {
		t.Fatalf("first message = %+v", env)
	}
	data, _ := env.Data.(map[string]any)
	if data["mode"] != "server" {
		t.Fatalf("status data = %v", env.Data)
	}
	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want 1", hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubRelaysSubscribedChannelsOnly(t *testing.T) {
	bus, _, srv := startHub(t)
	conn := dial(t, srv, "?channels=alerts")
	if env, ok := readEnvelope(t, conn, 2*time.Second); !ok || env.Type != "status" {
		t.Fatalf("expected status first, got %+v", env)
	}

	// The hub subscribes to the bus asynchronously; publish until a message
	// makes it through.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ctx := context.Background()
		_ = bus.Publish(ctx, domain.ChannelOpportunities, envelope(t, "opportunity_opened"))
		_ = bus.Publish(ctx, domain.ChannelAlerts, envelope(t, "alert_triggered"))
		if env, ok := readEnvelope(t, conn, 100*time.Millisecond); ok {
			if env.Type != "alert_triggered" {
				t.Fatalf("received %q on an alerts-only subscription", env.Type)
			}
			return
		}
	}
	t.Fatal("no alert relayed")
}

func TestHubSubscribeMessage(t *testing.T) {
	bus, _, srv := startHub(t)
	conn := dial(t, srv, "?channels=alerts")
	readEnvelope(t, conn, 2*time.Second)

	msg := `{"action":"subscribe","channels":["daylight:scans"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
	msg = `{"action":"unsubscribe","channels":["alerts"]}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ctx := context.Background()
		_ = bus.Publish(ctx, domain.ChannelAlerts, envelope(t, "alert_triggered"))
		_ = bus.Publish(ctx, domain.ChannelScans, envelope(t, "scan_complete"))
		if env, ok := readEnvelope(t, conn, 100*time.Millisecond); ok {
			if env.Type == "scan_complete" {
				return
			}
		}
	}
	t.Fatal("no scan summary relayed after subscribing")
}

func TestHubShutdownWhileClientsConnect(t *testing.T) {
	bus := memory.NewSignalBus(10)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	hub := ws.NewHub(bus, nil, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			if err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(time.Second))
			_, _, _ = conn.ReadMessage()
			conn.Close()
		}()
		if i == 25 {
			cancel()
		}
	}
	wg.Wait()
	<-done

	// Connections after shutdown are closed without registering.
	if conn, _, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err == nil {
			t.Error("read succeeded on a connection to a stopped hub")
		}
		conn.Close()
	}
	if n := hub.ClientCount(); n != 0 {
		t.Fatalf("clients after shutdown = %d", n)
	}
}
