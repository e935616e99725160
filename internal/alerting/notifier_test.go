package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"oi-surge-alerts/internal/instrument"
)

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]any)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/bottoken/sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), sampleNotification()); err != nil {
		t.Fatalf("telegram Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("unexpected chat_id: %#v", received)
	}
	if received["parse_mode"] != "HTML" {
		t.Fatalf("parse_mode should be HTML: %#v", received)
	}
	text, _ := received["text"].(string)
	if !strings.Contains(text, "<b>BTC/USDT</b>") {
		t.Fatalf("text should carry the bold instrument name: %q", text)
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), sampleNotification())
	if err == nil {
		t.Fatal("ok=false should fail")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error should carry the description, got %v", err)
	}
}

func TestTelegramAnnounceEscapesText(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&received)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Announce(context.Background(), "monitoring <3> instruments"); err != nil {
		t.Fatalf("announce should succeed: %v", err)
	}
	if received["text"] != "monitoring &lt;3&gt; instruments" {
		t.Fatalf("announcement should be escaped, got %q", received["text"])
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	err := notifier.Announce(context.Background(), "boot")
	if err == nil {
		t.Fatal("HTTP 502 should fail")
	}
	if !strings.Contains(err.Error(), "telegram 响应码异常: 502") {
		t.Fatalf("unexpected error %v", err)
	}
}

func sampleNotification() Notification {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return Notification{
		ID:         "test",
		Instrument: instrument.Instrument{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", Display: "BTC/USDT"},
		At:         at,
		Price: &Dimension{Label: "🔥", Peak: 2.1, Changes: []HorizonChange{
			{Horizon: time.Minute, Percent: 2.1, Defined: true},
			{Horizon: 5 * time.Minute},
			{Horizon: 15 * time.Minute},
		}},
		FirstAlert: at,
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
