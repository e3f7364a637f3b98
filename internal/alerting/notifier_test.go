package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func equityNote() Notification {
	return Notification{
		RunID:         uuid.New(),
		Bucket:        time.Now(),
		Mode:          "regulated",
		SolverStatus:  "Optimal",
		Gini:          0.31,
		GiniThreshold: 0.25,
		TotalRevenue:  decimal.NewFromFloat(102.5),
		Target:        decimal.NewFromInt(100),
		Channels:      []string{"telegram"},
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), equityNote()); err != nil {
		t.Fatalf("notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id wrong: %#v", received)
	}
	if !strings.Contains(received["text"], "Gini") {
		t.Fatalf("equity alert should mention the gini breach: %q", received["text"])
	}
}

func TestTelegramNotifierRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), equityNote()); err == nil {
		t.Fatal("ok=false should error")
	}
}

func TestRenderMessageFailure(t *testing.T) {
	note := Notification{
		Bucket:        time.Now(),
		Mode:          "regulated",
		FailureReason: "solver found no feasible tariff",
	}

	text := renderMessage(note)
	if !strings.Contains(text, "Failure: solver found no feasible tariff") {
		t.Fatalf("failure alert should carry the reason: %q", text)
	}
	if strings.Contains(text, "Solver status") {
		t.Fatalf("failure alert should not render solve details: %q", text)
	}
}
