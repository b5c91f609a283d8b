package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/notify"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return "recorder" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifierFiltersEvents(t *testing.T) {
	rec := &recordingSender{}
	n := notify.NewNotifier([]notify.Sender{rec}, []string{notify.EventOpportunityOpened, " "}, quietLogger())

	if err := n.Notify(context.Background(), notify.EventOpportunityOpened, "a", "x"); err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), notify.EventScanError, "b", "y"); err != nil {
		t.Fatal(err)
	}
	if len(rec.titles) != 1 || rec.titles[0] != "a" {
		t.Fatalf("titles = %v", rec.titles)
	}
}

func TestNotifierNoFilterAndErrors(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("boom")}
	n := notify.NewNotifier([]notify.Sender{bad, ok}, nil, quietLogger())

	err := n.Notify(context.Background(), notify.EventAlertTriggered, "t", "m")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v", err)
	}
	if len(ok.titles) != 1 {
		t.Fatal("healthy sender skipped after failure")
	}
}

func TestNilNotifier(t *testing.T) {
	var n *notify.Notifier
	if n.Enabled() {
		t.Fatal("nil notifier enabled")
	}
	if err := n.Notify(context.Background(), notify.EventScanError, "t", "m"); err != nil {
		t.Fatal(err)
	}
}

func TestTelegramSender(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := notify.NewTelegramSender(srv.URL, "TOKEN", "42")
	if err := s.Send(context.Background(), "New spread 9¢", "K1 <b> & P1"); err != nil {
		t.Fatal(err)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" {
		t.Fatalf("payload = %v", got)
	}
	if text, _ := got["text"].(string); text != "<b>New spread 9¢</b>\nK1 &lt;b&gt; &amp; P1" {
		t.Fatalf("text = %q", text)
	}
}

func TestDiscordSenderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := notify.NewDiscordSender(srv.URL, "").Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("err = %v", err)
	}
}

func TestMessages(t *testing.T) {
	o := domain.Opportunity{
		Key: "K1|P1", IDA: "K1", IDB: "P1", TitleA: "Fed cuts", TitleB: "Fed cuts June",
		PriceA: 40, PriceB: 49, Spread: 9, Direction: domain.BuyASellB,
		ProfitPer100: decimal.NewFromInt(9),
	}
	title, msg := notify.OpportunityOpened(o)
	if title != "New spread 9¢" || !strings.Contains(msg, "Buy Kalshi / Sell Poly, $9.00 per $100") {
		t.Fatalf("opened = %q / %q", title, msg)
	}

	mins := 12
	o.DurationMinutes = &mins
	if _, msg := notify.OpportunityClosed(o); !strings.Contains(msg, "lasted 12 min") {
		t.Fatalf("closed = %q", msg)
	}

	a := domain.Alert{MarketName: "Fed cuts", Condition: domain.ConditionAbove, TargetPrice: 40}
	if _, msg := notify.AlertTriggered(a, 44); msg != "Fed cuts is 44¢ (target: above 40¢)" {
		t.Fatalf("alert = %q", msg)
	}
}
