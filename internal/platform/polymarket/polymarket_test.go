package polymarket_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/polymarket"
)

const eventsJSON = `[
  {"id":"1","title":"Fed decision in June","slug":"fed-june","markets":[
    {"slug":"fed-cut-june","question":"Fed cuts?","outcomePrices":"[\"0.455\",\"0.545\"]","volume":"12000.4","volume24hr":3100.6,"liquidityNum":"880.2","active":"true"},
    {"slug":"fed-hold-june","outcomePrices":"[\"0.5\",\"0.5\"]"}
  ]},
  {"id":"2","title":"","slug":"btc-dec","markets":[
    {"slug":"","question":"BTC above 100k?","outcomePrices":"[\"0.61\",\"0.39\"]","volume":"4500","volume24hr":null}
  ]},
  {"id":"3","title":"Zero priced","slug":"zero","markets":[{"slug":"z","outcomePrices":"[\"0\",\"1\"]"}]},
  {"id":"4","title":"Broken","slug":"broken","markets":[{"slug":"b","outcomePrices":"not json"}]},
  {"id":"5","title":"Empty","slug":"empty","markets":[]},
  {"id":"6","title":"","slug":"","markets":[{"groupItemTitle":"Group","slug":"grp","outcomePrices":"[0.07,0.93]","active":true}]}
]`

func decodeEvents(t *testing.T) []polymarket.APIEvent {
	t.Helper()
	var events []polymarket.APIEvent
	if err := json.Unmarshal([]byte(eventsJSON), &events); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return events
}

func TestCanonicalize(t *testing.T) {
	got := polymarket.Canonicalize(decodeEvents(t))
	if len(got) != 3 {
		t.Fatalf("got %d instruments, want 3: %+v", len(got), got)
	}

	fed := got[0]
	if fed.ID != "fed-cut-june" || fed.Title != "Fed decision in June" || fed.YesPrice != 46 || fed.NoPrice != 55 {
		t.Errorf("fed = %+v", fed)
	}
	if fed.Volume != 3101 || fed.Liquidity != 880 || fed.Venue != domain.VenuePolymarket {
		t.Errorf("fed = %+v", fed)
	}

	btc := got[1]
	if btc.ID != "btc-dec" || btc.Title != "BTC above 100k?" || btc.YesPrice != 61 || btc.Volume != 4500 {
		t.Errorf("btc = %+v", btc)
	}

	grp := got[2]
	if grp.ID != "grp" || grp.Title != "Group" || grp.YesPrice != 7 {
		t.Errorf("grp = %+v", grp)
	}
}

func TestFeedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/events" || q.Get("closed") != "false" || q.Get("limit") != "50" ||
			q.Get("order") != "volume24hr" || q.Get("ascending") != "false" {
			t.Errorf("request = %s", r.URL.String())
		}
		_, _ = w.Write([]byte(eventsJSON))
	}))
	defer srv.Close()

	feed := polymarket.NewFeed(polymarket.NewGammaClient(srv.URL, time.Second), 0)
	got, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d instruments", len(got))
	}
}

func TestFeedFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := polymarket.NewFeed(polymarket.NewGammaClient(srv.URL, time.Second), 10).Fetch(context.Background())
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("err = %v", err)
	}
}

func TestGetMarketBySlug(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("slug") {
		case "fed-cut-june":
			_, _ = w.Write([]byte(`[{"slug":"fed-cut-june","question":"Fed cuts?","outcomePrices":"[\"0.3\",\"0.7\"]","active":true,"endDate":"2026-06-18T00:00:00Z"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	c := polymarket.NewGammaClient(srv.URL, time.Second)
	m, err := c.GetMarketBySlug(context.Background(), "fed-cut-june")
	if err != nil {
		t.Fatal(err)
	}
	if p := m.Prices(); len(p) != 2 || p[0] != 30 || p[1] != 70 || !bool(m.Active) {
		t.Fatalf("market = %+v", m)
	}
	if _, err := c.GetMarketBySlug(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}
