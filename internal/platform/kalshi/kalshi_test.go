package kalshi_test

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aaroncodesalot/daylight-prediction-markets/internal/domain"
	"github.com/aaroncodesalot/daylight-prediction-markets/internal/platform/kalshi"
)

func TestCanonicalize(t *testing.T) {
	events := []kalshi.KalshiEvent{
		{
			EventTicker: "FED-25JUN",
			Title:       "Fed cuts rates in June",
			Markets: []kalshi.KalshiMarket{
				{Ticker: "FED-25JUN-T4.25", Volume: 10, YesBid: 30},
				{Ticker: "FED-25JUN-T4.50", Volume: 900, YesBid: 0, LastPrice: 44, Volume24H: 50},
			},
		},
		{
			Title:   "No volume",
			Markets: []kalshi.KalshiMarket{{Ticker: "DEAD", Volume: 0, YesBid: 50}},
		},
		{Title: "No markets"},
		{
			Markets: []kalshi.KalshiMarket{{Ticker: "BTC-100K", Title: "BTC above 100k", Volume: 5}},
		},
		{
			Title:   "Missing ticker",
			Markets: []kalshi.KalshiMarket{{Volume: 100, YesBid: 20}},
		},
	}

	got := kalshi.Canonicalize(events)
	if len(got) != 2 {
		t.Fatalf("got %d instruments, want 2: %+v", len(got), got)
	}

	fed := got[0]
	if fed.ID != "FED-25JUN-T4.50" || fed.Title != "Fed cuts rates in June" || fed.YesPrice != 44 {
		t.Errorf("fed = %+v", fed)
	}
	if fed.Venue != domain.VenueKalshi || fed.Volume != 900 || fed.Volume24h != 50 || fed.EventTicker != "FED-25JUN" {
		t.Errorf("fed = %+v", fed)
	}

	btc := got[1]
	if btc.Title != "BTC above 100k" || btc.YesPrice != 0 {
		t.Errorf("btc = %+v", btc)
	}
}

func TestFeedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trade-api/v2/events" {
			t.Errorf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "100" || q.Get("status") != "open" || q.Get("with_nested_markets") != "true" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("KALSHI-ACCESS-KEY") != "" {
			t.Error("public call was signed")
		}
		_, _ = w.Write([]byte(`{"events":[{"event_ticker":"E","title":"Event","markets":[{"ticker":"E-1","volume":12,"yes_bid":61}]}],"cursor":""}`))
	}))
	defer srv.Close()

	feed := kalshi.NewFeed(kalshi.NewClient(srv.URL+"/trade-api/v2", "", time.Second), 0)
	if feed.Venue() != domain.VenueKalshi {
		t.Fatalf("venue = %s", feed.Venue())
	}
	got, err := feed.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "E-1" || got[0].YesPrice != 61 {
		t.Fatalf("got %+v", got)
	}
}

func TestStatusMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"not_found","message":"market not found"}`))
	}))
	defer srv.Close()

	_, err := kalshi.NewClient(srv.URL, "", time.Second).GetMarket(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestSignedPortfolioCalls(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, _ := x509.MarshalPKCS8PrivateKey(key)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get("KALSHI-ACCESS-SIGNATURE"))
		if err != nil || r.Header.Get("KALSHI-ACCESS-KEY") != "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		hash := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
		if err := rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, hash[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash}); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/trade-api/v2/portfolio/positions":
			_, _ = w.Write([]byte(`{"market_positions":[{"ticker":"A","position":-4,"total_traded":200,"market_exposure":55}]}`))
		case "/trade-api/v2/portfolio/balance":
			_, _ = w.Write([]byte(`{"balance":12345}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := kalshi.NewClient(srv.URL+"/trade-api/v2", "key-1", time.Second)
	if _, err := c.GetBalance(context.Background()); !errors.Is(err, domain.ErrNotConfigured) {
		t.Fatalf("unsigned balance err = %v", err)
	}
	if err := c.SetRSAPrivateKey(pemBytes); err != nil {
		t.Fatal(err)
	}

	pos, err := c.GetPositions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pos) != 1 || pos[0].Position != -4 || pos[0].MarketExposure != 55 {
		t.Fatalf("positions = %+v", pos)
	}
	bal, err := c.GetBalance(context.Background())
	if err != nil || bal != 12345 {
		t.Fatalf("balance = %d, %v", bal, err)
	}
}

func TestSetRSAPrivateKeyPKCS1(t *testing.T) {
	key, _ := rsa.GenerateKey(rand.Reader, 2048)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	c := kalshi.NewClient("", "id", 0)
	if err := c.SetRSAPrivateKey(pemBytes); err != nil {
		t.Fatal(err)
	}
	if !c.Authenticated() {
		t.Fatal("client not authenticated")
	}
	if err := c.SetRSAPrivateKey([]byte("garbage")); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}
