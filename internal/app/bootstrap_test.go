package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"bondora_go/internal/domain"
)

type fakeAPI struct {
	mu    sync.Mutex
	posts map[string][]string
}

func (f *fakeAPI) handler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.posts[r.URL.Path] = append(f.posts[r.URL.Path], string(body))
		f.mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
		return
	}

	switch r.URL.Path {
	case "/api/v1/account/investments":
		next := time.Now().AddDate(0, 0, 30).Format("2006-01-02T00:00:00")
		fmt.Fprintf(w, `{"Success":true,"Payload":[{"LoanPartId":"p1","NextPaymentDate":%q}]}`, next)
	case "/api/v1/secondarymarket":
		if r.URL.Query().Get("ShowMyItems") != "true" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"Success":true,"Payload":[{"Id":"sm-1"},{"Id":"sm-2"}]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T) (*Bootstrap, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{posts: make(map[string][]string)}
	srv := httptest.NewServer(http.HandlerFunc(api.handler))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := fmt.Sprintf(`
api:
  base_url: %s
  token: test-token
  requests_per_second: 100
  burst: 10
scans:
  sell:
    enabled: true
    interval_sec: 60
    max_price: 10
    min_price: 5
storage:
  enabled: true
  path: %s
logging:
  level: error
  dir: %s
`, srv.URL, filepath.Join(dir, "data", "test.db"), filepath.Join(dir, "logs"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("BONDORA_API_TOKEN", "")
	t.Setenv("BONDORA_API_URL", "")

	b := NewBootstrap()
	if err := b.Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(b.Close)
	return b, api
}

func TestBootstrap_Initialize(t *testing.T) {
	b, _ := setup(t)

	if b.Storage == nil {
		t.Error("Expected storage to be initialized")
	}
	if b.Router == nil || b.Scanner == nil || b.Coordinator == nil {
		t.Fatal("Expected components to be wired")
	}
}

func TestBootstrap_SellScan(t *testing.T) {
	b, api := setup(t)

	res := b.Scanner.RunSellScan(context.Background())
	if res.Outcome != domain.OutcomeSubmitted {
		t.Fatalf("Expected submitted, got %s", res.Outcome)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	bodies := api.posts["/api/v1/secondarymarket/sell"]
	if len(bodies) != 1 || !strings.Contains(bodies[0], `"LoanPartId":"p1"`) {
		t.Errorf("Unexpected sell requests: %v", bodies)
	}
}

func TestBootstrap_CancelScan(t *testing.T) {
	b, api := setup(t)

	res := b.Scanner.RunCancelScan(context.Background())
	if res.Outcome != domain.OutcomeSubmitted {
		t.Fatalf("Expected submitted, got %s", res.Outcome)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	bodies := api.posts["/api/v1/secondarymarket/cancelmultiple"]
	if len(bodies) != 1 || !strings.Contains(bodies[0], `"sm-1","sm-2"`) {
		t.Errorf("Unexpected cancel requests: %v", bodies)
	}
}

func TestBootstrap_RateLimitSurvivesRestart(t *testing.T) {
	b, _ := setup(t)
	b.Ledger.Record(domain.OpSell, time.Hour)
	path := b.Config.Storage.Path
	b.Close()

	b2 := NewBootstrap()
	cfgPath := filepath.Join(filepath.Dir(filepath.Dir(path)), "config.yaml")
	if err := b2.Initialize(cfgPath); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer b2.Close()

	if !b2.Ledger.IsBlocked(domain.OpSell) {
		t.Error("Expected sell to stay blocked after restart")
	}
}

func TestBootstrap_Run(t *testing.T) {
	b, _ := setup(t)
	b.Config.Scans.Sell.Enabled = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	if !b.Router.Submit(domain.MarketEvent{Type: "unknown"}) {
		t.Error("Expected event to be accepted")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
