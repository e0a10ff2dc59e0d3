package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/infra/bondora"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
)

const maxEventBytes = 1 << 20

// RateLimitSource lists the cool-downs currently in force.
type RateLimitSource interface {
	Snapshot() []domain.RateLimitEntry
}

// FetchTracker reports when a read operation last returned data.
type FetchTracker interface {
	LastFetch(op string) (time.Time, bool)
}

// WebhookServer receives pushed marketplace events and serves health and metrics.
type WebhookServer struct {
	addr    string
	sink    Sink
	metrics *infra.Metrics
	limits  RateLimitSource
	fetches FetchTracker
	logger  *slog.Logger
	router  *chi.Mux
}

// WebhookOption configures a WebhookServer.
type WebhookOption func(*WebhookServer)

// WithRateLimits exposes active cool-downs on /ratelimits.
func WithRateLimits(src RateLimitSource) WebhookOption {
	return func(s *WebhookServer) { s.limits = src }
}

// WithFetchTracker adds the last successful read times to /healthz.
func WithFetchTracker(t FetchTracker) WebhookOption {
	return func(s *WebhookServer) { s.fetches = t }
}

// NewWebhookServer creates the HTTP endpoint. metrics may be nil.
func NewWebhookServer(addr string, sink Sink, metrics *infra.Metrics, opts ...WebhookOption) *WebhookServer {
	s := &WebhookServer{
		addr:    addr,
		sink:    sink,
		metrics: metrics,
		logger:  slog.Default().With("module", "feed_webhook"),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Post("/events", s.handleEvent)
	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/ratelimits", s.handleRateLimits)

	s.router = r
	return s
}

// Handler exposes the routes (tests, embedding).
func (s *WebhookServer) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *WebhookServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Webhook server listening", slog.String("addr", s.addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *WebhookServer) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	ev, err := bondora.DecodeEvent(body)
	if err != nil {
		s.logger.Warn("Rejected webhook payload", slog.Any("error", err))
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}

	if !s.sink(ev) {
		http.Error(w, "inbox full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type healthResponse struct {
	Status    string               `json:"status"`
	LastFetch map[string]time.Time `json:"last_fetch,omitempty"`
}

func (s *WebhookServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.fetches != nil {
		for _, op := range []string{domain.OpGetInvestments, domain.OpGetSecondaryMarket} {
			if t, ok := s.fetches.LastFetch(op); ok {
				if resp.LastFetch == nil {
					resp.LastFetch = make(map[string]time.Time)
				}
				resp.LastFetch[op] = t
			}
		}
	}
	writeJSON(w, resp)
}

type rateLimitView struct {
	Operation string    `json:"operation"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *WebhookServer) handleRateLimits(w http.ResponseWriter, r *http.Request) {
	out := []rateLimitView{}
	if s.limits != nil {
		for _, e := range s.limits.Snapshot() {
			out = append(out, rateLimitView{Operation: e.Operation, ExpiresAt: e.ExpiresAt()})
		}
	}
	writeJSON(w, out)
}

func (s *WebhookServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.metrics.Snapshot())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", slog.Any("error", err))
	}
}
