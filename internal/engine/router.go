package engine

import (
	"context"
	"log/slog"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/strategy"

	"github.com/google/uuid"
)

// Executor submits orders for eligible verdicts.
type Executor interface {
	Execute(ctx context.Context, v domain.Verdict) domain.OrderResult
}

// Action is one order the router issued while handling an event.
type Action struct {
	Verdict domain.Verdict
	Result  domain.OrderResult
}

// Strategies are the per-event rules. A nil entry disables its handler.
type Strategies struct {
	Auction *strategy.AuctionBidStrategy
	Green   strategy.LoanStrategy
	Red     strategy.LoanStrategy
}

type handler struct {
	name   string
	handle func(ctx context.Context, log *slog.Logger, ev domain.MarketEvent) *Action
}

// Router is the single-threaded event processor.
// Events are handled one at a time to completion, in arrival order.
type Router struct {
	inbox    chan domain.MarketEvent
	handlers map[domain.EventType][]handler
	exec     Executor
	metrics  *infra.Metrics
	now      func() time.Time
	logger   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterClock replaces time.Now (tests).
func WithRouterClock(now func() time.Time) RouterOption {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a router with a buffered inbox. metrics may be nil.
func NewRouter(inboxSize int, exec Executor, strategies Strategies, metrics *infra.Metrics, opts ...RouterOption) *Router {
	r := &Router{
		inbox:    make(chan domain.MarketEvent, inboxSize),
		handlers: make(map[domain.EventType][]handler),
		exec:     exec,
		metrics:  metrics,
		now:      time.Now,
		logger:   slog.Default().With("module", "router"),
	}
	for _, opt := range opts {
		opt(r)
	}

	if strategies.Auction != nil {
		r.handlers[domain.EventAuctionPublished] = []handler{r.auctionHandler(strategies.Auction)}
	}

	var loanHandlers []handler
	for _, s := range []strategy.LoanStrategy{strategies.Green, strategies.Red} {
		if s != nil {
			loanHandlers = append(loanHandlers, r.loanHandler(s))
		}
	}
	if len(loanHandlers) > 0 {
		r.handlers[domain.EventSecondMarketPublished] = loanHandlers
		r.handlers[domain.EventSecondMarketUpdated] = loanHandlers
	}

	return r
}

// Inbox returns the event channel. External workers send events here.
func (r *Router) Inbox() chan<- domain.MarketEvent {
	return r.inbox
}

// Submit enqueues ev without blocking. It reports false when the inbox is full.
func (r *Router) Submit(ev domain.MarketEvent) bool {
	select {
	case r.inbox <- ev:
		return true
	default:
		r.logger.Warn("Inbox full, dropping event", slog.String("event_type", string(ev.Type)))
		return false
	}
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (r *Router) Run(ctx context.Context) {
	r.logger.Info("Router started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Router stopping...")
			return
		case ev := <-r.inbox:
			r.Route(ctx, ev)
		}
	}
}

// Route dispatches ev to its handlers and returns the orders they issued.
// Unknown types and absent payloads are a no-op.
func (r *Router) Route(ctx context.Context, ev domain.MarketEvent) []Action {
	log := r.logger.With(
		slog.String("cycle", uuid.NewString()),
		slog.String("event_type", string(ev.Type)),
	)

	handlers, ok := r.handlers[ev.Type]
	if !ok {
		log.Debug("Ignoring event")
		r.metrics.RecordIgnored()
		return nil
	}
	if payloadMissing(ev) {
		log.Warn("Event has no payload, ignoring")
		r.metrics.RecordIgnored()
		return nil
	}

	r.metrics.RecordEvent()

	var actions []Action
	for _, h := range handlers {
		if a := r.dispatch(ctx, log, h, ev); a != nil {
			actions = append(actions, *a)
		}
	}
	return actions
}

func (r *Router) dispatch(ctx context.Context, log *slog.Logger, h handler, ev domain.MarketEvent) (action *Action) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("HANDLER_PANIC_RECOVERED", slog.String("handler", h.name), slog.Any("panic", rec))
			action = nil
		}
	}()
	return h.handle(ctx, log, ev)
}

func payloadMissing(ev domain.MarketEvent) bool {
	if ev.Type == domain.EventAuctionPublished {
		return ev.Auction == nil
	}
	return ev.Loan == nil
}

func (r *Router) auctionHandler(s *strategy.AuctionBidStrategy) handler {
	return handler{
		name: string(s.ID()),
		handle: func(ctx context.Context, log *slog.Logger, ev domain.MarketEvent) *Action {
			log = log.With(
				slog.String("auction_id", ev.Auction.AuctionID),
				slog.String("loan_id", ev.Auction.LoanID),
			)
			return r.act(ctx, log, s.Evaluate(ev.Auction))
		},
	}
}

func (r *Router) loanHandler(s strategy.LoanStrategy) handler {
	return handler{
		name: string(s.ID()),
		handle: func(ctx context.Context, log *slog.Logger, ev domain.MarketEvent) *Action {
			log = log.With(slog.String("item_id", ev.Loan.ID))
			return r.act(ctx, log, s.Evaluate(ev.Loan, r.now()))
		},
	}
}

func (r *Router) act(ctx context.Context, log *slog.Logger, v domain.Verdict) *Action {
	r.metrics.RecordVerdict(v.Eligible, v.Malformed)
	log = log.With(slog.String("strategy", string(v.Strategy)))

	switch {
	case v.Malformed:
		log.Warn("Snapshot rejected", slog.String("reason", v.Reason))
		return nil
	case !v.Eligible:
		log.Info("Not eligible", slog.String("reason", v.Reason))
		return nil
	}

	log.Info("Eligible, submitting order", slog.Any("targets", v.TargetIDs))
	return &Action{Verdict: v, Result: r.exec.Execute(ctx, v)}
}
