package app

import (
	"context"
	"log/slog"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/engine"
	"bondora_go/internal/execution"
	"bondora_go/internal/infra"
	"bondora_go/internal/infra/bondora"
	"bondora_go/internal/infra/feed"
	"bondora_go/internal/infra/storage"
	"bondora_go/internal/pricing"
	"bondora_go/internal/ratelimit"
	"bondora_go/internal/service"
	"bondora_go/internal/strategy"

	"github.com/sourcegraph/conc"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config      *infra.Config
	Storage     *storage.Storage // nil when persistence is disabled
	Metrics     *infra.Metrics
	Ledger      *ratelimit.Ledger
	Client      *bondora.Client
	Coordinator *execution.Coordinator
	Snapshots   *service.SnapshotService
	Router      *engine.Router
	Scanner     *engine.Scanner
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires every component.
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping Bondora Trader...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Rate-limit ledger, optionally backed by SQLite
	var ledgerOpts []ratelimit.Option
	if cfg.Storage.Enabled {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		ledgerOpts = append(ledgerOpts, ratelimit.WithStore(store))
		if n, err := store.PurgeExpired(time.Now()); err != nil {
			slog.Warn("Failed to purge expired rate limits", slog.Any("error", err))
		} else if n > 0 {
			slog.Info("Purged expired rate limits", slog.Int64("count", n))
		}
		slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))
	}
	b.Ledger = ratelimit.NewLedger(ledgerOpts...)
	if err := b.Ledger.Restore(); err != nil {
		slog.Warn("Failed to restore rate limits", slog.Any("error", err))
	}

	// 4. API client and order path
	b.Metrics = infra.NewMetrics()
	b.Client = bondora.NewClient(cfg)
	b.Coordinator = execution.NewCoordinator(b.Client, b.Ledger, b.Metrics, execution.Config{
		DefaultRetryAfter: cfg.DefaultRetryAfter(),
		RetryDelay:        time.Duration(cfg.Scans.Sell.RetryDelaySec) * time.Second,
	})
	b.Snapshots = service.NewSnapshotService(b.Client, b.Ledger, b.Metrics)

	// 5. Router and scans
	b.Router = engine.NewRouter(cfg.App.InboxSize, b.Coordinator, engine.Strategies{
		Auction: strategy.NewAuctionBidStrategy(cfg.Strategies.Auction),
		Green:   strategy.NewGreenLoanStrategy(cfg.Strategies.Green),
		Red:     strategy.NewRedLoanStrategy(cfg.Strategies.Red),
	}, b.Metrics)

	sell := cfg.Scans.Sell
	b.Scanner = engine.NewScanner(b.Snapshots, b.Coordinator, engine.SellScan{
		Filter:            domain.Filter(sell.Filter),
		Band:              pricing.NewBand(sell.MaxPrice, sell.MinPrice),
		DaysBeforePayment: sell.DaysBeforePayment,
		Retry:             sell.Retry,
	}, domain.Filter(cfg.Scans.Cancel.Filter))

	slog.Info("✅ Components wired",
		slog.Bool("auction", cfg.Strategies.Auction.Enabled),
		slog.Bool("green", cfg.Strategies.Green.Enabled),
		slog.Bool("red", cfg.Strategies.Red.Enabled),
		slog.Bool("sell_scan", sell.Enabled),
		slog.Bool("cancel_scan", cfg.Scans.Cancel.Enabled),
	)
	return nil
}

// Run starts the router, the enabled scans and the event feeds, and blocks until ctx is done.
func (b *Bootstrap) Run(ctx context.Context) {
	cfg := b.Config
	var wg conc.WaitGroup

	// The Hotpath Loop
	wg.Go(func() { b.Router.Run(ctx) })

	if s := cfg.Scans.Sell; s.Enabled {
		wg.Go(func() {
			engine.RunSchedule(ctx, engine.Schedule{
				Name:         "sell_scan",
				InitialDelay: time.Duration(s.InitialDelaySec) * time.Second,
				Interval:     time.Duration(s.IntervalSec) * time.Second,
				Run:          func(ctx context.Context) { b.Scanner.RunSellScan(ctx) },
			})
		})
	}
	if s := cfg.Scans.Cancel; s.Enabled {
		wg.Go(func() {
			engine.RunSchedule(ctx, engine.Schedule{
				Name:         "cancel_scan",
				InitialDelay: time.Duration(s.InitialDelaySec) * time.Second,
				Interval:     time.Duration(s.IntervalSec) * time.Second,
				Run:          func(ctx context.Context) { b.Scanner.RunCancelScan(ctx) },
			})
		})
	}

	if cfg.Feed.WebhookAddr != "" {
		webhook := feed.NewWebhookServer(cfg.Feed.WebhookAddr, b.Router.Submit, b.Metrics,
			feed.WithRateLimits(b.Ledger),
			feed.WithFetchTracker(b.Snapshots),
		)
		wg.Go(func() {
			if err := webhook.Start(ctx); err != nil {
				slog.Error("Webhook server failed", slog.Any("error", err))
			}
		})
	}

	if cfg.Feed.WSURL != "" {
		worker := feed.NewWorker(cfg.Feed.WSURL, cfg.API.Token, b.Router.Submit, b.Metrics).
			WithMaxBackoff(time.Duration(cfg.Feed.MaxBackoffMS) * time.Millisecond)
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to connect event feed", slog.Any("error", err))
		}
		wg.Go(func() {
			<-ctx.Done()
			worker.Disconnect()
		})
	}

	slog.InfoContext(ctx, "✨ Bondora Trader fully operational. Press Ctrl+C to exit.")

	if r := wg.WaitAndRecover(); r != nil {
		slog.Error("CRITICAL_PANIC_DETECTED", slog.String("panic", r.String()))
	}
}

// Close releases resources opened by Initialize.
func (b *Bootstrap) Close() {
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Warn("Failed to close database", slog.Any("error", err))
		}
		b.Storage = nil
	}
}
