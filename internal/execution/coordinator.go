// Package execution turns eligible verdicts into marketplace orders.
//
// The Coordinator owns the submission discipline: it consults the rate-limit
// ledger before every call, records cool-downs the server signals, and retries
// a rejected sell batch once.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bondora_go/internal/domain"
	"bondora_go/internal/infra"
	"bondora_go/internal/pricing"
	"bondora_go/internal/ratelimit"

)

const (
	DefaultRetryAfter = ratelimit.DefaultCooldown
	DefaultRetryDelay = 60 * time.Second
)

// Config holds the submission policy.
type Config struct {
	DefaultRetryAfter time.Duration // used when a 429 carries no Retry-After
	RetryDelay        time.Duration // wait before resubmitting a rejected sell batch
}

// SellTerms are the pricing inputs for one sell batch.
type SellTerms struct {
	Band              pricing.Band
	DaysBeforePayment int
	Today             time.Time
}

// Coordinator submits orders through a MarketWriter.
type Coordinator struct {
	writer  domain.MarketWriter
	ledger  *ratelimit.Ledger
	metrics *infra.Metrics
	cfg     Config
	wait    func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithWait replaces the retry timer (tests).
func WithWait(wait func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) { c.wait = wait }
}

// NewCoordinator creates a coordinator. metrics may be nil.
func NewCoordinator(writer domain.MarketWriter, ledger *ratelimit.Ledger, metrics *infra.Metrics, cfg Config, opts ...Option) *Coordinator {
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = DefaultRetryAfter
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	c := &Coordinator{
		writer:  writer,
		ledger:  ledger,
		metrics: metrics,
		cfg:     cfg,
		wait:    sleepCtx,
		logger:  slog.Default().With("module", "execution"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute submits a buy or bid verdict. Ineligible verdicts are a no-op.
func (c *Coordinator) Execute(ctx context.Context, v domain.Verdict) domain.OrderResult {
	if !v.Eligible {
		return domain.OrderResult{Outcome: domain.OutcomeNothingToDo}
	}

	ids := v.TargetIDs
	op := v.Strategy.Operation()

	var call func(context.Context) (domain.SubmitResponse, error)
	switch op {
	case domain.OpBid:
		amount := v.Amount
		if !amount.IsPositive() {
			c.logger.Error("Bid verdict without a positive amount", slog.String("amount", amount.String()))
			return domain.OrderResult{Outcome: domain.OutcomeFailed}
		}
		call = func(ctx context.Context) (domain.SubmitResponse, error) {
			return c.writer.Bid(ctx, ids, amount)
		}
	case domain.OpBuy:
		call = func(ctx context.Context) (domain.SubmitResponse, error) {
			return c.writer.Buy(ctx, ids)
		}
	default:
		c.logger.Error("Verdict has no order path", slog.String("strategy", string(v.Strategy)))
		return domain.OrderResult{Outcome: domain.OutcomeFailed}
	}

	return c.submit(ctx, op, string(v.Strategy), len(ids), call, false)
}

// Sell prices the candidates and offers them on the secondary market.
// Parts that cannot be priced are skipped; the rest are submitted as one batch.
func (c *Coordinator) Sell(ctx context.Context, candidates []domain.LoanSnapshot, terms SellTerms, retry bool) domain.OrderResult {
	quotes, skipped := pricing.QuoteAll(candidates, terms.Band, terms.DaysBeforePayment, terms.Today)
	for id, err := range skipped {
		c.logger.Warn("Loan part skipped", slog.String("loan_part_id", id), slog.Any("error", err))
	}

	call := func(ctx context.Context) (domain.SubmitResponse, error) {
		return c.writer.Sell(ctx, quotes)
	}
	return c.submit(ctx, domain.OpSell, string(domain.StrategySell), len(quotes), call, retry)
}

// Cancel withdraws the given secondary-market offers.
func (c *Coordinator) Cancel(ctx context.Context, ids []string) domain.OrderResult {
	call := func(ctx context.Context) (domain.SubmitResponse, error) {
		return c.writer.Cancel(ctx, ids)
	}
	return c.submit(ctx, domain.OpCancel, string(domain.StrategyCancel), len(ids), call, false)
}

func (c *Coordinator) submit(ctx context.Context, op, strategy string, count int, call func(context.Context) (domain.SubmitResponse, error), retry bool) domain.OrderResult {
	log := c.logger.With(slog.String("operation", op), slog.String("strategy", strategy))
	var res domain.OrderResult

	if count == 0 {
		log.Info("No loans to submit")
		res.Outcome = domain.OutcomeNothingToDo
		return res
	}

	maxAttempts := 1
	if retry {
		maxAttempts = 2
	}

	for {
		if remaining := c.ledger.Remaining(op); remaining > 0 {
			log.Warn("Operation is rate limited, skipping", slog.Duration("remaining", remaining))
			c.metrics.RecordRateLimitBlock()
			res.Outcome = domain.OutcomeRateLimited
			return res
		}

		res.Attempts++
		start := time.Now()
		resp, err := call(ctx)
		c.metrics.RecordSubmission(err == nil && resp.IsSuccess(), time.Since(start))

		switch {
		case err != nil:
			log.Error("Order submission failed", slog.Int("attempt", res.Attempts), slog.Any("error", err))
			res.HTTPStatus = 0
			res.Outcome = domain.OutcomeFailed

		case resp.IsSuccess():
			res.Submitted = true
			res.HTTPStatus = resp.StatusCode
			res.AffectedCount = resp.Affected
			if res.AffectedCount == 0 {
				res.AffectedCount = count
			}
			res.Outcome = domain.OutcomeSubmitted
			log.Info(fmt.Sprintf("Order accepted for %s", loanCount(res.AffectedCount)),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempts", res.Attempts),
			)
			return res

		case resp.IsRateLimited():
			retryAfter := resp.RetryAfter
			if retryAfter <= 0 {
				retryAfter = c.cfg.DefaultRetryAfter
			}
			c.ledger.Record(op, retryAfter)
			c.metrics.RecordRateLimitBlock()
			res.HTTPStatus = resp.StatusCode
			res.Outcome = domain.OutcomeRateLimited
			log.Warn("Order rate limited", slog.Duration("retry_after", retryAfter))
			return res

		default:
			res.HTTPStatus = resp.StatusCode
			res.Outcome = domain.OutcomeRejected
			log.Error("Order rejected", slog.Int("status", resp.StatusCode), slog.Int("attempt", res.Attempts))
		}

		if res.Attempts >= maxAttempts {
			return res
		}

		c.metrics.RecordRetry()
		log.Info("Retrying order", slog.Duration("delay", c.cfg.RetryDelay))
		if err := c.wait(ctx, c.cfg.RetryDelay); err != nil {
			log.Warn("Retry abandoned", slog.Any("error", err))
			return res
		}
	}
}

func loanCount(n int) string {
	if n == 1 {
		return "1 loan"
	}
	return fmt.Sprintf("%d loans", n)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
