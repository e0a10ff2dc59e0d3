package strategy

import (
	"time"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

// GreenConfig holds the thresholds for buying performing loans before their first payment.
type GreenConfig struct {
	Enabled              bool            `yaml:"enabled"`
	MaxDiscountRate      decimal.Decimal `yaml:"max_discount_rate"`
	StatusCode           int             `yaml:"status_code"`
	MaxPrice             decimal.Decimal `yaml:"max_price"`
	MinInterest          decimal.Decimal `yaml:"min_interest"`
	MinScheduledPayments int             `yaml:"min_scheduled_payments"`
	MinDaysToNextPayment int             `yaml:"min_days_to_next_payment"`
}

// DefaultGreenConfig returns the thresholds the strategy was tuned with.
func DefaultGreenConfig() GreenConfig {
	return GreenConfig{
		Enabled:              true,
		MaxDiscountRate:      decimal.Zero,
		StatusCode:           domain.LoanStatusCurrent,
		MaxPrice:             decimal.NewFromInt(5),
		MinInterest:          decimal.NewFromInt(18),
		MinScheduledPayments: 36,
		MinDaysToNextPayment: 7,
	}
}

// GreenLoanStrategy buys current, never-late loan parts at or above par
// while the first payment is still ahead.
type GreenLoanStrategy struct {
	enabled bool
	rule    Rule
}

// NewGreenLoanStrategy creates a new instance.
func NewGreenLoanStrategy(cfg GreenConfig) *GreenLoanStrategy {
	return &GreenLoanStrategy{
		enabled: cfg.Enabled,
		rule:    GreenRule(cfg),
	}
}

// GreenRule lists the green-loan conditions in evaluation order.
func GreenRule(cfg GreenConfig) Rule {
	return Rule{
		NextPaymentNrIs(1),
		DiscountAtMost(cfg.MaxDiscountRate),
		StatusCodeIs(cfg.StatusCode),
		NotRescheduled(),
		NoDebt(),
		NoSecondaryDebt(),
		NoLateAmount(),
		PriceAtMost(cfg.MaxPrice),
		InterestAbove(cfg.MinInterest),
		ScheduledPaymentsAbove(cfg.MinScheduledPayments),
		NextPaymentAfterDays(cfg.MinDaysToNextPayment),
	}
}

func (g *GreenLoanStrategy) ID() domain.StrategyID {
	return domain.StrategyGreenBuy
}

// Evaluate implements LoanStrategy.
func (g *GreenLoanStrategy) Evaluate(s *domain.LoanSnapshot, now time.Time) domain.Verdict {
	if !g.enabled {
		return domain.Verdict{Strategy: g.ID(), Reason: "disabled"}
	}
	ok, failed, err := g.rule.Check(s, now)
	if !ok {
		return reject(g.ID(), failed, err)
	}
	if s.ID == "" {
		return reject(g.ID(), "target", domain.MissingField("Id"))
	}
	return domain.Verdict{Eligible: true, Strategy: g.ID(), TargetIDs: []string{s.ID}}
}
