package strategy

import (
	"time"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

// RedConfig holds the thresholds for buying defaulted loans.
type RedConfig struct {
	Enabled  bool            `yaml:"enabled"`
	MaxPrice decimal.Decimal `yaml:"max_price"`

	// Branch A: deep discount
	DeepDiscountRate decimal.Decimal `yaml:"deep_discount_rate"`

	// Branch B: recovering defaulter
	RecoveryDiscountRate decimal.Decimal `yaml:"recovery_discount_rate"`
	MinDaysSinceDefault  int             `yaml:"min_days_since_default"`
	TransferWindowDays   int             `yaml:"transfer_window_days"`
	RecentTransferCount  int             `yaml:"recent_transfer_count"`
	DebtEventIndex       int             `yaml:"debt_event_index"`
	MinAnnualYield       decimal.Decimal `yaml:"min_annual_yield"`
}

// DefaultRedConfig returns the thresholds the strategy was tuned with.
func DefaultRedConfig() RedConfig {
	return RedConfig{
		Enabled:              true,
		MaxPrice:             decimal.NewFromInt(5),
		DeepDiscountRate:     decimal.NewFromInt(-94),
		RecoveryDiscountRate: decimal.NewFromInt(-69),
		MinDaysSinceDefault:  90,
		TransferWindowDays:   90,
		RecentTransferCount:  3,
		DebtEventIndex:       1, // entry 0 is the opening collections record
		MinAnnualYield:       decimal.NewFromFloat(0.19),
	}
}

// RedLoanStrategy buys defaulted loan parts, either at a deep discount or
// when the borrower has resumed paying.
type RedLoanStrategy struct {
	enabled      bool
	deepDiscount Rule
	recovering   Rule
}

// NewRedLoanStrategy creates a new instance.
func NewRedLoanStrategy(cfg RedConfig) *RedLoanStrategy {
	return &RedLoanStrategy{
		enabled:      cfg.Enabled,
		deepDiscount: DeepDiscountRule(cfg),
		recovering:   RecoveringDefaulterRule(cfg),
	}
}

// DeepDiscountRule is branch A.
func DeepDiscountRule(cfg RedConfig) Rule {
	return Rule{
		DiscountAtMost(cfg.DeepDiscountRate),
		PriceAtMost(cfg.MaxPrice),
	}
}

// RecoveringDefaulterRule is branch B. Its first condition excludes every snapshot branch A
// could accept on discount alone.
func RecoveringDefaulterRule(cfg RedConfig) Rule {
	return Rule{
		DiscountAbove(cfg.DeepDiscountRate),
		DiscountAtMost(cfg.RecoveryDiscountRate),
		DefaultedMoreThanDays(cfg.MinDaysSinceDefault),
		DebtEventBeforeLastTransfer(cfg.DebtEventIndex),
		RecentTransfers(cfg.RecentTransferCount, cfg.TransferWindowDays),
		TransferYieldAbove(cfg.RecentTransferCount, cfg.MinAnnualYield),
		PriceAtMost(cfg.MaxPrice),
	}
}

func (r *RedLoanStrategy) ID() domain.StrategyID {
	return domain.StrategyRedBuy
}

// Evaluate implements LoanStrategy. Branch A short-circuits branch B.
func (r *RedLoanStrategy) Evaluate(s *domain.LoanSnapshot, now time.Time) domain.Verdict {
	if !r.enabled {
		return domain.Verdict{Strategy: r.ID(), Reason: "disabled"}
	}

	okA, failedA, errA := r.deepDiscount.Check(s, now)
	switch {
	case errA != nil:
		return reject(r.ID(), failedA, errA)
	case !okA:
		if okB, failedB, errB := r.recovering.Check(s, now); !okB {
			return reject(r.ID(), failedB, errB)
		}
	}

	if s.ID == "" {
		return reject(r.ID(), "target", domain.MissingField("Id"))
	}
	return domain.Verdict{Eligible: true, Strategy: r.ID(), TargetIDs: []string{s.ID}}
}
