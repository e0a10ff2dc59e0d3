package strategy

import (
	"fmt"
	"time"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
)

// NextPaymentNrIs holds when the next scheduled payment has number n.
func NextPaymentNrIs(n int) Condition {
	return Condition{
		Name: fmt.Sprintf("next_payment_nr_is_%d", n),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if s.NextPaymentNr == nil {
				return false, domain.MissingField("NextPaymentNr")
			}
			return *s.NextPaymentNr == n, nil
		},
	}
}

// DiscountAtMost holds when the desired discount rate is <= limit.
func DiscountAtMost(limit decimal.Decimal) Condition {
	return Condition{
		Name: "discount_at_most_" + limit.String(),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.DesiredDiscountRate.Valid {
				return false, domain.MissingField("DesiredDiscountRate")
			}
			return s.DesiredDiscountRate.Decimal.LessThanOrEqual(limit), nil
		},
	}
}

// DiscountAbove holds when the desired discount rate is strictly greater than limit.
func DiscountAbove(limit decimal.Decimal) Condition {
	return Condition{
		Name: "discount_above_" + limit.String(),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.DesiredDiscountRate.Valid {
				return false, domain.MissingField("DesiredDiscountRate")
			}
			return s.DesiredDiscountRate.Decimal.GreaterThan(limit), nil
		},
	}
}

// StatusCodeIs holds when the loan status code equals code.
func StatusCodeIs(code int) Condition {
	return Condition{
		Name: fmt.Sprintf("status_code_is_%d", code),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if s.LoanStatusCode == nil {
				return false, domain.MissingField("LoanStatusCode")
			}
			return *s.LoanStatusCode == code, nil
		},
	}
}

// Unset holds when the timestamp returned by get is absent.
func Unset(field string, get func(*domain.LoanSnapshot) *time.Time) Condition {
	return Condition{
		Name: "no_" + field,
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			return get(s) == nil, nil
		},
	}
}

// NotRescheduled holds when the loan was never rescheduled.
func NotRescheduled() Condition {
	return Unset("rescheduled_on", func(s *domain.LoanSnapshot) *time.Time { return s.ReScheduledOn })
}

// NoDebt holds when no primary-market debt occurred.
func NoDebt() Condition {
	return Unset("debt_occured_on", func(s *domain.LoanSnapshot) *time.Time { return s.DebtOccuredOn })
}

// NoSecondaryDebt holds when no debt occurred while listed on the secondary market.
func NoSecondaryDebt() Condition {
	return Unset("debt_occured_on_for_secondary", func(s *domain.LoanSnapshot) *time.Time { return s.DebtOccuredOnForSecondary })
}

// NoLateAmount holds when the late-amount total is exactly zero.
func NoLateAmount() Condition {
	return Condition{
		Name: "no_late_amount",
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.LateAmountTotal.Valid {
				return false, domain.MissingField("LateAmountTotal")
			}
			return s.LateAmountTotal.Decimal.IsZero(), nil
		},
	}
}

// PriceAtMost holds when the listed price is <= ceiling.
func PriceAtMost(ceiling decimal.Decimal) Condition {
	return Condition{
		Name: "price_at_most_" + ceiling.String(),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.Price.Valid {
				return false, domain.MissingField("Price")
			}
			return s.Price.Decimal.LessThanOrEqual(ceiling), nil
		},
	}
}

// InterestAbove holds when the interest rate is strictly greater than floor.
func InterestAbove(floor decimal.Decimal) Condition {
	return Condition{
		Name: "interest_above_" + floor.String(),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.Interest.Valid {
				return false, domain.MissingField("Interest")
			}
			return s.Interest.Decimal.GreaterThan(floor), nil
		},
	}
}

// ScheduledPaymentsAbove holds when the loan has more than n scheduled payments.
func ScheduledPaymentsAbove(n int) Condition {
	return Condition{
		Name: fmt.Sprintf("scheduled_payments_above_%d", n),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if s.NrOfScheduledPayments == nil {
				return false, domain.MissingField("NrOfScheduledPayments")
			}
			return *s.NrOfScheduledPayments > n, nil
		},
	}
}

// NextPaymentAfterDays holds when the next payment date is later than today + days.
func NextPaymentAfterDays(days int) Condition {
	return Condition{
		Name: fmt.Sprintf("next_payment_after_%d_days", days),
		Test: func(s *domain.LoanSnapshot, now time.Time) (bool, error) {
			if s.NextPaymentDate == nil {
				return false, domain.MissingField("NextPaymentDate")
			}
			return domain.DaysBetween(now, *s.NextPaymentDate) > days, nil
		},
	}
}

// DefaultedMoreThanDays holds when the loan's debt occurred before today - days.
func DefaultedMoreThanDays(days int) Condition {
	return Condition{
		Name: fmt.Sprintf("defaulted_more_than_%d_days_ago", days),
		Test: func(s *domain.LoanSnapshot, now time.Time) (bool, error) {
			if s.DebtOccuredOn == nil {
				return false, domain.MissingField("DebtOccuredOn")
			}
			return domain.DaysBetween(*s.DebtOccuredOn, now) > days, nil
		},
	}
}

// DebtEventBeforeLastTransfer holds when debt-management event idx predates the newest transfer.
// A history too short to index is ineligible, not an error.
func DebtEventBeforeLastTransfer(idx int) Condition {
	return Condition{
		Name: "debt_event_before_last_transfer",
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			ev, ok := s.DebtEventAt(idx)
			if !ok {
				return false, nil
			}
			if ev.CreatedOn == nil {
				return false, domain.MissingField("DebtManagementEvents.CreatedOn")
			}
			last, ok := s.TransferFromEnd(1)
			if !ok {
				return false, nil
			}
			if last.Date == nil {
				return false, domain.MissingField("LoanTransfers.Date")
			}
			return domain.CalendarDay(*ev.CreatedOn).Before(domain.CalendarDay(*last.Date)), nil
		},
	}
}

// RecentTransfers holds when each of the count newest transfers happened after today - days.
func RecentTransfers(count, days int) Condition {
	return Condition{
		Name: fmt.Sprintf("last_%d_transfers_within_%d_days", count, days),
		Test: func(s *domain.LoanSnapshot, now time.Time) (bool, error) {
			for n := 1; n <= count; n++ {
				tr, ok := s.TransferFromEnd(n)
				if !ok {
					return false, nil
				}
				if tr.Date == nil {
					return false, domain.MissingField("LoanTransfers.Date")
				}
				if domain.DaysBetween(*tr.Date, now) >= days {
					return false, nil
				}
			}
			return true, nil
		},
	}
}

// TransferYieldAbove holds when the annualized yield of each of the count newest transfers,
// 12 * amount / (principalRemaining * (1 + discount/100)), is strictly greater than min.
func TransferYieldAbove(count int, min decimal.Decimal) Condition {
	return Condition{
		Name: fmt.Sprintf("last_%d_transfer_yields_above_%s", count, min.String()),
		Test: func(s *domain.LoanSnapshot, _ time.Time) (bool, error) {
			if !s.PrincipalRemaining.Valid {
				return false, domain.MissingField("PrincipalRemaining")
			}
			if !s.DesiredDiscountRate.Valid {
				return false, domain.MissingField("DesiredDiscountRate")
			}
			base := s.PrincipalRemaining.Decimal.Mul(decimal.NewFromInt(1).Add(s.DesiredDiscountRate.Decimal.Div(hundred)))
			if !base.IsPositive() {
				return false, &domain.FieldError{Field: "PrincipalRemaining", Err: domain.ErrMalformedField}
			}
			for n := 1; n <= count; n++ {
				tr, ok := s.TransferFromEnd(n)
				if !ok {
					return false, nil
				}
				if !tr.TotalAmount.Valid {
					return false, domain.MissingField("LoanTransfers.TotalAmount")
				}
				if !AnnualizedYield(tr.TotalAmount.Decimal, base).GreaterThan(min) {
					return false, nil
				}
			}
			return true, nil
		},
	}
}

// AnnualizedYield scales a monthly repayment to a yearly rate on the purchase base.
func AnnualizedYield(amount, base decimal.Decimal) decimal.Decimal {
	return twelve.Mul(amount).Div(base)
}
