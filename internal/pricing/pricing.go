// Package pricing computes asking prices for loan parts offered on the secondary market.
//
// Prices decay linearly, one unit per day, from Max toward Min as the next payment
// date approaches the sell cutoff (today + DaysBeforePayment).
package pricing

import (
	"time"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

// Band bounds the asking price. An invalid Min means "always ask Max".
type Band struct {
	Max decimal.Decimal
	Min decimal.NullDecimal
}

// NewBand creates a band; pass nil min for a flat price.
func NewBand(max decimal.Decimal, min *decimal.Decimal) Band {
	b := Band{Max: max}
	if min != nil {
		b.Min = decimal.NewNullDecimal(*min)
	}
	return b
}

// Quote prices one loan part.
// With a floor set, price = Min + days(nextPaymentDate - (today + daysBeforePayment)), clamped to [Min, Max].
func Quote(s *domain.LoanSnapshot, band Band, daysBeforePayment int, today time.Time) (domain.PriceQuote, error) {
	if s == nil {
		return domain.PriceQuote{}, domain.MissingField("Payload")
	}
	if s.LoanPartID == "" {
		return domain.PriceQuote{}, domain.MissingField("LoanPartId")
	}
	if !band.Min.Valid {
		return domain.PriceQuote{LoanPartID: s.LoanPartID, Price: band.Max}, nil
	}
	if s.NextPaymentDate == nil {
		return domain.PriceQuote{}, domain.MissingField("NextPaymentDate")
	}

	cutoff := domain.CalendarDay(today).AddDate(0, 0, daysBeforePayment)
	days := domain.DaysBetween(cutoff, *s.NextPaymentDate)
	price := band.Min.Decimal.Add(decimal.NewFromInt(int64(days)))

	return domain.PriceQuote{LoanPartID: s.LoanPartID, Price: clamp(price, band.Min.Decimal, band.Max)}, nil
}

// QuoteAll prices each part independently. Parts that cannot be priced are returned in skipped
// together with the reason; they do not affect the others.
func QuoteAll(parts []domain.LoanSnapshot, band Band, daysBeforePayment int, today time.Time) (quotes []domain.PriceQuote, skipped map[string]error) {
	for i := range parts {
		q, err := Quote(&parts[i], band, daysBeforePayment, today)
		if err != nil {
			if skipped == nil {
				skipped = make(map[string]error)
			}
			key := parts[i].LoanPartID
			if key == "" {
				key = parts[i].ID
			}
			skipped[key] = err
			continue
		}
		quotes = append(quotes, q)
	}
	return quotes, skipped
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(hi) {
		return hi
	}
	if v.LessThan(lo) {
		return lo
	}
	return v
}
