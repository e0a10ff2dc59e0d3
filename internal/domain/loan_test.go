package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func transfersOn(days ...int) []LoanTransfer {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]LoanTransfer, 0, len(days))
	for _, d := range days {
		date := base.AddDate(0, 0, d)
		out = append(out, LoanTransfer{Date: &date, TotalAmount: decimal.NewNullDecimal(decimal.NewFromInt(1))})
	}
	return out
}

func TestLoanSnapshot_TransferFromEnd(t *testing.T) {
	s := LoanSnapshot{LoanTransfers: transfersOn(0, 10, 20)}

	t.Run("newest", func(t *testing.T) {
		tr, ok := s.TransferFromEnd(1)
		if !ok || tr.Date.Day() != 21 {
			t.Errorf("TransferFromEnd(1) = %v, %v", tr.Date, ok)
		}
	})

	t.Run("oldest", func(t *testing.T) {
		tr, ok := s.TransferFromEnd(3)
		if !ok || tr.Date.Day() != 1 {
			t.Errorf("TransferFromEnd(3) = %v, %v", tr.Date, ok)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		for _, n := range []int{0, 4, -1} {
			if _, ok := s.TransferFromEnd(n); ok {
				t.Errorf("TransferFromEnd(%d) should not be ok", n)
			}
		}
	})

	t.Run("empty history", func(t *testing.T) {
		var empty LoanSnapshot
		if _, ok := empty.TransferFromEnd(1); ok {
			t.Error("empty history should not be ok")
		}
	})
}

func TestLoanSnapshot_DebtEventAt(t *testing.T) {
	s := LoanSnapshot{DebtManagementEvents: []DebtEvent{{EventType: 1}}}

	if _, ok := s.DebtEventAt(0); !ok {
		t.Error("index 0 should exist")
	}
	if _, ok := s.DebtEventAt(1); ok {
		t.Error("index 1 should not exist with a single event")
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)

	if got := DaysBetween(a, b); got != 10 {
		t.Errorf("DaysBetween = %d, want 10", got)
	}
	if got := DaysBetween(b, a); got != -10 {
		t.Errorf("DaysBetween reversed = %d, want -10", got)
	}
}

func TestFilter_With(t *testing.T) {
	base := Filter{"LoanStatusCode": "2"}
	out := base.With("ShowMyItems", "true")

	if out["ShowMyItems"] != "true" || out["LoanStatusCode"] != "2" {
		t.Errorf("unexpected filter %v", out)
	}
	if _, ok := base["ShowMyItems"]; ok {
		t.Error("With must not mutate the receiver")
	}
}
