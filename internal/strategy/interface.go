package strategy

import (
	"errors"
	"time"

	"bondora_go/internal/domain"
)

// LoanStrategy evaluates a secondary-market listing.
// It is called synchronously by the Router and must not mutate the snapshot.
type LoanStrategy interface {
	ID() domain.StrategyID
	// Evaluate returns the verdict for s at time now. It never panics on malformed input;
	// missing fields yield an ineligible verdict whose Reason names the field.
	Evaluate(s *domain.LoanSnapshot, now time.Time) domain.Verdict
}

// Condition is one named sub-predicate of a rule.
// Test returns a *domain.FieldError when a field it depends on is absent or unusable.
type Condition struct {
	Name string
	Test func(s *domain.LoanSnapshot, now time.Time) (bool, error)
}

// Rule is a conjunction of conditions, checked in declaration order.
type Rule []Condition

// Check reports whether every condition holds. On failure it returns the name of the first
// condition that did not hold and, if the failure came from bad input, the field error.
func (r Rule) Check(s *domain.LoanSnapshot, now time.Time) (ok bool, failed string, err error) {
	if s == nil {
		return false, "snapshot", domain.MissingField("Payload")
	}
	for _, c := range r {
		held, cerr := c.Test(s, now)
		if cerr != nil {
			return false, c.Name, cerr
		}
		if !held {
			return false, c.Name, nil
		}
	}
	return true, "", nil
}

// reject builds an ineligible verdict, folding a field error into the reason.
func reject(id domain.StrategyID, failed string, err error) domain.Verdict {
	v := domain.Verdict{Strategy: id, Reason: failed}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		v.Reason = failed + ": " + fe.Error()
		v.Malformed = true
	}
	return v
}
