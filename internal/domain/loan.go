package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanStatusCurrent is the marketplace status code of a loan with no overdue payments.
const LoanStatusCurrent = 2

// DebtEvent is a collections-process milestone recorded for a defaulted loan.
// CreatedOn is nil when the marketplace sent no usable date.
type DebtEvent struct {
	EventType   int        `json:"event_type"`
	Description string     `json:"description"`
	CreatedOn   *time.Time `json:"created_on,omitempty"`
}

// LoanTransfer is a single repayment received on a loan.
type LoanTransfer struct {
	Date        *time.Time          `json:"date,omitempty"`
	TotalAmount decimal.NullDecimal `json:"total_amount"`
}

// LoanSnapshot describes one marketplace listing (or owned investment) at a point in time.
// Optional fields use NullDecimal / pointers so a rule can tell a zero value from a missing one.
// Snapshots are read-only once built.
type LoanSnapshot struct {
	ID         string `json:"id"` // secondary market item id
	LoanID     string `json:"loan_id"`
	LoanPartID string `json:"loan_part_id"`
	Country    string `json:"country"`

	// Pricing
	DesiredDiscountRate decimal.NullDecimal `json:"desired_discount_rate"`
	Price               decimal.NullDecimal `json:"price"`
	PrincipalRemaining  decimal.NullDecimal `json:"principal_remaining"`

	// Status
	LoanStatusCode            *int                `json:"loan_status_code,omitempty"`
	LateAmountTotal           decimal.NullDecimal `json:"late_amount_total"`
	ReScheduledOn             *time.Time          `json:"rescheduled_on,omitempty"`
	DebtOccuredOn             *time.Time          `json:"debt_occured_on,omitempty"`
	DebtOccuredOnForSecondary *time.Time          `json:"debt_occured_on_for_secondary,omitempty"`

	// Schedule
	NextPaymentDate       *time.Time          `json:"next_payment_date,omitempty"`
	NextPaymentNr         *int                `json:"next_payment_nr,omitempty"`
	NrOfScheduledPayments *int                `json:"nr_of_scheduled_payments,omitempty"`
	Interest              decimal.NullDecimal `json:"interest"`

	// History, oldest first
	DebtManagementEvents []DebtEvent    `json:"debt_management_events"`
	LoanTransfers        []LoanTransfer `json:"loan_transfers"`
}

// TransferFromEnd returns the n-th most recent transfer (1 = newest).
// ok is false when the history is shorter than n.
func (s *LoanSnapshot) TransferFromEnd(n int) (LoanTransfer, bool) {
	if n < 1 || n > len(s.LoanTransfers) {
		return LoanTransfer{}, false
	}
	return s.LoanTransfers[len(s.LoanTransfers)-n], true
}

// DebtEventAt returns the debt-management event at index i.
func (s *LoanSnapshot) DebtEventAt(i int) (DebtEvent, bool) {
	if i < 0 || i >= len(s.DebtManagementEvents) {
		return DebtEvent{}, false
	}
	return s.DebtManagementEvents[i], true
}

// AuctionSnapshot is a primary-market loan offering open for bidding.
type AuctionSnapshot struct {
	AuctionID string          `json:"auction_id"`
	LoanID    string          `json:"loan_id"`
	Amount    decimal.Decimal `json:"amount"`
	Interest  decimal.Decimal `json:"interest"`
	Rating    string          `json:"rating"`
}

// CalendarDay truncates t to midnight UTC of its own calendar day.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(CalendarDay(b).Sub(CalendarDay(a)).Hours() / 24)
}
