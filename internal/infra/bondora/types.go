package bondora

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"bondora_go/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	BaseURLProduction = "https://api.bondora.com"

	pathSecondaryMarket = "/api/v1/secondarymarket"
	pathInvestments     = "/api/v1/account/investments"
	pathBid             = "/api/v1/bid"
	pathBuy             = "/api/v1/secondarymarket/buy"
	pathSell            = "/api/v1/secondarymarket/sell"
	pathCancel          = "/api/v1/secondarymarket/cancelmultiple"

	dateLayout = "2006-01-02"
)

// envelope is the response wrapper used by every endpoint.
type envelope[T any] struct {
	Payload T          `json:"Payload"`
	Success bool       `json:"Success"`
	Errors  []apiError `json:"Errors"`
}

type apiError struct {
	Code    int    `json:"Code"`
	Message string `json:"Message"`
	Details string `json:"Details"`
}

// Payload fields decode leniently: a value of unexpected shape becomes absent and is flagged
// Bad so the caller can report it. Rules then see a missing field instead of the whole
// listing being dropped.

var jsonNull = []byte("null")

// apiDate accepts "2006-01-02", "2006-01-02T15:04:05" and RFC 3339; only the calendar day is kept.
// null and "" decode to an absent date.
type apiDate struct {
	Time  time.Time
	Valid bool
	Bad   bool
}

func (d *apiDate) UnmarshalJSON(b []byte) error {
	*d = apiDate{}
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		d.Bad = true
		return nil
	}
	if s == "" {
		return nil
	}
	if len(s) < len(dateLayout) {
		d.Bad = true
		return nil
	}
	t, err := time.Parse(dateLayout, s[:len(dateLayout)])
	if err != nil {
		d.Bad = true
		return nil
	}
	*d = apiDate{Time: t, Valid: true}
	return nil
}

func (d apiDate) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

type apiInt struct {
	Value int
	Valid bool
	Bad   bool
}

func (n *apiInt) UnmarshalJSON(b []byte) error {
	*n = apiInt{}
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		n.Bad = true
		return nil
	}
	*n = apiInt{Value: v, Valid: true}
	return nil
}

func (n apiInt) ptr() *int {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// apiDecimal accepts JSON numbers and numeric strings.
type apiDecimal struct {
	Value decimal.NullDecimal
	Bad   bool
}

func (d *apiDecimal) UnmarshalJSON(b []byte) error {
	*d = apiDecimal{}
	if err := d.Value.UnmarshalJSON(b); err != nil {
		*d = apiDecimal{Bad: true}
	}
	return nil
}

type apiString struct {
	Value string
	Bad   bool
}

func (s *apiString) UnmarshalJSON(b []byte) error {
	*s = apiString{}
	if bytes.Equal(b, jsonNull) {
		return nil
	}
	if err := json.Unmarshal(b, &s.Value); err != nil {
		*s = apiString{Bad: true}
	}
	return nil
}

// apiList drops the whole list when it is not an array of T.
type apiList[T any] struct {
	Items []T
	Bad   bool
}

func (l *apiList[T]) UnmarshalJSON(b []byte) error {
	*l = apiList[T]{}
	if err := json.Unmarshal(b, &l.Items); err != nil {
		*l = apiList[T]{Bad: true}
	}
	return nil
}

// fieldIssues collects the names of fields whose value had an unexpected shape.
type fieldIssues []string

func (f *fieldIssues) note(bad bool, name string) {
	if bad {
		*f = append(*f, name)
	}
}

func (f *fieldIssues) date(name string, d apiDate) *time.Time {
	f.note(d.Bad, name)
	return d.ptr()
}

func (f *fieldIssues) integer(name string, n apiInt) *int {
	f.note(n.Bad, name)
	return n.ptr()
}

func (f *fieldIssues) number(name string, d apiDecimal) decimal.NullDecimal {
	f.note(d.Bad, name)
	return d.Value
}

func (f *fieldIssues) text(name string, s apiString) string {
	f.note(s.Bad, name)
	return s.Value
}

type debtEventDTO struct {
	EventType   apiInt    `json:"EventType"`
	Description apiString `json:"Description"`
	CreatedOn   apiDate   `json:"CreatedOn"`
}

type loanTransferDTO struct {
	Date        apiDate    `json:"Date"`
	TotalAmount apiDecimal `json:"TotalAmount"`
}

// loanDTO is a secondary-market item or an investment as the API sends it.
type loanDTO struct {
	ID         apiString `json:"Id"`
	LoanID     apiString `json:"LoanId"`
	LoanPartID apiString `json:"LoanPartId"`
	Country    apiString `json:"Country"`

	DesiredDiscountRate apiDecimal `json:"DesiredDiscountRate"`
	Price               apiDecimal `json:"Price"`
	PrincipalRemaining  apiDecimal `json:"PrincipalRemaining"`

	LoanStatusCode            apiInt     `json:"LoanStatusCode"`
	LateAmountTotal           apiDecimal `json:"LateAmountTotal"`
	ReScheduledOn             apiDate    `json:"ReScheduledOn"`
	DebtOccuredOn             apiDate    `json:"DebtOccuredOn"`
	DebtOccuredOnForSecondary apiDate    `json:"DebtOccuredOnForSecondary"`

	NextPaymentDate       apiDate    `json:"NextPaymentDate"`
	NextPaymentNr         apiInt     `json:"NextPaymentNr"`
	NrOfScheduledPayments apiInt     `json:"NrOfScheduledPayments"`
	Interest              apiDecimal `json:"Interest"`

	// The API spells it this way.
	DebtManagementEvents apiList[debtEventDTO]    `json:"DebtManagmentEvents"`
	LoanTransfers        apiList[loanTransferDTO] `json:"LoanTransfers"`
}

// toDomain maps the DTO and returns the names of fields that were dropped as malformed.
func (l loanDTO) toDomain() (domain.LoanSnapshot, []string) {
	var f fieldIssues
	s := domain.LoanSnapshot{
		ID:                        f.text("Id", l.ID),
		LoanID:                    f.text("LoanId", l.LoanID),
		LoanPartID:                f.text("LoanPartId", l.LoanPartID),
		Country:                   f.text("Country", l.Country),
		DesiredDiscountRate:       f.number("DesiredDiscountRate", l.DesiredDiscountRate),
		Price:                     f.number("Price", l.Price),
		PrincipalRemaining:        f.number("PrincipalRemaining", l.PrincipalRemaining),
		LoanStatusCode:            f.integer("LoanStatusCode", l.LoanStatusCode),
		LateAmountTotal:           f.number("LateAmountTotal", l.LateAmountTotal),
		ReScheduledOn:             f.date("ReScheduledOn", l.ReScheduledOn),
		DebtOccuredOn:             f.date("DebtOccuredOn", l.DebtOccuredOn),
		DebtOccuredOnForSecondary: f.date("DebtOccuredOnForSecondary", l.DebtOccuredOnForSecondary),
		NextPaymentDate:           f.date("NextPaymentDate", l.NextPaymentDate),
		NextPaymentNr:             f.integer("NextPaymentNr", l.NextPaymentNr),
		NrOfScheduledPayments:     f.integer("NrOfScheduledPayments", l.NrOfScheduledPayments),
		Interest:                  f.number("Interest", l.Interest),
	}

	f.note(l.DebtManagementEvents.Bad, "DebtManagmentEvents")
	for i, ev := range l.DebtManagementEvents.Items {
		prefix := fmt.Sprintf("DebtManagmentEvents[%d].", i)
		var eventType int
		if p := f.integer(prefix+"EventType", ev.EventType); p != nil {
			eventType = *p
		}
		s.DebtManagementEvents = append(s.DebtManagementEvents, domain.DebtEvent{
			EventType:   eventType,
			Description: f.text(prefix+"Description", ev.Description),
			CreatedOn:   f.date(prefix+"CreatedOn", ev.CreatedOn),
		})
	}

	f.note(l.LoanTransfers.Bad, "LoanTransfers")
	for i, tr := range l.LoanTransfers.Items {
		prefix := fmt.Sprintf("LoanTransfers[%d].", i)
		s.LoanTransfers = append(s.LoanTransfers, domain.LoanTransfer{
			Date:        f.date(prefix+"Date", tr.Date),
			TotalAmount: f.number(prefix+"TotalAmount", tr.TotalAmount),
		})
	}
	return s, f
}

type auctionDTO struct {
	AuctionID apiString  `json:"AuctionId"`
	LoanID    apiString  `json:"LoanId"`
	Amount    apiDecimal `json:"Amount"`
	Interest  apiDecimal `json:"Interest"`
	Rating    apiString  `json:"Rating"`
}

func (a auctionDTO) toDomain() (domain.AuctionSnapshot, []string) {
	var f fieldIssues
	s := domain.AuctionSnapshot{
		AuctionID: f.text("AuctionId", a.AuctionID),
		LoanID:    f.text("LoanId", a.LoanID),
		Amount:    f.number("Amount", a.Amount).Decimal,
		Interest:  f.number("Interest", a.Interest).Decimal,
		Rating:    f.text("Rating", a.Rating),
	}
	return s, f
}

// Request bodies. Amounts are sent as JSON numbers, not decimal's default quoted strings.

type bidRequest struct {
	Bids []bid `json:"Bids"`
}

type bid struct {
	AuctionID string      `json:"AuctionId"`
	Amount    json.Number `json:"Amount"`
	MinAmount json.Number `json:"MinAmount"`
}

type itemIDsRequest struct {
	ItemIDs []string `json:"ItemIds"`
}

type sellRequest struct {
	Actions []sellAction `json:"Actions"`
}

// The marketplace prices an offer as a discount (negative) or premium (positive) in percent.
type sellAction struct {
	LoanPartID          string      `json:"LoanPartId"`
	DesiredDiscountRate json.Number `json:"DesiredDiscountRate"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
