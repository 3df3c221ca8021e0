package bank

import (
	"time"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/andrenbrandao/bankist/pkg/format"
	"github.com/andrenbrandao/bankist/pkg/ledger"
	"github.com/shopspring/decimal"
)

// Statement is everything the UI renders for a session.
type Statement struct {
	Username  string         `json:"username"`
	Owner     string         `json:"owner"`
	Welcome   string         `json:"welcome"`
	Date      string         `json:"date"`
	Currency  string         `json:"currency"`
	Locale    string         `json:"locale"`
	Balance   string         `json:"balance"`
	Inflow    string         `json:"inflow"`
	Outflow   string         `json:"outflow"`
	Interest  string         `json:"interest"`
	Summary   ledger.Summary `json:"summary"`
	Timer     string         `json:"timer"`
	Sorted    bool           `json:"sorted"`
	Movements []Row          `json:"movements"`
}

type Row struct {
	Number int             `json:"number"`
	Type   string          `json:"type"`
	Date   string          `json:"date"`
	Amount string          `json:"amount"`
	Value  decimal.Decimal `json:"value"`
}

// NewStatement builds the display values of a. Rows are in display order:
// most recent first, or largest first when sorted.
func NewStatement(a domain.Account, sorted bool, timer string, now time.Time) Statement {
	f := format.New(a.Locale, a.Currency)
	summary := ledger.Summarize(a.Movements, a.InterestRate)

	st := Statement{
		Username:  a.Username,
		Owner:     a.Owner,
		Welcome:   "Welcome back, " + a.FirstName(),
		Date:      f.DateTime(now),
		Currency:  a.Currency,
		Locale:    a.Locale,
		Balance:   f.Money(summary.Balance),
		Inflow:    f.Money(summary.Inflow),
		Outflow:   f.Money(summary.Outflow),
		Interest:  f.Money(summary.RoundedInterest()),
		Summary:   summary,
		Timer:     timer,
		Sorted:    sorted,
		Movements: make([]Row, 0, len(a.Movements)),
	}

	order := make([]int, len(a.Movements))
	for i := range order {
		order[i] = i
	}
	if sorted {
		order = ledger.SortedIndices(a.Movements)
	}

	for i := len(order) - 1; i >= 0; i-- {
		idx := order[i]
		m := domain.Movement{Index: idx, Amount: a.Movements[idx], Date: a.MovementDates[idx]}
		typ := "withdrawal"
		if m.Deposit() {
			typ = "deposit"
		}
		st.Movements = append(st.Movements, Row{
			Number: idx + 1,
			Type:   typ,
			Date:   f.RelativeDate(m.Date, now),
			Amount: f.Money(m.Amount),
			Value:  m.Amount,
		})
	}

	return st
}
