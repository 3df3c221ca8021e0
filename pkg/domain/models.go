package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	Username      string            `json:"username"`
	Owner         string            `json:"owner"`
	Pin           int               `json:"-"`
	Movements     []decimal.Decimal `json:"movements"`
	MovementDates []time.Time       `json:"movements_dates"`
	InterestRate  decimal.Decimal   `json:"interest_rate"`
	Currency      string            `json:"currency"`
	Locale        string            `json:"locale"`
}

// NewAccount derives the username from the owner name.
func NewAccount(owner string, pin int, interestRate decimal.Decimal, currency, locale string) Account {
	return Account{
		Username:     Username(owner),
		Owner:        owner,
		Pin:          pin,
		InterestRate: interestRate,
		Currency:     currency,
		Locale:       locale,
	}
}

// Username is the lowercase initials of every space separated token of owner.
func Username(owner string) string {
	var b strings.Builder
	for _, name := range strings.Fields(owner) {
		r := []rune(name)
		b.WriteString(strings.ToLower(string(r[0])))
	}
	return b.String()
}

// FirstName is used for the welcome message.
func (a Account) FirstName() string {
	names := strings.Fields(a.Owner)
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// AddMovement keeps Movements and MovementDates the same length.
func (a *Account) AddMovement(amount decimal.Decimal, at time.Time) {
	a.Movements = append(a.Movements, amount)
	a.MovementDates = append(a.MovementDates, at)
}

func (a Account) Consistent() bool {
	return len(a.Movements) == len(a.MovementDates)
}

// Clone copies the movement slices so the copy can be mutated freely.
func (a Account) Clone() Account {
	c := a
	c.Movements = append([]decimal.Decimal(nil), a.Movements...)
	c.MovementDates = append([]time.Time(nil), a.MovementDates...)
	return c
}

type Movement struct {
	Index  int             `json:"index"`
	Amount decimal.Decimal `json:"amount"`
	Date   time.Time       `json:"date"`
}

// Deposit reports whether the movement is shown as a deposit. Zero amounts
// are withdrawals.
func (m Movement) Deposit() bool {
	return m.Amount.IsPositive()
}
