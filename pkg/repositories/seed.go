package repositories

import (
	"time"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/shopspring/decimal"
)

type demoAccount struct {
	owner     string
	pin       int
	rate      string
	currency  string
	locale    string
	movements []int64
	dates     []string
}

var demoAccounts = []demoAccount{
	{
		owner:     "Jonas Schmedtmann",
		pin:       1111,
		rate:      "1.2",
		currency:  "EUR",
		locale:    "pt-PT",
		movements: []int64{200, 450, -400, 3000, -650, -130, 70, 1300},
		dates: []string{
			"2019-11-18T21:31:17.178Z",
			"2019-12-23T07:42:02.383Z",
			"2020-01-28T09:15:04.904Z",
			"2020-04-01T10:17:24.185Z",
			"2020-05-08T14:11:59.604Z",
			"2020-05-27T17:01:17.194Z",
			"2020-07-11T23:36:17.929Z",
			"2020-07-12T10:51:36.790Z",
		},
	},
	{
		owner:     "Jessica Davis",
		pin:       2222,
		rate:      "1.5",
		currency:  "USD",
		locale:    "en-US",
		movements: []int64{5000, 3400, -150, -790, -3210, -1000, 8500, -30},
		dates: []string{
			"2019-11-01T13:15:33.035Z",
			"2019-11-30T09:48:16.867Z",
			"2019-12-25T06:04:23.907Z",
			"2020-01-25T14:18:46.235Z",
			"2020-02-05T16:33:06.386Z",
			"2020-04-10T14:43:26.374Z",
			"2020-06-25T18:49:59.371Z",
			"2020-07-26T12:01:20.894Z",
		},
	},
	{
		owner:     "Steven Thomas Williams",
		pin:       3333,
		rate:      "0.7",
		currency:  "GBP",
		locale:    "en-GB",
		movements: []int64{200, -200, 340, -300, -20, 50, 400, -460},
		dates: []string{
			"2019-10-02T08:12:44.100Z",
			"2019-11-14T10:20:05.512Z",
			"2019-12-01T19:03:27.641Z",
			"2020-01-09T12:44:50.003Z",
			"2020-02-17T07:35:18.254Z",
			"2020-03-30T16:22:41.877Z",
			"2020-05-21T11:08:09.320Z",
			"2020-06-14T21:57:36.418Z",
		},
	},
	{
		owner:     "Sarah Smith",
		pin:       4444,
		rate:      "1",
		currency:  "EUR",
		locale:    "de-DE",
		movements: []int64{430, 1000, 700, 50, 90},
		dates: []string{
			"2020-01-11T09:30:00.000Z",
			"2020-02-23T13:45:12.250Z",
			"2020-04-04T17:10:33.790Z",
			"2020-06-18T08:05:47.060Z",
			"2020-07-29T15:40:21.900Z",
		},
	},
}

// DemoAccounts returns the seeded demo accounts.
func DemoAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(demoAccounts))
	for _, d := range demoAccounts {
		a := domain.NewAccount(d.owner, d.pin, decimal.RequireFromString(d.rate), d.currency, d.locale)
		for i, m := range d.movements {
			at, err := time.Parse(time.RFC3339Nano, d.dates[i])
			if err != nil {
				panic(err)
			}
			a.AddMovement(decimal.NewFromInt(m), at)
		}
		accounts = append(accounts, a)
	}
	return accounts
}
