// Package format turns ledger values into the strings shown to the user.
package format

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter formats amounts and dates for one locale and currency.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
	unit    currency.Unit
	hasUnit bool
}

func New(locale, currencyCode string) Formatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	f := Formatter{tag: tag, printer: message.NewPrinter(tag)}
	if unit, err := currency.ParseISO(currencyCode); err == nil {
		f.unit = unit
		f.hasUnit = true
	}
	return f
}

// Money renders amount with two decimals, locale grouping and the currency
// symbol, e.g. "3,840.00 €".
func (f Formatter) Money(amount decimal.Decimal) string {
	value, _ := amount.Round(2).Float64()
	n := f.printer.Sprint(number.Decimal(value, number.Scale(2)))
	if !f.hasUnit {
		return n
	}
	symbol := f.printer.Sprint(currency.NarrowSymbol(f.unit))
	return strings.TrimSpace(n + " " + symbol)
}

// RelativeDate labels date relative to now: Today, Yesterday, "N days ago"
// up to a week, otherwise the locale's short date.
func (f Formatter) RelativeDate(date, now time.Time) string {
	switch days := DaysBetween(date, now); {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days <= 7:
		return fmt.Sprintf("%d days ago", days)
	default:
		return f.Date(date)
	}
}

// Date renders a short numeric date in the locale's field order.
func (f Formatter) Date(date time.Time) string {
	return date.Format(dateLayout(f.tag))
}

// DateTime renders the date followed by hours and minutes, used for the
// "As of" label.
func (f Formatter) DateTime(t time.Time) string {
	return f.Date(t) + ", " + t.Format("15:04")
}

// DaysBetween is the absolute number of 24h periods between a and b,
// rounded to the nearest day.
func DaysBetween(a, b time.Time) int {
	return int(math.Round(math.Abs(b.Sub(a).Hours()) / 24))
}

func dateLayout(tag language.Tag) string {
	base, _ := tag.Base()
	region, _ := tag.Region()

	switch base.String() {
	case "en":
		if region.String() == "US" {
			return "1/2/2006"
		}
		return "02/01/2006"
	case "de", "ru", "pl", "fi", "nb", "da", "cs":
		return "2.1.2006"
	case "ja", "zh", "ko", "hu":
		return "2006/01/02"
	case "sv", "lt":
		return "2006-01-02"
	default:
		return "02/01/2006"
	}
}
