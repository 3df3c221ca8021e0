package format

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRelativeDate(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	f := New("en-US", "USD")

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"same day", now.Add(-2 * time.Hour), "Today"},
		{"yesterday", now.AddDate(0, 0, -1), "Yesterday"},
		{"three days", now.AddDate(0, 0, -3), "3 days ago"},
		{"a week", now.AddDate(0, 0, -7), "7 days ago"},
		{"older", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), "1/5/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.RelativeDate(tt.date, now); got != tt.want {
				t.Errorf("RelativeDate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDateLayoutFollowsLocale(t *testing.T) {
	d := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)

	tests := map[string]string{
		"en-US":         "1/5/2024",
		"en-GB":         "05/01/2024",
		"pt-PT":         "05/01/2024",
		"de-DE":         "5.1.2024",
		"not a locale!": "1/5/2024",
	}
	for locale, want := range tests {
		if got := New(locale, "EUR").Date(d); got != want {
			t.Errorf("Date(%s) = %q, want %q", locale, got, want)
		}
	}

	if got := New("en-GB", "GBP").DateTime(d); got != "05/01/2024, 09:30" {
		t.Errorf("DateTime = %q", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, a.Add(36*time.Hour)); got != 2 {
		t.Errorf("36h = %d days, want 2", got)
	}
	if got := DaysBetween(a.Add(11*time.Hour), a); got != 0 {
		t.Errorf("11h = %d days, want 0", got)
	}
}

func TestMoney(t *testing.T) {
	got := New("en-US", "USD").Money(decimal.RequireFromString("3840.456"))
	if !strings.Contains(got, "3,840.46") || !strings.Contains(got, "$") {
		t.Errorf("Money = %q", got)
	}

	got = New("en-US", "XXXX").Money(decimal.NewFromInt(-20))
	if got != "-20.00" {
		t.Errorf("Money without currency = %q", got)
	}
}
