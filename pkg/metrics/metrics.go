package metrics

import (
	"errors"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankist_operations_total",
			Help: "Bank operations by outcome",
		},
		[]string{"operation", "result"},
	)

	sessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankist_sessions_ended_total",
			Help: "Ended sessions by reason",
		},
		[]string{"reason"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bankist_active_sessions",
			Help: "Sessions currently open",
		},
	)

	loanCredits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bankist_loan_credits_total",
			Help: "Delayed loan credits by outcome",
		},
		[]string{"outcome"},
	)
)

var results = []struct {
	err   error
	label string
}{
	{domain.ErrNotFound, "not_found"},
	{domain.ErrIncorrectCredentials, "incorrect_credentials"},
	{domain.ErrInsufficientFunds, "insufficient_funds"},
	{domain.ErrInvalidAmount, "invalid_amount"},
	{domain.ErrSameAccount, "same_account"},
	{domain.ErrLoanNotQualified, "loan_not_qualified"},
	{domain.ErrNoActiveSession, "no_session"},
}

// Result maps an operation error to a low cardinality label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	for _, r := range results {
		if errors.Is(err, r.err) {
			return r.label
		}
	}
	return "error"
}

func Observe(operation string, err error) {
	operationsTotal.WithLabelValues(operation, Result(err)).Inc()
}

func SessionStarted() {
	activeSessions.Inc()
}

func SessionEnded(reason string) {
	activeSessions.Dec()
	sessionsEnded.WithLabelValues(reason).Inc()
}

func LoanCredit(outcome string) {
	loanCredits.WithLabelValues(outcome).Inc()
}
