// Package bank runs sessions and the operations a logged-in user performs:
// transfers, loans, account closure and statements.
package bank

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/andrenbrandao/bankist/pkg/format"
	"github.com/andrenbrandao/bankist/pkg/ledger"
	"github.com/andrenbrandao/bankist/pkg/logger"
	"github.com/andrenbrandao/bankist/pkg/metrics"
	"github.com/andrenbrandao/bankist/pkg/session"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type accountRepository interface {
	FindByUsername(ctx context.Context, username string) (domain.Account, error)
	FindByCredentials(ctx context.Context, username string, pin int) (domain.Account, error)
	Remove(ctx context.Context, username string) error
	Mutate(ctx context.Context, usernames []string, fn func([]*domain.Account) error) error
}

type lastUserStore interface {
	Get(ctx context.Context) (string, error)
	Set(ctx context.Context, username string) error
	Delete(ctx context.Context) error
}

type scheduler interface {
	Schedule(key string, delay time.Duration, fn func())
	CancelAll(key string) int
}

type Options struct {
	TimerBudget  int
	TickInterval time.Duration
	LoanDelay    time.Duration
	DateRefresh  time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.TimerBudget <= 0 {
		o.TimerBudget = 120
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.LoanDelay <= 0 {
		o.LoanDelay = 2500 * time.Millisecond
	}
	if o.DateRefresh <= 0 {
		o.DateRefresh = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Service serialises every session and account mutation behind one lock.
// Timer expiry, date refreshes and delayed loan credits take the same lock
// and re-check that their session is still open.
type Service struct {
	mu       sync.Mutex
	accounts accountRepository
	lastUser lastUserStore
	tasks    scheduler
	opts     Options
	tracer   trace.Tracer

	sessions map[string]*session.Session
	byUser   map[string]*session.Session
}

func NewService(accounts accountRepository, lastUser lastUserStore, tasks scheduler, opts Options) *Service {
	return &Service{
		accounts: accounts,
		lastUser: lastUser,
		tasks:    tasks,
		opts:     opts.withDefaults(),
		tracer:   otel.Tracer("github.com/andrenbrandao/bankist/pkg/bank"),
		sessions: make(map[string]*session.Session),
		byUser:   make(map[string]*session.Session),
	}
}

func (s *Service) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "bank."+name, trace.WithAttributes(attrs...))
}

func finish(span trace.Span, operation string, err error) {
	metrics.Observe(operation, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Login opens a session when username and pin match an account. A session
// the user already had is ended first.
func (s *Service) Login(ctx context.Context, username string, pin int) (sess *session.Session, err error) {
	ctx, span := s.start(ctx, "Login", attribute.String("username", username))
	defer func() { finish(span, "login", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.accounts.FindByCredentials(ctx, username, pin)
	if err != nil {
		logger.Log.Warn("login rejected", logger.String("username", username), logger.Error(err))
		return nil, err
	}

	return s.open(ctx, a.Username), nil
}

// Restore reopens a session for the last logged-in username.
func (s *Service) Restore(ctx context.Context) (sess *session.Session, err error) {
	ctx, span := s.start(ctx, "Restore")
	defer func() { finish(span, "restore", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	username, err := s.lastUser.Get(ctx)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, domain.ErrNoActiveSession
	}

	if _, err := s.accounts.FindByUsername(ctx, username); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.clearLastUser(ctx)
		}
		return nil, err
	}

	if current, ok := s.byUser[username]; ok {
		return current, nil
	}
	return s.open(ctx, username), nil
}

func (s *Service) open(ctx context.Context, username string) *session.Session {
	if prev, ok := s.byUser[username]; ok {
		s.end(ctx, prev, session.EventLogout, false)
	}

	sess := session.New(username, s.opts.TimerBudget, s.opts.TickInterval, s.expire)
	s.sessions[sess.ID] = sess
	s.byUser[username] = sess

	sess.Timer.Start()
	sess.StartRefresh(s.opts.DateRefresh, func() { s.refreshDate(sess) })

	if err := s.lastUser.Set(ctx, username); err != nil {
		logger.Log.Error("error saving last user", logger.String("username", username), logger.Error(err))
	}

	metrics.SessionStarted()
	logger.Log.Info("session started", logger.String("session_id", sess.ID), logger.String("username", username))
	return sess
}

// end must be called with s.mu held.
func (s *Service) end(ctx context.Context, sess *session.Session, reason string, clearLastUser bool) {
	delete(s.sessions, sess.ID)
	if s.byUser[sess.Username] == sess {
		delete(s.byUser, sess.Username)
	}

	cancelled := s.tasks.CancelAll(sess.ID)
	sess.End(reason)

	if clearLastUser {
		s.clearLastUser(ctx)
	}

	metrics.SessionEnded(reason)
	logger.Log.Info("session ended",
		logger.String("session_id", sess.ID),
		logger.String("username", sess.Username),
		logger.String("reason", reason),
		logger.Int("cancelled_tasks", cancelled),
	)
}

func (s *Service) clearLastUser(ctx context.Context) {
	if err := s.lastUser.Delete(ctx); err != nil {
		logger.Log.Error("error clearing last user", logger.Error(err))
	}
}

func (s *Service) expire(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.ID] != sess {
		return
	}
	s.end(context.Background(), sess, session.EventExpired, true)
}

func (s *Service) refreshDate(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.ID] != sess {
		return
	}
	a, err := s.accounts.FindByUsername(context.Background(), sess.Username)
	if err != nil {
		return
	}
	sess.Events.Publish(session.Event{
		Type: session.EventDate,
		Date: format.New(a.Locale, a.Currency).DateTime(s.opts.Now()),
	})
}

// session must be called with s.mu held.
func (s *Service) session(id string) (*session.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrNoActiveSession
	}
	return sess, nil
}

// Session returns the open session with id.
func (s *Service) Session(id string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session(id)
}

func (s *Service) Logout(ctx context.Context, sessionID string) (err error) {
	ctx, span := s.start(ctx, "Logout")
	defer func() { finish(span, "logout", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	s.end(ctx, sess, session.EventLogout, true)
	return nil
}

func (s *Service) Statement(ctx context.Context, sessionID string) (st Statement, err error) {
	ctx, span := s.start(ctx, "Statement")
	defer func() { finish(span, "statement", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.statement(ctx, sessionID)
}

// ToggleSort flips between stored order and amount order.
func (s *Service) ToggleSort(ctx context.Context, sessionID string) (st Statement, err error) {
	ctx, span := s.start(ctx, "ToggleSort")
	defer func() { finish(span, "sort", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return Statement{}, err
	}
	sess.Sorted = !sess.Sorted
	return s.statement(ctx, sessionID)
}

func (s *Service) statement(ctx context.Context, sessionID string) (Statement, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return Statement{}, err
	}
	a, err := s.accounts.FindByUsername(ctx, sess.Username)
	if err != nil {
		return Statement{}, err
	}
	return NewStatement(a, sess.Sorted, sess.Timer.Display(), s.opts.Now()), nil
}

// Transfer moves amount from the session's account to the account named to.
// Nothing changes unless every check passes.
func (s *Service) Transfer(ctx context.Context, sessionID, to string, amount decimal.Decimal) (err error) {
	ctx, span := s.start(ctx, "Transfer", attribute.String("to", to), attribute.String("amount", amount.String()))
	defer func() { finish(span, "transfer", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if to == sess.Username {
		return domain.ErrSameAccount
	}

	now := s.opts.Now()
	err = s.accounts.Mutate(ctx, []string{sess.Username, to}, func(accounts []*domain.Account) error {
		sender, receiver := accounts[0], accounts[1]
		if ledger.Balance(sender.Movements).LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		sender.AddMovement(amount.Neg(), now)
		receiver.AddMovement(amount, now)
		return nil
	})
	if err != nil {
		logger.Log.Warn("transfer rejected",
			logger.String("from", sess.Username),
			logger.String("to", to),
			logger.String("amount", amount.String()),
			logger.Error(err),
		)
		return err
	}

	sess.Timer.Reset()
	sess.Events.Publish(session.Event{Type: session.EventLedger})
	if receiver, ok := s.byUser[to]; ok {
		receiver.Events.Publish(session.Event{Type: session.EventLedger})
	}
	return nil
}

// RequestLoan approves a loan when some deposit is at least 10% of amount
// and credits it after the loan delay, provided the session is still open
// at that point.
func (s *Service) RequestLoan(ctx context.Context, sessionID string, amount decimal.Decimal) (err error) {
	ctx, span := s.start(ctx, "RequestLoan", attribute.String("amount", amount.String()))
	defer func() { finish(span, "loan", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	a, err := s.accounts.FindByUsername(ctx, sess.Username)
	if err != nil {
		return err
	}
	if !ledger.Qualifies(a.Movements, amount) {
		logger.Log.Warn("loan rejected", logger.String("username", sess.Username), logger.String("amount", amount.String()))
		return domain.ErrLoanNotQualified
	}

	s.tasks.Schedule(sess.ID, s.opts.LoanDelay, func() { s.creditLoan(sess, amount) })
	sess.Timer.Reset()
	return nil
}

func (s *Service) creditLoan(sess *session.Session, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions[sess.ID] != sess {
		metrics.LoanCredit("discarded")
		logger.Log.Info("loan credit discarded, session ended",
			logger.String("session_id", sess.ID),
			logger.String("username", sess.Username),
		)
		return
	}

	now := s.opts.Now()
	err := s.accounts.Mutate(context.Background(), []string{sess.Username}, func(accounts []*domain.Account) error {
		accounts[0].AddMovement(amount, now)
		return nil
	})
	if err != nil {
		metrics.LoanCredit("failed")
		logger.Log.Error("error crediting loan", logger.String("username", sess.Username), logger.Error(err))
		return
	}

	metrics.LoanCredit("credited")
	sess.Events.Publish(session.Event{Type: session.EventLedger})
}

// CloseAccount removes the session's account when username and pin match
// it exactly, then ends the session.
func (s *Service) CloseAccount(ctx context.Context, sessionID, username string, pin int) (err error) {
	ctx, span := s.start(ctx, "CloseAccount", attribute.String("username", username))
	defer func() { finish(span, "close", err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	if username != sess.Username {
		return domain.ErrIncorrectCredentials
	}
	if _, err := s.accounts.FindByCredentials(ctx, username, pin); err != nil {
		return err
	}

	if err := s.accounts.Remove(ctx, username); err != nil {
		return err
	}
	s.end(ctx, sess, session.EventClosed, true)
	return nil
}

// Shutdown ends every session but keeps the last-user entry so the next
// start can restore it.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.sessions {
		s.end(ctx, sess, session.EventLogout, false)
	}
}

func (s *Service) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
