package bank

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/andrenbrandao/bankist/pkg/repositories"
	"github.com/andrenbrandao/bankist/pkg/session"
	"github.com/shopspring/decimal"
)

type fakeTask struct {
	key string
	fn  func()
}

// fakeScheduler holds tasks until run is called.
type fakeScheduler struct {
	mu    sync.Mutex
	tasks []fakeTask
}

func (f *fakeScheduler) Schedule(key string, _ time.Duration, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, fakeTask{key, fn})
}

func (f *fakeScheduler) CancelAll(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.tasks[:0]
	n := 0
	for _, task := range f.tasks {
		if task.key == key {
			n++
			continue
		}
		kept = append(kept, task)
	}
	f.tasks = kept
	return n
}

// fire runs every pending task, cancelled or not, the way a timer that
// already fired would.
func (f *fakeScheduler) fire(tasks []fakeTask) {
	for _, task := range tasks {
		task.fn()
	}
}

func (f *fakeScheduler) pending() []fakeTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeTask(nil), f.tasks...)
}

var testNow = time.Date(2020, 7, 30, 10, 0, 0, 0, time.UTC)

func account(owner string, pin int, movements ...int64) domain.Account {
	a := domain.NewAccount(owner, pin, decimal.RequireFromString("1.2"), "EUR", "pt-PT")
	for i, m := range movements {
		a.AddMovement(decimal.NewFromInt(m), testNow.AddDate(0, 0, -len(movements)+i))
	}
	return a
}

type fixture struct {
	svc      *Service
	repo     *repositories.MemoryRepository
	lastUser *repositories.FileStore
	tasks    *fakeScheduler
}

func newFixture(t *testing.T, accounts ...domain.Account) fixture {
	t.Helper()
	f := fixture{
		repo:     repositories.NewMemoryRepository(accounts...),
		lastUser: repositories.NewFileStore(filepath.Join(t.TempDir(), "state.json")),
		tasks:    &fakeScheduler{},
	}
	f.svc = NewService(f.repo, f.lastUser, f.tasks, Options{
		TimerBudget:  120,
		TickInterval: time.Hour,
		DateRefresh:  time.Hour,
		Now:          func() time.Time { return testNow },
	})
	t.Cleanup(func() { f.svc.Shutdown(context.Background()) })
	return f
}

func (f fixture) login(t *testing.T, username string, pin int) *session.Session {
	t.Helper()
	sess, err := f.svc.Login(context.Background(), username, pin)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return sess
}

func (f fixture) movements(t *testing.T, username string) []decimal.Decimal {
	t.Helper()
	a, err := f.repo.FindByUsername(context.Background(), username)
	if err != nil {
		t.Fatal(err)
	}
	return a.Movements
}

func equal(got []decimal.Decimal, want ...int64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !got[i].Equal(decimal.NewFromInt(want[i])) {
			return false
		}
	}
	return true
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, account("Ann Bell", 1111, 100))

	if _, err := f.svc.Login(ctx, "ab", 9999); !errors.Is(err, domain.ErrIncorrectCredentials) {
		t.Errorf("wrong pin: err = %v", err)
	}
	if _, err := f.svc.Login(ctx, "zz", 1111); !errors.Is(err, domain.ErrIncorrectCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}

	sess := f.login(t, "ab", 1111)
	if sess.Timer.State() != session.Running || sess.Timer.Display() != "02:00" {
		t.Errorf("timer = %s %s, want Running 02:00", sess.Timer.State(), sess.Timer.Display())
	}
	if got, _ := f.lastUser.Get(ctx); got != "ab" {
		t.Errorf("last user = %q, want ab", got)
	}

	again := f.login(t, "ab", 1111)
	if _, err := f.svc.Session(sess.ID); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("previous session still open: %v", err)
	}
	if f.svc.ActiveSessions() != 1 {
		t.Errorf("active sessions = %d, want 1", f.svc.ActiveSessions())
	}
	if _, err := f.svc.Session(again.ID); err != nil {
		t.Errorf("new session: %v", err)
	}
}

func TestTransfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds between accounts", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 1000), account("Carl Dunn", 2222, 50))
		sess := f.login(t, "ab", 1111)
		sess.Timer.Tick()

		if err := f.svc.Transfer(ctx, sess.ID, "cd", decimal.NewFromInt(200)); err != nil {
			t.Fatal(err)
		}

		if got := f.movements(t, "ab"); !equal(got, 1000, -200) {
			t.Errorf("sender movements = %v", got)
		}
		if got := f.movements(t, "cd"); !equal(got, 50, 200) {
			t.Errorf("receiver movements = %v", got)
		}
		for _, u := range []string{"ab", "cd"} {
			a, _ := f.repo.FindByUsername(ctx, u)
			if !a.Consistent() || !a.MovementDates[len(a.MovementDates)-1].Equal(testNow) {
				t.Errorf("%s dates = %v", u, a.MovementDates)
			}
		}

		st, err := f.svc.Statement(ctx, sess.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !st.Summary.Balance.Equal(decimal.NewFromInt(800)) {
			t.Errorf("balance = %s, want 800", st.Summary.Balance)
		}
		if st.Timer != "02:00" {
			t.Errorf("timer = %s, want reset to 02:00", st.Timer)
		}
	})

	rejected := []struct {
		name   string
		to     string
		amount int64
		want   error
	}{
		{"zero amount", "cd", 0, domain.ErrInvalidAmount},
		{"negative amount", "cd", -5, domain.ErrInvalidAmount},
		{"more than balance", "cd", 1001, domain.ErrInsufficientFunds},
		{"to self", "ab", 10, domain.ErrSameAccount},
		{"unknown receiver", "zz", 10, domain.ErrNotFound},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, account("Ann Bell", 1111, 1000), account("Carl Dunn", 2222, 50))
			sess := f.login(t, "ab", 1111)
			sess.Timer.Tick()

			err := f.svc.Transfer(ctx, sess.ID, tt.to, decimal.NewFromInt(tt.amount))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := f.movements(t, "ab"); !equal(got, 1000) {
				t.Errorf("sender movements = %v", got)
			}
			if got := f.movements(t, "cd"); !equal(got, 50) {
				t.Errorf("receiver movements = %v", got)
			}
			if sess.Timer.Display() != "01:59" {
				t.Errorf("timer = %s, rejected transfer should not reset it", sess.Timer.Display())
			}
		})
	}

	t.Run("whole balance", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 1000), account("Carl Dunn", 2222, 50))
		sess := f.login(t, "ab", 1111)
		if err := f.svc.Transfer(ctx, sess.ID, "cd", decimal.NewFromInt(1000)); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("without session", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 1000), account("Carl Dunn", 2222, 50))
		err := f.svc.Transfer(ctx, "nope", "cd", decimal.NewFromInt(10))
		if !errors.Is(err, domain.ErrNoActiveSession) {
			t.Errorf("err = %v", err)
		}
	})
}

func TestRequestLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("credited after delay", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 200, 450, -400))
		sess := f.login(t, "ab", 1111)

		if err := f.svc.RequestLoan(ctx, sess.ID, decimal.NewFromInt(30)); err != nil {
			t.Fatal(err)
		}
		if got := f.movements(t, "ab"); !equal(got, 200, 450, -400) {
			t.Fatalf("credited before delay: %v", got)
		}

		f.tasks.fire(f.tasks.pending())
		if got := f.movements(t, "ab"); !equal(got, 200, 450, -400, 30) {
			t.Errorf("movements = %v", got)
		}
	})

	t.Run("discarded after logout", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 200, 450, -400))
		sess := f.login(t, "ab", 1111)

		if err := f.svc.RequestLoan(ctx, sess.ID, decimal.NewFromInt(30)); err != nil {
			t.Fatal(err)
		}
		tasks := f.tasks.pending()
		if err := f.svc.Logout(ctx, sess.ID); err != nil {
			t.Fatal(err)
		}
		if n := len(f.tasks.pending()); n != 0 {
			t.Errorf("pending tasks after logout = %d", n)
		}

		f.tasks.fire(tasks)
		if got := f.movements(t, "ab"); !equal(got, 200, 450, -400) {
			t.Errorf("movements = %v", got)
		}
	})

	t.Run("discarded after a new login", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 200, 450, -400))
		sess := f.login(t, "ab", 1111)
		if err := f.svc.RequestLoan(ctx, sess.ID, decimal.NewFromInt(30)); err != nil {
			t.Fatal(err)
		}
		tasks := f.tasks.pending()
		f.login(t, "ab", 1111)

		f.tasks.fire(tasks)
		if got := f.movements(t, "ab"); !equal(got, 200, 450, -400) {
			t.Errorf("movements = %v", got)
		}
	})

	rejected := []struct {
		name   string
		amount int64
		want   error
	}{
		{"no deposit reaches ten percent", 4501, domain.ErrLoanNotQualified},
		{"zero", 0, domain.ErrInvalidAmount},
		{"negative", -10, domain.ErrInvalidAmount},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, account("Ann Bell", 1111, 200, 450, -400))
			sess := f.login(t, "ab", 1111)

			err := f.svc.RequestLoan(ctx, sess.ID, decimal.NewFromInt(tt.amount))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if n := len(f.tasks.pending()); n != 0 {
				t.Errorf("scheduled %d tasks", n)
			}
		})
	}
}

func TestCloseAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong pin", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 100), account("Carl Dunn", 2222, 50))
		sess := f.login(t, "ab", 1111)

		err := f.svc.CloseAccount(ctx, sess.ID, "ab", 1234)
		if !errors.Is(err, domain.ErrIncorrectCredentials) {
			t.Fatalf("err = %v", err)
		}
		list, _ := f.repo.List(ctx)
		if len(list) != 2 {
			t.Errorf("accounts = %d, want 2", len(list))
		}
		if _, err := f.svc.Session(sess.ID); err != nil {
			t.Errorf("session ended: %v", err)
		}
	})

	t.Run("other user's credentials", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 100), account("Carl Dunn", 2222, 50))
		sess := f.login(t, "ab", 1111)

		err := f.svc.CloseAccount(ctx, sess.ID, "cd", 2222)
		if !errors.Is(err, domain.ErrIncorrectCredentials) {
			t.Fatalf("err = %v", err)
		}
		list, _ := f.repo.List(ctx)
		if len(list) != 2 {
			t.Errorf("accounts = %d, want 2", len(list))
		}
	})

	t.Run("correct credentials", func(t *testing.T) {
		f := newFixture(t, account("Ann Bell", 1111, 100), account("Carl Dunn", 2222, 50))
		sess := f.login(t, "ab", 1111)
		events, _ := sess.Events.Subscribe()

		if err := f.svc.CloseAccount(ctx, sess.ID, "ab", 1111); err != nil {
			t.Fatal(err)
		}

		list, _ := f.repo.List(ctx)
		if len(list) != 1 || list[0].Username != "cd" {
			t.Errorf("accounts = %v", list)
		}
		if _, err := f.svc.Session(sess.ID); !errors.Is(err, domain.ErrNoActiveSession) {
			t.Errorf("session still open: %v", err)
		}
		if got, _ := f.lastUser.Get(ctx); got != "" {
			t.Errorf("last user = %q, want empty", got)
		}

		var last session.Event
		for e := range events {
			last = e
		}
		if last.Type != session.EventClosed {
			t.Errorf("last event = %q, want %q", last.Type, session.EventClosed)
		}
	})
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, account("Ann Bell", 1111, 100))
	sess := f.login(t, "ab", 1111)

	for i := 0; i < 119; i++ {
		sess.Timer.Tick()
	}
	if _, err := f.svc.Session(sess.ID); err != nil {
		t.Fatalf("expired early: %v", err)
	}

	sess.Timer.Tick()
	if sess.Timer.State() != session.Expired {
		t.Errorf("state = %s, want Expired", sess.Timer.State())
	}
	if _, err := f.svc.Session(sess.ID); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("session still open: %v", err)
	}
	if got, _ := f.lastUser.Get(ctx); got != "" {
		t.Errorf("last user = %q, want empty", got)
	}
	if _, err := f.svc.Statement(ctx, sess.ID); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("statement after expiry: %v", err)
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, account("Ann Bell", 1111, 100))

	if _, err := f.svc.Restore(ctx); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("nothing stored: err = %v", err)
	}

	f.login(t, "ab", 1111)
	f.svc.Shutdown(ctx)
	if f.svc.ActiveSessions() != 0 {
		t.Fatalf("active sessions = %d", f.svc.ActiveSessions())
	}

	sess, err := f.svc.Restore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if sess.Username != "ab" || sess.Timer.State() != session.Running {
		t.Errorf("restored %s in %s", sess.Username, sess.Timer.State())
	}

	again, err := f.svc.Restore(ctx)
	if err != nil || again != sess {
		t.Errorf("second restore = %v, %v", again, err)
	}

	if err := f.svc.Logout(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Restore(ctx); !errors.Is(err, domain.ErrNoActiveSession) {
		t.Errorf("after logout: err = %v", err)
	}
}

func TestRestoreRemovedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, account("Ann Bell", 1111, 100))
	if err := f.lastUser.Set(ctx, "gone"); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Restore(ctx); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if got, _ := f.lastUser.Get(ctx); got != "" {
		t.Errorf("last user = %q, want cleared", got)
	}
}

func TestToggleSort(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, account("Ann Bell", 1111, 200, -50, 700, 10))
	sess := f.login(t, "ab", 1111)

	st, err := f.svc.ToggleSort(ctx, sess.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !st.Sorted {
		t.Fatal("not sorted")
	}
	var got []int64
	for _, row := range st.Movements {
		got = append(got, row.Value.IntPart())
	}
	want := []int64{700, 200, 10, -50}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}

	st, _ = f.svc.ToggleSort(ctx, sess.ID)
	if st.Sorted || st.Movements[0].Value.IntPart() != 10 {
		t.Errorf("unsorted rows = %+v", st.Movements)
	}
	if got := f.movements(t, "ab"); !equal(got, 200, -50, 700, 10) {
		t.Errorf("sorting changed stored order: %v", got)
	}
}
