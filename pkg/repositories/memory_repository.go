package repositories

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrenbrandao/bankist/pkg/domain"
)

// MemoryRepository keeps accounts in process memory. It is created once at
// startup and shared by handle.
type MemoryRepository struct {
	mu       sync.Mutex
	order    []string
	accounts map[string]*domain.Account
}

func NewMemoryRepository(accounts ...domain.Account) *MemoryRepository {
	r := &MemoryRepository{accounts: make(map[string]*domain.Account)}
	for _, a := range accounts {
		_ = r.Add(context.Background(), a)
	}
	return r
}

func (r *MemoryRepository) Add(_ context.Context, a domain.Account) error {
	if !a.Consistent() {
		return fmt.Errorf("account %s: %d movements but %d dates", a.Username, len(a.Movements), len(a.MovementDates))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.Username]; ok {
		return domain.ErrAccountExists
	}
	c := a.Clone()
	r.accounts[a.Username] = &c
	r.order = append(r.order, a.Username)
	return nil
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) FindByCredentials(_ context.Context, username string, pin int) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok || a.Pin != pin {
		return domain.Account{}, domain.ErrIncorrectCredentials
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) List(_ context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.Account, 0, len(r.order))
	for _, username := range r.order {
		out = append(out, r.accounts[username].Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Remove(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[username]; !ok {
		return domain.ErrNotFound
	}
	delete(r.accounts, username)
	for i, u := range r.order {
		if u == username {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Mutate hands copies of the named accounts to fn and stores them only if
// fn returns nil.
func (r *MemoryRepository) Mutate(_ context.Context, usernames []string, fn func([]*domain.Account) error) error {
	if err := distinct(usernames); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copies := make([]*domain.Account, len(usernames))
	for i, username := range usernames {
		a, ok := r.accounts[username]
		if !ok {
			return domain.ErrNotFound
		}
		c := a.Clone()
		copies[i] = &c
	}

	if err := fn(copies); err != nil {
		return err
	}

	for _, c := range copies {
		if !c.Consistent() {
			return fmt.Errorf("account %s: movements and dates out of step", c.Username)
		}
	}
	for _, c := range copies {
		r.accounts[c.Username] = c
	}
	return nil
}

func distinct(usernames []string) error {
	seen := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		if _, ok := seen[u]; ok {
			return domain.ErrSameAccount
		}
		seen[u] = struct{}{}
	}
	return nil
}
