package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AccountRepository stores accounts in PostgreSQL. Movements live in their
// own table, ordered by insertion.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// GetAccount loads an account and its movements. With forUpdate the account
// row stays locked until q's transaction ends.
func GetAccount(ctx context.Context, q querier, username string, forUpdate bool) (domain.Account, error) {
	var (
		a    domain.Account
		rate string
	)
	query := "SELECT username, owner, pin, interest_rate::text, currency, locale FROM accounts WHERE username = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}
	err := q.QueryRow(ctx, query, username).Scan(&a.Username, &a.Owner, &a.Pin, &rate, &a.Currency, &a.Locale)
	if errors.Is(err, pgx.ErrNoRows) {
		return a, domain.ErrNotFound
	}
	if err != nil {
		return a, fmt.Errorf("error fetching account %s: %w", username, err)
	}

	a.InterestRate, err = decimal.NewFromString(rate)
	if err != nil {
		return a, fmt.Errorf("error parsing interest rate %q: %w", rate, err)
	}

	rows, err := q.Query(ctx, "SELECT amount::text, created_at FROM movements WHERE username = $1 ORDER BY seq", username)
	if err != nil {
		return a, fmt.Errorf("error fetching movements of %s: %w", username, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			amount string
			at     time.Time
		)
		if err := rows.Scan(&amount, &at); err != nil {
			return a, fmt.Errorf("error scanning movement: %w", err)
		}
		m, err := decimal.NewFromString(amount)
		if err != nil {
			return a, fmt.Errorf("error parsing movement %q: %w", amount, err)
		}
		a.AddMovement(m, at)
	}
	if err := rows.Err(); err != nil {
		return a, fmt.Errorf("error iterating over movements: %w", err)
	}

	return a, nil
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (domain.Account, error) {
	return GetAccount(ctx, r.pool, username, false)
}

func (r *AccountRepository) FindByCredentials(ctx context.Context, username string, pin int) (domain.Account, error) {
	a, err := GetAccount(ctx, r.pool, username, false)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, domain.ErrIncorrectCredentials
	}
	if err != nil {
		return domain.Account{}, err
	}
	if a.Pin != pin {
		return domain.Account{}, domain.ErrIncorrectCredentials
	}
	return a, nil
}

func (r *AccountRepository) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, "SELECT username FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}
	usernames, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("error listing accounts: %w", err)
	}

	accounts := make([]domain.Account, 0, len(usernames))
	for _, u := range usernames {
		a, err := GetAccount(ctx, r.pool, u, false)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (r *AccountRepository) Add(ctx context.Context, a domain.Account) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertAccount(ctx, tx, a); err != nil {
		return err
	}
	if err := insertMovements(ctx, tx, a.Username, a.Movements, a.MovementDates); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (r *AccountRepository) Remove(ctx context.Context, username string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM accounts WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("error removing account %s: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Mutate locks the named accounts with SELECT ... FOR UPDATE, in username
// order, and inserts the movements fn appended when fn returns nil.
func (r *AccountRepository) Mutate(ctx context.Context, usernames []string, fn func([]*domain.Account) error) error {
	if err := distinct(usernames); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	locked := make(map[string]*domain.Account, len(usernames))
	sorted := append([]string(nil), usernames...)
	sort.Strings(sorted)
	for _, u := range sorted {
		a, err := GetAccount(ctx, tx, u, true)
		if err != nil {
			return err
		}
		locked[u] = &a
	}

	accounts := make([]*domain.Account, len(usernames))
	before := make([]int, len(usernames))
	for i, u := range usernames {
		accounts[i] = locked[u]
		before[i] = len(locked[u].Movements)
	}

	if err := fn(accounts); err != nil {
		return err
	}

	for i, a := range accounts {
		if !a.Consistent() || len(a.Movements) < before[i] {
			return fmt.Errorf("account %s: movements can only be appended", a.Username)
		}
		if err := insertMovements(ctx, tx, a.Username, a.Movements[before[i]:], a.MovementDates[before[i]:]); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// Seed inserts accounts when the accounts table is empty.
func (r *AccountRepository) Seed(ctx context.Context, accounts []domain.Account) error {
	var count int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM accounts").Scan(&count); err != nil {
		return fmt.Errorf("error counting accounts: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, a := range accounts {
		if err := r.Add(ctx, a); err != nil && !errors.Is(err, domain.ErrAccountExists) {
			return err
		}
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAccount(ctx context.Context, tx execer, a domain.Account) error {
	_, err := tx.Exec(ctx,
		"INSERT INTO accounts (username, owner, pin, interest_rate, currency, locale) VALUES ($1, $2, $3, $4::numeric, $5, $6)",
		a.Username, a.Owner, a.Pin, a.InterestRate.String(), a.Currency, a.Locale)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.ErrAccountExists
		}
		return fmt.Errorf("error creating account %s: %w", a.Username, err)
	}
	return nil
}

func insertMovements(ctx context.Context, tx execer, username string, amounts []decimal.Decimal, dates []time.Time) error {
	for i, amount := range amounts {
		_, err := tx.Exec(ctx,
			"INSERT INTO movements (id, username, amount, created_at) VALUES ($1, $2, $3::numeric, $4)",
			ulid.Make().String(), username, amount.String(), dates[i])
		if err != nil {
			return fmt.Errorf("error inserting movement for %s: %w", username, err)
		}
	}
	return nil
}
