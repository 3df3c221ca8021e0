package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andrenbrandao/bankist/pkg/bank"
	"github.com/andrenbrandao/bankist/pkg/config"
	"github.com/andrenbrandao/bankist/pkg/domain"
	"github.com/andrenbrandao/bankist/pkg/handlers"
	"github.com/andrenbrandao/bankist/pkg/logger"
	"github.com/andrenbrandao/bankist/pkg/repositories"
	"github.com/andrenbrandao/bankist/pkg/session"
	"github.com/exaring/otelpgx"
	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
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

func connectDB(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging database: %w", err)
	}
	return pool, nil
}

// seedDB creates the schema from seed.sql and loads the demo accounts into
// an empty database.
func seedDB(ctx context.Context, pool *pgxpool.Pool, accounts *repositories.AccountRepository) error {
	seedSql, err := os.ReadFile("seed.sql")
	if err != nil {
		return fmt.Errorf("error while trying to read seed.sql: %w", err)
	}
	if _, err := pool.Exec(ctx, string(seedSql)); err != nil {
		return fmt.Errorf("unable to create schema: %w", err)
	}
	return accounts.Seed(ctx, repositories.DemoAccounts())
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	if err = logger.Initialize(cfg.LogLevel); err != nil {
		log.Fatalf("error starting logger: %v", err)
	}
	defer logger.Log.Sync()

	if cfg.TracingEnabled {
		shutdownTracing, err := otelconfig.ConfigureOpenTelemetry(
			otelconfig.WithSpanProcessor(honeycomb.NewBaggageSpanProcessor()),
		)
		if err != nil {
			logger.Log.Fatal("error setting up OpenTelemetry", logger.Error(err))
		}
		defer shutdownTracing()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	var repo accountRepository
	if cfg.DatabaseURL != "" {
		pool, err := connectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Log.Fatal("error connecting to database", logger.Error(err))
		}
		defer pool.Close()

		accounts := repositories.NewAccountRepository(pool)
		if err := seedDB(ctx, pool, accounts); err != nil {
			logger.Log.Fatal("unable to seed database", logger.Error(err))
		}
		repo = accounts
	} else {
		logger.Log.Info("DATABASE_URI not set, keeping accounts in memory")
		repo = repositories.NewMemoryRepository(repositories.DemoAccounts()...)
	}

	var lastUser lastUserStore
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Log.Fatal("error connecting to redis", logger.Error(err))
		}
		lastUser = repositories.NewRedisStore(rdb)
	} else {
		lastUser = repositories.NewFileStore(cfg.StateFile)
	}

	svc := bank.NewService(repo, lastUser, session.NewScheduler(), bank.Options{
		TimerBudget:  cfg.TimerBudget(),
		TickInterval: cfg.TickInterval,
		LoanDelay:    cfg.LoanDelay,
		DateRefresh:  cfg.DateRefresh,
	})

	if sess, err := svc.Restore(ctx); err == nil {
		logger.Log.Info("restored last session", logger.String("username", sess.Username))
	}

	ongoingCtx, cancelOngoingRequests := context.WithCancel(context.Background())
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: handlers.New(svc, handlers.NewTokens(cfg.SecretKey)).Router(cfg.AllowedOrigins),
		BaseContext: func(_ net.Listener) context.Context {
			return ongoingCtx
		},
	}

	go func() {
		logger.Log.Info("starting server", logger.String("address", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("server error", logger.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("error shutting down server", logger.Error(err))
	}
	cancelOngoingRequests()

	svc.Shutdown(context.Background())
	logger.Log.Info("shutdown complete")
}
