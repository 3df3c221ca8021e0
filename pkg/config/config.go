package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string        `env:"RUN_ADDRESS" env-default:":8080"`
	DatabaseURL    string        `env:"DATABASE_URI"`
	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	StateFile      string        `env:"STATE_FILE" env-default:"bankist-state.json"`
	SecretKey      string        `env:"SECRET_KEY" env-default:"bankist"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"info"`
	LogoutAfter    time.Duration `env:"LOGOUT_AFTER" env-default:"2m"`
	TickInterval   time.Duration `env:"TICK_INTERVAL" env-default:"1s"`
	LoanDelay      time.Duration `env:"LOAN_DELAY" env-default:"2500ms"`
	DateRefresh    time.Duration `env:"DATE_REFRESH" env-default:"1m"`
	TracingEnabled bool          `env:"TRACING_ENABLED" env-default:"false"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" env-default:"*" env-separator:","`
}

// TimerBudget is the countdown start value in ticks.
func (c Config) TimerBudget() int {
	if c.TickInterval <= 0 {
		return int(c.LogoutAfter / time.Second)
	}
	return int(c.LogoutAfter / c.TickInterval)
}

// Load reads an optional .env file, the environment and then flags, which
// take precedence.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}

	fs := flag.NewFlagSet("bankist", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "HTTP server address")
	fs.StringVar(&cfg.DatabaseURL, "d", cfg.DatabaseURL, "PostgreSQL URL, in-memory accounts when empty")
	fs.StringVar(&cfg.RedisAddr, "r", cfg.RedisAddr, "Redis address for the last-user entry, file when empty")
	fs.DurationVar(&cfg.LogoutAfter, "logout-after", cfg.LogoutAfter, "inactivity before logout")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("couldn't parse flags: %w", err)
	}

	if cfg.LogoutAfter <= 0 {
		return nil, fmt.Errorf("logout timeout must be positive, got %s", cfg.LogoutAfter)
	}

	return cfg, nil
}
