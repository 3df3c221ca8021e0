package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Log is a no-op until Initialize is called, so packages can log in tests.
var Log = zap.NewNop()

var (
	String   = zap.String
	Int      = zap.Int
	Int64    = zap.Int64
	Bool     = zap.Bool
	Error    = zap.Error
	Duration = zap.Duration
	Stringer = zap.Stringer
)

func Initialize(level string) error {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("error building logger: %w", err)
	}

	Log = l
	return nil
}
