package obs

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerOnce sync.Once
	logger     *zap.Logger
)

// InitLogger builds the process-wide logger. Idempotent; only the first call
// takes effect. env "dev" selects the human-readable console encoder.
func InitLogger(env, level string) {
	loggerOnce.Do(func() {
		logger = build(env, level)
	})
}

// Logger returns the shared structured logger. Callers that run before
// InitLogger (tests, tooling) get a production JSON logger at info level.
func Logger() *zap.Logger {
	if logger == nil {
		InitLogger("prod", "info")
	}
	return logger
}

// Named returns a child logger tagged with a component name.
func Named(name string) *zap.Logger {
	return Logger().Named(name)
}

// Sync flushes buffered log entries. Deferred from main.
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}

func build(env, level string) *zap.Logger {
	lvl := zapcore.InfoLevel
	if parsed, err := zapcore.ParseLevel(level); err == nil {
		lvl = parsed
	}

	var cfg zap.Config
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	built, err := cfg.Build(zap.AddCaller())
	if err != nil {
		return zap.NewNop()
	}
	return built
}
