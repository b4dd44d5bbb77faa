// Package logging builds the zap loggers used by the server, the CLI and GORM.
//
// There is no package-level logger: main builds one with New and hands it to every
// constructor that logs, the same way the *gorm.DB is passed around.
package logging

import (
	"fmt"
	"time"

	// zap is a structured, levelled logger. Fields are typed (zap.String, zap.Error)
	// instead of being formatted into the message.
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
	// zapgorm2 adapts a *zap.Logger to GORM's logger interface.
	"moul.io/zapgorm2"
)

// slowQuery is the duration above which GORM logs a query as slow.
const slowQuery = 200 * time.Millisecond

// New returns a JSON production logger when production is true and a colourised console
// logger otherwise. level is a zap level name ("debug", "info", ...).
func New(production bool, level string) (*zap.Logger, error) {
	// Parse the level first so a typo in LOG_LEVEL fails startup instead of silently
	// logging at the wrong level.
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	if production {
		// One JSON object per line, ready for a log collector.
		cfg = zap.NewProductionConfig()
	} else {
		// Human-readable console output with coloured level names for local work.
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// Gorm adapts log to GORM's logger interface. Only warnings (including slow queries)
// and errors are written; missing rows are an expected outcome and are not logged.
//
// The returned logger is only used by the connection it is configured on. GORM's
// process-wide default logger is left untouched.
func Gorm(log *zap.Logger) gormlogger.Interface {
	gl := zapgorm2.New(log.Named("gorm"))
	// "record not found" is how lookups report a missing id; the domain packages turn
	// it into a 404, so it is not worth a log line.
	gl.IgnoreRecordNotFoundError = true
	gl.SlowThreshold = slowQuery
	return gl.LogMode(gormlogger.Warn)
}
