package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/neurocanvas-backend/internal/platform/logger"
)

type Options struct {
	// Driver is "postgres" or "sqlite".
	Driver string
	// DSN is a libpq DSN for postgres or a file path / URI for sqlite.
	DSN string
	// LogLevel is one of silent|error|warn|info. Defaults to warn.
	LogLevel string
}

// Open connects to the configured database.
func Open(log *logger.Logger, opts Options) (*gorm.DB, error) {
	serviceLog := log.With("service", "Database")
	cfg := &gorm.Config{
		Logger: gormLogger.New(logWriter{log: serviceLog}, gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  parseLogLevel(opts.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}

	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "postgres", "":
		db, err := gorm.Open(postgres.Open(opts.DSN), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		serviceLog.Info("Connected to Postgres")
		return db, nil
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(SQLiteDSN(opts.DSN)), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite: %w", err)
		}
		if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
			return nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		serviceLog.Info("Opened SQLite", "dsn", opts.DSN)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// SQLiteDSN appends the foreign key pragma parameter when missing.
func SQLiteDSN(path string) string {
	path = strings.TrimSpace(path)
	if strings.Contains(path, "_foreign_keys=") || strings.Contains(path, "_fk=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on"
}

func parseLogLevel(raw string) gormLogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "silent":
		return gormLogger.Silent
	case "error":
		return gormLogger.Error
	case "info":
		return gormLogger.Info
	default:
		return gormLogger.Warn
	}
}

// logWriter routes gorm's printf-style output through the app logger.
type logWriter struct {
	log *logger.Logger
}

func (w logWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
