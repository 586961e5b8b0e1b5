package db

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"printcost-backend/config"
	"printcost-backend/internal/model"
)

// Models lists every table owned by the service, in migration order.
var Models = []interface{}{
	&model.Company{},
	&model.User{},
	&model.AuthToken{},
	&model.Printer{},
	&model.Filament{},
	&model.ProcessingJob{},
	&model.LedgerEntry{},
	&model.PushSubscription{},
}

// Init opens the database named by cfg.DSN and runs migrations. DSNs starting with postgres:// or
// postgresql:// (or containing host=) use PostgreSQL; anything else is a SQLite file path.
func Init(cfg *config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	dialector, isSQLite := dialectorFor(cfg.DSN)

	level := logger.Warn
	if cfg.LogQueries {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	if isSQLite {
		// SQLite allows a single writer; one connection keeps workers from tripping SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	}

	log.Info("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	log.Info("Database initialization complete.", zap.Bool("sqlite", isSQLite))
	return db, nil
}

// Migrate creates or updates all tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models...); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

func dialectorFor(dsn string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), false
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if !strings.Contains(path, "?") {
			path += "?_foreign_keys=on&_busy_timeout=5000"
		}
		return sqlite.Open(path), true
	}
}
