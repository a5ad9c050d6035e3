package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/reel/internal/catalog"
	"github.com/MarcoPoloResearchLab/reel/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var errUnsupportedDriver = errors.New("database: unsupported driver")

// Options selects the store backend.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects to the configured backend and migrates the schema.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(options.Driver)) {
	case "", DriverSQLite:
		return OpenSQLite(options.Path, logger)
	case DriverPostgres:
		return OpenPostgres(options.DSN, logger)
	default:
		return nil, fmt.Errorf("%w: %q", errUnsupportedDriver, options.Driver)
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverSQLite), zap.String("path", path))
	}

	return db, nil
}

// OpenPostgres establishes a PostgreSQL connection through pgx and performs schema migrations.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	if err := migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverPostgres))
	}

	return db, nil
}

// Models lists every table the API owns, in migration order.
func Models() []any {
	models := append([]any{}, users.Models()...)
	models = append(models, catalog.Models()...)
	return append(models, &migrationRecord{})
}

func migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
}
