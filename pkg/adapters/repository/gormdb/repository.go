package gormdb

import (
	"context"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wadjakorntonsri/shortly/pkg/core/domain"
	"github.com/wadjakorntonsri/shortly/pkg/ports"
)

// Options tune the connection pool and ORM logging.
type Options struct {
	MaxOpenConns int
	MaxIdleConns int
	Debug        bool
}

type Repository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewRepository opens dbURL, picking the dialect from its scheme, and
// migrates the schema.
//
//	postgres://, postgresql://   PostgreSQL
//	mysql://user:pw@tcp(host)/db MySQL (the prefix is stripped)
//	libsql://, wss://            Turso
//	anything else                local SQLite file or file: DSN
func NewRepository(dbURL string, opts Options, log *zap.Logger) (*Repository, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dialector, local := openDialector(dbURL)

	gormLogger := logger.Default.LogMode(logger.Silent)
	if opts.Debug {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}

	if local {
		// SQLite allows one writer; queue on the pool instead of failing with SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		// zero keeps database/sql semantics: unlimited open, no idle
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(10 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, errors.Wrap(err, "ping database")
	}

	if err := migrate(db); err != nil {
		return nil, errors.Wrap(err, "migrate schema")
	}

	log.Info("database ready", zap.String("dialect", dialector.Name()), zap.Bool("local", local))
	return &Repository{db: db, logger: log}, nil
}

func openDialector(dbURL string) (gorm.Dialector, bool) {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		return postgres.Open(dbURL), false
	case strings.HasPrefix(dbURL, "mysql://"):
		return mysql.Open(strings.TrimPrefix(dbURL, "mysql://")), false
	case strings.Contains(dbURL, "libsql://"), strings.Contains(dbURL, "wss://"):
		return &sqlite.Dialector{DriverName: "libsql", DSN: dbURL}, false
	default:
		return sqlite.Open(withBusyTimeout(dbURL)), true
	}
}

func withBusyTimeout(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&linkModel{}, &clickModel{}, &userModel{})
}

func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return persistErr("ping", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return persistErr("ping", err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// persistErr tags a storage failure with domain.ErrPersistence while keeping
// the driver message for logs.
func persistErr(op string, err error) error {
	return errors.Wrapf(domain.ErrPersistence, "%s: %v", op, err)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}

// Ensure interface compliance
var (
	_ ports.LinkRepository = (*Repository)(nil)
	_ ports.UserRepository = (*Repository)(nil)
)
