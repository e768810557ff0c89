package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options selects and parameterizes the backing database.
type Options struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	// Schema namespaces every table on postgres. Ignored for sqlite.
	Schema string
	// Path is the sqlite database file.
	Path string
}

// DSN renders the postgres connection string.
func (o Options) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		o.Host, o.Port, o.User, o.Password, o.Name)
}

// Store owns the database handle. It is created once at startup and handed
// to every component that needs durable state; each unit of work gets its
// own transaction through Transaction.
type Store struct {
	db     *gorm.DB
	log    *zap.Logger
	schema string
}

// Open connects to the configured database. It does not migrate.
func Open(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	var (
		dialector gorm.Dialector
		naming    schema.NamingStrategy
		schemaNS  string
	)

	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN())
		if opts.Schema != "" {
			schemaNS = opts.Schema
			naming.TablePrefix = opts.Schema + "."
		}
	case DriverSQLite:
		conn, err := openSQLite(ctx, opts.Path)
		if err != nil {
			return nil, err
		}
		dialector = newSQLiteDialector(conn)
		log.Warn("sqlite runs on a single connection; a reminder pass blocks message handling until it commits",
			zap.String("path", opts.Path))
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: naming,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if opts.Driver == DriverPostgres {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	log.Info("database connected", zap.String("driver", opts.Driver))
	return &Store{db: db, log: log, schema: schemaNS}, nil
}

// Transaction runs fn inside a single database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(repo *Repo) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Repo{db: tx})
	})
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying database resources.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
