// Package storage persists appointments and chat messages in SQLite
// (default) or PostgreSQL.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/neuropath/rtcore/internal/model"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mpostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	msqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	logging "github.com/ipfs/go-log/v2"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var log = logging.Logger("storage")

//go:embed migrations
var migrationsFS embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the persistence collaborator for the state machine and chat relay.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to the database and applies pending migrations.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent transitions.
		db.SetMaxOpenConns(1)
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, fmt.Errorf("storage: %s: %w", pragma, err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	src, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return fmt.Errorf("storage: migrations source: %w", err)
	}

	var drv database.Driver
	switch s.driver {
	case DriverPostgres:
		drv, err = mpostgres.WithInstance(s.db, &mpostgres.Config{})
	default:
		drv, err = msqlite.WithInstance(s.db, &msqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("storage: migrations driver: %w", err)
	}

	// m.Close would close s.db, so the migrator is simply dropped.
	m, err := migrate.NewWithInstance("iofs", src, s.driver, drv)
	if err != nil {
		return fmt.Errorf("storage: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("storage: migrate up: %w", err)
	}
	v, dirty, _ := m.Version()
	log.Infof("schema version %d (dirty=%v, driver=%s)", v, dirty, s.driver)
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind rewrites ? placeholders to $N for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", model.ErrPersistence, op, err)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
