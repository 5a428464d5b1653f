// Package sqlkv implements kv.Transactor on a single `kv` table through
// database/sql. PostgreSQL is reached through pgx's stdlib driver and SQLite
// through modernc.org/sqlite; each Update call runs in one SQL transaction.
package sqlkv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/userledger/internal/dbx"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/dmitrijs2005/userledger/internal/kv/sqlkv/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects driver name, placeholders and migrations.
type Dialect struct {
	Name          string // database/sql driver name
	gooseDialect  string
	migrationsDir string
	placeholder   string
	readOnlyTx    bool
	updateTx      *sql.TxOptions
}

// serializable makes concurrent writers from other processes fail with
// kv.ErrConflict instead of interleaving.
var serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

var (
	Postgres = Dialect{Name: "pgx", gooseDialect: "postgres", migrationsDir: "postgres", placeholder: "$", readOnlyTx: true, updateTx: serializable}
	SQLite   = Dialect{Name: "sqlite", gooseDialect: "sqlite3", migrationsDir: "sqlite", placeholder: "?"}
)

// DialectFor maps a storage driver name from config to a Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

type queries struct {
	get      string
	set      string
	del      string
	scan     string
	scanOpen string
}

func (d Dialect) queries() queries {
	q := queries{
		get:      `SELECT v FROM kv WHERE k = $1`,
		set:      `INSERT INTO kv (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = excluded.v`,
		del:      `DELETE FROM kv WHERE k = $1`,
		scan:     `SELECT k, v FROM kv WHERE k >= $1 AND k < $2 ORDER BY k`,
		scanOpen: `SELECT k, v FROM kv WHERE k >= $1 ORDER BY k`,
	}
	if d.placeholder != "$" {
		r := strings.NewReplacer("$", d.placeholder)
		q.get, q.set, q.del = r.Replace(q.get), r.Replace(q.set), r.Replace(q.del)
		q.scan, q.scanOpen = r.Replace(q.scan), r.Replace(q.scanOpen)
	}
	return q
}

type Store struct {
	db      *sql.DB
	dialect Dialect
	q       queries
}

var _ kv.Transactor = (*Store)(nil)

// New wraps an already opened database. The schema is not touched; call
// Migrate or use Open.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d, q: d.queries()}
}

// Open opens the database, checks connectivity and applies migrations.
func Open(ctx context.Context, d Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(d.Name, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if d == SQLite {
		// one writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := New(db, d)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.dialect.gooseDialect); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, s.dialect.migrationsDir)
}

// Update runs fn in one transaction. On PostgreSQL the transaction is
// SERIALIZABLE; a serialization failure, including one reported at commit,
// surfaces as kv.ErrConflict.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, st kv.Store) error) error {
	err := dbx.WithTx(ctx, s.db, s.dialect.updateTx, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &conn{db: tx, q: s.q})
	})
	if err != nil && isConflict(err) {
		return fmt.Errorf("%w: %v", kv.ErrConflict, err)
	}
	return err
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r kv.Reader) error) error {
	var opts *sql.TxOptions
	if s.dialect.readOnlyTx {
		opts = dbx.ReadOnly
	}
	return dbx.WithTx(ctx, s.db, opts, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &conn{db: tx, q: s.q})
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}
