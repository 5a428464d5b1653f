package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/userledger/internal/dbx"
	"github.com/dmitrijs2005/userledger/internal/kv"
	"github.com/jackc/pgx/v5/pgconn"
)

// conn is a kv.Store bound to one transaction.
type conn struct {
	db dbx.DBTX
	q  queries
}

type row struct {
	k, v []byte
}

func (c *conn) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	var v []byte
	err := c.db.QueryRowContext(ctx, c.q.get, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, dbError(err)
	}
	return v, true, nil
}

func (c *conn) Set(ctx context.Context, key, value []byte) error {
	if _, err := c.db.ExecContext(ctx, c.q.set, key, value); err != nil {
		return dbError(err)
	}
	return nil
}

func (c *conn) Delete(ctx context.Context, key []byte) error {
	if _, err := c.db.ExecContext(ctx, c.q.del, key); err != nil {
		return dbError(err)
	}
	return nil
}

// Scan buffers the range before calling fn so fn may issue further
// statements on the same transaction.
func (c *conn) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) error) error {
	var (
		rows *sql.Rows
		err  error
	)
	if end := kv.PrefixEnd(prefix); end != nil {
		rows, err = c.db.QueryContext(ctx, c.q.scan, nonNil(prefix), end)
	} else {
		rows, err = c.db.QueryContext(ctx, c.q.scanOpen, nonNil(prefix))
	}
	if err != nil {
		return dbError(err)
	}

	var buf []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.k, &r.v); err != nil {
			_ = rows.Close()
			return dbError(err)
		}
		buf = append(buf, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return dbError(err)
	}
	if err := rows.Close(); err != nil {
		return dbError(err)
	}

	for _, r := range buf {
		if err := fn(r.k, r.v); err != nil {
			return err
		}
	}
	return nil
}

// PostgreSQL SQLSTATE codes that mean "retry the whole transaction".
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// dbError classifies a driver error. Serialization failures and deadlocks
// become kv.ErrConflict; everything else is kv.ErrStore.
func dbError(err error) error {
	if isConflict(err) {
		return fmt.Errorf("%w: db error: %v", kv.ErrConflict, err)
	}
	return fmt.Errorf("%w: db error: %v", kv.ErrStore, err)
}

func isConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

// nonNil keeps an empty prefix from binding as SQL NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
