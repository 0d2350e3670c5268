package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/xxxsen/lexdesk/internal/pkg/dbutil"
	"github.com/xxxsen/lexdesk/internal/pkg/retry"
)

// Conn is the record store handle shared by all repos. Writes are retried on
// transient failures; reads are not.
type Conn struct {
	db     *sql.DB
	driver string
	bind   int
	policy retry.Policy
}

func NewConn(db *sql.DB, driver string, policy retry.Policy) *Conn {
	return &Conn{
		db:     db,
		driver: driver,
		bind:   sqlx.BindType(driver),
		policy: policy.WithRetryable(dbutil.IsTransient),
	}
}

func (c *Conn) DB() *sql.DB {
	return c.db
}

func (c *Conn) Driver() string {
	return c.driver
}

func (c *Conn) Exec(ctx context.Context, name string, query string, args ...interface{}) (sql.Result, error) {
	query, args = dbutil.Finalize(c.bind, query, args)
	return retry.Do(ctx, c.policy, name, func(ctx context.Context) (sql.Result, error) {
		return c.db.ExecContext(ctx, query, args...)
	})
}

func (c *Conn) Query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	query, args = dbutil.Finalize(c.bind, query, args)
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	query, args = dbutil.Finalize(c.bind, query, args)
	return c.db.QueryRowContext(ctx, query, args...)
}

func affectedOrNotFound(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errNotFound
	}
	return nil
}

func toArgs(ids []string) []interface{} {
	out := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, id)
	}
	return out
}
