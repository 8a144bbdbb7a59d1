// Package postgres implements remote.Client over a PostgreSQL database.
package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"net"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/storage/remote"
)

type Client struct {
	db   *sqlx.DB
	sb   sq.StatementBuilderType
	auth remote.Auth
}

var _ remote.Client = (*Client)(nil) // interface compliance check

// New returns a client over db. secret signs remote access tokens.
func New(db *sqlx.DB, secret []byte, tokenTTL time.Duration) *Client {
	c := &Client{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	c.auth = remote.NewAuth(c, secret, tokenTTL)
	return c
}

func (c *Client) Auth() remote.Auth { return c.auth }

func (c *Client) Close() error { return c.db.Close() }

func (c *Client) Select(ctx context.Context, table string, eq remote.Eq, opts ...remote.SelectOption) ([]remote.Row, error) {
	query, args, err := c.selectSQL(table, eq, remote.ApplyOptions(opts))
	if err != nil {
		return nil, err
	}
	return c.queryRows(ctx, query, args)
}

func (c *Client) Single(ctx context.Context, table string, eq remote.Eq, opts ...remote.SelectOption) (remote.Row, error) {
	o := remote.ApplyOptions(opts)
	o.Limit = 2
	query, args, err := c.selectSQL(table, eq, o)
	if err != nil {
		return nil, err
	}
	rows, err := c.queryRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, remote.NewError(remote.CodeNoRows, fmt.Sprintf("JSON object requested, %d rows returned", len(rows)), nil)
	}
	return rows[0], nil
}

func (c *Client) Insert(ctx context.Context, table string, row remote.Row) (remote.Row, error) {
	query, args, err := c.insertSQL(table, row)
	if err != nil {
		return nil, err
	}
	rows, err := c.queryRows(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, remote.NewError(remote.CodeUnknown, "insert returned no row", nil)
	}
	return rows[0], nil
}

func (c *Client) Update(ctx context.Context, table string, values remote.Row, eq remote.Eq) ([]remote.Row, error) {
	query, args, err := c.updateSQL(table, values, eq)
	if err != nil {
		return nil, err
	}
	return c.queryRows(ctx, query, args)
}

func (c *Client) Delete(ctx context.Context, table string, eq remote.Eq) error {
	query, args, err := c.deleteSQL(table, eq)
	if err != nil {
		return err
	}
	if _, err = c.db.ExecContext(ctx, query, args...); err != nil {
		return mapError(err)
	}
	return nil
}

func (c *Client) RPC(ctx context.Context, fn string, args ...interface{}) (interface{}, error) {
	query, qargs, err := c.rpcSQL(fn, args)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err = c.db.QueryRowxContext(ctx, query, qargs...).Scan(&out); err != nil {
		return nil, mapError(err)
	}
	return normalize(out), nil
}

// ========================================
// SQL building

func checkIdents(names ...string) error {
	for _, n := range names {
		if !remote.ValidIdentifier(n) {
			return remote.NewError(remote.CodeUndefinedColumn, fmt.Sprintf("invalid identifier %q", n), nil)
		}
	}
	return nil
}

func qualify(table string, eq remote.Eq) (sq.Eq, error) {
	where := make(sq.Eq, len(eq))
	for col, val := range eq {
		if err := checkIdents(col); err != nil {
			return nil, err
		}
		where[table+"."+col] = val
	}
	return where, nil
}

func (c *Client) selectSQL(table string, eq remote.Eq, o remote.SelectOptions) (string, []interface{}, error) {
	if err := checkIdents(table); err != nil {
		return "", nil, err
	}
	if err := checkIdents(o.Columns...); err != nil {
		return "", nil, err
	}

	var cols []string
	if len(o.Columns) == 0 {
		cols = append(cols, table+".*")
	}
	for _, col := range o.Columns {
		cols = append(cols, table+"."+col)
	}

	b := c.sb.Select().From(table)
	for i, j := range o.Joins {
		if err := checkIdents(j.Table, j.LocalColumn, j.ForeignColumn); err != nil {
			return "", nil, err
		}
		alias := fmt.Sprintf("j%d", i)
		b = b.LeftJoin(fmt.Sprintf("%s AS %s ON %s.%s = %s.%s", j.Table, alias, alias, j.ForeignColumn, table, j.LocalColumn))
		for _, as := range sortedKeys(j.Columns) {
			if err := checkIdents(as, j.Columns[as]); err != nil {
				return "", nil, err
			}
			cols = append(cols, fmt.Sprintf("%s.%s AS %s", alias, j.Columns[as], as))
		}
	}
	b = b.Columns(cols...)

	if len(eq) > 0 {
		where, err := qualify(table, eq)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(where)
	}
	for _, ord := range o.OrderBy {
		if err := checkIdents(ord.Field); err != nil {
			return "", nil, err
		}
		b = b.OrderBy(table + "." + ord.String())
	}
	if o.Limit > 0 {
		b = b.Limit(o.Limit)
	}
	return b.ToSql()
}

func (c *Client) insertSQL(table string, row remote.Row) (string, []interface{}, error) {
	if err := checkIdents(table); err != nil {
		return "", nil, err
	}
	for col := range row {
		if err := checkIdents(col); err != nil {
			return "", nil, err
		}
	}
	return c.sb.Insert(table).SetMap(map[string]interface{}(row)).Suffix("RETURNING *").ToSql()
}

func (c *Client) updateSQL(table string, values remote.Row, eq remote.Eq) (string, []interface{}, error) {
	if err := checkIdents(table); err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "", nil, remote.NewError(remote.CodeNotNull, "no values to update", nil)
	}
	for col := range values {
		if err := checkIdents(col); err != nil {
			return "", nil, err
		}
	}
	b := c.sb.Update(table).SetMap(map[string]interface{}(values)).Suffix("RETURNING *")
	if len(eq) > 0 {
		where, err := qualify(table, eq)
		if err != nil {
			return "", nil, err
		}
		b = b.Where(where)
	}
	return b.ToSql()
}

func (c *Client) deleteSQL(table string, eq remote.Eq) (string, []interface{}, error) {
	if err := checkIdents(table); err != nil {
		return "", nil, err
	}
	if len(eq) == 0 {
		return "", nil, remote.NewError(remote.CodePrivilege, "refusing to delete without a filter", nil)
	}
	where, err := qualify(table, eq)
	if err != nil {
		return "", nil, err
	}
	return c.sb.Delete(table).Where(where).ToSql()
}

func (c *Client) rpcSQL(fn string, args []interface{}) (string, []interface{}, error) {
	if err := checkIdents(fn); err != nil {
		return "", nil, remote.NewError(remote.CodeUndefinedFunction, fmt.Sprintf("invalid function name %q", fn), nil)
	}
	call := sq.Expr(fmt.Sprintf("%s(%s) AS result", fn, sq.Placeholders(len(args))), args...)
	return c.sb.Select().Column(call).ToSql()
}

// ========================================
// results

func (c *Client) queryRows(ctx context.Context, query string, args []interface{}) ([]remote.Row, error) {
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer func() { _ = rows.Close() }()

	var out []remote.Row
	for rows.Next() {
		r := make(map[string]interface{})
		if err = rows.MapScan(r); err != nil {
			return nil, mapError(err)
		}
		for k, v := range r {
			r[k] = normalize(v)
		}
		out = append(out, r)
	}
	if err = rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

// normalize turns driver text/json/uuid columns ([]byte) into strings.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// mapError normalizes driver failures into *remote.Error.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	var netErr net.Error
	switch {
	case errors.As(err, &pqErr):
		return remote.NewError(string(pqErr.Code), pqErr.Message, err)
	case errors.Is(err, sql.ErrNoRows):
		return remote.NewError(remote.CodeNoRows, "no rows returned", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return remote.NewError(remote.CodeTimeout, "canceling statement", err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.As(err, &netErr):
		return remote.NewError(remote.CodeConnection, "connection failure", err)
	}
	return remote.NewError(remote.CodeUnknown, err.Error(), err)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
