package remote

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RPCFunc implements a stored procedure of the in-memory client.
type RPCFunc func(c *MemoryClient, args ...interface{}) (interface{}, error)

type memoryTable struct {
	rows   []Row
	unique []string
}

// MemoryClient is a complete in-process Client. It backs tests and offline development
// and can be told to fail every call to simulate an unreachable backend.
type MemoryClient struct {
	mu      sync.RWMutex
	tables  map[string]*memoryTable
	rpcs    map[string]RPCFunc
	failure error
	failN   int // remaining calls to fail; <0 means until cleared
	calls   int
	auth    Auth
}

var _ Client = (*MemoryClient)(nil) // interface compliance check

// NewMemoryClient returns a client with the QuizMaster schema and stored procedures.
func NewMemoryClient(secret []byte) *MemoryClient {
	c := &MemoryClient{
		tables: make(map[string]*memoryTable),
		rpcs:   make(map[string]RPCFunc),
	}
	c.CreateTable(TableUsers, "id", "username")
	c.CreateTable(TableQuizzes, "id")
	c.CreateTable(TableAccounts, "id", "email")
	c.CreateTable(TableSessions, "id")
	c.RegisterRPC(FnEmailByUsername, emailByUsername)
	c.auth = NewAuth(c, secret, time.Hour)
	return c
}

// emailByUsername resolves a username to the email of its auth account, or nil.
func emailByUsername(c *MemoryClient, args ...interface{}) (interface{}, error) {
	if len(args) != 1 {
		return nil, NewError(CodeUndefinedFunction, FnEmailByUsername+" takes 1 argument", nil)
	}
	users, err := c.table(TableUsers)
	if err != nil {
		return nil, err
	}
	accounts, err := c.table(TableAccounts)
	if err != nil {
		return nil, err
	}
	uname := strings.ToLower(String(args[0]))
	var userID string
	for _, row := range users.rows {
		if String(row["username"]) == uname {
			userID = String(row["id"])
			break
		}
	}
	if userID == "" {
		return nil, nil
	}
	for _, row := range accounts.rows {
		if String(row["user_id"]) == userID {
			return String(row["email"]), nil
		}
	}
	return nil, nil
}

// CreateTable (re)creates an empty table with unique columns.
func (c *MemoryClient) CreateTable(name string, unique ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = &memoryTable{unique: unique}
}

// DropTable removes a table; later calls on it fail with CodeUndefinedTable.
func (c *MemoryClient) DropTable(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.tables, name)
}

func (c *MemoryClient) RegisterRPC(name string, fn RPCFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rpcs[name] = fn
}

// SetFailure makes every following call fail with err until ClearFailure.
func (c *MemoryClient) SetFailure(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure, c.failN = err, -1
}

// FailNext makes the next n calls fail with err.
func (c *MemoryClient) FailNext(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure, c.failN = err, n
}

func (c *MemoryClient) ClearFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure, c.failN = nil, 0
}

// Calls returns the number of table and RPC calls served or failed so far.
func (c *MemoryClient) Calls() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls
}

// Rows returns a copy of every row of table.
func (c *MemoryClient) Rows(table string) []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[table]
	if !ok {
		return nil
	}
	rows := make([]Row, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, copyRow(r))
	}
	return rows
}

func (c *MemoryClient) Auth() Auth   { return c.auth }
func (c *MemoryClient) Close() error { return nil }

// begin counts the call and returns the injected failure, if any. Caller holds c.mu.
func (c *MemoryClient) begin(ctx context.Context) error {
	c.calls++
	if err := ctx.Err(); err != nil {
		return NewError(CodeTimeout, "canceling statement", err)
	}
	if c.failure == nil || c.failN == 0 {
		return nil
	}
	if c.failN > 0 {
		c.failN--
	}
	return c.failure
}

func (c *MemoryClient) table(name string) (*memoryTable, error) {
	t, ok := c.tables[name]
	if !ok {
		return nil, NewError(CodeUndefinedTable, fmt.Sprintf("relation %q does not exist", name), nil)
	}
	return t, nil
}

func (c *MemoryClient) Select(ctx context.Context, table string, eq Eq, opts ...SelectOption) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	return c.selectRows(table, eq, ApplyOptions(opts))
}

func (c *MemoryClient) selectRows(table string, eq Eq, o SelectOptions) ([]Row, error) {
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}

	var matched []Row
	for _, r := range t.rows {
		if matchEq(r, eq) {
			matched = append(matched, r)
		}
	}

	if len(o.OrderBy) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			for _, ord := range o.OrderBy {
				cmp := compareValues(matched[i][ord.Field], matched[j][ord.Field])
				if cmp == 0 {
					continue
				}
				if ord.Ascending {
					return cmp < 0
				}
				return cmp > 0
			}
			return false
		})
	}
	if o.Limit > 0 && uint64(len(matched)) > o.Limit {
		matched = matched[:o.Limit]
	}

	out := make([]Row, 0, len(matched))
	for _, r := range matched {
		res := project(r, o.Columns)
		for _, j := range o.Joins {
			related, err := c.table(j.Table)
			if err != nil {
				return nil, err
			}
			var found Row
			for _, rr := range related.rows {
				if String(rr[j.ForeignColumn]) == String(r[j.LocalColumn]) {
					found = rr
					break
				}
			}
			for alias, col := range j.Columns {
				if found != nil {
					res[alias] = found[col]
				} else {
					res[alias] = nil
				}
			}
		}
		out = append(out, res)
	}
	return out, nil
}

func (c *MemoryClient) Single(ctx context.Context, table string, eq Eq, opts ...SelectOption) (Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	o := ApplyOptions(opts)
	o.Limit = 2
	rows, err := c.selectRows(table, eq, o)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, NewError(CodeNoRows, fmt.Sprintf("JSON object requested, %d rows returned", len(rows)), nil)
	}
	return rows[0], nil
}

func (c *MemoryClient) Insert(ctx context.Context, table string, row Row) (Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}

	r := copyRow(row)
	if String(r["id"]) == "" {
		r["id"] = uuid.New().String()
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = NowFunc().UTC()
	}
	if err = t.checkUnique(r, nil); err != nil {
		return nil, err
	}
	t.rows = append(t.rows, r)
	return copyRow(r), nil
}

func (c *MemoryClient) Update(ctx context.Context, table string, values Row, eq Eq) ([]Row, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	t, err := c.table(table)
	if err != nil {
		return nil, err
	}

	var updated []Row
	for i, r := range t.rows {
		if !matchEq(r, eq) {
			continue
		}
		next := copyRow(r)
		for k, v := range values {
			next[k] = v
		}
		if err = t.checkUnique(next, r); err != nil {
			return nil, err
		}
		t.rows[i] = next
		updated = append(updated, copyRow(next))
	}
	return updated, nil
}

func (c *MemoryClient) Delete(ctx context.Context, table string, eq Eq) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return err
	}
	t, err := c.table(table)
	if err != nil {
		return err
	}
	kept := t.rows[:0]
	for _, r := range t.rows {
		if !matchEq(r, eq) {
			kept = append(kept, r)
		}
	}
	t.rows = kept
	return nil
}

func (c *MemoryClient) RPC(ctx context.Context, fn string, args ...interface{}) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin(ctx); err != nil {
		return nil, err
	}
	f, ok := c.rpcs[fn]
	if !ok {
		return nil, NewError(CodeUndefinedFunction, fmt.Sprintf("function %s does not exist", fn), nil)
	}
	return f(c, args...)
}

func (t *memoryTable) checkUnique(r, self Row) error {
	for _, col := range t.unique {
		val := String(r[col])
		if val == "" {
			continue
		}
		for _, other := range t.rows {
			if self != nil && String(other["id"]) == String(self["id"]) {
				continue
			}
			if String(other[col]) == val {
				return NewError(CodeUniqueViolation,
					fmt.Sprintf("duplicate key value violates unique constraint on %q", col), nil)
			}
		}
	}
	return nil
}

func matchEq(r Row, eq Eq) bool {
	for col, want := range eq {
		if String(r[col]) != String(want) {
			return false
		}
	}
	return true
}

func project(r Row, cols []string) Row {
	if len(cols) == 0 {
		return copyRow(r)
	}
	out := make(Row, len(cols))
	for _, col := range cols {
		out[col] = r[col]
	}
	return out
}

func copyRow(r Row) Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func compareValues(a, b interface{}) int {
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	}
	return strings.Compare(String(a), String(b))
}
