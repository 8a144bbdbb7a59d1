// Package remote defines the Remote Store Client: a generic relational table client
// with equality filters, single/list result shapes, stored-procedure calls and an auth
// sub-interface. Implementations normalize their native failures into *Error codes.
package remote

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

// Tables
const (
	TableUsers    = "users"
	TableQuizzes  = "quizzes"
	TableAccounts = "auth_accounts"
	TableSessions = "auth_sessions"
)

// Stored procedures
const (
	FnEmailByUsername = "get_email_by_username"
)

type (
	// Row is one result row keyed by column name (or select alias).
	Row map[string]interface{}

	// Eq is a set of column = value predicates joined with AND.
	Eq map[string]interface{}

	// JoinSpec left-joins Table on Table.ForeignColumn = base.LocalColumn and
	// exposes Columns (alias: related column) on each result row.
	JoinSpec struct {
		Table         string
		LocalColumn   string
		ForeignColumn string
		Columns       map[string]string
	}

	// SelectOptions is the resolved form of a list of SelectOption.
	SelectOptions struct {
		Columns []string
		OrderBy []core.DBOrdering
		Limit   uint64
		Joins   []JoinSpec
	}

	SelectOption func(*SelectOptions)

	// Tables is the row CRUD capability set.
	Tables interface {
		Select(ctx context.Context, table string, eq Eq, opts ...SelectOption) ([]Row, error)
		// Single returns exactly one row; zero or several rows fail with CodeNoRows.
		Single(ctx context.Context, table string, eq Eq, opts ...SelectOption) (Row, error)
		Insert(ctx context.Context, table string, row Row) (Row, error)
		Update(ctx context.Context, table string, values Row, eq Eq) ([]Row, error)
		Delete(ctx context.Context, table string, eq Eq) error
		RPC(ctx context.Context, fn string, args ...interface{}) (interface{}, error)
	}

	Client interface {
		Tables
		Auth() Auth
		Close() error
	}
)

func Columns(cols ...string) SelectOption {
	return func(o *SelectOptions) { o.Columns = append(o.Columns, cols...) }
}

func OrderBy(ords ...core.DBOrdering) SelectOption {
	return func(o *SelectOptions) { o.OrderBy = append(o.OrderBy, ords...) }
}

func Limit(n uint64) SelectOption {
	return func(o *SelectOptions) { o.Limit = n }
}

func Join(j JoinSpec) SelectOption {
	return func(o *SelectOptions) { o.Joins = append(o.Joins, j) }
}

func ApplyOptions(opts []SelectOption) SelectOptions {
	var o SelectOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Error codes, PostgREST/Postgres flavored.
const (
	CodeNoRows             = "PGRST116"
	CodeUniqueViolation    = "23505"
	CodeForeignKey         = "23503"
	CodeNotNull            = "23502"
	CodeInvalidText        = "22P02"
	CodePrivilege          = "42501"
	CodeUndefinedTable     = "42P01"
	CodeUndefinedColumn    = "42703"
	CodeUndefinedFunction  = "42883"
	CodeConnection         = "08006"
	CodeTimeout            = "57014"
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidToken       = "invalid_token"
	CodeUnknown            = "unknown"
)

// Error is the normalized remote failure.
type Error struct {
	Code    string
	Message string
	Err     error
}

func NewError(code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the code of the *Error in err's chain, or "".
func CodeOf(err error) string {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func IsNoRows(err error) bool { return CodeOf(err) == CodeNoRows }

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s can be used as a table, column or function name.
func ValidIdentifier(s string) bool {
	return identRegex.MatchString(s)
}

// String returns the textual form of a column value as drivers or the in-memory client
// hand it back.
func String(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// Time returns a column value as a UTC time.
func Time(v interface{}) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val.UTC()
	case string, []byte:
		t, err := time.Parse(time.RFC3339Nano, String(val))
		if err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// Bool returns a column value as a bool.
func Bool(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string, []byte:
		b, _ := strconv.ParseBool(String(val))
		return b
	case int64:
		return val != 0
	}
	return false
}

// Int returns a column value as an int.
func Int(v interface{}) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string, []byte:
		n, _ := strconv.Atoi(String(val))
		return n
	}
	return 0
}
