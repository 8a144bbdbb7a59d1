package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mistrzwujo098/quiz-sub001/core"
)

func TestMemoryClient_crud(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient([]byte("secret"))

	row, err := c.Insert(ctx, TableUsers, Row{"username": "anna", "role": "teacher"})
	require.NoError(t, err)
	assert.NotEmpty(t, String(row["id"]), "id must be generated")
	assert.False(t, Time(row["created_at"]).IsZero(), "created_at must be generated")

	_, err = c.Insert(ctx, TableUsers, Row{"username": "anna"})
	assert.Equal(t, CodeUniqueViolation, CodeOf(err))

	got, err := c.Single(ctx, TableUsers, Eq{"username": "anna"}, Columns("id", "role"))
	require.NoError(t, err)
	assert.Equal(t, Row{"id": row["id"], "role": "teacher"}, got)

	updated, err := c.Update(ctx, TableUsers, Row{"role": "student"}, Eq{"id": row["id"]})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "student", updated[0]["role"])

	require.NoError(t, c.Delete(ctx, TableUsers, Eq{"id": row["id"]}))
	_, err = c.Single(ctx, TableUsers, Eq{"id": row["id"]})
	assert.True(t, IsNoRows(err), "got %v", err)
}

func TestMemoryClient_single(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(nil)
	for _, title := range []string{"a", "b"} {
		_, err := c.Insert(ctx, TableQuizzes, Row{"title": title, "subject": "math"})
		require.NoError(t, err)
	}

	tests := []struct {
		name     string
		eq       Eq
		wantCode string
	}{
		{name: "one row", eq: Eq{"title": "a"}},
		{name: "no rows", eq: Eq{"title": "zzz"}, wantCode: CodeNoRows},
		{name: "several rows", eq: Eq{"subject": "math"}, wantCode: CodeNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Single(ctx, TableQuizzes, tt.eq)
			assert.Equal(t, tt.wantCode, CodeOf(err))
		})
	}
}

func TestMemoryClient_orderLimitJoin(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	usr, err := c.Insert(ctx, TableUsers, Row{"username": "anna", "full_name": "Anna Nowak"})
	require.NoError(t, err)
	for i, title := range []string{"old", "mid", "new"} {
		_, err = c.Insert(ctx, TableQuizzes, Row{
			"title":      title,
			"created_by": usr["id"],
			"created_at": base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err = c.Insert(ctx, TableQuizzes, Row{"title": "orphan", "created_by": "nobody", "created_at": base.Add(-time.Hour)})
	require.NoError(t, err)

	rows, err := c.Select(ctx, TableQuizzes, nil,
		OrderBy(core.NewestFirst),
		Limit(3),
		Columns("title"),
		Join(JoinSpec{
			Table:         TableUsers,
			LocalColumn:   "created_by",
			ForeignColumn: "id",
			Columns:       map[string]string{"creator_name": "full_name"},
		}),
	)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Row{"title": "new", "creator_name": "Anna Nowak"}, rows[0])
	assert.Equal(t, "mid", rows[1]["title"])
	assert.Equal(t, "old", rows[2]["title"])

	rows, err = c.Select(ctx, TableQuizzes, Eq{"title": "orphan"}, Join(JoinSpec{
		Table:         TableUsers,
		LocalColumn:   "created_by",
		ForeignColumn: "id",
		Columns:       map[string]string{"creator_name": "full_name"},
	}))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0]["creator_name"])
}

func TestMemoryClient_rpc(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(nil)
	anna, err := c.Insert(ctx, TableUsers, Row{"username": "anna"})
	require.NoError(t, err)
	_, err = c.Insert(ctx, TableAccounts, Row{"email": "anna@example.com", "user_id": anna["id"]})
	require.NoError(t, err)
	_, err = c.Insert(ctx, TableUsers, Row{"username": "bob"}) // no auth account
	require.NoError(t, err)

	tests := []struct {
		username string
		want     interface{}
	}{
		{username: "anna", want: "anna@example.com"},
		{username: "ANNA", want: "anna@example.com"},
		{username: "bob", want: nil},
		{username: "ghost", want: nil},
	}
	for _, tt := range tests {
		got, err := c.RPC(ctx, FnEmailByUsername, tt.username)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.username)
	}

	_, err = c.RPC(ctx, "nope")
	assert.Equal(t, CodeUndefinedFunction, CodeOf(err))
}

func TestMemoryClient_failures(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(nil)
	boom := NewError(CodeConnection, "connection refused", nil)

	c.FailNext(2, boom)
	for i := 0; i < 2; i++ {
		_, err := c.Select(ctx, TableUsers, nil)
		assert.Equal(t, boom, err)
	}
	_, err := c.Select(ctx, TableUsers, nil)
	assert.NoError(t, err, "failure must stop after n calls")

	c.SetFailure(boom)
	_, err = c.RPC(ctx, FnEmailByUsername, "x")
	assert.Equal(t, boom, err)
	c.ClearFailure()
	_, err = c.RPC(ctx, FnEmailByUsername, "x")
	assert.NoError(t, err)
	assert.Equal(t, 5, c.Calls())

	c.DropTable(TableUsers)
	_, err = c.Select(ctx, TableUsers, nil)
	assert.Equal(t, CodeUndefinedTable, CodeOf(err))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = c.Select(cctx, TableQuizzes, nil)
	assert.Equal(t, CodeTimeout, CodeOf(err))
}
