package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/types"
)

func testView(t *testing.T) *rules.View {
	t.Helper()
	v, err := rules.NewView(
		rules.If{
			Condition: rules.Match{Expression: rules.RecordText{}, Pattern: rules.MustPattern(`\bDEBUG\b`)},
			Then:      []rules.Operation{rules.SkipRecord{}},
		},
		rules.ColorBy{Expression: rules.Var{Name: "service"}},
	)
	require.NoError(t, err)
	return v
}

func TestViewStore_RoundTrip(t *testing.T) {
	_, q := openTestDB(t)
	store := NewViewStore(q)
	ctx := context.Background()

	created, err := store.Create(ctx, "no-debug", "drops debug lines", testView(t))
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := store.Get(ctx, "no-debug")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "drops debug lines", got.Description)
	assert.False(t, got.CreatedAt.IsZero())

	view, err := store.Load(ctx, "no-debug")
	require.NoError(t, err)
	assert.Equal(t, rules.FormatString(testView(t)), rules.FormatString(view))
}

func TestViewStore_CreateDuplicate(t *testing.T) {
	_, q := openTestDB(t)
	store := NewViewStore(q)
	ctx := context.Background()

	_, err := store.Create(ctx, "dup", "", testView(t))
	require.NoError(t, err)

	_, err = store.Create(ctx, "dup", "", testView(t))
	assert.ErrorIs(t, err, types.ErrViewExists)
}

func TestViewStore_Put(t *testing.T) {
	_, q := openTestDB(t)
	store := NewViewStore(q)
	ctx := context.Background()

	first, err := store.Put(ctx, "v", "first", testView(t))
	require.NoError(t, err)

	skipAll, err := rules.NewView(rules.SkipRecord{})
	require.NoError(t, err)
	second, err := store.Put(ctx, "v", "second", skipAll)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "second", second.Description)

	view, err := store.Load(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, "SKIP\n", rules.FormatString(view))
}

func TestViewStore_ListAndDelete(t *testing.T) {
	_, q := openTestDB(t)
	store := NewViewStore(q)
	ctx := context.Background()

	for _, name := range []string{"beta", "alpha"} {
		_, err := store.Create(ctx, name, "", testView(t))
		require.NoError(t, err)
	}

	views, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "alpha", views[0].Name)
	assert.Equal(t, "beta", views[1].Name)

	require.NoError(t, store.Delete(ctx, "alpha"))
	assert.ErrorIs(t, store.Delete(ctx, "alpha"), types.ErrViewNotFound)

	_, err = store.Get(ctx, "alpha")
	assert.ErrorIs(t, err, types.ErrViewNotFound)
}

func TestViewStore_RejectsInvalidInput(t *testing.T) {
	_, q := openTestDB(t)
	store := NewViewStore(q)
	ctx := context.Background()

	for _, name := range []string{"", "has space", "../escape", strings.Repeat("a", types.MaxViewNameLength+1)} {
		_, err := store.Create(ctx, name, "", testView(t))
		assert.ErrorIs(t, err, types.ErrInvalidViewName, "name %q", name)
	}

	_, err := store.Create(ctx, "broken", "", &rules.View{Operations: []rules.Operation{rules.Set{Target: "x"}}})
	assert.ErrorIs(t, err, types.ErrInvalidView)
}

func TestValidateViewName(t *testing.T) {
	for _, ok := range []string{"a", "web-access", "v1.2_final", strings.Repeat("a", types.MaxViewNameLength)} {
		assert.NoError(t, ValidateViewName(ok), ok)
	}
	for _, bad := range []string{"", "-leading", ".hidden", "a/b", "tab\tname"} {
		assert.ErrorIs(t, ValidateViewName(bad), types.ErrInvalidViewName, bad)
	}
}

// newMockQueries wires sqlmock behind the named queries.
func newMockQueries(t *testing.T) (*Queries, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	q, err := LoadQueries(sqlx.NewDb(mockDB, "sqlmock"))
	require.NoError(t, err)
	return q, mock
}

func TestViewStore_DatabaseErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("get", func(t *testing.T) {
		q, mock := newMockQueries(t)
		mock.ExpectQuery("FROM views").WillReturnError(boom)

		_, err := NewViewStore(q).Get(ctx, "x")
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, types.ErrViewNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list", func(t *testing.T) {
		q, mock := newMockQueries(t)
		mock.ExpectQuery("FROM views").WillReturnError(boom)

		_, err := NewViewStore(q).List(ctx)
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure without existing row", func(t *testing.T) {
		q, mock := newMockQueries(t)
		mock.ExpectExec("INSERT INTO views").WillReturnError(boom)
		mock.ExpectQuery("FROM views").WillReturnRows(sqlmock.NewRows([]string{"view_id"}))

		_, err := NewViewStore(q).Create(ctx, "x", "", testView(t))
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, types.ErrViewExists)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete", func(t *testing.T) {
		q, mock := newMockQueries(t)
		mock.ExpectExec("DELETE FROM views").WillReturnError(boom)

		err := NewViewStore(q).Delete(ctx, "x")
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete missing", func(t *testing.T) {
		q, mock := newMockQueries(t)
		mock.ExpectExec("DELETE FROM views").WithArgs("x").WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewViewStore(q).Delete(ctx, "x")
		assert.ErrorIs(t, err, types.ErrViewNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAPIKeyStore(t *testing.T) {
	_, q := openTestDB(t)
	store := NewAPIKeyStore(q)
	ctx := context.Background()

	key, err := store.Insert(ctx, "ci", []byte("hash-1"))
	require.NoError(t, err)

	keys, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "ci", keys[0].Name)
	assert.False(t, keys[0].RevokedAt.Valid)

	require.NoError(t, store.Revoke(ctx, key.ID))
	assert.ErrorIs(t, store.Revoke(ctx, key.ID), ErrAPIKeyNotFound)

	keys, err = store.List(ctx)
	require.NoError(t, err)
	assert.True(t, keys[0].RevokedAt.Valid)
}
