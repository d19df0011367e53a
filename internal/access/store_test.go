package access

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Postgres when CEDULABOT_TEST_DSN is set, e.g.
// "user=postgres password=postgres host=localhost dbname=cedulabot_test sslmode=disable".
func TestStoreLoadInto(t *testing.T) {
	dsn := os.Getenv("CEDULABOT_TEST_DSN")
	if dsn == "" {
		t.Skip("CEDULABOT_TEST_DSN not set")
	}

	ctx := context.Background()
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	// Temp tables live on one connection.
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, `CREATE TEMP TABLE authorized_users (
		telegram_id BIGINT PRIMARY KEY,
		note TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	require.NoError(t, err)

	store := NewStore(db)
	require.NoError(t, store.Add(ctx, 111, "ops"))
	require.NoError(t, store.Add(ctx, 222, ""))
	require.NoError(t, store.Add(ctx, 111, "ops lead"))

	users, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ops lead", users[0].Note)

	p := NewPolicy(nil)
	require.NoError(t, store.LoadInto(ctx, p))
	assert.True(t, p.IsAuthorized(111))
	assert.True(t, p.IsAuthorized(222))
	assert.False(t, p.IsAuthorized(333))
}
