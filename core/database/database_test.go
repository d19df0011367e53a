package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/cedulabot/core/config"
)

func TestDSNAndMigrateURL(t *testing.T) {
	cfg := coreconfig.DatabaseConfig{
		Host: "db", Port: "5432", User: "bot", Password: "p@ss word", Name: "cedulabot", SSLMode: "disable",
	}
	assert.Equal(t, "user=bot password=p@ss word host=db port=5432 dbname=cedulabot sslmode=disable", DSN(cfg))
	assert.Equal(t, "postgres://bot:p%40ss%20word@db:5432/cedulabot?sslmode=disable", MigrateURL(cfg))
}

func TestMigrationFileHelpers(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"0002_add_note.up.sql", "0001_create_authorized_users.up.sql",
		"0001_create_authorized_users.down.sql", "README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	scripts := scanUpScripts(dir)
	assert.Equal(t, upScripts{"0001_create_authorized_users.up.sql", "0002_add_note.up.sql"}, scripts)
	assert.Equal(t, uint64(2), scriptVersion("0002_add_note.up.sql"))
	assert.Equal(t, []string{"0002_add_note.up.sql"}, scripts.between(1, 2))
	assert.Empty(t, scripts.between(2, 2))
	assert.Empty(t, scanUpScripts(filepath.Join(dir, "missing")))
}
