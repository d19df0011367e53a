package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	coreconfig "github.com/m3rciful/cedulabot/core/config"
	"github.com/m3rciful/cedulabot/core/logger"
)

const (
	readyTimeout = 30 * time.Second
	readyPoll    = 2 * time.Second
)

// upScripts is the sorted list of *.up.sql files of a migrations directory.
type upScripts []string

func scanUpScripts(dir string) upScripts {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var s upScripts
	for _, e := range entries {
		if name := e.Name(); !e.IsDir() && strings.HasSuffix(name, ".up.sql") {
			s = append(s, name)
		}
	}
	slices.Sort(s)
	return s
}

// scriptVersion reads the numeric prefix of "<version>_<name>.up.sql".
func scriptVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// between returns the scripts with from < version <= to.
func (s upScripts) between(from, to uint64) []string {
	var out []string
	for _, name := range s {
		if v := scriptVersion(name); v > from && v <= to {
			out = append(out, name)
		}
	}
	return out
}

// RunMigrations waits for Postgres, then applies every pending up migration
// from cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg coreconfig.DatabaseConfig) error {
	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	err := WaitForPostgres(waitCtx, DSN(cfg), readyPoll)
	cancel()
	if err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "db not ready",
			slog.String("event", "db.migrate"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}
	scripts := scanUpScripts(dir)
	preview, truncated := logger.SummarizeStrings(scripts, 6)
	logger.MIG.LogAttrs(ctx, slog.LevelDebug, "migrations resolved",
		slog.String("event", "resolve"),
		slog.String("path", dir),
		slog.Int("files_total", len(scripts)),
		slog.String("files_preview", preview),
		slog.Bool("files_truncated", truncated),
	)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), MigrateURL(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer closeMigrator(ctx, m)

	start := time.Now()
	from, to, err := apply(m)
	took := logger.Took(start)
	if err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "migration failed",
			slog.String("event", "apply"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
			slog.Duration("duration", took),
		)
		return fmt.Errorf("migration execution failed: %w", err)
	}

	logger.MIG.LogAttrs(ctx, slog.LevelInfo, "migrations summary",
		slog.String("event", "summary"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Int("files", len(scripts.between(from, to))),
		slog.Duration("duration", took),
	)
	return nil
}

// apply runs m.Up and reports the schema version before and after.
// ErrNoChange is not an error.
func apply(m *migrate.Migrate) (from, to uint64, err error) {
	v, _, _ := m.Version()
	from = uint64(v)
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return from, from, err
	}
	v, _, _ = m.Version()
	return from, uint64(v), nil
}

func closeMigrator(ctx context.Context, m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.MIG.LogAttrs(ctx, slog.LevelWarn, "migrate close failed",
			slog.String("event", "db.migrate.close"),
			slog.String("err", err.Error()),
		)
	}
}
