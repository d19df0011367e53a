package access

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/cedulabot/core/logger"
)

// AuthorizedUser is a row of the authorized_users table.
type AuthorizedUser struct {
	TelegramID int64     `db:"telegram_id"`
	Note       string    `db:"note"`
	CreatedAt  time.Time `db:"created_at"`
}

// Store reads the database-backed allow-list.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// List returns every authorized user ordered by creation time.
func (s *Store) List(ctx context.Context) ([]AuthorizedUser, error) {
	var users []AuthorizedUser
	const q = `SELECT telegram_id, note, created_at FROM authorized_users ORDER BY created_at, telegram_id`
	if err := s.db.SelectContext(ctx, &users, q); err != nil {
		return nil, fmt.Errorf("access: list authorized users: %w", err)
	}
	return users, nil
}

// Add inserts or updates an authorized user.
func (s *Store) Add(ctx context.Context, telegramID int64, note string) error {
	const q = `INSERT INTO authorized_users (telegram_id, note) VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET note = EXCLUDED.note`
	if _, err := s.db.ExecContext(ctx, q, telegramID, note); err != nil {
		return fmt.Errorf("access: add authorized user: %w", err)
	}
	return nil
}

// LoadInto merges the stored ids into p.
func (s *Store) LoadInto(ctx context.Context, p *Policy) error {
	start := time.Now()
	users, err := s.List(ctx)
	if err != nil {
		return err
	}
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.TelegramID
	}
	p.Merge(ids)

	logger.DB.LogAttrs(ctx, slog.LevelInfo, "allow-list loaded",
		slog.String("event", "access.load"),
		slog.String("status", "ok"),
		slog.Int("rows", len(ids)),
		slog.Int("allowed_total", p.Len()),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}
