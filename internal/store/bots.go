package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BotInstance is the persisted record describing one bot that should
// be running: unique name, transport auth token, script source, and a
// restart flag set externally to force a reload.
type BotInstance struct {
	Name      string
	Token     string
	Script    string
	Restart   bool
	CreatedAt time.Time
}

// NewBotInstance builds a record with the creation time set to now.
func NewBotInstance(name, token, script string) BotInstance {
	return BotInstance{
		Name:      name,
		Token:     token,
		Script:    script,
		CreatedAt: time.Now().UTC(),
	}
}

// Bots returns every persisted bot instance, oldest first.
func (s *Store) Bots(ctx context.Context) ([]BotInstance, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT name, token, script, restart, created_at
FROM bots ORDER BY created_at ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list bots: %w", err)
	}
	defer rows.Close()

	var out []BotInstance
	for rows.Next() {
		bi, err := scanBot(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, bi)
	}
	return out, rows.Err()
}

// BotByName fetches one bot record; ok is false when absent.
func (s *Store) BotByName(ctx context.Context, name string) (BotInstance, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT name, token, script, restart, created_at
FROM bots WHERE name=?
`, name)
	bi, err := scanBot(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return BotInstance{}, false, nil
	}
	if err != nil {
		return BotInstance{}, false, err
	}
	return bi, true, nil
}

// UpsertBot inserts or replaces a bot record by name.
func (s *Store) UpsertBot(ctx context.Context, bi BotInstance) error {
	restart := 0
	if bi.Restart {
		restart = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO bots (name, token, script, restart, created_at)
VALUES (?,?,?,?,?)
ON CONFLICT(name) DO UPDATE SET token=excluded.token, script=excluded.script, restart=excluded.restart
`, bi.Name, bi.Token, bi.Script, restart, bi.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert bot %q: %w", bi.Name, err)
	}
	return nil
}

// SetRestart sets or clears one instance's restart flag.
func (s *Store) SetRestart(ctx context.Context, name string, restart bool) error {
	v := 0
	if restart {
		v = 1
	}
	_, err := s.db.ExecContext(ctx, `UPDATE bots SET restart=? WHERE name=?`, v, name)
	if err != nil {
		return fmt.Errorf("set restart flag for %q: %w", name, err)
	}
	return nil
}

// PushScript stores a new script for an instance and raises its
// restart flag so the supervisor reloads it on the next tick.
func (s *Store) PushScript(ctx context.Context, name, script string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE bots SET script=?, restart=1 WHERE name=?`, script, name)
	if err != nil {
		return fmt.Errorf("push script to %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("push script: %w: %q", ErrNotFound, name)
	}
	return nil
}

func scanBot(scan func(...any) error) (BotInstance, error) {
	var (
		bi        BotInstance
		restart   int
		createdAt string
	)
	if err := scan(&bi.Name, &bi.Token, &bi.Script, &restart, &createdAt); err != nil {
		return BotInstance{}, err
	}
	bi.Restart = restart == 1
	bi.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return bi, nil
}
