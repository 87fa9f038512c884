package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Literal resolves a literal key to its display text. ok is false when
// the literal was never set for this instance.
func (i *Instance) Literal(ctx context.Context, key string) (string, bool, error) {
	row := i.s.db.QueryRowContext(ctx, `
SELECT value FROM literals WHERE instance=? AND key=?
`, i.name, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("literal %q: %w", key, err)
	}
	return value, true, nil
}

// SetLiteral stores display text for a literal key.
func (i *Instance) SetLiteral(ctx context.Context, key, value string) error {
	_, err := i.s.db.ExecContext(ctx, `
INSERT INTO literals (instance, key, value) VALUES (?,?,?)
ON CONFLICT(instance, key) DO UPDATE SET value=excluded.value
`, i.name, key, value)
	if err != nil {
		return fmt.Errorf("set literal %q: %w", key, err)
	}
	return nil
}

// LiteralVariant resolves the per-variant alternative text for a
// literal key, falling back to the base literal when the variant has
// no override.
func (i *Instance) LiteralVariant(ctx context.Context, key, variant string) (string, bool, error) {
	row := i.s.db.QueryRowContext(ctx, `
SELECT value FROM literal_variants WHERE instance=? AND key=? AND variant=?
`, i.name, key, variant)
	var value string
	err := row.Scan(&value)
	if err == nil {
		return value, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("literal %q variant %q: %w", key, variant, err)
	}
	return i.Literal(ctx, key)
}

// SetLiteralVariant stores per-variant alternative text.
func (i *Instance) SetLiteralVariant(ctx context.Context, key, variant, value string) error {
	_, err := i.s.db.ExecContext(ctx, `
INSERT INTO literal_variants (instance, key, variant, value) VALUES (?,?,?,?)
ON CONFLICT(instance, key, variant) DO UPDATE SET value=excluded.value
`, i.name, key, variant, value)
	if err != nil {
		return fmt.Errorf("set literal %q variant %q: %w", key, variant, err)
	}
	return nil
}
