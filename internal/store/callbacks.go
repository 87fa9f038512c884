package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// SaveCallback registers a callback token for a button literal and
// returns the token to embed in the outgoing keyboard.
func (i *Instance) SaveCallback(ctx context.Context, literal string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("generate callback token: %w", err)
	}
	token := id.String()
	_, err = i.s.db.ExecContext(ctx, `
INSERT INTO callbacks (instance, token, literal, created_at) VALUES (?,?,?,?)
`, i.name, token, literal, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("save callback for %q: %w", literal, err)
	}
	return token, nil
}

// CallbackLiteral resolves a callback token back to the button literal
// it was created for. ok is false for unknown (expired or foreign)
// tokens.
func (i *Instance) CallbackLiteral(ctx context.Context, token string) (string, bool, error) {
	row := i.s.db.QueryRowContext(ctx, `
SELECT literal FROM callbacks WHERE instance=? AND token=?
`, i.name, token)
	var literal string
	if err := row.Scan(&literal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("callback %q: %w", token, err)
	}
	return literal, true, nil
}
