package store

import (
	"context"
	"fmt"
)

// Media is one stored attachment for a literal: the platform file id
// of a previously uploaded file and its kind ("photo" or "video").
type Media struct {
	Kind   string
	FileID string
}

// AddMedia attaches a media file to a literal key. A literal may carry
// several attachments; delivery preserves insertion order.
func (i *Instance) AddMedia(ctx context.Context, literal, kind, fileID string) error {
	_, err := i.s.db.ExecContext(ctx, `
INSERT INTO media (instance, literal, kind, file_id) VALUES (?,?,?,?)
`, i.name, literal, kind, fileID)
	if err != nil {
		return fmt.Errorf("add media for %q: %w", literal, err)
	}
	return nil
}

// ClearMedia removes every attachment of a literal.
func (i *Instance) ClearMedia(ctx context.Context, literal string) error {
	_, err := i.s.db.ExecContext(ctx, `
DELETE FROM media WHERE instance=? AND literal=?
`, i.name, literal)
	if err != nil {
		return fmt.Errorf("clear media for %q: %w", literal, err)
	}
	return nil
}

// MediaFor returns the attachments of a literal in insertion order. An
// empty result means the literal is text-only.
func (i *Instance) MediaFor(ctx context.Context, literal string) ([]Media, error) {
	rows, err := i.s.db.QueryContext(ctx, `
SELECT kind, file_id FROM media WHERE instance=? AND literal=? ORDER BY id ASC
`, i.name, literal)
	if err != nil {
		return nil, fmt.Errorf("media for %q: %w", literal, err)
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.Kind, &m.FileID); err != nil {
			return nil, fmt.Errorf("media for %q: %w", literal, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
