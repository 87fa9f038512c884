package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// User is a chat user known to one bot instance.
type User struct {
	ID           int64    `json:"id"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name,omitempty"`
	Username     string   `json:"username,omitempty"`
	LanguageCode string   `json:"language_code,omitempty"`
	State        string   `json:"state,omitempty"`
	Metas        []string `json:"metas,omitempty"`
}

// GetOrInitUser fetches a user, creating a fresh record on first
// contact.
func (i *Instance) GetOrInitUser(ctx context.Context, id int64, firstName string) (User, error) {
	u, ok, err := i.userByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if ok {
		return u, nil
	}
	u = User{ID: id, FirstName: firstName}
	_, err = i.s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO users (instance, id, first_name) VALUES (?,?,?)
`, i.name, id, firstName)
	if err != nil {
		return User{}, fmt.Errorf("init user %d: %w", id, err)
	}
	return u, nil
}

// UpdateUser refreshes the stored profile fields.
func (i *Instance) UpdateUser(ctx context.Context, u User) error {
	_, err := i.s.db.ExecContext(ctx, `
UPDATE users SET first_name=?, last_name=?, username=?, language_code=?
WHERE instance=? AND id=?
`, u.FirstName, u.LastName, u.Username, u.LanguageCode, i.name, u.ID)
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return nil
}

// AppendMeta appends one onboarding meta token to the user's list. The
// append happens inside the database, so concurrent appends never lose
// an entry.
func (i *Instance) AppendMeta(ctx context.Context, id int64, meta string) error {
	res, err := i.s.db.ExecContext(ctx, `
UPDATE users SET metas=json_insert(metas, '$[#]', ?) WHERE instance=? AND id=?
`, meta, i.name, id)
	if err != nil {
		return fmt.Errorf("append meta for user %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("append meta: %w: user %d", ErrNotFound, id)
	}
	return nil
}

// SetState records the user's current dialog state.
func (i *Instance) SetState(ctx context.Context, id int64, state string) error {
	_, err := i.s.db.ExecContext(ctx, `
UPDATE users SET state=? WHERE instance=? AND id=?
`, state, i.name, id)
	if err != nil {
		return fmt.Errorf("set state for user %d: %w", id, err)
	}
	return nil
}

// Users returns every user of this instance.
func (i *Instance) Users(ctx context.Context) ([]User, error) {
	return i.queryUsers(ctx, `
SELECT id, first_name, last_name, username, language_code, state, metas
FROM users WHERE instance=?
`, i.name)
}

// RandomUsers returns up to n randomly selected users.
func (i *Instance) RandomUsers(ctx context.Context, n int) ([]User, error) {
	return i.queryUsers(ctx, `
SELECT id, first_name, last_name, username, language_code, state, metas
FROM users WHERE instance=? ORDER BY RANDOM() LIMIT ?
`, i.name, n)
}

// UsersByIDs returns the users matching the given IDs; unknown IDs are
// silently absent from the result.
func (i *Instance) UsersByIDs(ctx context.Context, ids []int64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, i.name)
	placeholders := make([]string, len(ids))
	for n, id := range ids {
		placeholders[n] = "?"
		args = append(args, id)
	}
	return i.queryUsers(ctx, `
SELECT id, first_name, last_name, username, language_code, state, metas
FROM users WHERE instance=? AND id IN (`+strings.Join(placeholders, ",")+`)
`, args...)
}

func (i *Instance) userByID(ctx context.Context, id int64) (User, bool, error) {
	row := i.s.db.QueryRowContext(ctx, `
SELECT id, first_name, last_name, username, language_code, state, metas
FROM users WHERE instance=? AND id=?
`, i.name, id)
	u, err := scanUser(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (i *Instance) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := i.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(scan func(...any) error) (User, error) {
	var (
		u     User
		metas string
	)
	if err := scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.LanguageCode, &u.State, &metas); err != nil {
		return User{}, err
	}
	if err := json.Unmarshal([]byte(metas), &u.Metas); err != nil {
		return User{}, fmt.Errorf("decode metas of user %d: %w", u.ID, err)
	}
	return u, nil
}
