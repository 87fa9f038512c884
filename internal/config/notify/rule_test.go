package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/provider"
	"github.com/swarmhost/swarmhost/internal/store"
)

type fakeUsers struct {
	all []store.User
}

func (f *fakeUsers) Users(context.Context) ([]store.User, error) {
	return f.all, nil
}

func (f *fakeUsers) RandomUsers(_ context.Context, n int) ([]store.User, error) {
	if n > len(f.all) {
		n = len(f.all)
	}
	return f.all[:n], nil
}

func (f *fakeUsers) UsersByIDs(_ context.Context, ids []int64) ([]store.User, error) {
	var out []store.User
	for _, u := range f.all {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeLits map[string]string

func (f fakeLits) Literal(_ context.Context, key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

type fakeFn struct {
	ret provider.Value
	err error
}

func (f *fakeFn) Call([]provider.Value) (provider.Value, error) {
	return f.ret, f.err
}

func TestFilterRecipients(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &fakeUsers{all: []store.User{{ID: 1}, {ID: 2}, {ID: 3}}}

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		f := FilterAll()
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("zero value means all", func(t *testing.T) {
		t.Parallel()
		var f Filter
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("random", func(t *testing.T) {
		t.Parallel()
		f := FilterRandom(2)
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("function returning ids", func(t *testing.T) {
		t.Parallel()
		f := FilterFunc(funcs.Live(&fakeFn{ret: []any{float64(1), float64(3)}}))
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(1), got[0].ID)
		assert.Equal(t, int64(3), got[1].ID)
	})

	t.Run("function returning nothing", func(t *testing.T) {
		t.Parallel()
		f := FilterFunc(funcs.Live(&fakeFn{}))
		_, err := f.recipients(ctx, users)
		require.ErrorIs(t, err, provider.ErrNoResult)
	})
}

func TestFilterUnmarshal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	users := &fakeUsers{all: []store.User{{ID: 1}, {ID: 2}}}

	t.Run("all keyword", func(t *testing.T) {
		t.Parallel()
		var f Filter
		require.NoError(t, json.Unmarshal([]byte(`"all"`), &f))
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("random object", func(t *testing.T) {
		t.Parallel()
		var f Filter
		require.NoError(t, json.Unmarshal([]byte(`{"random": 1}`), &f))
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("marker decodes to detached function", func(t *testing.T) {
		t.Parallel()
		var f Filter
		require.NoError(t, json.Unmarshal([]byte(`{"$fn": "notifications.0.filter"}`), &f))
		_, err := f.recipients(ctx, users)
		require.ErrorIs(t, err, funcs.ErrDetached)
	})

	t.Run("attach converts to function filter", func(t *testing.T) {
		t.Parallel()
		var f Filter
		require.NoError(t, json.Unmarshal([]byte(`{"$fn": "notifications.0.filter"}`), &f))
		f.Attach(&fakeFn{ret: []any{float64(2)}})
		got, err := f.recipients(ctx, users)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, int64(2), got[0].ID)
	})

	t.Run("rejects garbage", func(t *testing.T) {
		t.Parallel()
		var f Filter
		err := json.Unmarshal([]byte(`17`), &f)
		require.ErrorIs(t, err, ErrBadFilter)
	})
}

func TestMessageResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	lits := fakeLits{"promo": "Big sale today"}
	user := store.User{ID: 5, FirstName: "Ada"}

	t.Run("literal", func(t *testing.T) {
		t.Parallel()
		m := MessageLiteral("promo")
		text, ok, err := m.resolve(ctx, lits, user)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Big sale today", text)
	})

	t.Run("unset literal is a skip", func(t *testing.T) {
		t.Parallel()
		m := MessageLiteral("missing")
		_, ok, err := m.resolve(ctx, lits, user)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("inline text", func(t *testing.T) {
		t.Parallel()
		m := MessageText("hello")
		text, ok, err := m.resolve(ctx, lits, user)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hello", text)
	})

	t.Run("function receives the recipient", func(t *testing.T) {
		t.Parallel()
		fn := &captureFn{ret: "Hi Ada"}
		m := MessageFunc(funcs.Live(fn))
		text, ok, err := m.resolve(ctx, lits, user)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Hi Ada", text)
		require.Len(t, fn.args, 1)
		arg, ok := fn.args[0].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(5), arg["id"])
	})

	t.Run("function returning nothing skips the recipient", func(t *testing.T) {
		t.Parallel()
		m := MessageFunc(funcs.Live(&fakeFn{}))
		_, ok, err := m.resolve(ctx, lits, user)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

type captureFn struct {
	ret  provider.Value
	args []provider.Value
}

func (f *captureFn) Call(args []provider.Value) (provider.Value, error) {
	f.args = args
	return f.ret, nil
}

func TestMessageUnmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"literal object", `{"literal": "promo"}`, false},
		{"text object", `{"text": "hello"}`, false},
		{"function marker", `{"$fn": "notifications.0.message"}`, false},
		{"bare function name", `"buildMessage"`, false},
		{"garbage", `17`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var m MessageSource
			err := json.Unmarshal([]byte(tc.data), &m)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrBadMessage)
				return
			}
			require.NoError(t, err)
		})
	}
}
