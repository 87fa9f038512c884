package store_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmhost/swarmhost/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestBots(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)

	t.Run("round trip", func(t *testing.T) {
		bot := store.NewBotInstance("alpha", "token-a", "package main")
		require.NoError(t, st.UpsertBot(ctx, bot))

		got, ok, err := st.BotByName(ctx, "alpha")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "alpha", got.Name)
		assert.Equal(t, "token-a", got.Token)
		assert.Equal(t, "package main", got.Script)
		assert.False(t, got.Restart)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, ok, err := st.BotByName(ctx, "ghost")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("upsert replaces token and script", func(t *testing.T) {
		require.NoError(t, st.UpsertBot(ctx, store.NewBotInstance("alpha", "token-b", "package main // v2")))
		got, ok, err := st.BotByName(ctx, "alpha")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "token-b", got.Token)
		assert.Equal(t, "package main // v2", got.Script)
	})

	t.Run("push script sets the restart flag", func(t *testing.T) {
		require.NoError(t, st.PushScript(ctx, "alpha", "package main // v3"))
		got, _, err := st.BotByName(ctx, "alpha")
		require.NoError(t, err)
		assert.True(t, got.Restart)
		assert.Equal(t, "package main // v3", got.Script)

		require.NoError(t, st.SetRestart(ctx, "alpha", false))
		got, _, err = st.BotByName(ctx, "alpha")
		require.NoError(t, err)
		assert.False(t, got.Restart)
	})

	t.Run("push to unknown instance fails", func(t *testing.T) {
		err := st.PushScript(ctx, "ghost", "package main")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list preserves deployment order", func(t *testing.T) {
		require.NoError(t, st.UpsertBot(ctx, store.NewBotInstance("beta", "t", "s")))
		bots, err := st.Bots(ctx)
		require.NoError(t, err)
		require.Len(t, bots, 2)
		assert.Equal(t, "alpha", bots[0].Name)
		assert.Equal(t, "beta", bots[1].Name)
	})
}

func TestUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)
	inst := st.Instance("alpha")

	t.Run("init and reload", func(t *testing.T) {
		u, err := inst.GetOrInitUser(ctx, 100, "Ada")
		require.NoError(t, err)
		assert.Equal(t, int64(100), u.ID)
		assert.Equal(t, "Ada", u.FirstName)

		again, err := inst.GetOrInitUser(ctx, 100, "Renamed")
		require.NoError(t, err)
		assert.Equal(t, "Ada", again.FirstName, "existing record wins")
	})

	t.Run("profile update", func(t *testing.T) {
		u, err := inst.GetOrInitUser(ctx, 100, "Ada")
		require.NoError(t, err)
		u.LastName = "Lovelace"
		u.Username = "ada"
		u.LanguageCode = "en"
		require.NoError(t, inst.UpdateUser(ctx, u))

		got, err := inst.GetOrInitUser(ctx, 100, "x")
		require.NoError(t, err)
		assert.Equal(t, "Lovelace", got.LastName)
		assert.Equal(t, "ada", got.Username)
	})

	t.Run("state and metas", func(t *testing.T) {
		require.NoError(t, inst.SetState(ctx, 100, "onboard"))
		require.NoError(t, inst.AppendMeta(ctx, 100, "ref1"))
		require.NoError(t, inst.AppendMeta(ctx, 100, "ref2"))

		got, err := inst.GetOrInitUser(ctx, 100, "x")
		require.NoError(t, err)
		assert.Equal(t, "onboard", got.State)
		assert.Equal(t, []string{"ref1", "ref2"}, got.Metas)
	})

	t.Run("append meta for unknown user fails", func(t *testing.T) {
		err := inst.AppendMeta(ctx, 999, "ref")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("selection", func(t *testing.T) {
		_, err := inst.GetOrInitUser(ctx, 200, "Grace")
		require.NoError(t, err)
		_, err = inst.GetOrInitUser(ctx, 300, "Edsger")
		require.NoError(t, err)

		all, err := inst.Users(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		random, err := inst.RandomUsers(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, random, 2)

		byIDs, err := inst.UsersByIDs(ctx, []int64{100, 300, 999})
		require.NoError(t, err)
		require.Len(t, byIDs, 2)

		none, err := inst.UsersByIDs(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("instances are isolated", func(t *testing.T) {
		other := st.Instance("beta")
		users, err := other.Users(ctx)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("concurrent appends lose nothing", func(t *testing.T) {
		u, err := inst.GetOrInitUser(ctx, 150, "Barbara")
		require.NoError(t, err)

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for k := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[k] = inst.AppendMeta(ctx, u.ID, fmt.Sprintf("ref%d", k))
			}()
		}
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}

		got, err := inst.GetOrInitUser(ctx, u.ID, "x")
		require.NoError(t, err)
		assert.Len(t, got.Metas, n)
	})
}

func TestLiterals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)
	inst := st.Instance("alpha")

	t.Run("set and get", func(t *testing.T) {
		_, ok, err := inst.Literal(ctx, "greeting")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, inst.SetLiteral(ctx, "greeting", "Hello"))
		v, ok, err := inst.Literal(ctx, "greeting")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Hello", v)

		require.NoError(t, inst.SetLiteral(ctx, "greeting", "Hi"))
		v, _, err = inst.Literal(ctx, "greeting")
		require.NoError(t, err)
		assert.Equal(t, "Hi", v)
	})

	t.Run("variant falls back to base", func(t *testing.T) {
		v, ok, err := inst.LiteralVariant(ctx, "greeting", "ru")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Hi", v)

		require.NoError(t, inst.SetLiteralVariant(ctx, "greeting", "ru", "Privet"))
		v, ok, err = inst.LiteralVariant(ctx, "greeting", "ru")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Privet", v)
	})
}

func TestMedia(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)
	inst := st.Instance("alpha")

	t.Run("unset literal has no media", func(t *testing.T) {
		media, err := inst.MediaFor(ctx, "promo")
		require.NoError(t, err)
		assert.Empty(t, media)
	})

	t.Run("attachments keep insertion order", func(t *testing.T) {
		require.NoError(t, inst.AddMedia(ctx, "promo", "photo", "file-1"))
		require.NoError(t, inst.AddMedia(ctx, "promo", "video", "file-2"))

		media, err := inst.MediaFor(ctx, "promo")
		require.NoError(t, err)
		require.Len(t, media, 2)
		assert.Equal(t, store.Media{Kind: "photo", FileID: "file-1"}, media[0])
		assert.Equal(t, store.Media{Kind: "video", FileID: "file-2"}, media[1])
	})

	t.Run("media is scoped to its instance", func(t *testing.T) {
		media, err := st.Instance("beta").MediaFor(ctx, "promo")
		require.NoError(t, err)
		assert.Empty(t, media)
	})

	t.Run("clear removes every attachment", func(t *testing.T) {
		require.NoError(t, inst.ClearMedia(ctx, "promo"))
		media, err := inst.MediaFor(ctx, "promo")
		require.NoError(t, err)
		assert.Empty(t, media)
	})
}

func TestCallbacks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := openTestStore(t)
	inst := st.Instance("alpha")

	token, err := inst.SaveCallback(ctx, "open_menu")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	literal, ok, err := inst.CallbackLiteral(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "open_menu", literal)

	_, ok, err = inst.CallbackLiteral(ctx, "not-a-token")
	require.NoError(t, err)
	assert.False(t, ok)

	// Tokens are scoped to their instance.
	_, ok, err = st.Instance("beta").CallbackLiteral(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}
