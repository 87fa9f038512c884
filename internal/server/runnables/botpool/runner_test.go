package botpool

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swarmhost/swarmhost/internal/store"
	"github.com/swarmhost/swarmhost/internal/transport"
)

const testScript = `package main

func onBye(user map[string]any, arg string) bool {
	return false
}

var Config = map[string]any{
	"version":  1.0,
	"timezone": 0,
	"dialog": map[string]any{
		"commands": map[string]any{
			"start": map[string]any{"state": "onboard"},
			"bye":   map[string]any{"handler": onBye},
			"menu": map[string]any{
				"literal": "menu_text",
				"buttons": []any{[]any{"open"}},
			},
		},
		"buttons": map[string]any{
			"open": map[string]any{"replace": true},
		},
		"stateful_msg_handlers": map[string]any{
			"onboard": map[string]any{"literal": "echo"},
		},
	},
}
`

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pool.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startRunner(t *testing.T, st *store.Store, factory *fakeFactory) *Runner {
	t.Helper()
	runner, err := NewRunner(st, factory.new,
		WithInterval(20*time.Millisecond),
		WithLogger(discardLogger()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- runner.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-runDone:
			assert.NoError(t, err)
		case <-time.After(waitFor):
			t.Error("runner did not shut down")
		}
	})
	return runner
}

func deployTestBot(t *testing.T, st *store.Store, name string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertBot(ctx, store.NewBotInstance(name, "token-"+name, testScript)))

	inst := st.Instance(name)
	require.NoError(t, inst.SetLiteral(ctx, "start", "Welcome!"))
	require.NoError(t, inst.SetLiteral(ctx, "menu_text", "Pick one"))
	require.NoError(t, inst.SetLiteral(ctx, "echo", "Got it"))
	require.NoError(t, inst.SetLiteral(ctx, "open", "Open"))
}

func TestRunnerDispatch(t *testing.T) {
	st := openTestStore(t)
	deployTestBot(t, st, "alpha")
	factory := &fakeFactory{}
	runner := startRunner(t, st, factory)

	require.Eventually(t, func() bool { return factory.count() == 1 }, waitFor, tick)
	require.Eventually(t, runner.IsRunning, waitFor, tick)
	client := factory.client(0)
	ctx := context.Background()
	inst := st.Instance("alpha")

	t.Run("command with onboarding meta and state", func(t *testing.T) {
		client.updates <- messageUpdate(100, "/start ref1")

		require.Eventually(t, func() bool { return len(client.sentMessages()) == 1 }, waitFor, tick)
		msg := client.sentMessages()[0]
		assert.Equal(t, int64(100), msg.chatID)
		assert.Equal(t, "Welcome!", msg.text)

		users, err := inst.Users(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "onboard", users[0].State)
		assert.Equal(t, []string{"ref1"}, users[0].Metas)
	})

	t.Run("stateful plain text", func(t *testing.T) {
		client.updates <- messageUpdate(100, "hello there")

		require.Eventually(t, func() bool { return len(client.sentMessages()) == 2 }, waitFor, tick)
		assert.Equal(t, "Got it", client.sentMessages()[1].text)
	})

	t.Run("keyboard and callback round trip", func(t *testing.T) {
		client.updates <- messageUpdate(100, "/menu")

		require.Eventually(t, func() bool { return len(client.sentMessages()) == 3 }, waitFor, tick)
		msg := client.sentMessages()[2]
		assert.Equal(t, "Pick one", msg.text)
		require.Len(t, msg.keyboard, 1)
		require.Len(t, msg.keyboard[0], 1)
		button := msg.keyboard[0][0]
		assert.Equal(t, "Open", button.Text)
		require.NotEmpty(t, button.Data)

		client.updates <- callbackUpdate(100, button.Data)
		require.Eventually(t, func() bool { return len(client.editedMessages()) == 1 }, waitFor, tick)
		edit := client.editedMessages()[0]
		assert.Equal(t, 7, edit.messageID)
		assert.Equal(t, "Open", edit.text)
		assert.Equal(t, []string{"cbq-1"}, client.answeredCallbacks())
	})

	t.Run("handler veto suppresses default handling", func(t *testing.T) {
		client.updates <- messageUpdate(100, "/bye")
		client.updates <- messageUpdate(200, "/start")

		// The second user's reply proves /bye was fully processed and
		// produced nothing.
		require.Eventually(t, func() bool { return len(client.sentMessages()) == 4 }, waitFor, tick)
		assert.Equal(t, int64(200), client.sentMessages()[3].chatID)
	})
}

func TestRunnerRestartFlag(t *testing.T) {
	st := openTestStore(t)
	deployTestBot(t, st, "alpha")
	factory := &fakeFactory{}
	startRunner(t, st, factory)

	require.Eventually(t, func() bool { return factory.count() == 1 }, waitFor, tick)
	ctx := context.Background()

	require.NoError(t, st.PushScript(ctx, "alpha", testScript))

	require.Eventually(t, func() bool { return factory.count() == 2 }, waitFor, tick)
	assert.True(t, factory.client(0).isClosed(), "old worker keeps running until torn down")

	bot, ok, err := st.BotByName(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, bot.Restart, "restart flag is cleared after relaunch")
}

// notifyTestScript carries a pending notification rule, so the worker
// always has a notification loop sleeping on a far-away batch.
const notifyTestScript = `package main

var Config = map[string]any{
	"version":  1.0,
	"timezone": 0,
	"dialog": map[string]any{
		"commands": map[string]any{
			"start": map[string]any{},
		},
	},
	"notifications": []any{
		map[string]any{
			"time":    map[string]any{"delta_hours": 12},
			"filter":  "all",
			"message": map[string]any{"text": "ping"},
		},
	},
}
`

func TestRunnerCrashRecovery(t *testing.T) {
	st := openTestStore(t)
	deployTestBot(t, st, "alpha")
	factory := &fakeFactory{}
	startRunner(t, st, factory)

	require.Eventually(t, func() bool { return factory.count() == 1 }, waitFor, tick)

	// A dying update stream takes the worker down; the pool notices
	// and respawns with a fresh connection.
	close(factory.client(0).updates)

	require.Eventually(t, func() bool { return factory.count() == 2 }, waitFor, tick)
	client := factory.client(1)
	client.updates <- messageUpdate(100, "/start")
	require.Eventually(t, func() bool { return len(client.sentMessages()) == 1 }, waitFor, tick)
}

func TestRunnerCrashRecoveryWithNotifications(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertBot(ctx, store.NewBotInstance("alpha", "t", notifyTestScript)))
	require.NoError(t, st.Instance("alpha").SetLiteral(ctx, "start", "Welcome!"))

	factory := &fakeFactory{}
	startRunner(t, st, factory)

	require.Eventually(t, func() bool { return factory.count() == 1 }, waitFor, tick)

	// The scheduler is asleep waiting for the 12h batch; a dying
	// update stream must still take the whole worker down so the pool
	// can respawn it.
	close(factory.client(0).updates)

	require.Eventually(t, func() bool { return factory.count() == 2 }, waitFor, tick)
	client := factory.client(1)
	client.updates <- messageUpdate(100, "/start")
	require.Eventually(t, func() bool { return len(client.sentMessages()) == 1 }, waitFor, tick)
	assert.Equal(t, "Welcome!", client.sentMessages()[0].text)
}

func TestRunnerMediaDelivery(t *testing.T) {
	st := openTestStore(t)
	deployTestBot(t, st, "alpha")
	ctx := context.Background()
	require.NoError(t, st.Instance("alpha").AddMedia(ctx, "menu_text", "photo", "file-123"))

	factory := &fakeFactory{}
	startRunner(t, st, factory)

	require.Eventually(t, func() bool { return factory.count() == 1 }, waitFor, tick)
	client := factory.client(0)
	client.updates <- messageUpdate(100, "/menu")

	require.Eventually(t, func() bool { return len(client.sentMediaMessages()) == 1 }, waitFor, tick)
	msg := client.sentMediaMessages()[0]
	assert.Equal(t, int64(100), msg.chatID)
	assert.Equal(t, "Pick one", msg.text, "literal text becomes the caption")
	require.Len(t, msg.media, 1)
	assert.Equal(t, transport.Media{Kind: "photo", FileID: "file-123"}, msg.media[0])
	require.Len(t, msg.keyboard, 1)
	assert.Equal(t, "Open", msg.keyboard[0][0].Text)
	assert.Empty(t, client.sentMessages(), "media replies replace the plain text send")
}

func TestRunnerInstanceIsolation(t *testing.T) {
	st := openTestStore(t)
	deployTestBot(t, st, "alpha")
	ctx := context.Background()

	// The second instance has a broken script and can never boot.
	require.NoError(t, st.UpsertBot(ctx, store.NewBotInstance("broken", "t", "package main\nfunc {")))

	factory := &fakeFactory{}
	startRunner(t, st, factory)

	// Only the healthy instance ever reaches the platform.
	require.Eventually(t, func() bool { return factory.count() >= 1 }, waitFor, tick)
	client := factory.client(0)
	client.updates <- messageUpdate(100, "/start")
	require.Eventually(t, func() bool { return len(client.sentMessages()) == 1 }, waitFor, tick)
	assert.Equal(t, "Welcome!", client.sentMessages()[0].text)
}
