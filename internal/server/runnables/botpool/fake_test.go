package botpool

import (
	"context"
	"sync"

	"github.com/swarmhost/swarmhost/internal/transport"
)

type fakeMsg struct {
	chatID    int64
	messageID int
	text      string
	keyboard  [][]transport.Button
	media     []transport.Media
}

// fakeClient is an in-memory transport.Client for pool tests.
type fakeClient struct {
	updates chan transport.Update

	mu        sync.Mutex
	sent      []fakeMsg
	sentMedia []fakeMsg
	edits     []fakeMsg
	answered  []string
	closed    bool
}

var _ transport.Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{updates: make(chan transport.Update, 16)}
}

func (c *fakeClient) Updates(context.Context) (<-chan transport.Update, error) {
	return c.updates, nil
}

func (c *fakeClient) SendText(_ context.Context, chatID int64, text string, keyboard [][]transport.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, fakeMsg{chatID: chatID, text: text, keyboard: keyboard})
	return nil
}

func (c *fakeClient) SendMedia(_ context.Context, chatID int64, media []transport.Media, caption string, keyboard [][]transport.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentMedia = append(c.sentMedia, fakeMsg{chatID: chatID, text: caption, keyboard: keyboard, media: media})
	return nil
}

func (c *fakeClient) EditText(_ context.Context, chatID int64, messageID int, text string, keyboard [][]transport.Button) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, fakeMsg{chatID: chatID, messageID: messageID, text: text, keyboard: keyboard})
	return nil
}

func (c *fakeClient) AnswerCallback(_ context.Context, callbackID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.answered = append(c.answered, callbackID)
	return nil
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeClient) sentMessages() []fakeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeMsg(nil), c.sent...)
}

func (c *fakeClient) sentMediaMessages() []fakeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeMsg(nil), c.sentMedia...)
}

func (c *fakeClient) editedMessages() []fakeMsg {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeMsg(nil), c.edits...)
}

func (c *fakeClient) answeredCallbacks() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.answered...)
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeFactory hands out one fakeClient per connection attempt.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func (f *fakeFactory) new(string) (transport.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := newFakeClient()
	f.clients = append(f.clients, c)
	return c, nil
}

func (f *fakeFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *fakeFactory) client(n int) *fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[n]
}

func messageUpdate(userID int64, text string) transport.Update {
	return transport.Update{Message: &transport.Incoming{
		MessageID: 1,
		ChatID:    userID,
		From:      transport.User{ID: userID, FirstName: "Ada", LanguageCode: "en"},
		Text:      text,
	}}
}

func callbackUpdate(userID int64, token string) transport.Update {
	return transport.Update{Callback: &transport.Callback{
		ID:        "cbq-1",
		Token:     token,
		ChatID:    userID,
		MessageID: 7,
		From:      transport.User{ID: userID, FirstName: "Ada", LanguageCode: "en"},
	}}
}
