// Package transport abstracts the chat platform a bot instance talks
// to. The production implementation is Telegram; tests substitute an
// in-memory client.
package transport

import "context"

// User is the chat-platform profile of a message sender.
type User struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// Incoming is a plain message from a user.
type Incoming struct {
	MessageID int
	ChatID    int64
	From      User
	Text      string
}

// Callback is a button press on a previously sent keyboard. Token is
// the opaque data payload the keyboard was built with.
type Callback struct {
	ID        string
	Token     string
	ChatID    int64
	MessageID int
	From      User
}

// Update is one incoming event: exactly one of Message or Callback is
// set.
type Update struct {
	Message  *Incoming
	Callback *Callback
}

// Button is one resolved inline-keyboard button.
type Button struct {
	Text string
	Data string
}

// Media kinds understood by the platform.
const (
	MediaPhoto = "photo"
	MediaVideo = "video"
)

// Media is one attachment to deliver: a platform file id previously
// uploaded to the bot, and its kind.
type Media struct {
	Kind   string
	FileID string
}

// Client is a connection to the chat platform for one bot instance.
type Client interface {
	// Updates opens the long-poll stream. The channel closes when the
	// context is canceled or Close is called.
	Updates(ctx context.Context) (<-chan Update, error)

	// SendText sends a message, optionally with an inline keyboard.
	SendText(ctx context.Context, chatID int64, text string, keyboard [][]Button) error

	// SendMedia sends one or more attachments with the text as the
	// caption. A single attachment may carry an inline keyboard; the
	// platform does not allow keyboards on media groups.
	SendMedia(ctx context.Context, chatID int64, media []Media, caption string, keyboard [][]Button) error

	// EditText replaces the text and keyboard of an already sent
	// message.
	EditText(ctx context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error

	// AnswerCallback acknowledges a button press so the client UI
	// stops showing a spinner.
	AnswerCallback(ctx context.Context, callbackID string) error

	// Close stops the update stream and releases the connection.
	Close()
}

// Factory builds a Client from a bot token. The pool uses it so tests
// can run instances against a fake platform.
type Factory func(token string) (Client, error)
