package botpool

import (
	"context"
	"fmt"
	"strings"

	"github.com/swarmhost/swarmhost/internal/config/dialog"
	"github.com/swarmhost/swarmhost/internal/config/funcs"
	"github.com/swarmhost/swarmhost/internal/provider"
	"github.com/swarmhost/swarmhost/internal/store"
	"github.com/swarmhost/swarmhost/internal/transport"
)

func (w *worker) dispatch(ctx context.Context, u transport.Update) error {
	switch {
	case u.Message != nil:
		return w.handleMessage(ctx, u.Message)
	case u.Callback != nil:
		return w.handleCallback(ctx, u.Callback)
	default:
		return nil
	}
}

func (w *worker) handleMessage(ctx context.Context, in *transport.Incoming) error {
	user, err := w.syncUser(ctx, in.From)
	if err != nil {
		return err
	}

	if command, arg, ok := parseCommand(in.Text); ok {
		msg, found := w.cfg.GetCommandMessageVarianted(command, user.LanguageCode)
		if !found {
			w.logger.Debug("Unknown command", "command", command, "user", user.ID)
			return nil
		}
		return w.react(ctx, reaction{
			msg:    msg,
			user:   user,
			chatID: in.ChatID,
			arg:    arg,
		})
	}

	// Plain text goes to the handler registered for the user's
	// current dialog state, if any.
	if user.State == "" {
		return nil
	}
	msg, found := w.cfg.GetStateMessage(user.State)
	if !found {
		return nil
	}
	return w.react(ctx, reaction{
		msg:    msg,
		user:   user,
		chatID: in.ChatID,
		arg:    in.Text,
		// A state handler always moves the user to its target state,
		// including back to the empty one.
		forceState: true,
	})
}

func (w *worker) handleCallback(ctx context.Context, cb *transport.Callback) error {
	if err := w.client.AnswerCallback(ctx, cb.ID); err != nil {
		w.logger.Warn("Failed to answer callback", "error", err)
	}

	literal, ok, err := w.st.CallbackLiteral(ctx, cb.Token)
	if err != nil {
		return err
	}
	if !ok {
		w.logger.Debug("Unknown callback token", "token", cb.Token)
		return nil
	}

	user, err := w.syncUser(ctx, cb.From)
	if err != nil {
		return err
	}
	msg, found := w.cfg.GetCallbackMessage(literal)
	if !found {
		w.logger.Debug("No message for callback", "callback", literal)
		return nil
	}
	return w.react(ctx, reaction{
		msg:       msg,
		user:      user,
		chatID:    cb.ChatID,
		messageID: cb.MessageID,
		arg:       literal,
		replace:   msg.Replace,
	})
}

// reaction is one resolved response about to be delivered.
type reaction struct {
	msg        dialog.Message
	user       store.User
	chatID     int64
	messageID  int
	arg        string
	replace    bool
	forceState bool
}

// react runs the optional script handler and then the default
// handling: onboarding meta bookkeeping, state change and delivery.
// A handler returning false vetoes the default handling.
func (w *worker) react(ctx context.Context, re reaction) error {
	proceed, err := w.runHandler(re.msg.Handler, re.user, re.arg)
	if err != nil {
		return err
	}
	if !proceed {
		return nil
	}

	if re.msg.IsMeta() && re.arg != "" {
		if err := w.st.AppendMeta(ctx, re.user.ID, re.arg); err != nil {
			w.logger.Error("Failed to append meta", "user", re.user.ID, "error", err)
		}
	}
	if re.msg.State != "" || re.forceState {
		if err := w.st.SetState(ctx, re.user.ID, re.msg.State); err != nil {
			return err
		}
	}
	return w.deliver(ctx, re)
}

func (w *worker) runHandler(handler *funcs.Func, user store.User, arg string) (bool, error) {
	if handler == nil {
		return true, nil
	}
	userVal, err := provider.From(user)
	if err != nil {
		return false, fmt.Errorf("encode user: %w", err)
	}
	res, err := handler.Call(userVal, arg)
	if err != nil {
		return false, fmt.Errorf("handler: %w", err)
	}
	if veto, ok := res.(bool); ok && !veto {
		return false, nil
	}
	return true, nil
}

func (w *worker) deliver(ctx context.Context, re reaction) error {
	text, ok, err := w.st.LiteralVariant(ctx, *re.msg.Literal, re.user.LanguageCode)
	if err != nil {
		return err
	}
	if !ok {
		// An operator has not set the literal yet; the key itself is
		// better than silence.
		w.logger.Warn("Literal not set, sending key", "literal", *re.msg.Literal)
		text = *re.msg.Literal
	}

	keyboard, err := w.buildKeyboard(ctx, re.msg.Buttons)
	if err != nil {
		return err
	}
	media, err := w.literalMedia(ctx, *re.msg.Literal)
	if err != nil {
		return err
	}

	if len(media) > 0 {
		// Replacing a text message with media is not an edit the
		// platform supports, so a media-bearing reply is always sent
		// fresh.
		return w.client.SendMedia(ctx, re.chatID, media, text, keyboard)
	}
	if re.replace {
		return w.client.EditText(ctx, re.chatID, re.messageID, text, keyboard)
	}
	return w.client.SendText(ctx, re.chatID, text, keyboard)
}

// literalMedia loads the attachments stored for a literal.
func (w *worker) literalMedia(ctx context.Context, literal string) ([]transport.Media, error) {
	stored, err := w.st.MediaFor(ctx, literal)
	if err != nil {
		return nil, err
	}
	if len(stored) == 0 {
		return nil, nil
	}
	out := make([]transport.Media, 0, len(stored))
	for _, m := range stored {
		out = append(out, transport.Media{Kind: m.Kind, FileID: m.FileID})
	}
	return out, nil
}

// buildKeyboard resolves the keyboard definition and mints one
// callback token per button.
func (w *worker) buildKeyboard(ctx context.Context, kb *dialog.Keyboard) ([][]transport.Button, error) {
	if kb == nil {
		return nil, nil
	}
	layouts, err := kb.Resolve(ctx, w.st)
	if err != nil {
		return nil, fmt.Errorf("resolve keyboard: %w", err)
	}
	out := make([][]transport.Button, 0, len(layouts))
	for _, row := range layouts {
		buttons := make([]transport.Button, 0, len(row))
		for _, b := range row {
			token, err := w.st.SaveCallback(ctx, b.Callback)
			if err != nil {
				return nil, err
			}
			buttons = append(buttons, transport.Button{Text: b.Name, Data: token})
		}
		out = append(out, buttons)
	}
	return out, nil
}

// syncUser loads or creates the user record and refreshes the stored
// profile from the incoming update.
func (w *worker) syncUser(ctx context.Context, from transport.User) (store.User, error) {
	user, err := w.st.GetOrInitUser(ctx, from.ID, from.FirstName)
	if err != nil {
		return store.User{}, err
	}
	user.FirstName = from.FirstName
	user.LastName = from.LastName
	user.Username = from.Username
	user.LanguageCode = from.LanguageCode
	if err := w.st.UpdateUser(ctx, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// parseCommand splits "/cmd arg words" into the command name and its
// argument. A "@botname" suffix on the command is dropped.
func parseCommand(text string) (command, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	command, arg, _ = strings.Cut(text[1:], " ")
	command, _, _ = strings.Cut(command, "@")
	if command == "" {
		return "", "", false
	}
	return command, strings.TrimSpace(arg), true
}
