package transport

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// longPollTimeout is the Telegram long-poll window in seconds.
const longPollTimeout = 30

// Telegram is the production Client backed by the Bot API.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

var _ Client = (*Telegram)(nil)

// NewTelegram authorizes against the Bot API with the given token.
func NewTelegram(token string) (Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%w: authorize: %v", ErrTransport, err)
	}
	return &Telegram{bot: bot}, nil
}

// Updates implements Client.
func (t *Telegram) Updates(ctx context.Context) (<-chan Update, error) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = longPollTimeout
	raw := t.bot.GetUpdatesChan(cfg)

	out := make(chan Update)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-raw:
				if !ok {
					return
				}
				converted, ok := convertUpdate(u)
				if !ok {
					continue
				}
				select {
				case out <- converted:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func convertUpdate(u tgbotapi.Update) (Update, bool) {
	switch {
	case u.Message != nil && u.Message.From != nil:
		return Update{Message: &Incoming{
			MessageID: u.Message.MessageID,
			ChatID:    u.Message.Chat.ID,
			From:      convertUser(u.Message.From),
			Text:      u.Message.Text,
		}}, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return Update{Callback: &Callback{
			ID:        u.CallbackQuery.ID,
			Token:     u.CallbackQuery.Data,
			ChatID:    u.CallbackQuery.Message.Chat.ID,
			MessageID: u.CallbackQuery.Message.MessageID,
			From:      convertUser(u.CallbackQuery.From),
		}}, true
	default:
		return Update{}, false
	}
}

func convertUser(u *tgbotapi.User) User {
	return User{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}

// SendText implements Client.
func (t *Telegram) SendText(_ context.Context, chatID int64, text string, keyboard [][]Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup, ok := convertKeyboard(keyboard); ok {
		msg.ReplyMarkup = markup
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("%w: send to chat %d: %v", ErrTransport, chatID, err)
	}
	return nil
}

// SendMedia implements Client. One attachment becomes a photo or video
// message with a caption; several become a media group with the
// caption on the first item.
func (t *Telegram) SendMedia(ctx context.Context, chatID int64, media []Media, caption string, keyboard [][]Button) error {
	switch len(media) {
	case 0:
		return t.SendText(ctx, chatID, caption, keyboard)
	case 1:
		var msg tgbotapi.Chattable
		file := tgbotapi.FileID(media[0].FileID)
		markup, hasKeyboard := convertKeyboard(keyboard)
		switch media[0].Kind {
		case MediaVideo:
			v := tgbotapi.NewVideo(chatID, file)
			v.Caption = caption
			if hasKeyboard {
				v.ReplyMarkup = markup
			}
			msg = v
		default:
			p := tgbotapi.NewPhoto(chatID, file)
			p.Caption = caption
			if hasKeyboard {
				p.ReplyMarkup = markup
			}
			msg = p
		}
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("%w: send media to chat %d: %v", ErrTransport, chatID, err)
		}
		return nil
	default:
		files := make([]interface{}, 0, len(media))
		for n, m := range media {
			file := tgbotapi.FileID(m.FileID)
			itemCaption := ""
			if n == 0 {
				itemCaption = caption
			}
			switch m.Kind {
			case MediaVideo:
				v := tgbotapi.NewInputMediaVideo(file)
				v.Caption = itemCaption
				files = append(files, v)
			default:
				p := tgbotapi.NewInputMediaPhoto(file)
				p.Caption = itemCaption
				files = append(files, p)
			}
		}
		if _, err := t.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, files)); err != nil {
			return fmt.Errorf("%w: send media group to chat %d: %v", ErrTransport, chatID, err)
		}
		return nil
	}
}

// EditText implements Client.
func (t *Telegram) EditText(_ context.Context, chatID int64, messageID int, text string, keyboard [][]Button) error {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if markup, ok := convertKeyboard(keyboard); ok {
		msg.ReplyMarkup = &markup
	}
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("%w: edit message %d in chat %d: %v", ErrTransport, messageID, chatID, err)
	}
	return nil
}

// AnswerCallback implements Client.
func (t *Telegram) AnswerCallback(_ context.Context, callbackID string) error {
	if _, err := t.bot.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("%w: answer callback: %v", ErrTransport, err)
	}
	return nil
}

// Close implements Client.
func (t *Telegram) Close() {
	t.bot.StopReceivingUpdates()
}

func convertKeyboard(keyboard [][]Button) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(keyboard) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
