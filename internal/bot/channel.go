package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tghelpers "github.com/m3rciful/tarotbot/core/telegram/helpers"
	"github.com/m3rciful/tarotbot/core/telegram/sender"
	"github.com/m3rciful/tarotbot/internal/outbound"

	tele "gopkg.in/telebot.v4"
)

// messenger is the part of *tele.Bot the channel uses.
type messenger interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Channel is the Telegram implementation of outbound.Channel. Calls run
// inline through the dispatcher's retry policy so their order is kept.
type Channel struct {
	bot  messenger
	disp *sender.Dispatcher
}

// NewChannel builds a Channel over bot.
func NewChannel(bot messenger, disp *sender.Dispatcher) *Channel {
	return &Channel{bot: bot, disp: disp}
}

func (c *Channel) do(ctx context.Context, call sender.Call, run func() error) error {
	if c.disp == nil {
		return run()
	}
	return c.disp.Do(ctx, call, run)
}

// Send delivers msg to chatID.
func (c *Channel) Send(ctx context.Context, chatID int64, msg outbound.Message) (outbound.Handle, error) {
	opts := &tele.SendOptions{}
	if msg.Markdown {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	if len(msg.Buttons) > 0 {
		opts.ReplyMarkup = Markup(msg.Buttons)
	}

	var sent *tele.Message
	call := sender.Call{ChatID: chatID, Action: "send.text", Endpoint: "sendMessage"}
	err := c.do(ctx, call, func() error {
		m, err := c.bot.Send(tele.ChatID(chatID), msg.Text, opts)
		if err != nil {
			return err
		}
		sent = m
		return nil
	})
	if err != nil {
		return outbound.Handle{}, fmt.Errorf("send message: %w", err)
	}
	tghelpers.CountSend(ctx, len(msg.Buttons) > 0)
	if sent == nil {
		return outbound.Handle{ChatID: chatID}, nil
	}
	return outbound.Handle{ChatID: chatID, MessageID: sent.ID}, nil
}

// Edit replaces the text of a previously sent message. An unchanged text is
// not an error.
func (c *Channel) Edit(ctx context.Context, h outbound.Handle, text string) error {
	if h.MessageID == 0 {
		return errors.New("edit message: empty handle")
	}
	ref := tele.StoredMessage{MessageID: strconv.Itoa(h.MessageID), ChatID: h.ChatID}
	// Repeating an edit with the same text is harmless.
	call := sender.Call{ChatID: h.ChatID, Action: "edit.text", Endpoint: "editMessageText", Idempotent: true}
	err := c.do(ctx, call, func() error {
		_, err := c.bot.Edit(ref, text)
		if err != nil && strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	tghelpers.CountSend(ctx, false)
	return nil
}

// Markup converts button rows to an inline keyboard. Empty rows are dropped.
func Markup(rows [][]outbound.Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, *markup.Data(b.Text, b.Data).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, r)
	}
	return markup
}
