package helpers

import (
	"bytes"
	"sync/atomic"

	"github.com/m3rciful/cedulabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the retrying sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// send runs the call through the dispatcher on the caller's goroutine, so
// consecutive helpers keep their order in the chat.
func send(c tele.Context, action, endpoint string, run func() error) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return run()
	}
	return disp.Do(BuildContext(c), action, endpoint, run)
}

// SendText sends text to the current chat with optional send options.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	return send(c, "send.text", "sendMessage", func() error {
		if len(opts) > 0 && opts[0] != nil {
			return c.Send(text, opts[0])
		}
		return c.Send(text)
	})
}

// SendHTML sends a message with HTML parse mode.
func SendHTML(c tele.Context, text string) error {
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

// SendMDV2 sends a message with MarkdownV2 parse mode and optional reply markup.
func SendMDV2(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	return SendText(c, text, &tele.SendOptions{ParseMode: tele.ModeMarkdownV2, ReplyMarkup: rm})
}

// SendDocument uploads data as a file attachment named name.
func SendDocument(c tele.Context, name string, data []byte) error {
	return send(c, "send.document", "sendDocument", func() error {
		doc := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(data)),
			FileName: name,
		}
		return c.Send(doc)
	})
}
