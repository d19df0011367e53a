package app

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/cedulabot/core/telegram/helpers"
	"github.com/m3rciful/cedulabot/core/telegram/keyboard"
	"github.com/m3rciful/cedulabot/core/telegram/sender"
	"github.com/m3rciful/cedulabot/core/telegram/state"
	"github.com/m3rciful/cedulabot/internal/conversation"
	"github.com/m3rciful/cedulabot/internal/delivery"
)

const startBanner = "<b>🔎 OSINT Bot</b>\n" +
	"<i>Consulta rápida por cédula — uso legal y responsable</i>\n\n" +
	"Herramienta creada por el filántropo <b>JF0x0r</b>. " +
	"Esta utilidad está pensada solo para fines legítimos de OSINT e investigación." +
	" No uses este bot para actividades ilegales.\n\n" +
	"Para empezar, envía <code>/correr_bot</code> y luego escribe la cédula (solo dígitos).\n\n" +
	"Vojabes 2025 ©"

func (a *App) handleStart(c tele.Context) error {
	return helpers.SendHTML(c, startBanner)
}

func (a *App) handleEntry(c tele.Context) error {
	return a.dispatch(c, conversation.EventEntry, "")
}

func (a *App) handleCancel(c tele.Context) error {
	return a.dispatch(c, conversation.EventCancel, "")
}

// textSink feeds plain text messages to the machine.
type textSink struct{ a *App }

func (s textSink) HandleText(c tele.Context) error {
	return s.a.dispatch(c, conversation.EventText, c.Text())
}

// dispatch runs one event. The machine answers the user itself, so the
// router never sees an error from here.
func (a *App) dispatch(c tele.Context, ev conversation.Event, text string) error {
	key, ok := sessionKey(c)
	if !ok {
		return nil
	}
	a.machine.Dispatch(helpers.BuildContext(c), conversation.Input{Key: key, Event: ev, Text: text}, chatReplier{c: c})
	return nil
}

func sessionKey(c tele.Context) (state.Key, bool) {
	chat, user := c.Chat(), c.Sender()
	if chat == nil || user == nil {
		return state.Key{}, false
	}
	return state.Key{ChatID: chat.ID, UserID: user.ID}, true
}

// chatReplier answers in the chat of the update being handled.
type chatReplier struct{ c tele.Context }

func (r chatReplier) SendText(_ context.Context, text string, mode delivery.Mode) error {
	if mode == delivery.ModeMarkdownV2 {
		return helpers.SendMDV2(r.c, text)
	}
	return helpers.SendText(r.c, text)
}

func (r chatReplier) SendFile(_ context.Context, name string, data []byte) error {
	return helpers.SendDocument(r.c, name, data)
}

func (r chatReplier) Prompt(_ context.Context, text string) error {
	return helpers.SendText(r.c, text, &tele.SendOptions{
		ReplyMarkup: keyboard.SingleCancelMarkup(cancelUnique, ""),
	})
}

var _ conversation.Replier = chatReplier{}

// botSender delivers the readiness message outside any update. The send is
// queued on the dispatcher so startup never waits on Telegram.
type botSender struct {
	bot        *tele.Bot
	dispatcher *sender.Dispatcher
}

func (s botSender) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	run := func() error {
		_, err := s.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
		return err
	}
	if s.dispatcher == nil {
		return run()
	}
	return s.dispatcher.Enqueue(ctx, "notify.ready", "sendMessage", run)
}
