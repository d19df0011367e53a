package middleware

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/cedulabot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// LoggerMiddleware stores the request context (rid, update/chat/user ids) on
// the telebot context and logs one sampled receipt line per update.
// Message text is never logged: only commands are named, other text is
// reported by length since it usually carries an identification number.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		upd := c.Update()
		ctx := tghelpers.NewUpdateContext(c)

		if logger.ShouldSampleDebug() {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}
			switch {
			case upd.Callback != nil:
				key, _ := callbacks.ParseCallbackData(upd.Callback)
				if upd.Callback.Unique != "" {
					key = upd.Callback.Unique
				}
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
			case upd.Message != nil:
				text := c.Text()
				if strings.HasPrefix(text, "/") {
					attrs = append(attrs, slog.String("command", logger.SanitizeLimit(strings.Fields(text)[0], 64)))
				} else {
					attrs = append(attrs, slog.Int("doc_len", utf8.RuneCountInString(text)))
				}
			}
			logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
