package router

import (
	"log/slog"

	tg "github.com/m3rciful/cedulabot/core/telegram"
	"github.com/m3rciful/cedulabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextHandler receives plain (non-command) text messages.
type TextHandler interface {
	HandleText(c tele.Context) error
}

// TextRoutes routes text updates. Known commands typed with arguments or a
// "@bot" suffix go to their command handler, unknown commands are dropped,
// and everything else goes to sink.
func TextRoutes(sink TextHandler, reg *tg.Registry) []tg.Route {
	handler := func(c tele.Context) error {
		text := c.Text()

		if name := tg.CommandName(text); name != "" {
			if reg != nil {
				if key, cmd, ok := reg.LookupCommand(name); ok && cmd.Handler != nil {
					return newSpan(c, handlerName(key)).run(cmd.Handler)
				}
			}
			newSpan(c, "unknown_command").skip(slog.String("command", name))
			return nil
		}

		if sink == nil {
			newSpan(c, "text").skip()
			return nil
		}
		return newSpan(c, "text").run(sink.HandleText)
	}

	return []tg.Route{{
		Endpoint: tele.OnText,
		Handler:  middleware.LoggerMiddleware(handler),
	}}
}
