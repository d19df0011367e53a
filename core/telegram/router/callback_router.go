package router

import (
	"log/slog"

	tg "github.com/m3rciful/cedulabot/core/telegram"
	"github.com/m3rciful/cedulabot/core/telegram/callbacks"
	"github.com/m3rciful/cedulabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute dispatches inline button presses to the registry handler
// matching the button's unique key.
func CallbackRoute(reg *tg.Registry) tg.Route {
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler: middleware.LoggerMiddleware(func(c tele.Context) error {
			if c.Callback() == nil {
				return nil
			}
			key := callbacks.CallbackKey(c)
			s := newSpan(c, "callback."+handlerName(key), slog.String("cb_key", key))

			h, ok := reg.GetCallback(key)
			if !ok || h == nil {
				s.attrs = append(s.attrs, slog.String("reason", "not_found"))
				return s.run(reg.CallbackNotFound())
			}
			// Stop the client spinner before the handler does slower work.
			_ = c.Respond()
			return s.run(h)
		}),
	}
}
