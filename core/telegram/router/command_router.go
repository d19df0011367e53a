package router

import (
	"log/slog"

	"github.com/m3rciful/cedulabot/core/logger"
	tg "github.com/m3rciful/cedulabot/core/telegram"
	"github.com/m3rciful/cedulabot/core/telegram/commands"
	"github.com/m3rciful/cedulabot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRoutes prepares one route per registered command and alias.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		h := commandHandler(name, def)
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
		for _, alias := range def.Aliases {
			if alias != "" && alias[0] != '/' {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func commandHandler(name string, def commands.Command) tele.HandlerFunc {
	label := handlerName(name)
	return middleware.LoggerMiddleware(func(c tele.Context) error {
		return newSpan(c, label).run(def.Handler)
	})
}
