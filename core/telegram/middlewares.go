package telegram

import (
	"github.com/m3rciful/cedulabot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared middleware chain applied to every update.
// Per-route logging is added by the router package.
func DefaultMiddlewares() []Middleware {
	return []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	}
}
