package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/cedulabot/core/logger"
	tghelpers "github.com/m3rciful/cedulabot/core/telegram/helpers"
	"github.com/m3rciful/cedulabot/core/telegram/middleware"
	"github.com/m3rciful/cedulabot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

// span is one routed update. It ends with a single handler.handled event
// summarizing what the handler sent.
type span struct {
	c     tele.Context
	name  string
	start time.Time
	attrs []slog.Attr
}

func newSpan(c tele.Context, name string, attrs ...slog.Attr) *span {
	tghelpers.WithHandler(c, name)
	return &span{c: c, name: name, start: time.Now(), attrs: attrs}
}

// run calls fn and records its result.
func (s *span) run(fn tele.HandlerFunc) error {
	err := fn(s.c)
	s.end(logger.Status(err), err)
	return err
}

// skip records an update that was routed nowhere.
func (s *span) skip(attrs ...slog.Attr) {
	s.attrs = append(s.attrs, attrs...)
	s.end("skip", nil)
}

func (s *span) end(status string, err error) {
	sent := middleware.GetCounters(s.c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", s.name),
		slog.Int("messages", sent.Messages),
		slog.Int("files", sent.Files),
		slog.Bool("kb", sent.Keyboard),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
			slog.String("err_code", errorCode(err)),
			slog.String("cause", s.name),
		)
	}
	ctx := tghelpers.BuildContext(s.c)
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.attrs...)...)
}

// handlerName turns a command or callback key into a lowercase log label.
func handlerName(raw string) string {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "/")
	if raw == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(raw, " ", "_"))
}

// errorCode is the upper-cased Code() of err when it has one, else the name
// of its concrete type.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
