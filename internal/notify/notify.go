// Package notify sends the one-shot "bot ready" message at startup.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	// Bundled zone database so the configured timezone resolves on minimal images.
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/cedulabot/core/config"
	"github.com/m3rciful/cedulabot/core/logger"
	"github.com/m3rciful/cedulabot/core/telegram/format"
)

// Sender delivers a Markdown message to a chat.
type Sender interface {
	SendMarkdown(ctx context.Context, chatID int64, text string) error
}

// Options configures the readiness message.
type Options struct {
	// StatusChatID takes precedence over AllowedIDs when non-zero.
	StatusChatID int64
	AllowedIDs   []int64
	Location     *time.Location
	Label        string
	Window       time.Duration
	Now          func() time.Time
}

// OptionsFromConfig resolves the notify section. An unknown timezone falls
// back to the local zone with a warning.
func OptionsFromConfig(cfg coreconfig.NotifyConfig, allowed []int64) Options {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Warn(logger.Background(), "notify", "notify.timezone",
			slog.String("status", "fallback"),
			slog.String("timezone", cfg.Timezone),
			slog.String("err", err.Error()),
		)
		loc = time.Local
	}
	return Options{
		StatusChatID: cfg.StatusChatID,
		AllowedIDs:   allowed,
		Location:     loc,
		Label:        cfg.TimezoneLabel,
		Window:       time.Duration(cfg.WindowHours) * time.Hour,
	}
}

// Recipient picks the chat to notify: the status chat, else the first
// allowed user. ok is false when nobody is configured.
func Recipient(statusChatID int64, allowed []int64) (chatID int64, ok bool) {
	if statusChatID != 0 {
		return statusChatID, true
	}
	if len(allowed) > 0 {
		return allowed[0], true
	}
	return 0, false
}

// Clock renders t on a 12-hour clock without a leading zero, e.g. "3:07 PM".
func Clock(t time.Time) string {
	return t.Format("3:04 PM")
}

// Message builds the readiness text for the given send time. label is
// escaped for Markdown.
func Message(now time.Time, label string, window time.Duration) string {
	expires := now.Add(window)
	label, _ = format.EscapeMarkdown(label, format.MarkdownV1)
	return fmt.Sprintf(
		"🔔 *Bot listo* — Hora de envío: %s (%s).\n"+
			"Tienes disponible la herramienta hasta las *%s* (%s) — %d horas desde ahora.\n\n"+
			"Envía /correr_bot y escribe la cédula (solo dígitos) cuando quieras.",
		Clock(now), label, Clock(expires), label, int(window/time.Hour),
	)
}

// Ready sends the readiness message when a recipient is configured.
// Failures are logged and never returned: a missed notification must not
// stop the bot.
func Ready(ctx context.Context, opts Options, s Sender) {
	chatID, ok := Recipient(opts.StatusChatID, opts.AllowedIDs)
	if !ok {
		logger.Debug(ctx, "notify", "notify.skip", slog.String("status", "skip"), slog.String("reason", "no_recipient"))
		return
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	start := time.Now()
	err := s.SendMarkdown(ctx, chatID, Message(now().In(loc), opts.Label, opts.Window))
	if err != nil {
		logger.Error(ctx, "notify", "notify.ready",
			slog.String("status", "fail"),
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Info(ctx, "notify", "notify.ready",
		slog.String("status", "ok"),
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", logger.Took(start)),
	)
}
