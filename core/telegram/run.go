package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/cedulabot/core/config"
	"github.com/m3rciful/cedulabot/core/logger"
	tghelpers "github.com/m3rciful/cedulabot/core/telegram/helpers"
	"github.com/m3rciful/cedulabot/core/telegram/netutil"
	tgsender "github.com/m3rciful/cedulabot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
	// OnConflict is told about a transport conflict before the bot stops.
	OnConflict func(err error)
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot, runs opts.OnStart, and serves updates until
// ctx is done or the transport reports a conflict. In the latter case the
// returned error wraps ErrTransportConflict. OnStop always runs once the bot
// has started.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	conflicts := make(chan error, 1)
	bot, err := newBot(ctx, opts.Config, func(err error) {
		select {
		case conflicts <- err:
		default:
		}
	})
	if err != nil {
		return err
	}
	if _, polling := bot.Poller.(*ConflictPoller); polling && !opts.DisableWebhookCleanup {
		removeWebhook(ctx, bot)
	}

	dispatcher := tgsender.NewDispatcher(opts.DispatcherOptions)
	tghelpers.SetDispatcher(dispatcher)
	defer func() {
		dispatcher.Close()
		tghelpers.SetDispatcher(nil)
	}()

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, reg)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, bot, conflicts, opts.OnConflict)

	if opts.OnStop != nil {
		// ctx may already be cancelled; hooks get a fresh bounded context.
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		runErr = errors.Join(runErr, opts.OnStop(stopCtx, rt))
	}
	return runErr
}

// newBot creates the telebot instance with the poller selected by cfg and
// logs the transport mode.
func newBot(ctx context.Context, cfg *coreconfig.Config, onConflict func(error)) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
		OnConflict: onConflict,
	})

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(pollTimeout(cfg.Telegram.LongPollTimeoutSeconds)),
		OnError: logBotError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %s", netutil.Redact(err))
	}

	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	switch p := poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *ConflictPoller:
		attrs = append(attrs,
			slog.String("mode", RunModeLongpoll),
			slog.Int("timeout_seconds", int(p.Timeout/time.Second)),
		)
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "transport ready", attrs...)
	return bot, nil
}

// serve runs the bot until ctx is done, the poller reports a conflict, or
// the bot stops by itself. Only a conflict yields an error.
func serve(ctx context.Context, bot *tele.Bot, conflicts <-chan error, onConflict func(error)) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		bot.Stop()
		<-done
		return nil
	case err := <-conflicts:
		logger.TG.LogAttrs(ctx, slog.LevelError, "transport conflict",
			slog.String("event", "conflict"),
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
		if onConflict != nil {
			onConflict(err)
		}
		bot.Stop()
		<-done
		return err
	}
}

func removeWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.TG.LogAttrs(ctx, slog.LevelWarn, "failed to delete webhook",
			slog.String("event", "delete_webhook"),
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook deleted",
		slog.String("event", "delete_webhook"),
		slog.String("status", "ok"),
	)
}

func logBotError(err error, c tele.Context) {
	ctx := logger.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	attrs := []slog.Attr{
		slog.String("status", "fail"),
		slog.String("err", netutil.Redact(err)),
		slog.String("error_kind", netutil.Classify(err)),
	}
	if code := netutil.StatusFromError(err); code != 0 {
		attrs = append(attrs, slog.Int("err_code", code))
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelError, "bot.error", attrs...)
}
