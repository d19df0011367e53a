// Package app wires configuration, the conversation machine, and the
// Telegram runtime into the cedula lookup bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/m3rciful/cedulabot/core/bootstrap"
	coreconfig "github.com/m3rciful/cedulabot/core/config"
	"github.com/m3rciful/cedulabot/core/logger"
	tg "github.com/m3rciful/cedulabot/core/telegram"
	"github.com/m3rciful/cedulabot/core/telegram/commands"
	"github.com/m3rciful/cedulabot/core/telegram/router"
	"github.com/m3rciful/cedulabot/core/telegram/sender"
	"github.com/m3rciful/cedulabot/internal/access"
	"github.com/m3rciful/cedulabot/internal/conversation"
	"github.com/m3rciful/cedulabot/internal/lookup"
	"github.com/m3rciful/cedulabot/internal/metrics"
	"github.com/m3rciful/cedulabot/internal/notify"
)

// Command names. cancelUnique is the callback key of the inline cancel button.
const (
	cmdStart     = "/start"
	cmdEntry     = "/correr_bot"
	cmdCancel    = "/cancel"
	cancelUnique = "conv_cancel"
)

// App is the assembled bot.
type App struct {
	cfg      *coreconfig.Config
	policy   *access.Policy
	metrics  *metrics.Collectors
	gatherer prometheus.Gatherer
	machine  *conversation.Machine
	registry *tg.Registry

	ops      *metrics.Server
	stopJobs context.CancelFunc
	jobs     sync.WaitGroup
}

// New builds the App. When infra carries a database, its authorized users
// are merged into the configured allow-list.
func New(ctx context.Context, cfg *coreconfig.Config, infra *bootstrap.Result) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.New(reg)

	var db *sqlx.DB
	if infra != nil {
		db = infra.DB
	}
	policy, err := buildPolicy(ctx, cfg.Access, db)
	if err != nil {
		return nil, err
	}

	lookupOpts := lookup.OptionsFromConfig(cfg.Lookup)
	lookupOpts.Observer = col.ObserveLookup
	client, err := lookup.NewClient(lookupOpts)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	machine, err := conversation.New(conversation.Options{
		Lookup:      client,
		Access:      policy,
		IdleTimeout: time.Duration(cfg.Conversation.IdleTimeoutSeconds) * time.Second,
		OnResult: func(res conversation.Result) {
			branch := ""
			if res.Outcome == conversation.OutcomeDelivered {
				branch = string(res.Branch)
			}
			col.ObserveConversation(string(res.Outcome), branch)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a := &App{
		cfg:      cfg,
		policy:   policy,
		metrics:  col,
		gatherer: reg,
		machine:  machine,
		registry: tg.NewRegistry(),
	}
	if err := a.registerHandlers(); err != nil {
		return nil, err
	}
	return a, nil
}

func buildPolicy(ctx context.Context, cfg coreconfig.AccessConfig, db *sqlx.DB) (*access.Policy, error) {
	policy := access.NewPolicy(cfg.AllowedIDs)
	if db != nil {
		if err := access.NewStore(db).LoadInto(ctx, policy); err != nil {
			return nil, fmt.Errorf("app: load authorized users: %w", err)
		}
	}
	warnIfLockedOut(ctx, policy)
	return policy, nil
}

// warnIfLockedOut logs when a restricted policy admits nobody.
func warnIfLockedOut(ctx context.Context, policy *access.Policy) bool {
	if !policy.Restricted() || policy.Len() > 0 {
		return false
	}
	logger.Warn(ctx, "access", "access.empty",
		slog.String("reason", "allow-list is empty; every user will be refused"))
	return true
}

func (a *App) registerHandlers() error {
	cmds := []struct {
		name string
		cmd  commands.Command
	}{
		{cmdStart, commands.Command{Handler: a.handleStart, Description: "Información del bot"}},
		{cmdEntry, commands.Command{Handler: a.handleEntry, Description: "Consultar una cédula"}},
		{cmdCancel, commands.Command{Handler: a.handleCancel, Description: "Cancelar la consulta", Aliases: []string{"cancelar"}}},
	}
	for _, c := range cmds {
		if err := a.registry.RegisterCommand(c.name, c.cmd); err != nil {
			return err
		}
	}
	return a.registry.RegisterCallback(cancelUnique, a.handleCancel)
}

// TelegramRunOptions describes the routes and lifecycle hooks of the bot.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	routes := router.CommandRoutes(a.registry)
	routes = append(routes, router.TextRoutes(textSink{a}, a.registry)...)
	routes = append(routes, router.CallbackRoute(a.registry))

	return tg.RunOptions{
		Config:            a.cfg,
		Registry:          a.registry,
		DispatcherOptions: sender.Options{MaxRetries: a.cfg.Telegram.Retries()},
		Middlewares:       tg.DefaultMiddlewares(),
		Routes:            routes,
		OnStart:           a.onStart,
		OnStop:            a.onStop,
		OnConflict:        func(error) { a.metrics.ObserveConflict() },
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	if addr := a.cfg.Metrics.Listen; addr != "" {
		srv, err := metrics.Start(addr, a.gatherer)
		if err != nil {
			return fmt.Errorf("app: metrics listener: %w", err)
		}
		a.ops = srv
	}

	jobsCtx, cancel := context.WithCancel(context.Background())
	a.stopJobs = cancel

	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		a.runJanitor(jobsCtx)
	}()

	notifyOpts := notify.OptionsFromConfig(a.cfg.Notify, a.cfg.Access.AllowedIDs)
	notify.Ready(jobsCtx, notifyOpts, botSender{bot: rt.Bot, dispatcher: rt.Dispatcher})

	logger.Info(ctx, "app", "app.start",
		slog.String("status", "ok"),
		slog.Bool("restricted", a.policy.Restricted()),
		slog.Int("allowed", a.policy.Len()),
		slog.Bool("metrics", a.ops != nil),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, rt tg.Runtime) error {
	if a.stopJobs != nil {
		a.stopJobs()
	}
	a.jobs.Wait()

	if rt.Dispatcher != nil {
		logger.Info(ctx, "app", "app.stop",
			slog.String("status", "ok"),
			slog.Uint64("send_errors", rt.Dispatcher.ErrorCount()),
		)
	}

	if a.ops == nil {
		return nil
	}
	return a.ops.Shutdown(ctx)
}

// runJanitor expires abandoned sessions until ctx is done.
func (a *App) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval(a.cfg.Conversation.IdleTimeoutSeconds))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.machine.Sweep(ctx); n > 0 {
				logger.Debug(ctx, "conversation", "conversation.sweep", slog.Int("expired", n))
			}
		}
	}
}

func sweepInterval(idleSeconds int) time.Duration {
	d := time.Duration(idleSeconds) * time.Second / 4
	if d < time.Second {
		return time.Second
	}
	return d
}
