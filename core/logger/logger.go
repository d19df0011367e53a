// Package logger is the process-wide structured logger: a slog handler with
// a fixed field vocabulary, privacy guards, and component-scoped loggers.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/cedulabot/core/buildinfo"
	coreconfig "github.com/m3rciful/cedulabot/core/config"
)

const (
	writerBuffer = 64 * 1024
	// One debug event in fifty passes unless LOG_DEBUG_SAMPLE says otherwise.
	defaultKeep, defaultWindow = 1, 50
)

var (
	state struct {
		sync.Mutex
		started bool
		closed  bool
		writer  *asyncWriter
		sinks   []io.Closer
	}

	levelVar slog.LevelVar
	sampler  = newRatioSampler(defaultKeep, defaultWindow)
	tracing  bool

	// L is the process logger. Component loggers below derive from it.
	L *slog.Logger

	DB     *slog.Logger // db
	MIG    *slog.Logger // db.migrate
	TG     *slog.Logger // tg
	TWire  *slog.Logger // tg.wire
	Lookup *slog.Logger // lookup
	Conv   *slog.Logger // conversation
)

func init() {
	// A plain stderr logger covers tests and failures before InitLogger.
	install(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &levelVar})))
}

func install(base *slog.Logger) {
	L = base
	DB = base.With("component", "db")
	MIG = base.With("component", "db.migrate")
	TG = base.With("component", "tg")
	TWire = base.With("component", "tg.wire")
	Lookup = base.With("component", "lookup")
	Conv = base.With("component", "conversation")
}

// settings is the logging section of the configuration after defaults.
type settings struct {
	format       logFormat
	keyOrder     []string
	level        slog.Level
	keep, window int
	profile      string
	file         string
}

func resolve(cfg coreconfig.LoggingConfig) settings {
	s := settings{
		level:   parseLevel(cfg.Level),
		profile: strings.ToLower(strings.TrimSpace(cfg.Profile)),
		keep:    defaultKeep,
		window:  defaultWindow,
	}
	if s.profile == "" {
		s.profile = "prod"
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
		s.format = formatJSON
	default:
		s.format = formatJSON
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if order := strings.TrimSpace(cfg.KeysOrder); order != "" && order != "default" {
		for _, k := range strings.Split(order, ",") {
			if k = strings.TrimSpace(k); k != "" {
				s.keyOrder = append(s.keyOrder, k)
			}
		}
	}

	if ratio := strings.TrimSpace(cfg.DebugSample); ratio != "" {
		s.keep, s.window = parseRatio(ratio)
	}

	if dir, name := strings.TrimSpace(cfg.Dir), strings.TrimSpace(cfg.BotFile); dir != "" && name != "" {
		s.file = filepath.Join(dir, name)
	}
	return s
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// InitLogger installs the structured logger described by cfg. Only the first
// call has an effect. A log file that cannot be opened is reported on stderr
// and skipped; stdout is always written.
func InitLogger(cfg *coreconfig.Config) error {
	state.Lock()
	defer state.Unlock()
	if state.started {
		return nil
	}
	state.started = true

	var s settings
	if cfg != nil {
		s = resolve(cfg.Logging)
	} else {
		s = resolve(coreconfig.LoggingConfig{})
	}
	levelVar.Set(s.level)
	sampler.Set(s.keep, s.window)
	tracing = truthy(os.Getenv("TRACE")) || truthy(os.Getenv("LOG_TRACE"))

	outputs := []io.Writer{os.Stdout}
	if s.file != "" {
		f, err := openLogFile(s.file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		} else {
			outputs = append(outputs, f)
			state.sinks = append(state.sinks, f)
		}
	}
	state.writer = newAsyncWriter(outputs, writerBuffer)

	base := slog.New(newStructuredHandler(handlerConfig{
		level:    &levelVar,
		writer:   state.writer,
		format:   s.format,
		keyOrder: s.keyOrder,
	}))
	install(base)
	slog.SetDefault(base)

	announce(cfg, s)
	return nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func announce(cfg *coreconfig.Config, s settings) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("cfg_profile", s.profile),
	}
	if cfg != nil {
		attrs = append(attrs,
			slog.String("mode", cfg.Telegram.RunMode),
			slog.Bool("restricted", cfg.Access.Restricted()),
			slog.Bool("db", cfg.Database.Enabled()),
		)
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown drains buffered output and closes the log file. Later calls are no-ops.
func Shutdown() error {
	state.Lock()
	defer state.Unlock()
	if state.closed {
		return nil
	}
	state.closed = true

	var errs []error
	if w := state.writer; w != nil {
		errs = append(errs, w.Flush(), w.Close())
	}
	for _, c := range state.sinks {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 lets everything through.
func ShouldSampleDebug() bool {
	return tracing || sampler.Allow()
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// Component returns L scoped to name. A blank name returns L.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes attrs under event using logg, or the logger carried by ctx
// when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}
